// Package gateway exposes question answering over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mwiater/ragbot/internal/logging"
	"github.com/mwiater/ragbot/internal/synth"
)

const (
	maxBodyBytes    = 1 << 20
	healthMessage   = "RAG Bot API is running"
	emptyQuestion   = "Question cannot be empty"
	shutdownTimeout = 10 * time.Second
)

// Answerer produces answers from an index.
type Answerer interface {
	Answer(ctx context.Context, question string, idx synth.Searcher) (synth.Answer, error)
}

// Options configures a Server. A nil Index means no document index is
// available, and every query fails as not initialized.
type Options struct {
	Answerer Answerer
	Index    synth.Searcher
	Document string
	Debug    bool
}

// Server is the HTTP front of the question-answering pipeline.
type Server struct {
	answerer Answerer
	index    synth.Searcher
	document string
	engine   *gin.Engine
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		answerer: opts.Answerer,
		index:    opts.Index,
		document: opts.Document,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestIDMiddleware(), accessLogMiddleware(), corsMiddleware())
	s.engine.GET("/", s.handleHealth)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/query", s.handleQuery)
	return s
}

// Handler returns the router for use with an http.Server or httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.LogEvent("[HTTP] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.LogEvent("[HTTP] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Message    string `json:"message"`
	Status     string `json:"status"`
	Document   string `json:"document,omitempty"`
	IndexReady bool   `json:"indexReady"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Message:    healthMessage,
		Status:     "healthy",
		Document:   s.document,
		IndexReady: s.index != nil,
	})
}

type queryRequest struct {
	Question       string `json:"question"`
	IncludeSources bool   `json:"include_sources"`
}

// Source is one retrieved chunk echoed back to the caller.
type Source struct {
	Page     int     `json:"page"`
	Sequence int     `json:"sequence"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// QueryResponse is the body of POST /query.
type QueryResponse struct {
	Answer  string   `json:"answer"`
	Success bool     `json:"success"`
	Sources []Source `json:"sources,omitempty"`
	Detail  string   `json:"detail,omitempty"`
	Kind    string   `json:"kind,omitempty"`
}

func (s *Server) handleQuery(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, QueryResponse{Detail: "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, QueryResponse{Detail: "could not read request body"})
		return
	}
	if err := validateQuery(raw); err != nil {
		c.JSON(http.StatusBadRequest, QueryResponse{Detail: err.Error()})
		return
	}
	var req queryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, QueryResponse{Detail: "invalid JSON: " + err.Error()})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, QueryResponse{Detail: emptyQuestion})
		return
	}

	ans, err := s.answerer.Answer(c.Request.Context(), question, s.index)
	if err != nil {
		status, resp := failureResponse(err)
		logging.LogWarning("query id=%s failed: kind=%s detail=%s", c.GetString(requestIDKey), resp.Kind, resp.Detail)
		c.JSON(status, resp)
		return
	}

	resp := QueryResponse{Answer: ans.Text, Success: true}
	if req.IncludeSources {
		resp.Sources = make([]Source, len(ans.Sources))
		for i, r := range ans.Sources {
			resp.Sources[i] = Source{Page: r.Chunk.Page, Sequence: r.Chunk.Sequence, Score: r.Score, Text: r.Chunk.Text}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func failureResponse(err error) (int, QueryResponse) {
	var f *synth.Failure
	if !errors.As(err, &f) {
		return http.StatusInternalServerError, QueryResponse{Detail: "Error during query: " + err.Error(), Kind: "internal"}
	}
	status := http.StatusInternalServerError
	if f.Kind == synth.KindNotInitialized {
		status = http.StatusServiceUnavailable
	}
	return status, QueryResponse{Detail: f.Error(), Kind: f.Kind.String()}
}
