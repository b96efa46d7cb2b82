package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/query" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["question"] != "refunds?" {
			t.Errorf("unexpected question %v", body["question"])
		}
		_, _ = w.Write([]byte(`{"answer":"Ten days.","success":true}`))
	}))
	defer server.Close()

	c := New(server.URL+"/", time.Second)
	answer, err := c.Ask(context.Background(), "refunds?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "Ten days." {
		t.Fatalf("unexpected answer %q", answer)
	}
}

func TestQueryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"answer":"","success":false,"detail":"Error: Vectorstore not initialized.","kind":"not_initialized"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Query(context.Background(), "q", false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 503 || apiErr.Kind != "not_initialized" || apiErr.Detail != "Error: Vectorstore not initialized." {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"RAG Bot API is running","status":"healthy","indexReady":true}`))
	}))
	defer server.Close()

	h, err := New(server.URL, time.Second).Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != "healthy" || !h.IndexReady {
		t.Fatalf("unexpected health: %+v", h)
	}
}
