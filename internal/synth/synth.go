// Package synth answers questions from retrieved document context using a
// remote chat model.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mwiater/ragbot/internal/logging"
	"github.com/mwiater/ragbot/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 10

// SystemPrompt constrains the model to the supplied context.
const SystemPrompt = `You are an information extraction assistant.
Use ONLY the provided context to answer the question.

Rules:
- Do NOT use markdown.
- Do NOT use code blocks or backticks.
- Do NOT use bullet symbols.
- Write the answer as plain text in complete sentences.
- If the answer is not present in the context, reply exactly:
  Not found in the context.`

// NotFoundReply is what the model is told to say when the context lacks an answer.
const NotFoundReply = "Not found in the context."

// Searcher ranks indexed chunks against a question.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]vectorstore.Result, error)
}

// Answer is a successful reply and the chunks it was grounded on.
type Answer struct {
	Text    string
	Sources []vectorstore.Result
}

// Synthesizer turns a question and an index into an answer.
type Synthesizer struct {
	client CompletionClient
	topK   int
}

// New returns a Synthesizer that retrieves topK chunks per question.
func New(client CompletionClient, topK int) *Synthesizer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Synthesizer{client: client, topK: topK}
}

// Answer retrieves context for question from idx and asks the model. A nil
// idx yields a KindNotInitialized failure. Every failure to produce an
// answer is a *Failure; other errors come from the search itself.
func (s *Synthesizer) Answer(ctx context.Context, question string, idx Searcher) (Answer, error) {
	if idx == nil {
		return Answer{}, &Failure{Kind: KindNotInitialized}
	}

	results, err := idx.SimilaritySearch(ctx, question, s.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(results) == 0 {
		return Answer{}, &Failure{Kind: KindNoRelevantContext}
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	messages := BuildMessages(strings.Join(texts, "\n\n"), question)

	reply, err := s.client.Complete(ctx, messages)
	if err != nil {
		return Answer{}, classify(err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Answer{}, &Failure{Kind: KindEmptyModelResponse}
	}
	return Answer{Text: reply, Sources: results}, nil
}

// BuildMessages returns the system and user turns for one question.
func BuildMessages(contextText, question string) []Message {
	return []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextText, question)},
	}
}

func classify(err error) error {
	var status *StatusError
	switch {
	case errors.As(err, &status):
		logging.LogWarning("completion endpoint returned %s", status.Status)
		return &Failure{Kind: KindTransport, Detail: status.Error(), Err: err}
	case errors.Is(err, ErrMalformedResponse):
		logging.LogWarning("completion endpoint: %v", err)
		return &Failure{Kind: KindEmptyModelResponse, Err: err}
	default:
		logging.LogWarning("completion request failed: %v", err)
		return &Failure{Kind: KindTransport, Detail: "Error during query: " + err.Error(), Err: err}
	}
}
