package synth

import "fmt"

// Kind classifies why no answer was produced.
type Kind int

const (
	// KindNotInitialized means no index was available to search.
	KindNotInitialized Kind = iota + 1
	// KindNoRelevantContext means the search returned nothing.
	KindNoRelevantContext
	// KindEmptyModelResponse means the model replied without usable text.
	KindEmptyModelResponse
	// KindTransport means the completion endpoint could not be reached or
	// answered with an error status.
	KindTransport
)

// String returns the kind's identifier as used in API responses.
func (k Kind) String() string {
	switch k {
	case KindNotInitialized:
		return "not_initialized"
	case KindNoRelevantContext:
		return "no_relevant_context"
	case KindEmptyModelResponse:
		return "empty_model_response"
	case KindTransport:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Failure is the error returned by Answer. Its message is the text shown to
// users for that kind.
type Failure struct {
	Kind   Kind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindNotInitialized:
		return "Error: Vectorstore not initialized."
	case KindNoRelevantContext:
		return "No relevant documents found."
	case KindEmptyModelResponse:
		return "No content returned from model."
	}
	if f.Detail != "" {
		return f.Detail
	}
	if f.Err != nil {
		return "Error during query: " + f.Err.Error()
	}
	return f.Kind.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches failures by kind, so errors.Is(err, ErrTransport) holds for any
// transport failure.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotInitialized     = &Failure{Kind: KindNotInitialized}
	ErrNoRelevantContext  = &Failure{Kind: KindNoRelevantContext}
	ErrEmptyModelResponse = &Failure{Kind: KindEmptyModelResponse}
	ErrTransport          = &Failure{Kind: KindTransport}
)
