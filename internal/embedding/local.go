package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Local is an offline embedder that hashes word unigrams and bigrams into a
// fixed number of buckets. Vectors are L2-normalized; text without any words
// maps to the zero vector.
type Local struct {
	model string
	dim   int
}

// LocalModelID is the model name a Local embedder of dimension dim reports.
func LocalModelID(dim int) string {
	return fmt.Sprintf("local-hashing-%d", dim)
}

// NewLocal returns a Local embedder producing vectors of length dim.
func NewLocal(dim int) (*Local, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("local embedding dimension must be greater than zero")
	}
	return &Local{model: LocalModelID(dim), dim: dim}, nil
}

func (l *Local) Dimension() int   { return l.dim }
func (l *Local) Model() string    { return l.model }
func (l *Local) Provider() string { return "local" }

func (l *Local) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.vector(text)
	}
	return out, nil
}

func (l *Local) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.vector(text), nil
}

func (l *Local) vector(text string) []float32 {
	acc := make([]float64, l.dim)
	words := tokenize(text)
	for i, w := range words {
		l.add(acc, w, 1)
		if i > 0 {
			l.add(acc, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, l.dim)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (l *Local) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := sum % uint64(l.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
