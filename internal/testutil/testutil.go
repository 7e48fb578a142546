// Package testutil provides deterministic stand-ins for the embedding and
// generation models so pipelines can be tested without a model server.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"
)

const HashDimension = 256

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "of": {}, "in": {}, "on": {},
	"what": {}, "which": {}, "who": {}, "to": {}, "and": {}, "or": {}, "it": {},
}

// HashEmbedder is a bag-of-words embedder: each non-stopword token increments
// one of HashDimension buckets. Identical text always yields identical vectors.
type HashEmbedder struct {
	Err error

	mu    sync.Mutex
	calls int
}

func (e *HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.record()
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = HashVector(t)
	}
	return out, nil
}

func (e *HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.record()
	if e.Err != nil {
		return nil, e.Err
	}
	return HashVector(text), nil
}

// Calls returns how many embedding requests were made.
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *HashEmbedder) record() {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
}

func HashVector(text string) []float32 {
	vec := make([]float32, HashDimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%HashDimension]++
	}
	return vec
}

// StubGenerator returns Answer (or Err) and remembers the prompts it received.
type StubGenerator struct {
	Answer string
	Err    error

	mu      sync.Mutex
	prompts []string
}

func (g *StubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	return g.Answer, nil
}

func (g *StubGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}
