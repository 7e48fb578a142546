package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

// NewEmbedder creates the embedder described by cfg. The same configuration
// must be used by the indexer and by the query service.
func NewEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		client, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	case config.ProviderOpenAI:
		client, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		)
	default:
		err = fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrModelLoad, err)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrModelLoad, err)
	}
	return embedder, nil
}

// EmbedChunks embeds all chunks in one batch and returns unit-length vectors
// aligned with chunks.
func EmbedChunks(ctx context.Context, embedder embeddings.Embedder, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, models.ErrNoChunks
	}

	vectors, err := embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: embed %d chunks: %v", models.ErrModel, len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d chunks but %d embeddings", models.ErrAlignment, len(chunks), len(vectors))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d", models.ErrModel, i, len(v), dim)
		}
		Normalize(v)
	}
	return vectors, nil
}

// EmbedQuery embeds a question with the same model used at index time.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, query string) ([]float32, error) {
	vec, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", models.ErrModel, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", models.ErrModel)
	}
	Normalize(vec)
	return vec, nil
}

// Normalize scales v to unit L2 norm in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
