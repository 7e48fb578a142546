package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/divya-pal4/study-assitant-rag/internal/embedding"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
	"github.com/divya-pal4/study-assitant-rag/internal/parser"
	"github.com/divya-pal4/study-assitant-rag/internal/vectorstore"
)

type Indexer struct {
	Embedder embeddings.Embedder
	Store    models.Store
	// Model is recorded alongside the dataset.
	Model string
	// Strategies overrides the chunk file parsing order when set.
	Strategies []parser.Strategy
}

type Result struct {
	Chunks    int
	Dimension int
	Strategy  string
}

func NewIndexer(embedder embeddings.Embedder, store models.Store, model string) *Indexer {
	return &Indexer{Embedder: embedder, Store: store, Model: model}
}

// Run parses chunksFile, embeds every chunk in one batch and replaces dataset
// with the result. Nothing is written unless every step succeeds.
func (ix *Indexer) Run(ctx context.Context, chunksFile, dataset string) (*Result, error) {
	if err := vectorstore.ValidateDatasetID(dataset); err != nil {
		return nil, err
	}

	start := time.Now()
	chunks, strategy, err := parser.ParseChunkFile(chunksFile, ix.Strategies...)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", chunksFile).Str("strategy", strategy).Int("chunks", len(chunks)).Msg("Parsed chunk file")

	return ix.index(ctx, chunks, strategy, dataset, start)
}

func (ix *Indexer) index(ctx context.Context, chunks []string, strategy, dataset string, start time.Time) (*Result, error) {
	vectors, err := embedding.EmbedChunks(ctx, ix.Embedder, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrIndexBuild, err)
	}
	dim := len(vectors[0])

	meta := models.DatasetMeta{Model: ix.Model, Dimension: dim}
	if err := ix.Store.Write(ctx, dataset, meta, chunks, vectors); err != nil {
		return nil, err
	}

	log.Info().
		Str("dataset", dataset).
		Int("chunks", len(chunks)).
		Int("dimension", dim).
		Dur("took", time.Since(start)).
		Msg("Index built")

	return &Result{Chunks: len(chunks), Dimension: dim, Strategy: strategy}, nil
}
