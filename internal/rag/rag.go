package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/embedding"
	"github.com/divya-pal4/study-assitant-rag/internal/llmservice"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
	"github.com/divya-pal4/study-assitant-rag/internal/vectorstore"
)

type RAG struct {
	embedder     embeddings.Embedder
	generator    llmservice.Generator
	library      *Library
	topK         int
	contextChars int
}

func NewRAG(embedder embeddings.Embedder, generator llmservice.Generator, library *Library, cfg *config.RAGConfig) *RAG {
	r := &RAG{
		embedder:     embedder,
		generator:    generator,
		library:      library,
		topK:         cfg.TopK,
		contextChars: cfg.ContextChars,
	}
	if r.topK <= 0 {
		r.topK = models.DefaultTopK
	}
	if r.contextChars <= 0 {
		r.contextChars = models.DefaultContextChars
	}
	return r
}

// Ask retrieves the chunks closest to the question and has the generator
// answer from them. A dataset that was never indexed yields a placeholder
// answer instead of an error.
func (r *RAG) Ask(ctx context.Context, req models.AskRequest) (*models.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", models.ErrInvalidRequest)
	}
	topK := r.topK
	if req.TopK != nil {
		if *req.TopK < 1 {
			return nil, fmt.Errorf("%w: top_k must be at least 1", models.ErrInvalidRequest)
		}
		topK = *req.TopK
	}
	if err := vectorstore.ValidateDatasetID(req.PdfID); err != nil {
		return nil, err
	}

	idx, err := r.library.Get(ctx, req.PdfID)
	if err != nil {
		if errors.Is(err, models.ErrIndexMissing) {
			log.Warn().Str("pdf_id", req.PdfID).Msg("Index not ready")
			return &models.Answer{Question: req.Question, Answer: models.NotReadyAnswer, Sources: []string{}}, nil
		}
		return nil, err
	}

	queryEmbedding, err := embedding.EmbedQuery(ctx, r.embedder, req.Question)
	if err != nil {
		return nil, err
	}

	hits, err := idx.Search(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, err
	}
	sources := make([]string, len(hits))
	for i, h := range hits {
		sources[i] = h.Text
	}
	log.Debug().Str("pdf_id", req.PdfID).Int("top_k", topK).Int("hits", len(hits)).Msg("Retrieved chunks")

	response, err := r.generator.Generate(ctx, BuildPrompt(req.Question, sources, r.contextChars))
	if err != nil {
		return nil, err
	}

	return &models.Answer{
		Question: req.Question,
		Answer:   CollapseWhitespace(response),
		Sources:  sources,
	}, nil
}

// BuildPrompt joins chunks with blank lines, cuts the result to budget
// characters and fills the prompt template.
func BuildPrompt(question string, chunks []string, budget int) string {
	context := strings.Join(chunks, models.ContextSeparator)
	if runes := []rune(context); budget >= 0 && len(runes) > budget {
		context = string(runes[:budget])
	}
	return strings.TrimSpace(fmt.Sprintf(models.PromptTemplate, context, question))
}

// CollapseWhitespace replaces every whitespace run with one space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
