package models

import "context"

// Hit is a search result mapped back to its chunk.
type Hit struct {
	Position int
	Text     string
	Score    float32
}

// Index is a loaded, read-only dataset. Implementations must be safe for
// concurrent Search calls.
type Index interface {
	Len() int
	Dimension() int
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
}

// Store persists datasets (aligned chunk and vector sequences) and opens them
// for search. Dataset "" is the default dataset.
type Store interface {
	Write(ctx context.Context, dataset string, meta DatasetMeta, chunks []string, vectors [][]float32) error
	Open(ctx context.Context, dataset string) (Index, error)
	// Stamp returns an opaque version that changes whenever the dataset is rewritten.
	Stamp(ctx context.Context, dataset string) (string, error)
}

type DatasetMeta struct {
	Model     string `msgpack:"model"`
	Dimension int    `msgpack:"dimension"`
}

type AskRequest struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
	PdfID    string `json:"pdf_id,omitempty"`
}

type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}
