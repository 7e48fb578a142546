package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/indexer"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

const shutdownTimeout = 10 * time.Second

type Asker interface {
	Ask(ctx context.Context, req models.AskRequest) (*models.Answer, error)
}

type ChunkIndexer interface {
	Run(ctx context.Context, chunksFile, dataset string) (*indexer.Result, error)
}

type Server struct {
	rag           Asker
	indexer       ChunkIndexer
	uploadDir     string
	maxUpload     int64
	wordsPerChunk int
}

func NewServer(rag Asker, ix ChunkIndexer, cfg *config.Config) *Server {
	return &Server{
		rag:           rag,
		indexer:       ix,
		uploadDir:     cfg.Server.UploadDir,
		maxUpload:     int64(cfg.Server.MaxUploadMB) << 20,
		wordsPerChunk: cfg.RAG.WordsPerChunk,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.healthHandler)
	mux.HandleFunc("POST /ask_llm", s.askHandler)
	mux.HandleFunc("POST /upload", s.uploadHandler)

	return requestLogger(recoverer(cors(mux)))
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
