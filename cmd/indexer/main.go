package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/embedding"
	"github.com/divya-pal4/study-assitant-rag/internal/helper"
	"github.com/divya-pal4/study-assitant-rag/internal/indexer"
	"github.com/divya-pal4/study-assitant-rag/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", configFilePath, "Path to config YAML")
	chunksFile := flag.String("chunks-file", "", "Path to the chunk file (JSON lines, CHUNK blocks or plain lines)")
	faissDir := flag.String("faiss-dir", "", "Directory the index is written to")
	pdfID := flag.String("pdf-id", "", "Dataset id; the index goes to <faiss-dir>/<pdf-id>")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		helper.SetupLogger(config.LogConfig{})
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.SetupLogger(cfg.Log)

	if *chunksFile == "" || *faissDir == "" {
		flag.Usage()
		log.Fatal().Msg("Both --chunks-file and --faiss-dir are required")
	}
	cfg.Index.Dir = *faissDir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *chunksFile, *pdfID); err != nil {
		stop()
		log.Fatal().Err(err).Msg("Indexing failed")
	}
}

func run(ctx context.Context, cfg *config.Config, chunksFile, pdfID string) error {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		return err
	}

	store, closeStore, err := vectorstore.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	res, err := indexer.NewIndexer(embedder, store, cfg.Embedding.Model).Run(ctx, chunksFile, pdfID)
	if err != nil {
		return err
	}

	log.Info().
		Int("chunks", res.Chunks).
		Int("dimension", res.Dimension).
		Str("strategy", res.Strategy).
		Msg("Indexing complete")
	fmt.Printf("Indexed %d chunks (dimension %d)\n", res.Chunks, res.Dimension)
	return nil
}
