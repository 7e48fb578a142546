package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/embedding"
	"github.com/divya-pal4/study-assitant-rag/internal/helper"
	"github.com/divya-pal4/study-assitant-rag/internal/indexer"
	"github.com/divya-pal4/study-assitant-rag/internal/llmservice"
	"github.com/divya-pal4/study-assitant-rag/internal/rag"
	"github.com/divya-pal4/study-assitant-rag/internal/server"
	"github.com/divya-pal4/study-assitant-rag/internal/vectorstore"
)

const configFilePath = "./configs/config.yaml"

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", configFilePath, "Path to config YAML")
	addr := flag.String("addr", "", "Listen address (overrides server.addr)")
	faissDir := flag.String("faiss-dir", "", "Index directory (overrides index.dir)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		helper.SetupLogger(config.LogConfig{})
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.SetupLogger(cfg.Log)

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *faissDir != "" {
		cfg.Index.Dir = *faissDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		return err
	}

	generator, err := llmservice.NewGenerator(&cfg.LLM)
	if err != nil {
		return err
	}

	store, closeStore, err := vectorstore.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := helper.CreateFolder(cfg.Server.UploadDir); err != nil {
		return err
	}

	r := rag.NewRAG(embedder, generator, rag.NewLibrary(store), &cfg.RAG)
	ix := indexer.NewIndexer(embedder, store, cfg.Embedding.Model)

	log.Info().
		Str("embedding_model", cfg.Embedding.Model).
		Str("llm_model", cfg.LLM.Model).
		Str("backend", cfg.Index.Backend).
		Msg("RAG service ready")

	return server.NewServer(r, ix, cfg).ListenAndServe(ctx, cfg.Server.Addr)
}
