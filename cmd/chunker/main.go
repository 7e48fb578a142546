package main

import (
	"flag"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/helper"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
	"github.com/divya-pal4/study-assitant-rag/internal/parser"
)

const configFilePath = "./configs/config.yaml"

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", configFilePath, "Path to config YAML")
	filePath := flag.String("file", "", "Path to the document file")
	out := flag.String("out", models.ChunkFileName, "Chunk file to write")
	words := flag.Int("words", 0, "Words per chunk (overrides rag.words_per_chunk)")
	dryRun := flag.Bool("dry-run", false, "Print chunks instead of writing the chunk file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		helper.SetupLogger(config.LogConfig{})
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.SetupLogger(cfg.Log)

	if *filePath == "" {
		flag.Usage()
		log.Fatal().Msg("Please provide a document file using the --file flag")
	}
	if *words > 0 {
		cfg.RAG.WordsPerChunk = *words
	}

	chunks, err := parser.ExtractChunks(*filePath, cfg.RAG.WordsPerChunk)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}

	if *dryRun {
		helper.PrettyPrint(chunks)
		return
	}

	if err := parser.WriteChunkFile(*out, chunks); err != nil {
		log.Fatal().Err(err).Msg("Error writing chunk file")
	}
	log.Info().Str("file", *filePath).Str("out", *out).Int("chunks", len(chunks)).Msg("Chunk file written")
}
