// Package vectorstore picks the dataset backend named in the configuration.
package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/divya-pal4/study-assitant-rag/internal/chromemdb"
	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/db"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

var datasetIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// New returns the configured store and a function releasing its resources.
func New(ctx context.Context, cfg *config.Config) (models.Store, func() error, error) {
	switch cfg.Index.Backend {
	case config.BackendFile, "":
		log.Info().Str("dir", cfg.Index.Dir).Bool("compress", cfg.Index.Compress).Msg("Using file index store")
		store := chromemdb.NewStore(cfg.Index.Dir, cfg.Index.Compress, cfg.Index.EncryptionKey)
		return store, func() error { return nil }, nil
	case config.BackendPostgres:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, bunDB); err != nil {
			bunDB.Close()
			return nil, nil, fmt.Errorf("init database: %w", err)
		}
		log.Info().Str("driver", cfg.Database.Driver).Msg("Using postgres index store")
		return db.NewStore(bunDB), bunDB.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index backend %q", cfg.Index.Backend)
	}
}

// ValidateDatasetID accepts "" (the default dataset) and ids that are safe to
// use as a single path element.
func ValidateDatasetID(id string) error {
	if id == "" {
		return nil
	}
	if id == "." || !datasetIDRegex.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: invalid pdf_id %q", models.ErrInvalidRequest, id)
	}
	return nil
}

// DatasetDir resolves the directory holding pdfID under dir.
func DatasetDir(dir, pdfID string) (string, error) {
	if err := ValidateDatasetID(pdfID); err != nil {
		return "", err
	}
	if pdfID == "" {
		return dir, nil
	}
	return filepath.Join(dir, pdfID), nil
}
