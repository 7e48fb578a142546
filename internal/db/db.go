package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

const insertBatchSize = 500

// ChunkRecord is one chunk of a dataset. Position is the chunk's index in the
// dataset and doubles as its vector id.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Dataset       string          `bun:"dataset,notnull"`
	Position      int             `bun:"position,notnull"`
	Content       string          `bun:"content,notnull"`
	Model         string          `bun:"model"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	switch cfg.Driver {
	case config.DriverPq:
		dsn, err := withPassword(cfg.DSN, cfg.Password)
		if err != nil {
			return nil, err
		}
		return sql.Open("postgres", dsn)
	case config.DriverPgdriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// withPassword sets the password of a URL-style DSN. Key/value DSNs are
// returned unchanged.
func withPassword(dsn, password string) (string, error) {
	if password == "" || !strings.Contains(dsn, "://") {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*ChunkRecord)(nil)).
		Index("chunks_dataset_position_idx").
		Unique().
		IfNotExists().
		Column("dataset", "position").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func DropChunks(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*ChunkRecord)(nil)).IfExists().Exec(ctx)
	return err
}

// Store keeps datasets as rows of the chunks table.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Write replaces every row of dataset in one transaction.
func (s *Store) Write(ctx context.Context, dataset string, meta models.DatasetMeta, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 {
		return models.ErrNoChunks
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", models.ErrAlignment, len(chunks), len(vectors))
	}

	records := make([]ChunkRecord, len(chunks))
	for i := range chunks {
		records[i] = ChunkRecord{
			Dataset:   dataset,
			Position:  i,
			Content:   chunks[i],
			Model:     meta.Model,
			Embedding: pgvector.NewVector(vectors[i]),
		}
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*ChunkRecord)(nil)).Where("dataset = ?", dataset).Exec(ctx); err != nil {
			return err
		}
		for start := 0; start < len(records); start += insertBatchSize {
			end := min(start+insertBatchSize, len(records))
			batch := records[start:end]
			if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexBuild, err)
	}

	log.Debug().Str("dataset", dataset).Int("rows", len(records)).Msg("Dataset written")
	return nil
}

type datasetStats struct {
	Count  int          `bun:"count"`
	MaxPos int          `bun:"max_pos"`
	Newest bun.NullTime `bun:"newest"`
}

func (s *Store) stats(ctx context.Context, dataset string) (*datasetStats, error) {
	var st datasetStats
	err := s.db.NewSelect().
		Model((*ChunkRecord)(nil)).
		ColumnExpr("count(*) AS count").
		ColumnExpr("coalesce(max(position), -1) AS max_pos").
		ColumnExpr("max(created_at) AS newest").
		Where("dataset = ?", dataset).
		Scan(ctx, &st)
	if err != nil {
		return nil, err
	}
	if st.Count == 0 {
		return nil, fmt.Errorf("%w: dataset %q", models.ErrIndexMissing, dataset)
	}
	return &st, nil
}

// Open checks that positions form 0..N-1 and returns a searchable index.
func (s *Store) Open(ctx context.Context, dataset string) (models.Index, error) {
	st, err := s.stats(ctx, dataset)
	if err != nil {
		return nil, err
	}
	if st.Count != st.MaxPos+1 {
		return nil, fmt.Errorf("%w: dataset %q has %d rows, highest position %d",
			models.ErrAlignment, dataset, st.Count, st.MaxPos)
	}

	var dim int
	err = s.db.NewSelect().
		Model((*ChunkRecord)(nil)).
		ColumnExpr("vector_dims(embedding)").
		Where("dataset = ?", dataset).
		Limit(1).
		Scan(ctx, &dim)
	if err != nil {
		return nil, err
	}

	return &Index{db: s.db, dataset: dataset, count: st.Count, dim: dim}, nil
}

func (s *Store) Stamp(ctx context.Context, dataset string) (string, error) {
	st, err := s.stats(ctx, dataset)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%d", st.Count, st.Newest.UnixNano()), nil
}

// Index searches one dataset with exact cosine distance.
type Index struct {
	db      *bun.DB
	dataset string
	count   int
	dim     int
}

func (i *Index) Len() int { return i.count }

func (i *Index) Dimension() int { return i.dim }

func (i *Index) Search(ctx context.Context, query []float32, k int) ([]models.Hit, error) {
	if i.dim > 0 && len(query) != i.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", models.ErrModel, len(query), i.dim)
	}
	n := min(k, i.count)
	if n <= 0 {
		return nil, nil
	}

	var rows []struct {
		Position int     `bun:"position"`
		Content  string  `bun:"content"`
		Distance float64 `bun:"distance"`
	}
	err := i.db.NewSelect().
		Model((*ChunkRecord)(nil)).
		Column("position", "content").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(query)).
		Where("dataset = ?", i.dataset).
		OrderExpr("distance ASC, position ASC").
		Limit(n).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]models.Hit, 0, len(rows))
	for _, r := range rows {
		if r.Position < 0 || r.Position >= i.count {
			log.Warn().Int("position", r.Position).Int("chunks", i.count).Msg("Skipping out-of-range search result")
			continue
		}
		hits = append(hits, models.Hit{Position: r.Position, Text: r.Content, Score: float32(1 - r.Distance)})
	}
	return hits, nil
}
