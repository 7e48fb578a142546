package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divya-pal4/study-assitant-rag/internal/chromemdb"
	"github.com/divya-pal4/study-assitant-rag/internal/config"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

func TestValidateDatasetID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"", false},
		{"biology-101", false},
		{"notes_v2.pdf", false},
		{"3f0c1c2e-9c1e-4a4e-8d5e-1b2c3d4e5f60", false},
		{".", true},
		{"..", true},
		{"a..b", true},
		{"../etc", true},
		{"a/b", true},
		{"with space", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateDatasetID(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatasetDir(t *testing.T) {
	dir, err := DatasetDir("faiss_index", "")
	require.NoError(t, err)
	assert.Equal(t, "faiss_index", dir)

	dir, err = DatasetDir("faiss_index", "chem")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("faiss_index", "chem"), dir)

	_, err = DatasetDir("faiss_index", "../chem")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestNew(t *testing.T) {
	cfg := config.Default()
	cfg.Index.Dir = t.TempDir()

	store, closeFn, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &chromemdb.Store{}, store)
	assert.NoError(t, closeFn())

	cfg.Index.Backend = "faiss"
	_, _, err = New(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Index.Backend = config.BackendPostgres
	cfg.Database.DSN = ""
	_, _, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
