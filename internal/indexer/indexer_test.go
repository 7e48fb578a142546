package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divya-pal4/study-assitant-rag/internal/chromemdb"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
	"github.com/divya-pal4/study-assitant-rag/internal/testutil"
)

func writeChunks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_JSONLines(t *testing.T) {
	ctx := context.Background()
	outDir := t.TempDir()
	store := chromemdb.NewStore(outDir, false, "")
	ix := NewIndexer(&testutil.HashEmbedder{}, store, "hash")

	path := writeChunks(t, `{"text":"Paris is the capital of France."}
{"text":"Photosynthesis converts light into chemical energy."}
{"text":"Mitochondria produce ATP."}
`)
	res, err := ix.Run(ctx, path, "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, testutil.HashDimension, res.Dimension)
	assert.Equal(t, "jsonl", res.Strategy)

	assert.FileExists(t, filepath.Join(outDir, models.IndexFileName))
	assert.FileExists(t, filepath.Join(outDir, models.ChunksFileName))

	idx, err := store.Open(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
}

func TestRun_MalformedLineCounted(t *testing.T) {
	ix := NewIndexer(&testutil.HashEmbedder{}, chromemdb.NewStore(t.TempDir(), false, ""), "hash")
	path := writeChunks(t, `{"text":"first chunk"}
not json at all
{"text":"third chunk"}
`)
	res, err := ix.Run(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
}

func TestRun_Dataset(t *testing.T) {
	outDir := t.TempDir()
	ix := NewIndexer(&testutil.HashEmbedder{}, chromemdb.NewStore(outDir, false, ""), "hash")
	path := writeChunks(t, "--- CHUNK 1 ---\nalpha text\n--- CHUNK 2 ---\nbeta text\n")

	res, err := ix.Run(context.Background(), path, "chem")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, "separator", res.Strategy)
	assert.FileExists(t, filepath.Join(outDir, "chem", models.ChunksFileName))
}

func TestRun_EmptyFileWritesNothing(t *testing.T) {
	outDir := t.TempDir()
	ix := NewIndexer(&testutil.HashEmbedder{}, chromemdb.NewStore(outDir, false, ""), "hash")

	_, err := ix.Run(context.Background(), writeChunks(t, "\n   \n"), "")
	assert.ErrorIs(t, err, models.ErrNoChunks)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_MissingFile(t *testing.T) {
	ix := NewIndexer(&testutil.HashEmbedder{}, chromemdb.NewStore(t.TempDir(), false, ""), "hash")
	_, err := ix.Run(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), "")
	assert.ErrorIs(t, err, models.ErrInput)
}

func TestRun_EmbeddingFailureWritesNothing(t *testing.T) {
	outDir := t.TempDir()
	ix := NewIndexer(&testutil.HashEmbedder{Err: errors.New("model not loaded")}, chromemdb.NewStore(outDir, false, ""), "hash")

	_, err := ix.Run(context.Background(), writeChunks(t, `{"text":"x"}`), "")
	assert.ErrorIs(t, err, models.ErrIndexBuild)
	assert.ErrorIs(t, err, models.ErrModel)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_InvalidDataset(t *testing.T) {
	ix := NewIndexer(&testutil.HashEmbedder{}, chromemdb.NewStore(t.TempDir(), false, ""), "hash")
	_, err := ix.Run(context.Background(), writeChunks(t, `{"text":"x"}`), "../escape")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}
