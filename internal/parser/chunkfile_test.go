package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseChunkFile_JSONLines(t *testing.T) {
	path := writeTemp(t, "chunks.jsonl",
		`{"text":"Paris is the capital of France."}
{"text":"The Eiffel Tower is in Paris."}
`)

	chunks, strategy, err := ParseChunkFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jsonl", strategy)
	assert.Equal(t, []string{"Paris is the capital of France.", "The Eiffel Tower is in Paris."}, chunks)
}

func TestParseChunkFile_MalformedLineKeptAsText(t *testing.T) {
	path := writeTemp(t, "chunks.jsonl",
		`{"text":"first"}
{"text": broken
plain words here

{"text":"last"}
`)

	chunks, strategy, err := ParseChunkFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jsonl", strategy)
	assert.Equal(t, []string{"first", `{"text": broken`, "plain words here", "last"}, chunks)
}

func TestParseChunkFile_JSONWithoutTextSkipped(t *testing.T) {
	path := writeTemp(t, "chunks.jsonl", `{"text":"kept"}
{"page":3}
{"text":"   "}
`)

	chunks, _, err := ParseChunkFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, chunks)
}

func TestParseChunkFile_SeparatorBlocks(t *testing.T) {
	path := writeTemp(t, "chunks.txt", `preamble ignored
--- CHUNK 1 ---
alpha beta
gamma

--- CHUNK 2 ---

--- CHUNK 3 ---
delta
`)

	chunks, strategy, err := ParseChunkFile(path)
	require.NoError(t, err)
	assert.Equal(t, "separator", strategy)
	assert.Equal(t, []string{"alpha beta\ngamma", "delta"}, chunks)
}

func TestParseChunkFile_RawLines(t *testing.T) {
	path := writeTemp(t, "chunks.txt", "  one  \n\ntwo\n\t\nthree")

	chunks, strategy, err := ParseChunkFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lines", strategy)
	assert.Equal(t, []string{"one", "two", "three"}, chunks)
}

func TestParseChunkFile_Empty(t *testing.T) {
	path := writeTemp(t, "chunks.txt", "\n  \n")

	_, _, err := ParseChunkFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNoChunks)
}

func TestParseChunkFile_Missing(t *testing.T) {
	_, _, err := ParseChunkFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInput)
}

func TestParseChunkFile_CustomOrder(t *testing.T) {
	path := writeTemp(t, "chunks.txt", `{"text":"a"}`)

	chunks, strategy, err := ParseChunkFile(path, RawLines{})
	require.NoError(t, err)
	assert.Equal(t, "lines", strategy)
	assert.Equal(t, []string{`{"text":"a"}`}, chunks)
}

func TestWriteChunkFile_ReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	in := []string{"line with \"quotes\" <b>", "second\nspans lines"}
	require.NoError(t, WriteChunkFile(path, in))

	chunks, strategy, err := ParseChunkFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jsonl", strategy)
	assert.Equal(t, []string{"line with \"quotes\" <b>", "second\nspans lines"}, chunks)
}
