package rag

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divya-pal4/study-assitant-rag/internal/chromemdb"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

type countingStore struct {
	*chromemdb.Store
	opens atomic.Int32
}

func (s *countingStore) Open(ctx context.Context, dataset string) (models.Index, error) {
	s.opens.Add(1)
	return s.Store.Open(ctx, dataset)
}

func TestLibrary_CachesUntilRewritten(t *testing.T) {
	ctx := context.Background()
	fileStore := chromemdb.NewStore(t.TempDir(), false, "")
	store := &countingStore{Store: fileStore}
	lib := NewLibrary(store)

	writeDataset(t, fileStore, "bio", geoChunks[:2])

	idx, err := lib.Get(ctx, "bio")
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	_, err = lib.Get(ctx, "bio")
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.opens.Load())

	time.Sleep(10 * time.Millisecond)
	writeDataset(t, fileStore, "bio", geoChunks)

	idx, err = lib.Get(ctx, "bio")
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, int32(2), store.opens.Load())
	assert.Equal(t, 1, lib.Loaded())
}

func TestLibrary_MissingNotCached(t *testing.T) {
	ctx := context.Background()
	fileStore := chromemdb.NewStore(t.TempDir(), false, "")
	lib := NewLibrary(fileStore)

	_, err := lib.Get(ctx, "late")
	assert.ErrorIs(t, err, models.ErrIndexMissing)
	assert.Equal(t, 0, lib.Loaded())

	writeDataset(t, fileStore, "late", geoChunks)
	idx, err := lib.Get(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())
}

type gatedStore struct {
	*chromemdb.Store
	gated   string
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) Open(ctx context.Context, dataset string) (models.Index, error) {
	if dataset == s.gated {
		close(s.entered)
		<-s.release
	}
	return s.Store.Open(ctx, dataset)
}

func TestLibrary_SlowLoadDoesNotBlockCachedDatasets(t *testing.T) {
	ctx := context.Background()
	fileStore := chromemdb.NewStore(t.TempDir(), false, "")
	writeDataset(t, fileStore, "fast", geoChunks)
	writeDataset(t, fileStore, "slow", geoChunks[:1])

	store := &gatedStore{Store: fileStore, gated: "slow", entered: make(chan struct{}), release: make(chan struct{})}
	lib := NewLibrary(store)

	_, err := lib.Get(ctx, "fast")
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, err := lib.Get(ctx, "slow")
		slowDone <- err
	}()
	<-store.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := lib.Get(ctx, "fast")
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cached dataset waited for another dataset's load")
	}

	close(store.release)
	assert.NoError(t, <-slowDone)
	assert.Equal(t, 2, lib.Loaded())
}
