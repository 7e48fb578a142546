package rag

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

// Library loads datasets on first use and keeps them until the store reports
// a new stamp for them. Missing datasets are never cached. Loads run outside
// the cache lock; concurrent loads of the same dataset version share one Open.
type Library struct {
	store models.Store
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*libraryEntry
}

type libraryEntry struct {
	stamp string
	index models.Index
}

func NewLibrary(store models.Store) *Library {
	return &Library{store: store, entries: make(map[string]*libraryEntry)}
}

// Get returns the loaded index for dataset, reloading it when it was rewritten.
func (l *Library) Get(ctx context.Context, dataset string) (models.Index, error) {
	stamp, err := l.store.Stamp(ctx, dataset)
	if err != nil {
		if errors.Is(err, models.ErrIndexMissing) {
			l.evict(dataset)
		}
		return nil, err
	}

	if idx, ok := l.cached(dataset, stamp); ok {
		return idx, nil
	}

	v, err, _ := l.group.Do(dataset+"\x00"+stamp, func() (any, error) {
		if idx, ok := l.cached(dataset, stamp); ok {
			return idx, nil
		}
		idx, err := l.store.Open(ctx, dataset)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.entries[dataset] = &libraryEntry{stamp: stamp, index: idx}
		l.mu.Unlock()

		log.Info().Str("dataset", dataset).Int("chunks", idx.Len()).Int("dimension", idx.Dimension()).Msg("Dataset loaded")
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(models.Index), nil
}

func (l *Library) cached(dataset, stamp string) (models.Index, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[dataset]
	if !ok || e.stamp != stamp {
		return nil, false
	}
	return e.index, true
}

func (l *Library) evict(dataset string) {
	l.mu.Lock()
	delete(l.entries, dataset)
	l.mu.Unlock()
}

// Loaded returns how many datasets are cached.
func (l *Library) Loaded() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
