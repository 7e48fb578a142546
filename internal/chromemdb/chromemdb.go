package chromemdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/divya-pal4/study-assitant-rag/internal/helper"
	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

const (
	collectionName = "chunks"
	generationKey  = "generation"
)

// Store keeps every dataset in its own directory as a pair of files: the
// chromem-go export holding the vectors (document ID = chunk position) and a
// msgpack chunk list. Both files carry the generation id of the write that
// produced them; Open rejects a pair whose ids differ.
type Store struct {
	dir           string
	compress      bool
	encryptionKey string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// chunkList is the on-disk chunk list; Chunks[i] belongs to vector ID i.
type chunkList struct {
	Meta       models.DatasetMeta `msgpack:"meta"`
	Generation string             `msgpack:"generation"`
	Chunks     []string           `msgpack:"chunks"`
}

func NewStore(dir string, compress bool, encryptionKey string) *Store {
	return &Store{
		dir:           dir,
		compress:      compress,
		encryptionKey: encryptionKey,
		locks:         make(map[string]*sync.RWMutex),
	}
}

// datasetLock serializes writers of one dataset and keeps readers of this
// process off a half-renamed pair.
func (s *Store) datasetLock(dataset string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[dataset]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[dataset] = l
	}
	return l
}

// DatasetDir returns <dir> for the default dataset and <dir>/<dataset> otherwise.
func (s *Store) DatasetDir(dataset string) string {
	if dataset == "" {
		return s.dir
	}
	return filepath.Join(s.dir, dataset)
}

// indexNames returns the index file name for the configured compression
// first and the other one second.
func (s *Store) indexNames() (preferred, other string) {
	plain, gz := models.IndexFileName, models.IndexFileName+".gz"
	if s.compress {
		return gz, plain
	}
	return plain, gz
}

// indexPath finds the dataset's index file. Datasets written with the other
// compression setting are still found; chromem-go detects gzip on import.
func (s *Store) indexPath(dataset string) (string, bool) {
	dir := s.DatasetDir(dataset)
	preferred, other := s.indexNames()
	for _, name := range []string{preferred, other} {
		if p := filepath.Join(dir, name); helper.FileExists(p) {
			return p, true
		}
	}
	return filepath.Join(dir, preferred), false
}

func (s *Store) chunksPath(dataset string) string {
	return filepath.Join(s.DatasetDir(dataset), models.ChunksFileName)
}

// Write replaces the dataset with chunks and their vectors.
func (s *Store) Write(ctx context.Context, dataset string, meta models.DatasetMeta, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 {
		return models.ErrNoChunks
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", models.ErrAlignment, len(chunks), len(vectors))
	}

	generation, err := helper.GenerateUUID()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexBuild, err)
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", models.ErrIndexBuild, err)
	}
	docs := make([]chromem.Document, len(vectors))
	for i, vec := range vectors {
		docs[i] = chromem.Document{ID: strconv.Itoa(i), Embedding: vec}
	}
	docs[0].Metadata = map[string]string{generationKey: generation}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: add documents: %v", models.ErrIndexBuild, err)
	}

	data, err := msgpack.Marshal(&chunkList{Meta: meta, Generation: generation, Chunks: chunks})
	if err != nil {
		return fmt.Errorf("%w: encode chunks: %v", models.ErrIndexBuild, err)
	}

	dir := s.DatasetDir(dataset)
	if err := helper.CreateFolder(dir); err != nil {
		return fmt.Errorf("%w: create %s: %v", models.ErrIndexBuild, dir, err)
	}

	indexTmp, err := createTemp(dir, models.IndexFileName)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexBuild, err)
	}
	defer os.Remove(indexTmp)
	chunksTmp, err := createTemp(dir, models.ChunksFileName)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexBuild, err)
	}
	defer os.Remove(chunksTmp)

	if err := db.ExportToFile(indexTmp, s.compress, s.encryptionKey, collectionName); err != nil {
		return fmt.Errorf("%w: export index: %v", models.ErrIndexBuild, err)
	}
	if err := os.WriteFile(chunksTmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write chunks: %v", models.ErrIndexBuild, err)
	}

	lock := s.datasetLock(dataset)
	lock.Lock()
	defer lock.Unlock()

	preferred, other := s.indexNames()
	if err := os.Rename(chunksTmp, s.chunksPath(dataset)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexBuild, err)
	}
	if err := os.Rename(indexTmp, filepath.Join(dir, preferred)); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIndexBuild, err)
	}
	if err := os.Remove(filepath.Join(dir, other)); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("dir", dir).Msg("Could not remove stale index file")
	}

	log.Debug().Str("dir", dir).Str("generation", generation).Int("vectors", len(vectors)).Msg("Dataset written")
	return nil
}

func createTemp(dir, name string) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", err
	}
	return f.Name(), f.Close()
}

// Open loads the dataset and checks that vectors and chunks belong to the
// same write and line up.
func (s *Store) Open(ctx context.Context, dataset string) (models.Index, error) {
	lock := s.datasetLock(dataset)
	lock.RLock()
	defer lock.RUnlock()

	indexPath, ok := s.indexPath(dataset)
	chunksPath := s.chunksPath(dataset)
	if !ok || !helper.FileExists(chunksPath) {
		return nil, fmt.Errorf("%w: dataset %q", models.ErrIndexMissing, dataset)
	}

	data, err := os.ReadFile(chunksPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", chunksPath, err)
	}
	var list chunkList
	if err := msgpack.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", chunksPath, err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(indexPath, s.encryptionKey, collectionName); err != nil {
		return nil, fmt.Errorf("import %s: %w", indexPath, err)
	}
	collection := db.GetCollection(collectionName, nil)
	if collection == nil {
		return nil, fmt.Errorf("import %s: collection %q not found", indexPath, collectionName)
	}
	if collection.Count() != len(list.Chunks) {
		return nil, fmt.Errorf("%w: dataset %q has %d vectors and %d chunks",
			models.ErrAlignment, dataset, collection.Count(), len(list.Chunks))
	}
	first, err := collection.GetByID(ctx, "0")
	if err != nil {
		return nil, fmt.Errorf("%w: dataset %q: %v", models.ErrAlignment, dataset, err)
	}
	if got := first.Metadata[generationKey]; got != list.Generation {
		return nil, fmt.Errorf("%w: dataset %q index generation %q, chunks generation %q",
			models.ErrAlignment, dataset, got, list.Generation)
	}

	return &Index{collection: collection, chunks: list.Chunks, meta: list.Meta}, nil
}

// Stamp derives a version from size and modification time of both files.
func (s *Store) Stamp(_ context.Context, dataset string) (string, error) {
	indexPath, ok := s.indexPath(dataset)
	if !ok {
		return "", fmt.Errorf("%w: dataset %q", models.ErrIndexMissing, dataset)
	}
	var stamp string
	for _, p := range []string{indexPath, s.chunksPath(dataset)} {
		st, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: dataset %q", models.ErrIndexMissing, dataset)
			}
			return "", err
		}
		stamp += fmt.Sprintf("%s:%d:%d;", filepath.Base(p), st.Size(), st.ModTime().UnixNano())
	}
	return stamp, nil
}

// Index is a loaded dataset. chromem-go collections are safe for concurrent queries.
type Index struct {
	collection *chromem.Collection
	chunks     []string
	meta       models.DatasetMeta
}

func (i *Index) Len() int { return len(i.chunks) }

func (i *Index) Dimension() int { return i.meta.Dimension }

// Search returns up to k chunks ordered by cosine similarity to query.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]models.Hit, error) {
	if i.meta.Dimension > 0 && len(query) != i.meta.Dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", models.ErrModel, len(query), i.meta.Dimension)
	}
	n := min(k, i.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := i.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]models.Hit, 0, len(results))
	for _, r := range results {
		pos, err := strconv.Atoi(r.ID)
		if err != nil || pos < 0 || pos >= len(i.chunks) {
			log.Warn().Str("id", r.ID).Int("chunks", len(i.chunks)).Msg("Skipping out-of-range search result")
			continue
		}
		hits = append(hits, models.Hit{Position: pos, Text: i.chunks[pos], Score: r.Similarity})
	}
	return hits, nil
}
