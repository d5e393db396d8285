// Package vectorstore owns the persisted vector index: bootstrap, load, append and
// similarity retrieval over a snapshot kept in a blob store.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"pdfrag/internal/blobstore"
	"pdfrag/internal/domain"
	"pdfrag/internal/embedding"
)

// Options configures a Manager.
type Options struct {
	Compression Compression
	Logger      *slog.Logger
	Observer    Observer
}

// Manager is the single authority over the persisted index.
//
// Every operation reloads the snapshot, so the blob store is the source of truth.
// AddAndPersist is serialised within the process; writers in other processes are not
// coordinated and the last persist wins.
type Manager struct {
	store       blobstore.Store
	embedder    embedding.Embedder
	compression Compression
	logger      *slog.Logger
	observer    Observer

	mu sync.Mutex
}

var _ domain.VectorStore = (*Manager)(nil)

// NewManager creates a manager persisting to store and embedding with embedder.
func NewManager(store blobstore.Store, embedder embedding.Embedder, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Observer == nil {
		opts.Observer = NoopObserver{}
	}
	return &Manager{
		store:       store,
		embedder:    embedder,
		compression: opts.Compression,
		logger:      opts.Logger.With("component", "vectorstore"),
		observer:    opts.Observer,
	}
}

// LoadOrCreate returns the persisted index. A missing or unreadable snapshot is replaced
// by a fresh empty index, which is persisted before returning.
func (m *Manager) LoadOrCreate(ctx context.Context) (*Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadOrCreate(ctx)
}

func (m *Manager) loadOrCreate(ctx context.Context) (*Index, error) {
	data, err := m.store.Get(ctx, SnapshotName)
	switch {
	case err == nil:
		ix, err := DecodeSnapshot(data)
		if err == nil {
			err = m.compatible(ix)
		}
		if err == nil {
			return ix, nil
		}
		m.logger.Warn("discarding unreadable index snapshot", "location", m.store.Location(), "error", err)
		m.observer.OnLoadFallback(err)
	case errors.Is(err, blobstore.ErrNotFound):
		m.logger.Info("no index snapshot, bootstrapping", "location", m.store.Location())
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.logger.Warn("index snapshot read failed, bootstrapping", "location", m.store.Location(), "error", err)
		m.observer.OnLoadFallback(err)
	}

	ix := NewIndex(m.embedder.Dimension(), m.embedder.Name())
	if err := m.persist(ctx, ix); err != nil {
		return nil, fmt.Errorf("persist new index: %w", err)
	}
	return ix, nil
}

func (m *Manager) compatible(ix *Index) error {
	if ix.embedder != "" && ix.embedder != m.embedder.Name() {
		return fmt.Errorf("%w: %q, configured %q", ErrEmbedderMismatch, ix.embedder, m.embedder.Name())
	}
	if d := m.embedder.Dimension(); d > 0 && ix.dimension > 0 && d != ix.dimension {
		return fmt.Errorf("%w: snapshot %d, embedder %d", ErrDimensionMismatch, ix.dimension, d)
	}
	return nil
}

func (m *Manager) persist(ctx context.Context, ix *Index) (err error) {
	start := time.Now()
	var data []byte
	defer func() { m.observer.OnPersist(time.Since(start), len(data), err) }()

	data, err = EncodeSnapshot(ix, m.compression)
	if err != nil {
		return err
	}
	return m.store.Put(ctx, SnapshotName, data)
}

// AddAndPersist embeds chunks, appends them to the index and writes the full snapshot
// before returning. An empty chunks slice only ensures the index exists.
func (m *Manager) AddAndPersist(ctx context.Context, chunks []domain.Chunk) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ix, err := m.loadOrCreate(ctx)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if err := ix.Add(chunks, vectors); err != nil {
		return 0, err
	}
	if err := m.persist(ctx, ix); err != nil {
		return 0, fmt.Errorf("persist index: %w", err)
	}
	m.observer.OnAdd(len(chunks))
	m.logger.Info("index updated", "added", len(chunks), "entries", ix.Len())
	return len(chunks), nil
}

// Retrieve returns up to k chunks ranked by descending similarity to query.
// An empty index yields no chunks without calling the embedder.
func (m *Manager) Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	results, err := m.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}
	return chunks, nil
}

// Search is Retrieve with similarity scores.
func (m *Manager) Search(ctx context.Context, query string, k int) (results []domain.SearchResult, err error) {
	start := time.Now()
	defer func() { m.observer.OnRetrieve(time.Since(start), len(results), err) }()

	if k <= 0 {
		return nil, nil
	}
	ix, err := m.LoadOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if ix.Len() == 0 {
		return nil, nil
	}
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err = ix.Search(vector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}

// Stats describes the persisted index.
func (m *Manager) Stats(ctx context.Context) (domain.StoreStats, error) {
	ix, err := m.LoadOrCreate(ctx)
	if err != nil {
		return domain.StoreStats{}, err
	}
	stats := domain.StoreStats{
		Entries:   ix.Len(),
		Dimension: ix.Dimension(),
		Metric:    MetricCosine,
		Embedder:  ix.Embedder(),
		Sources:   make(map[string]int),
	}
	for _, e := range ix.Entries() {
		stats.Sources[e.Chunk.Source()]++
	}
	return stats, nil
}
