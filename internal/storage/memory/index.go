package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"videostream/internal/domain"
	"videostream/internal/library"
)

// Index is the in-process media index. Reads share the lock; Save and
// Remove take it exclusively. Records are stored and returned by value.
type Index struct {
	mu      sync.RWMutex
	records map[domain.MediaID]domain.MediaRecord
	logger  *slog.Logger
}

type IndexOption func(*Index)

func WithLogger(logger *slog.Logger) IndexOption {
	return func(i *Index) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func NewIndex(opts ...IndexOption) *Index {
	i := &Index{
		records: make(map[domain.MediaID]domain.MediaRecord),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Index) Lookup(_ context.Context, id domain.MediaID) (domain.MediaRecord, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	record, ok := i.records[id]
	if !ok {
		return domain.MediaRecord{}, domain.ErrNotFound
	}
	return record, nil
}

func (i *Index) ListAll(_ context.Context) ([]domain.MediaRecord, error) {
	i.mu.RLock()
	out := make([]domain.MediaRecord, 0, len(i.records))
	for _, record := range i.records {
		out = append(out, record)
	}
	i.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].Path < out[b].Path
	})
	return out, nil
}

func (i *Index) Save(_ context.Context, record domain.MediaRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	i.mu.Lock()
	i.records[record.ID] = record
	i.mu.Unlock()
	return nil
}

func (i *Index) Remove(_ context.Context, id domain.MediaID) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.records[id]; !ok {
		return false, nil
	}
	delete(i.records, id)
	return true, nil
}

func (i *Index) Exists(_ context.Context, id domain.MediaID) (bool, error) {
	i.mu.RLock()
	_, ok := i.records[id]
	i.mu.RUnlock()
	return ok, nil
}

func (i *Index) ScanDirectory(ctx context.Context, root string, onFound func(domain.MediaRecord)) (int, error) {
	return library.Scan(ctx, root, i.logger, i.Save, onFound)
}

// count returns the number of indexed records.
func (i *Index) count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}
