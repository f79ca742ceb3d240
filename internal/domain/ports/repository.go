package ports

import (
	"context"

	"videostream/internal/domain"
)

// MediaRepository is the capability the media service needs from an index.
// Lookup returns domain.ErrNotFound for unknown ids. ListAll is ordered by
// path ascending regardless of the backend's storage order.
type MediaRepository interface {
	Lookup(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error)
	ListAll(ctx context.Context) ([]domain.MediaRecord, error)
	Save(ctx context.Context, record domain.MediaRecord) error
	Remove(ctx context.Context, id domain.MediaID) (bool, error)
	Exists(ctx context.Context, id domain.MediaID) (bool, error)
	ScanDirectory(ctx context.Context, root string, onFound func(domain.MediaRecord)) (int, error)
}
