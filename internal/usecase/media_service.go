package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"videostream/internal/domain"
	"videostream/internal/domain/ports"
	"videostream/internal/metrics"
)

// ScanObserver receives scan progress. Implementations must not block.
type ScanObserver interface {
	MediaFound(record domain.MediaRecord)
	ScanComplete(root string, scanned int)
}

// MediaService is the narrow read/scan surface the HTTP layer talks to.
// Root is the directory rescanned by Rescan.
type MediaService struct {
	Repo     ports.MediaRepository
	Root     string
	Observer ScanObserver
	Logger   *slog.Logger
}

// MediaContent is an opened media file. The caller owns File and must close it.
type MediaContent struct {
	Record domain.MediaRecord
	File   *os.File
	Size   int64
}

func (s MediaService) GetMedia(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error) {
	record, err := s.Repo.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MediaRecord{}, domain.ErrNotFound
		}
		return domain.MediaRecord{}, wrapRepo(err)
	}
	return record, nil
}

func (s MediaService) ListMedia(ctx context.Context) ([]domain.MediaRecord, error) {
	records, err := s.Repo.ListAll(ctx)
	if err != nil {
		return nil, wrapRepo(err)
	}
	return records, nil
}

// ScanMediaDirectory indexes every video under root and returns how many
// were saved. Cancellation returns the partial count with the context error.
func (s MediaService) ScanMediaDirectory(ctx context.Context, root string) (int, error) {
	logger := s.logger()
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	logger.Info("media scan started", slog.String("root", root))

	started := time.Now()
	count, err := s.Repo.ScanDirectory(ctx, root, func(record domain.MediaRecord) {
		logger.Debug("media found",
			slog.String("id", string(record.ID)),
			slog.String("path", record.Path),
			slog.String("mime", record.MimeType),
		)
		metrics.ScanFilesTotal.Inc()
		if s.Observer != nil {
			s.Observer.MediaFound(record)
		}
	})
	elapsed := time.Since(started)
	metrics.ScanDuration.Observe(elapsed.Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			logger.Warn("media scan interrupted",
				slog.String("root", root),
				slog.Int("scanned", count),
			)
			return count, err
		}
		logger.Error("media scan failed",
			slog.String("root", root),
			slog.String("error", err.Error()),
		)
		return count, wrapRepo(err)
	}

	if records, listErr := s.Repo.ListAll(ctx); listErr == nil {
		metrics.IndexedMedia.Set(float64(len(records)))
	}
	logger.Info("media scan finished",
		slog.String("root", root),
		slog.Int("scanned", count),
		slog.Int64("durationMs", elapsed.Milliseconds()),
	)
	if s.Observer != nil {
		s.Observer.ScanComplete(root, count)
	}
	return count, nil
}

// Rescan scans the configured media root.
func (s MediaService) Rescan(ctx context.Context) (int, error) {
	return s.ScanMediaDirectory(ctx, s.Root)
}

// MediaSize reports the current size of the file behind id, or 0 when the
// record or the file cannot be found.
func (s MediaService) MediaSize(ctx context.Context, id domain.MediaID) int64 {
	record, err := s.Repo.Lookup(ctx, id)
	if err != nil {
		return 0
	}
	info, err := os.Stat(record.Path)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

func (s MediaService) ResolveRange(header string, totalSize int64) (domain.ByteRange, error) {
	return domain.ResolveRange(header, totalSize)
}

// OpenMedia looks up id and opens its file for reading. Unknown ids return
// domain.ErrNotFound; a file that cannot be opened or stat'ed returns
// ErrFileAccess.
func (s MediaService) OpenMedia(ctx context.Context, id domain.MediaID) (MediaContent, error) {
	record, err := s.GetMedia(ctx, id)
	if err != nil {
		return MediaContent{}, err
	}

	f, err := os.Open(record.Path)
	if err != nil {
		return MediaContent{}, wrapFileAccess(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return MediaContent{}, wrapFileAccess(err)
	}
	if info.IsDir() {
		f.Close()
		return MediaContent{}, wrapFileAccess(errors.New(record.Path + " is a directory"))
	}
	return MediaContent{Record: record, File: f, Size: info.Size()}, nil
}

func (s MediaService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
