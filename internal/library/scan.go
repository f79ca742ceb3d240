package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"videostream/internal/domain"
)

// NewRecord builds the index record for the video at path. The modification
// time is best effort: a failed stat leaves it zero.
func NewRecord(path string, now time.Time) domain.MediaRecord {
	var modTime time.Time
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	return newRecord(path, modTime, now)
}

func newRecord(path string, modTime time.Time, now time.Time) domain.MediaRecord {
	return domain.MediaRecord{
		ID:         MediaID(path),
		Path:       path,
		MimeType:   MimeType(path),
		CreatedAt:  now,
		ModifiedAt: modTime,
	}
}

// SaveFunc persists one discovered record into an index backend.
type SaveFunc func(ctx context.Context, record domain.MediaRecord) error

// Scan walks root recursively, saves a record for every regular video file
// and calls onFound after each successful save. Unreadable entries and
// failed saves are logged and skipped. The returned count is the number of
// records saved; a cancelled context stops the walk early.
func Scan(ctx context.Context, root string, logger *slog.Logger, save SaveFunc, onFound func(domain.MediaRecord)) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	root = filepath.Clean(root)

	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			logger.Warn("scan entry skipped",
				slog.String("path", path),
				slog.String("error", walkErr.Error()),
			)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsVideoFile(d.Name()) {
			return nil
		}

		modTime, ok := regularFile(path, d)
		if !ok {
			return nil
		}

		record := newRecord(path, modTime, time.Now())
		if err := save(ctx, record); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("scan save failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if onFound != nil {
			onFound(record)
		}
		count++
		return nil
	})
	return count, err
}

// regularFile reports whether path is a regular file, following symlinks,
// and returns its modification time when it can be read.
func regularFile(path string, d fs.DirEntry) (time.Time, bool) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return time.Time{}, false
		}
		return info.ModTime(), true
	}
	if !d.Type().IsRegular() {
		return time.Time{}, false
	}
	info, err := d.Info()
	if err != nil {
		return time.Time{}, true
	}
	return info.ModTime(), true
}
