package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"videostream/internal/domain"
	"videostream/internal/library"
)

const DefaultPrefix = "videostream:"

// Repository keeps the whole index in a single hash, <prefix>media,
// mapping media id to the JSON-encoded record.
type Repository struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

type RepositoryOption func(*Repository)

func WithLogger(logger *slog.Logger) RepositoryOption {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRepository(client *redis.Client, prefix string, opts ...RepositoryOption) *Repository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	r := &Repository{
		client: client,
		key:    indexKey(prefix),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

func indexKey(prefix string) string {
	return prefix + "media"
}

func (r *Repository) Lookup(ctx context.Context, id domain.MediaID) (domain.MediaRecord, error) {
	data, err := r.client.HGet(ctx, r.key, string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MediaRecord{}, domain.ErrNotFound
		}
		return domain.MediaRecord{}, err
	}
	return decodeRecord(data)
}

func (r *Repository) ListAll(ctx context.Context) ([]domain.MediaRecord, error) {
	values, err := r.client.HVals(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.MediaRecord, 0, len(values))
	for _, v := range values {
		record, err := decodeRecord([]byte(v))
		if err != nil {
			r.logger.Warn("redis index entry skipped", slog.String("error", err.Error()))
			continue
		}
		out = append(out, record)
	}
	sortByPath(out)
	return out, nil
}

func (r *Repository) Save(ctx context.Context, record domain.MediaRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key, string(record.ID), data).Err()
}

func (r *Repository) Remove(ctx context.Context, id domain.MediaID) (bool, error) {
	n, err := r.client.HDel(ctx, r.key, string(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) Exists(ctx context.Context, id domain.MediaID) (bool, error) {
	return r.client.HExists(ctx, r.key, string(id)).Result()
}

func (r *Repository) ScanDirectory(ctx context.Context, root string, onFound func(domain.MediaRecord)) (int, error) {
	return library.Scan(ctx, root, r.logger, r.Save, onFound)
}

func decodeRecord(data []byte) (domain.MediaRecord, error) {
	var record domain.MediaRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.MediaRecord{}, fmt.Errorf("decode media record: %w", err)
	}
	if err := record.Validate(); err != nil {
		return domain.MediaRecord{}, fmt.Errorf("decode media record: %w", err)
	}
	return record, nil
}

func sortByPath(records []domain.MediaRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
}
