package redis

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"videostream/internal/domain"
	"videostream/internal/domain/ports"
	"videostream/internal/library"
)

var _ ports.MediaRepository = (*Repository)(nil)

func TestIndexKey(t *testing.T) {
	if got := indexKey("videostream:"); got != "videostream:media" {
		t.Fatalf("indexKey = %q", got)
	}
	r := NewRepository(nil, "")
	if r.key != DefaultPrefix+"media" {
		t.Fatalf("default key = %q", r.key)
	}
}

func TestDecodeRecord(t *testing.T) {
	rec := domain.MediaRecord{
		ID:         "0011223344556677",
		Path:       "/srv/a.mp4",
		MimeType:   "video/mp4",
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		ModifiedAt: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := decodeRecord(data)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if got.ID != rec.ID || got.Path != rec.Path || !got.CreatedAt.Equal(rec.CreatedAt) || !got.ModifiedAt.Equal(rec.ModifiedAt) {
		t.Fatalf("decoded %+v, want %+v", got, rec)
	}

	if _, err := decodeRecord([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if _, err := decodeRecord([]byte(`{"id":"x"}`)); err == nil {
		t.Fatal("expected error for incomplete record")
	}
}

func TestSortByPath(t *testing.T) {
	records := []domain.MediaRecord{{Path: "/c"}, {Path: "/a"}, {Path: "/b"}}
	sortByPath(records)
	for i, want := range []string{"/a", "/b", "/c"} {
		if records[i].Path != want {
			t.Fatalf("records[%d] = %q, want %q", i, records[i].Path, want)
		}
	}
}

// setupTestRepo skips when no Redis answers at REDIS_TEST_URL
// (default redis://localhost:6379/15).
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Connect(ctx, url)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", url, err)
	}

	prefix := "videostream_test_" + strconv.FormatInt(time.Now().UnixNano(), 10) + ":"
	repo := NewRepository(client, prefix)
	t.Cleanup(func() {
		_ = client.Del(context.Background(), repo.key).Err()
		_ = client.Close()
	})
	return repo
}

func TestIntegrationSaveLookupRemove(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	rec := domain.MediaRecord{ID: library.MediaID("/srv/x.mp4"), Path: "/srv/x.mp4", MimeType: "video/mp4"}

	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Lookup(ctx, rec.ID)
	if err != nil || got.Path != rec.Path {
		t.Fatalf("Lookup = %+v, %v", got, err)
	}
	if ok, err := repo.Exists(ctx, rec.ID); err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
	if removed, err := repo.Remove(ctx, rec.ID); err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if removed, err := repo.Remove(ctx, rec.ID); err != nil || removed {
		t.Fatalf("second Remove = %v, %v", removed, err)
	}
	if _, err := repo.Lookup(ctx, rec.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Lookup after remove: %v", err)
	}
}

func TestIntegrationScanAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	root := t.TempDir()
	for _, name := range []string{"z.mp4", "a/b.flv", "m.mpeg", "notes.md"} {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		n, err := repo.ScanDirectory(ctx, root, nil)
		if err != nil || n != 3 {
			t.Fatalf("scan %d = %d, %v", i, n, err)
		}
	}
	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll returned %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Path > all[i].Path {
			t.Fatalf("not sorted: %q > %q", all[i-1].Path, all[i].Path)
		}
	}
}

func TestIntegrationListSkipsCorruptEntries(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	if err := repo.client.HSet(ctx, repo.key, "bad", "{oops").Err(); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	rec := domain.MediaRecord{ID: "good", Path: "/g.mp4", MimeType: "video/mp4"}
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || all[0].ID != "good" {
		t.Fatalf("ListAll = %+v", all)
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not-a-url://"); err == nil {
		t.Fatal("expected parse error")
	}
}
