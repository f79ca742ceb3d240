package mongo

import (
	"reflect"
	"testing"
	"time"

	"videostream/internal/domain"
	"videostream/internal/domain/ports"
)

var _ ports.MediaRepository = (*Repository)(nil)

func TestToDocFromDocRoundtrip(t *testing.T) {
	created := time.Date(2026, 2, 19, 10, 0, 0, 123456789, time.UTC)
	record := domain.MediaRecord{
		ID:            "00ff00ff00ff00ff",
		Path:          "/srv/media/big buck bunny.mkv",
		OptimizedPath: "/srv/media/optimized/bbb.mp4",
		MimeType:      "video/x-matroska",
		CreatedAt:     created,
		ModifiedAt:    created.Add(-time.Hour),
	}

	got := fromDoc(toDoc(record))
	if got.ID != record.ID || got.Path != record.Path || got.OptimizedPath != record.OptimizedPath || got.MimeType != record.MimeType {
		t.Fatalf("roundtrip mismatch:\n got  %+v\n want %+v", got, record)
	}
	if !got.CreatedAt.Equal(record.CreatedAt) || !got.ModifiedAt.Equal(record.ModifiedAt) {
		t.Fatalf("times changed: %v/%v, want %v/%v", got.CreatedAt, got.ModifiedAt, record.CreatedAt, record.ModifiedAt)
	}
}

func TestZeroTimesSurviveRoundtrip(t *testing.T) {
	record := domain.MediaRecord{ID: "a", Path: "/a.mp4", MimeType: "video/mp4"}
	doc := toDoc(record)
	if doc.CreatedAt != 0 || doc.ModifiedAt != 0 {
		t.Fatalf("zero times should encode as 0, got %d/%d", doc.CreatedAt, doc.ModifiedAt)
	}
	got := fromDoc(doc)
	if !got.CreatedAt.IsZero() || !got.ModifiedAt.IsZero() {
		t.Fatalf("zero times should decode as zero, got %v/%v", got.CreatedAt, got.ModifiedAt)
	}
}

func TestMediaDocBSONTags(t *testing.T) {
	tags := map[string]string{
		"ID":            "_id",
		"Path":          "path",
		"OptimizedPath": "optimizedPath,omitempty",
		"MimeType":      "mime",
		"CreatedAt":     "createdAt",
		"ModifiedAt":    "modifiedAt",
	}
	typ := reflect.TypeOf(mediaDoc{})
	for field, want := range tags {
		f, ok := typ.FieldByName(field)
		if !ok {
			t.Fatalf("missing field %s", field)
		}
		if got := f.Tag.Get("bson"); got != want {
			t.Errorf("%s bson tag = %q, want %q", field, got, want)
		}
	}
}

func TestFromDocsEmpty(t *testing.T) {
	got := fromDocs(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("fromDocs(nil) = %#v, want empty non-nil slice", got)
	}
}
