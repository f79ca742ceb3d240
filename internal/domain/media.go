package domain

import (
	"errors"
	"time"
)

type MediaID string

// MediaRecord describes one indexed video file. It holds no reference
// fields, so a copy handed out by an index can never alias index state.
type MediaRecord struct {
	ID            MediaID   `json:"id"`
	Path          string    `json:"path"`
	OptimizedPath string    `json:"optimizedPath,omitempty"` // reserved for transcoded output
	MimeType      string    `json:"mime"`
	CreatedAt     time.Time `json:"createdAt"`
	ModifiedAt    time.Time `json:"modifiedAt"`
}

// Validate checks the invariants every stored record must satisfy.
func (r MediaRecord) Validate() error {
	if r.ID == "" {
		return errors.New("media id is required")
	}
	if r.Path == "" {
		return errors.New("media path is required")
	}
	if r.MimeType == "" {
		return errors.New("mime type is required")
	}
	return nil
}
