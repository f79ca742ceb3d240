package library

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"

	"videostream/internal/domain"
)

// MediaID derives the stable identifier of a file from its absolute path.
// The path is cleaned and NFC-normalized first so the same file yields the
// same id whether the filesystem reports composed or decomposed names.
func MediaID(absPath string) domain.MediaID {
	key := norm.NFC.String(filepath.Clean(absPath))
	return domain.MediaID(fmt.Sprintf("%016x", xxhash.Sum64String(key)))
}
