// Package media stores submission proof files.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("media not found")
	ErrUnsupportedType = errors.New("unsupported media type")
)

type Kind string

const (
	KindImage Kind = "images"
	KindVideo Kind = "videos"
)

var allowedExt = map[Kind]map[string]bool{
	KindImage: {".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".heic": true},
	KindVideo: {".mp4": true, ".mov": true, ".webm": true},
}

// Store persists proof files and returns a reference that Load accepts.
type Store interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
	// Delete removes a stored file. Deleting a missing file is not an error.
	Delete(ctx context.Context, ref string) error
}

// NewKey builds a unique object key for an upload, rejecting extensions that
// do not belong to kind.
func NewKey(kind Kind, userID, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[kind][ext] {
		return "", fmt.Errorf("%w: %q for %s", ErrUnsupportedType, ext, kind)
	}
	return path.Join("submissions", userID, string(kind), uuid.NewString()+ext), nil
}
