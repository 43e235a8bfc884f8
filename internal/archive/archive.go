// Package archive persists downloaded videos and their metadata on local
// disk, keyed by remote video id. It defines the Archive interface (port)
// with a local implementation and an S3 mirror decorator.
//
// Layout per video:
//
//	<root>/<id>/<id>.mp4
//	<root>/<id>/thumbnail.webp
//	<root>/<id>/spritesheet.jpg
//	<root>/<id>/metadata.json
//
// Older archives used a flat layout (<root>/<id>.mp4, <root>/<id>_thumbnail.webp,
// <root>/<id>.json); those entries are still listed, served and deleted.
package archive

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/maauso/sora-studio/internal/sora"
)

// Static errors for archive operations.
var (
	// ErrNotFound is returned when no local files exist for a video id.
	ErrNotFound = errors.New("archive: video not found")
	// ErrInvalidID is returned for ids that would escape the archive root.
	ErrInvalidID = errors.New("archive: invalid video id")
)

// File names inside a per-video directory.
const (
	ThumbnailFile   = "thumbnail.webp"
	SpritesheetFile = "spritesheet.jpg"
	MetadataFile    = "metadata.json"
)

// Entry is one archived video.
// Paths are slash-separated and relative to the archive root; empty when
// the file is absent.
type Entry struct {
	ID              string         `json:"id"`
	VideoPath       string         `json:"video_path"`
	ThumbnailPath   string         `json:"thumbnail_path,omitempty"`
	SpritesheetPath string         `json:"spritesheet_path,omitempty"`
	Metadata        map[string]any `json:"metadata"`
	CreatedAt       time.Time      `json:"created_at"`
	Legacy          bool           `json:"legacy,omitempty"`
}

// Archive stores video blobs and metadata by remote video id.
type Archive interface {
	// Root returns the archive root directory.
	Root() string

	// Exists reports whether the primary video blob is archived, in either layout.
	Exists(id string) bool

	// Path returns where a variant of id is (or would be) stored.
	Path(id string, variant sora.Variant) (string, error)

	// Store atomically writes a variant blob and returns its path.
	Store(ctx context.Context, id string, variant sora.Variant, data io.Reader) (string, error)

	// WriteMetadata writes metadata.json for id. With overwrite false an
	// existing file is kept and written reports false.
	WriteMetadata(ctx context.Context, id string, v any, overwrite bool) (written bool, err error)

	// ReadMetadata returns the decoded metadata of id.
	ReadMetadata(ctx context.Context, id string) (map[string]any, error)

	// List returns all archived videos, newest first.
	List(ctx context.Context) ([]Entry, error)

	// DeleteLocal removes every local file of id.
	DeleteLocal(ctx context.Context, id string) error

	// SaveTemp stages data (e.g. an uploaded reference image) and returns its path.
	SaveTemp(ctx context.Context, name string, data io.Reader) (string, error)

	// CleanupTemp removes staged files, continuing past failures.
	CleanupTemp(ctx context.Context, paths []string) error
}
