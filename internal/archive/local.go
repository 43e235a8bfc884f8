package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maauso/sora-studio/internal/sora"
)

// Compile-time check that Local implements Archive.
var _ Archive = (*Local)(nil)

// Local implements Archive on local disk.
type Local struct {
	root    string
	tempDir string
	logger  *slog.Logger
}

// NewLocal creates a Local archive rooted at root, staging temporary files
// in tempDir. Both directories are created if they don't exist.
// If tempDir is empty, a "temp" directory next to root is used.
func NewLocal(root, tempDir string, logger *slog.Logger) (*Local, error) {
	if root == "" {
		root = "videos"
	}
	if tempDir == "" {
		tempDir = filepath.Join(filepath.Dir(root), "temp")
	}
	if logger == nil {
		logger = slog.Default()
	}

	for _, dir := range []string{root, tempDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &Local{root: root, tempDir: tempDir, logger: logger}, nil
}

// Root returns the archive root directory.
func (a *Local) Root() string {
	return a.root
}

// TempDir returns the staging directory path.
func (a *Local) TempDir() string {
	return a.tempDir
}

// validateID rejects ids that are empty or contain path elements.
func validateID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func fileName(id string, variant sora.Variant) (string, error) {
	switch variant {
	case sora.VariantVideo, "":
		return id + ".mp4", nil
	case sora.VariantThumbnail:
		return ThumbnailFile, nil
	case sora.VariantSpritesheet:
		return SpritesheetFile, nil
	default:
		return "", fmt.Errorf("%w: %q", sora.ErrInvalidVariant, variant)
	}
}

// Path returns the directory-layout path of a variant.
func (a *Local) Path(id string, variant sora.Variant) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	name, err := fileName(id, variant)
	if err != nil {
		return "", err
	}
	return filepath.Join(a.root, id, name), nil
}

func (a *Local) legacyVideo(id string) string     { return filepath.Join(a.root, id+".mp4") }
func (a *Local) legacyThumbnail(id string) string { return filepath.Join(a.root, id+"_thumbnail.webp") }
func (a *Local) legacyMetadata(id string) string  { return filepath.Join(a.root, id+".json") }

// Exists reports whether the video blob exists in either layout.
func (a *Local) Exists(id string) bool {
	p, err := a.Path(id, sora.VariantVideo)
	if err != nil {
		return false
	}
	return isFile(p) || isFile(a.legacyVideo(id))
}

// Store atomically writes a variant blob under <root>/<id>/.
func (a *Local) Store(ctx context.Context, id string, variant sora.Variant, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	p, err := a.Path(id, variant)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(p, data); err != nil {
		return "", err
	}
	return p, nil
}

// WriteMetadata writes <root>/<id>/metadata.json as indented JSON.
func (a *Local) WriteMetadata(ctx context.Context, id string, v any, overwrite bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}
	if err := validateID(id); err != nil {
		return false, err
	}

	p := filepath.Join(a.root, id, MetadataFile)
	if !overwrite && isFile(p) {
		return false, nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return false, fmt.Errorf("marshal metadata for %s: %w", id, err)
	}
	data = append(data, '\n')

	if err := writeAtomic(p, bytes.NewReader(data)); err != nil {
		return false, err
	}
	return true, nil
}

// ReadMetadata returns the metadata of id, preferring the directory layout.
func (a *Local) ReadMetadata(ctx context.Context, id string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	for _, p := range []string{filepath.Join(a.root, id, MetadataFile), a.legacyMetadata(id)} {
		data, err := os.ReadFile(p) // #nosec G304 - id is validated
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read metadata %s: %w", p, err)
		}
		return decodeMetadata(data)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func decodeMetadata(data []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// List scans both layouts. A video present in both is reported once, from
// its directory. Unreadable metadata yields an empty map.
func (a *Local) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	items, err := os.ReadDir(a.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive root: %w", err)
	}

	entries := []Entry{}
	seen := make(map[string]bool)

	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		id := item.Name()
		video := filepath.Join(a.root, id, id+".mp4")
		if !isFile(video) {
			continue
		}
		entry := Entry{
			ID:        id,
			VideoPath: path.Join(id, id+".mp4"),
			Metadata:  a.loadMetadata(id, filepath.Join(a.root, id, MetadataFile)),
		}
		if isFile(filepath.Join(a.root, id, ThumbnailFile)) {
			entry.ThumbnailPath = path.Join(id, ThumbnailFile)
		}
		if isFile(filepath.Join(a.root, id, SpritesheetFile)) {
			entry.SpritesheetPath = path.Join(id, SpritesheetFile)
		}
		entry.CreatedAt = createdAt(entry.Metadata, video)
		entries = append(entries, entry)
		seen[id] = true
	}

	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !strings.HasSuffix(name, ".mp4") {
			continue
		}
		id := strings.TrimSuffix(name, ".mp4")
		if seen[id] || validateID(id) != nil {
			continue
		}
		video := a.legacyVideo(id)
		entry := Entry{
			ID:        id,
			VideoPath: name,
			Metadata:  a.loadMetadata(id, a.legacyMetadata(id)),
			Legacy:    true,
		}
		if isFile(a.legacyThumbnail(id)) {
			entry.ThumbnailPath = id + "_thumbnail.webp"
		}
		entry.CreatedAt = createdAt(entry.Metadata, video)
		entries = append(entries, entry)
		seen[id] = true
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (a *Local) loadMetadata(id, p string) map[string]any {
	data, err := os.ReadFile(p) // #nosec G304 - path built from directory listing
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}
	}
	if err != nil {
		a.logger.Warn("could not read metadata", slog.String("video_id", id), slog.String("error", err.Error()))
		return map[string]any{}
	}
	m, err := decodeMetadata(data)
	if err != nil {
		a.logger.Warn("could not load metadata", slog.String("video_id", id), slog.String("error", err.Error()))
		return map[string]any{}
	}
	return m
}

// savedAtLayouts covers RFC 3339 and naive ISO-8601 timestamps.
var savedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// createdAt returns metadata saved_at, falling back to the blob mtime.
func createdAt(metadata map[string]any, video string) time.Time {
	if s, ok := metadata["saved_at"].(string); ok && s != "" {
		for _, layout := range savedAtLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
	}
	info, err := os.Stat(video)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// DeleteLocal removes <root>/<id>/ and any legacy flat files for id.
func (a *Local) DeleteLocal(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if err := validateID(id); err != nil {
		return err
	}

	found := false
	dir := filepath.Join(a.root, id)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		found = true
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}

	for _, p := range []string{a.legacyVideo(id), a.legacyThumbnail(id), a.legacyMetadata(id)} {
		err := os.Remove(p)
		if err == nil {
			found = true
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}

	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SaveTemp saves data to a staging file and returns its path.
// The name's extension is kept so content type can be inferred later.
func (a *Local) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "upload"
	}

	f, err := os.CreateTemp(a.tempDir, stem+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// CleanupTemp removes the specified staged files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (a *Local) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// writeAtomic writes data to a sibling temp file and renames it into place.
func writeAtomic(p string, data io.Reader) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create parent for %s: %w", p, err)
	}

	tmp, err := os.CreateTemp(dir, ".sora-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", p, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", p, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", p, err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", p, err)
	}
	return nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
