package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/sora-studio/internal/sora"
)

func setupTestArchive(t *testing.T) *Local {
	t.Helper()
	dir := t.TempDir()
	a, err := NewLocal(filepath.Join(dir, "videos"), filepath.Join(dir, "temp"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return a
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func TestNewLocal(t *testing.T) {
	t.Run("creates directories", func(t *testing.T) {
		dir := t.TempDir()
		root := filepath.Join(dir, "videos")
		temp := filepath.Join(dir, "staging")

		a, err := NewLocal(root, temp, nil)
		require.NoError(t, err)

		assert.Equal(t, root, a.Root())
		assert.Equal(t, temp, a.TempDir())
		assert.DirExists(t, root)
		assert.DirExists(t, temp)
	})

	t.Run("defaults temp dir next to root", func(t *testing.T) {
		dir := t.TempDir()
		a, err := NewLocal(filepath.Join(dir, "videos"), "", nil)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "temp"), a.TempDir())
	})
}

func TestLocal_Path(t *testing.T) {
	a := setupTestArchive(t)

	tests := []struct {
		variant sora.Variant
		want    string
	}{
		{sora.VariantVideo, "video_1.mp4"},
		{sora.VariantThumbnail, ThumbnailFile},
		{sora.VariantSpritesheet, SpritesheetFile},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			p, err := a.Path("video_1", tt.variant)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(a.Root(), "video_1", tt.want), p)
		})
	}

	_, err := a.Path("video_1", sora.Variant("poster"))
	assert.ErrorIs(t, err, sora.ErrInvalidVariant)
}

func TestLocal_InvalidID(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()

	for _, id := range []string{"", ".", "..", "../etc", "a/b", `a\b`} {
		t.Run(id, func(t *testing.T) {
			_, err := a.Store(ctx, id, sora.VariantVideo, strings.NewReader("x"))
			assert.ErrorIs(t, err, ErrInvalidID)

			assert.ErrorIs(t, a.DeleteLocal(ctx, id), ErrInvalidID)
			assert.False(t, a.Exists(id))
		})
	}
}

func TestLocal_StoreAndExists(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()

	assert.False(t, a.Exists("video_1"))

	p, err := a.Store(ctx, "video_1", sora.VariantVideo, bytes.NewReader([]byte("mp4")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Root(), "video_1", "video_1.mp4"), p)

	content, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(content))
	assert.True(t, a.Exists("video_1"))

	// no temp files are left behind
	items, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestLocal_Store_Overwrites(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()

	_, err := a.Store(ctx, "video_1", sora.VariantThumbnail, strings.NewReader("first"))
	require.NoError(t, err)
	p, err := a.Store(ctx, "video_1", sora.VariantThumbnail, strings.NewReader("second"))
	require.NoError(t, err)

	content, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestLocal_Store_CancelledContext(t *testing.T) {
	a := setupTestArchive(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Store(ctx, "video_1", sora.VariantVideo, strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocal_Exists_Legacy(t *testing.T) {
	a := setupTestArchive(t)
	writeFile(t, filepath.Join(a.Root(), "video_old.mp4"), "mp4")

	assert.True(t, a.Exists("video_old"))
}

func TestLocal_WriteMetadata(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()

	written, err := a.WriteMetadata(ctx, "video_1", map[string]any{"prompt": "first"}, false)
	require.NoError(t, err)
	assert.True(t, written)

	t.Run("keeps existing without overwrite", func(t *testing.T) {
		written, err := a.WriteMetadata(ctx, "video_1", map[string]any{"prompt": "second"}, false)
		require.NoError(t, err)
		assert.False(t, written)

		m, err := a.ReadMetadata(ctx, "video_1")
		require.NoError(t, err)
		assert.Equal(t, "first", m["prompt"])
	})

	t.Run("replaces with overwrite", func(t *testing.T) {
		written, err := a.WriteMetadata(ctx, "video_1", map[string]any{"prompt": "third"}, true)
		require.NoError(t, err)
		assert.True(t, written)

		m, err := a.ReadMetadata(ctx, "video_1")
		require.NoError(t, err)
		assert.Equal(t, "third", m["prompt"])
	})
}

func TestLocal_ReadMetadata(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()

	t.Run("legacy file", func(t *testing.T) {
		writeFile(t, filepath.Join(a.Root(), "video_old.json"), `{"prompt":"old"}`)
		m, err := a.ReadMetadata(ctx, "video_old")
		require.NoError(t, err)
		assert.Equal(t, "old", m["prompt"])
	})

	t.Run("empty file", func(t *testing.T) {
		writeFile(t, filepath.Join(a.Root(), "video_empty", MetadataFile), "  \n")
		m, err := a.ReadMetadata(ctx, "video_empty")
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := a.ReadMetadata(ctx, "video_none")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLocal_List(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()
	root := a.Root()

	// directory layout with full metadata
	writeFile(t, filepath.Join(root, "video_new", "video_new.mp4"), "mp4")
	writeFile(t, filepath.Join(root, "video_new", ThumbnailFile), "webp")
	writeFile(t, filepath.Join(root, "video_new", SpritesheetFile), "jpg")
	writeFile(t, filepath.Join(root, "video_new", MetadataFile), `{"saved_at":"2025-10-19T12:00:00Z","prompt":"new"}`)

	// directory layout with corrupt metadata, naive timestamp without zone elsewhere
	writeFile(t, filepath.Join(root, "video_corrupt", "video_corrupt.mp4"), "mp4")
	writeFile(t, filepath.Join(root, "video_corrupt", MetadataFile), `{not json`)

	// legacy flat layout
	writeFile(t, filepath.Join(root, "video_flat.mp4"), "mp4")
	writeFile(t, filepath.Join(root, "video_flat_thumbnail.webp"), "webp")
	writeFile(t, filepath.Join(root, "video_flat.json"), `{"saved_at":"2025-10-18T09:30:00.123456"}`)

	// present in both layouts; directory wins
	writeFile(t, filepath.Join(root, "video_both", "video_both.mp4"), "mp4")
	writeFile(t, filepath.Join(root, "video_both", MetadataFile), `{"saved_at":"2025-10-17T00:00:00Z","source":"dir"}`)
	writeFile(t, filepath.Join(root, "video_both.mp4"), "mp4")
	writeFile(t, filepath.Join(root, "video_both.json"), `{"saved_at":"2025-10-20T00:00:00Z","source":"flat"}`)

	// directory without primary blob is ignored
	writeFile(t, filepath.Join(root, "video_partial", ThumbnailFile), "webp")

	// corrupt entry falls back to mtime; pin it to the past
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(root, "video_corrupt", "video_corrupt.mp4"), old, old))

	entries, err := a.List(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(entries))
	byID := make(map[string]Entry)
	for _, e := range entries {
		ids = append(ids, e.ID)
		byID[e.ID] = e
	}
	assert.Equal(t, []string{"video_new", "video_flat", "video_both", "video_corrupt"}, ids)

	newest := byID["video_new"]
	assert.Equal(t, "video_new/video_new.mp4", newest.VideoPath)
	assert.Equal(t, "video_new/"+ThumbnailFile, newest.ThumbnailPath)
	assert.Equal(t, "video_new/"+SpritesheetFile, newest.SpritesheetPath)
	assert.Equal(t, "new", newest.Metadata["prompt"])
	assert.False(t, newest.Legacy)

	flat := byID["video_flat"]
	assert.True(t, flat.Legacy)
	assert.Equal(t, "video_flat.mp4", flat.VideoPath)
	assert.Equal(t, "video_flat_thumbnail.webp", flat.ThumbnailPath)
	assert.Empty(t, flat.SpritesheetPath)

	both := byID["video_both"]
	assert.False(t, both.Legacy)
	assert.Equal(t, "dir", both.Metadata["source"])

	corrupt := byID["video_corrupt"]
	assert.NotNil(t, corrupt.Metadata)
	assert.Empty(t, corrupt.Metadata)
	assert.Empty(t, corrupt.ThumbnailPath)
	assert.True(t, corrupt.CreatedAt.Equal(old))
}

func TestLocal_List_Empty(t *testing.T) {
	a := setupTestArchive(t)

	entries, err := a.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	data, err := json.Marshal(entries)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestLocal_DeleteLocal(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()
	root := a.Root()

	t.Run("directory layout", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "video_1", "video_1.mp4"), "mp4")
		writeFile(t, filepath.Join(root, "video_1", MetadataFile), "{}")

		require.NoError(t, a.DeleteLocal(ctx, "video_1"))
		assert.NoDirExists(t, filepath.Join(root, "video_1"))
		assert.False(t, a.Exists("video_1"))
	})

	t.Run("legacy layout", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "video_2.mp4"), "mp4")
		writeFile(t, filepath.Join(root, "video_2_thumbnail.webp"), "webp")
		writeFile(t, filepath.Join(root, "video_2.json"), "{}")

		require.NoError(t, a.DeleteLocal(ctx, "video_2"))
		assert.NoFileExists(t, filepath.Join(root, "video_2.mp4"))
		assert.NoFileExists(t, filepath.Join(root, "video_2_thumbnail.webp"))
		assert.NoFileExists(t, filepath.Join(root, "video_2.json"))
	})

	t.Run("absent", func(t *testing.T) {
		err := a.DeleteLocal(ctx, "video_missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("other entries untouched", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "video_3", "video_3.mp4"), "mp4")
		writeFile(t, filepath.Join(root, "video_4", "video_4.mp4"), "mp4")

		require.NoError(t, a.DeleteLocal(ctx, "video_3"))
		assert.True(t, a.Exists("video_4"))
	})
}

func TestLocal_SaveTemp(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()

	t.Run("keeps extension", func(t *testing.T) {
		p, err := a.SaveTemp(ctx, "reference.png", strings.NewReader("png"))
		require.NoError(t, err)

		assert.Equal(t, a.TempDir(), filepath.Dir(p))
		assert.True(t, strings.HasPrefix(filepath.Base(p), "reference_"))
		assert.Equal(t, ".png", filepath.Ext(p))
		assert.Equal(t, "image/png", sora.ReferenceMIMEType(p))

		content, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "png", string(content))
	})

	t.Run("strips directories from name", func(t *testing.T) {
		p, err := a.SaveTemp(ctx, "../../evil.jpg", strings.NewReader("jpg"))
		require.NoError(t, err)
		assert.Equal(t, a.TempDir(), filepath.Dir(p))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := a.SaveTemp(cctx, "x.jpg", strings.NewReader("x"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLocal_CleanupTemp(t *testing.T) {
	a := setupTestArchive(t)
	ctx := context.Background()

	p1, err := a.SaveTemp(ctx, "a.jpg", strings.NewReader("a"))
	require.NoError(t, err)
	p2, err := a.SaveTemp(ctx, "b.jpg", strings.NewReader("b"))
	require.NoError(t, err)

	err = a.CleanupTemp(ctx, []string{p1, filepath.Join(a.TempDir(), "missing.jpg"), p2})
	require.NoError(t, err)
	assert.NoFileExists(t, p1)
	assert.NoFileExists(t, p2)
}
