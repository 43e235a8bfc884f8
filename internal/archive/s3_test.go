package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/sora-studio/internal/sora"
)

// fakeS3 records PUT object requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	fail    bool
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{objects: map[string]string{}, types: map[string]string{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}
		if f.fail {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		f.mu.Lock()
		f.objects[r.URL.Path] = string(body)
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return f, server
}

func newTestMirror(t *testing.T, endpoint string) *S3Mirror {
	t.Helper()
	m, err := NewS3Mirror(context.Background(), setupTestArchive(t), S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        endpoint,
		Prefix:          "sora/",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	require.NoError(t, err)
	return m
}

func TestNewS3Mirror(t *testing.T) {
	m := newTestMirror(t, "http://localhost:4566")

	assert.Equal(t, "test-bucket", m.bucket)
	assert.Equal(t, "us-east-1", m.region)
	assert.Equal(t, "sora/video_1/thumbnail.webp", m.Key("video_1", ThumbnailFile))
	assert.Equal(t, "https://test-bucket.s3.us-east-1.amazonaws.com/sora/video_1/video_1.mp4",
		m.URL(m.Key("video_1", "video_1.mp4")))
}

func TestS3Mirror_Store(t *testing.T) {
	fake, server := newFakeS3(t)
	m := newTestMirror(t, server.URL)
	ctx := context.Background()

	p, err := m.Store(ctx, "video_1", sora.VariantVideo, strings.NewReader("mp4-bytes"))
	require.NoError(t, err)
	assert.FileExists(t, p)
	assert.True(t, m.Exists("video_1"))

	_, err = m.Store(ctx, "video_1", sora.VariantThumbnail, strings.NewReader("webp-bytes"))
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "mp4-bytes", fake.objects["/test-bucket/sora/video_1/video_1.mp4"])
	assert.Equal(t, "video/mp4", fake.types["/test-bucket/sora/video_1/video_1.mp4"])
	assert.Equal(t, "webp-bytes", fake.objects["/test-bucket/sora/video_1/thumbnail.webp"])
	assert.Equal(t, "image/webp", fake.types["/test-bucket/sora/video_1/thumbnail.webp"])
}

func TestS3Mirror_WriteMetadata(t *testing.T) {
	fake, server := newFakeS3(t)
	m := newTestMirror(t, server.URL)
	ctx := context.Background()

	written, err := m.WriteMetadata(ctx, "video_1", map[string]any{"prompt": "p"}, false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = m.WriteMetadata(ctx, "video_1", map[string]any{"prompt": "q"}, false)
	require.NoError(t, err)
	assert.False(t, written)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.objects, 1)
	assert.Contains(t, fake.objects["/test-bucket/sora/video_1/metadata.json"], `"prompt": "p"`)
}

func TestS3Mirror_UploadFailure(t *testing.T) {
	fake, server := newFakeS3(t)
	fake.fail = true
	m := newTestMirror(t, server.URL)

	_, err := m.Store(context.Background(), "video_1", sora.VariantVideo, strings.NewReader("mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload to S3")
}
