package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/sora-studio/internal/archive"
	"github.com/maauso/sora-studio/internal/config"
	"github.com/maauso/sora-studio/internal/job"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:             8080,
		OpenAIAPIKey:     "sk-test",
		OpenAIBaseURL:    "http://127.0.0.1:1/v1",
		DefaultModel:     "sora-2",
		HTTPTimeoutSec:   5,
		ArchiveDir:       filepath.Join(dir, "videos"),
		TempDir:          filepath.Join(dir, "temp"),
		PollIntervalMs:   10,
		PollTimeoutSec:   1,
		MaxPollErrors:    1,
		RedisJobTTLHours: 24,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_Defaults(t *testing.T) {
	cfg := testConfig(t)

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer func() { _ = deps.Close() }()

	assert.NotNil(t, deps.Client)
	assert.NotNil(t, deps.VideoService)
	assert.IsType(t, &archive.Local{}, deps.Archive)
	assert.IsType(t, &job.MemoryRepository{}, deps.Repository)
	assert.Equal(t, cfg.ArchiveDir, deps.Archive.Root())
	assert.DirExists(t, cfg.ArchiveDir)
	assert.DirExists(t, cfg.TempDir)
}

func TestNewDependencies_S3Mirror(t *testing.T) {
	cfg := testConfig(t)
	cfg.S3Bucket = "bucket"
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://127.0.0.1:9000"
	cfg.AWSAccessKeyID = "key"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)

	assert.IsType(t, &archive.S3Mirror{}, deps.Archive)
}

func TestNewDependencies_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewDependencies_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := testConfig(t)
	cfg.OpenAIAPIKey = ""

	_, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create Sora client")
}
