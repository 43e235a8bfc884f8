// Package bootstrap provides dependency initialization for the server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/maauso/sora-studio/internal/archive"
	"github.com/maauso/sora-studio/internal/config"
	"github.com/maauso/sora-studio/internal/job"
	"github.com/maauso/sora-studio/internal/sora"
)

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Client       *sora.HTTPClient
	Archive      archive.Archive
	Repository   job.Repository
	VideoService *job.Service

	redis *redis.Client
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	client, err := initClient(cfg)
	if err != nil {
		return nil, err
	}

	store, err := initArchive(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	repo, rdb, err := initRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := job.NewService(client, store, repo, logger,
		job.WithPollInterval(cfg.PollInterval()),
		job.WithPollTimeout(cfg.PollTimeout()),
		job.WithMaxPollErrors(cfg.MaxPollErrors),
		job.WithDefaultModel(cfg.DefaultModel),
	)

	return &Dependencies{
		Client:       client,
		Archive:      store,
		Repository:   repo,
		VideoService: svc,
		redis:        rdb,
	}, nil
}

// Close releases connections held by the dependencies.
func (d *Dependencies) Close() error {
	if d.redis != nil {
		return d.redis.Close()
	}
	return nil
}

// initClient creates the remote API client.
func initClient(cfg *config.Config) (*sora.HTTPClient, error) {
	opts := []sora.ClientOption{
		sora.WithAPIKey(cfg.OpenAIAPIKey),
		sora.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout()}),
		sora.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, sora.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.OpenAIOrgID != "" {
		opts = append(opts, sora.WithOrganization(cfg.OpenAIOrgID))
	}
	if cfg.OpenAIProject != "" {
		opts = append(opts, sora.WithProject(cfg.OpenAIProject))
	}

	client, err := sora.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create Sora client: %w", err)
	}
	return client, nil
}

// initArchive creates the local archive, mirrored to S3 when configured.
func initArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (archive.Archive, error) {
	local, err := archive.NewLocal(cfg.ArchiveDir, cfg.TempDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create local archive: %w", err)
	}

	if !cfg.S3Enabled() {
		logger.Info("local archive configured",
			slog.String("archive_dir", cfg.ArchiveDir),
			slog.String("temp_dir", cfg.TempDir),
		)
		return local, nil
	}

	mirror, err := archive.NewS3Mirror(ctx, local, archive.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		Prefix:          cfg.S3Prefix,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 mirror: %w", err)
	}
	logger.Info("S3 mirror configured",
		slog.String("archive_dir", cfg.ArchiveDir),
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return mirror, nil
}

// initRepository creates the task registry. Redis is used when REDIS_ADDR
// is set, otherwise tasks live in memory.
func initRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (job.Repository, *redis.Client, error) {
	if !cfg.RedisEnabled() {
		logger.Info("in-memory job registry configured")
		return job.NewMemoryRepository(), nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("connect to redis: %w", err), rdb.Close())
	}

	logger.Info("redis job registry configured",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
		slog.Duration("ttl", cfg.RedisJobTTL()),
	)
	return job.NewRedisRepository(rdb, cfg.RedisJobTTL()), rdb, nil
}
