package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/maauso/sora-studio/internal/sora"
)

// S3Config holds the configuration for the S3 mirror.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	Prefix          string // Optional: key prefix, e.g. "sora/"
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// Compile-time check that S3Mirror implements Archive.
var _ Archive = (*S3Mirror)(nil)

// S3Mirror wraps Local and copies every stored blob and metadata file to
// S3 under <prefix><id>/<file>. Local disk stays the source of truth for
// reads; a failed upload fails the write.
type S3Mirror struct {
	*Local
	client *s3.Client
	bucket string
	region string
	prefix string
}

// NewS3Mirror creates an S3Mirror around an existing Local archive.
func NewS3Mirror(ctx context.Context, local *Local, cfg S3Config) (*S3Mirror, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Mirror{
		Local:  local,
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: cfg.Prefix,
	}, nil
}

// Key returns the object key for a file of id.
func (m *S3Mirror) Key(id, file string) string {
	return m.prefix + id + "/" + file
}

// URL returns the public URL of an object key.
func (m *S3Mirror) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.bucket, m.region, key)
}

// Store writes the blob locally, then uploads the stored file.
func (m *S3Mirror) Store(ctx context.Context, id string, variant sora.Variant, data io.Reader) (string, error) {
	var buf bytes.Buffer
	p, err := m.Local.Store(ctx, id, variant, io.TeeReader(data, &buf))
	if err != nil {
		return "", err
	}

	if err := m.upload(ctx, m.Key(id, filepath.Base(p)), buf.Bytes(), contentType(variant)); err != nil {
		return "", err
	}
	return p, nil
}

// WriteMetadata writes metadata locally and uploads it when written.
func (m *S3Mirror) WriteMetadata(ctx context.Context, id string, v any, overwrite bool) (bool, error) {
	written, err := m.Local.WriteMetadata(ctx, id, v, overwrite)
	if err != nil || !written {
		return written, err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return true, fmt.Errorf("marshal metadata for %s: %w", id, err)
	}
	data = append(data, '\n')

	if err := m.upload(ctx, m.Key(id, MetadataFile), data, "application/json"); err != nil {
		return true, err
	}
	return true, nil
}

func (m *S3Mirror) upload(ctx context.Context, key string, data []byte, ct string) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ct),
	})
	if err != nil {
		return fmt.Errorf("upload to S3: %w", err)
	}

	m.logger.Debug("mirrored to S3", slog.String("url", m.URL(key)))
	return nil
}

func contentType(variant sora.Variant) string {
	switch variant {
	case sora.VariantThumbnail:
		return "image/webp"
	case sora.VariantSpritesheet:
		return "image/jpeg"
	default:
		return "video/mp4"
	}
}
