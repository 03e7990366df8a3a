package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"aether/internal/config"
)

// Storage backends
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// ProofStore persists proof images and hands out short-lived download
// URLs. Images are private: the only way to read one is through a
// signed URL.
type ProofStore interface {
	// Save stores an image under key
	Save(ctx context.Context, key string, data []byte, contentType string) error
	// Open reads an image back. The second return value is the content type.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	// SignedURL returns a URL that grants read access to key until ttl expires
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes an image
	Delete(ctx context.Context, key string) error
}

// NewFromConfig builds the proof store named by cfg.StorageBackend
func NewFromConfig(ctx context.Context, cfg *config.Config) (ProofStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "", BackendLocal:
		if cfg.ProofURLSecret == "" {
			return nil, errors.New("PROOF_URL_SECRET is required for local storage")
		}
		return NewLocalStore(cfg.StoragePath, cfg.AppBaseURL, cfg.ProofURLSecret)
	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required for s3 storage")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return NewS3Store(client, cfg.S3Bucket), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
