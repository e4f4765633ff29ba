package storage

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixelanime/internal/config"
)

// Open builds the configured backend. MinIO buckets are created on demand.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "minio":
		s, err := NewMinioStore(MinioConfig{
			Endpoint: cfg.Endpoint,
			Access:   cfg.AccessKey,
			Secret:   cfg.SecretKey,
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			UseSSL:   cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
