package store

import (
	"context"
	"fmt"

	"github.com/dunamismax/pixelanime/internal/config"
)

// Open builds the configured artifact index. The returned close func is
// never nil.
func Open(ctx context.Context, cfg config.DatabaseConfig) (ArtifactIndex, func() error, error) {
	switch cfg.IndexBackend {
	case "", "memory":
		return NewMemoryArtifactIndex(), func() error { return nil }, nil
	case "postgres":
		index, err := NewPostgresArtifactIndex(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return index, index.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported artifact index %q", cfg.IndexBackend)
	}
}
