package store

import (
	"context"
	"errors"
	"time"

	"github.com/dunamismax/pixelanime/internal/domain"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactIndex records metadata for every stored artifact so retention can
// find expired files without listing the storage backend.
type ArtifactIndex interface {
	Put(ctx context.Context, artifact domain.Artifact) error
	Get(ctx context.Context, name string) (domain.Artifact, bool, error)
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Artifact, error)
	Delete(ctx context.Context, name string) error
}
