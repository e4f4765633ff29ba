package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dunamismax/pixelanime/internal/domain"
)

type MemoryArtifactIndex struct {
	mu        sync.RWMutex
	artifacts map[string]domain.Artifact
}

func NewMemoryArtifactIndex() *MemoryArtifactIndex {
	return &MemoryArtifactIndex{
		artifacts: make(map[string]domain.Artifact),
	}
}

func (s *MemoryArtifactIndex) Put(_ context.Context, artifact domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifact.Name] = artifact
	return nil
}

func (s *MemoryArtifactIndex) Get(_ context.Context, name string) (domain.Artifact, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifact, ok := s.artifacts[name]
	return artifact, ok, nil
}

// ListOlderThan returns artifacts created strictly before cutoff, oldest first.
func (s *MemoryArtifactIndex) ListOlderThan(_ context.Context, cutoff time.Time, limit int) ([]domain.Artifact, error) {
	s.mu.RLock()
	out := make([]domain.Artifact, 0)
	for _, artifact := range s.artifacts {
		if artifact.CreatedAt.Before(cutoff) {
			out = append(out, artifact)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryArtifactIndex) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[name]; !ok {
		return ErrArtifactNotFound
	}
	delete(s.artifacts, name)
	return nil
}
