package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/pixelanime/internal/domain"
	_ "github.com/lib/pq"
)

const artifactSchemaSQL = `
CREATE TABLE IF NOT EXISTS artifacts (
	name TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	size BIGINT NOT NULL,
	content_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS artifacts_created_at_idx ON artifacts (created_at);
`

type PostgresArtifactIndex struct {
	db *sql.DB
}

func NewPostgresArtifactIndex(ctx context.Context, dsn string) (*PostgresArtifactIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	index := &PostgresArtifactIndex{db: db}
	if err := index.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return index, nil
}

func (s *PostgresArtifactIndex) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, artifactSchemaSQL); err != nil {
		return fmt.Errorf("ensure artifacts schema: %w", err)
	}
	return nil
}

func (s *PostgresArtifactIndex) Close() error {
	return s.db.Close()
}

func (s *PostgresArtifactIndex) Put(ctx context.Context, artifact domain.Artifact) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO artifacts (name, kind, source, size, content_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE
		 SET kind = EXCLUDED.kind,
		     source = EXCLUDED.source,
		     size = EXCLUDED.size,
		     content_type = EXCLUDED.content_type,
		     created_at = EXCLUDED.created_at`,
		artifact.Name,
		artifact.Kind,
		artifact.Source,
		artifact.Size,
		artifact.ContentType,
		artifact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	return nil
}

func (s *PostgresArtifactIndex) Get(ctx context.Context, name string) (domain.Artifact, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT name, kind, source, size, content_type, created_at
		 FROM artifacts
		 WHERE name = $1`,
		name,
	)

	artifact, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Artifact{}, false, nil
		}
		return domain.Artifact{}, false, fmt.Errorf("query artifact: %w", err)
	}
	return artifact, true, nil
}

func (s *PostgresArtifactIndex) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.Artifact, error) {
	query := `SELECT name, kind, source, size, content_type, created_at
		 FROM artifacts
		 WHERE created_at < $1
		 ORDER BY created_at, name`
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expired artifacts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Artifact, 0)
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}

func (s *PostgresArtifactIndex) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if affected == 0 {
		return ErrArtifactNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (domain.Artifact, error) {
	var artifact domain.Artifact
	err := row.Scan(
		&artifact.Name,
		&artifact.Kind,
		&artifact.Source,
		&artifact.Size,
		&artifact.ContentType,
		&artifact.CreatedAt,
	)
	return artifact, err
}
