package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type postgresSnapshotRepository struct {
	db   *sql.DB
	name string
}

// NewPostgresSnapshotRepository creates a SnapshotRepository backed by the catalog_snapshots table.
// Each name holds one snapshot document.
func NewPostgresSnapshotRepository(db *sql.DB, name string) SnapshotRepository {
	return &postgresSnapshotRepository{db: db, name: name}
}

// Read retrieves the snapshot document by name
func (r *postgresSnapshotRepository) Read(ctx context.Context) ([]byte, error) {
	query := `SELECT payload FROM catalog_snapshots WHERE name = $1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, r.name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return payload, nil
}

// Write upserts the snapshot document in a single statement
func (r *postgresSnapshotRepository) Write(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO catalog_snapshots (id, name, payload, updated_at)
		VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (name) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, uuid.New(), r.name, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

func (r *postgresSnapshotRepository) Describe() string {
	return "postgres:" + r.name
}
