package repository

import (
	"context"
	"errors"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// SnapshotRepository stores the serialized catalog snapshot. Implementations
// must replace the stored document atomically: a reader sees either the
// previous document or the new one, never a partial write.
type SnapshotRepository interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Describe() string
}
