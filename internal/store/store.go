// Package store persists the job index between runs.
package store

import (
	"context"

	"github.com/jonathan/transcript-pipeline/internal/types"
)

// Store loads and persists whole-index snapshots.
type Store interface {
	Load(ctx context.Context) (types.Index, error)
	Persist(ctx context.Context, idx types.Index) error
}
