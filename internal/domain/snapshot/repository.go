package snapshot

import (
	"context"

	"github.com/rokstats/rokstats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the contract of the snapshot store.
// The implementation lives in the infrastructure layer (PostgreSQL).
//
// Every read method returns rows in no guaranteed order; ordering is the
// engine's job. Failures to reach the store are reported as
// shared.ErrStoreUnavailable.
type Repository interface {
	// ListByGroup returns every snapshot of the given kind and group whose
	// capturedAt falls inside the window.
	ListByGroup(ctx context.Context, kind Kind, group string, window shared.Window) ([]*Snapshot, error)

	// ListByEntity returns every snapshot of one entity inside the window.
	ListByEntity(ctx context.Context, kind Kind, entityID string, window shared.Window) ([]*Snapshot, error)

	// ListLatestByGroup returns up to perEntity most recent snapshots of each
	// entity in the group.
	ListLatestByGroup(ctx context.Context, kind Kind, group string, perEntity int) ([]*Snapshot, error)

	// ListGroups returns the distinct non-empty groups for the kind.
	ListGroups(ctx context.Context, kind Kind) ([]string, error)

	// Append stores a batch of snapshots atomically under batchID.
	Append(ctx context.Context, batchID string, snaps []*Snapshot) error
}
