// Package memory provides an in-process snapshot store. It backs offline
// ranking from a JSON file and stands in for PostgreSQL in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// SnapshotRepository implements snapshot.Repository over a slice.
// Rows keep insertion order, matching the seq ordering of PostgreSQL.
type SnapshotRepository struct {
	mu    sync.RWMutex
	snaps []*snapshot.Snapshot

	// Err, when set, is returned from every call as a store failure.
	Err error
}

var _ snapshot.Repository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a repository seeded with snaps.
func NewSnapshotRepository(snaps ...*snapshot.Snapshot) *SnapshotRepository {
	r := &SnapshotRepository{}
	r.snaps = append(r.snaps, snaps...)
	return r
}

func (r *SnapshotRepository) fail(op string) error {
	if r.Err == nil {
		return nil
	}
	return shared.StoreUnavailable(op, r.Err)
}

func (r *SnapshotRepository) filter(match func(*snapshot.Snapshot) bool) []*snapshot.Snapshot {
	out := make([]*snapshot.Snapshot, 0)
	for _, s := range r.snaps {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}

// ListByGroup implements snapshot.Repository.
func (r *SnapshotRepository) ListByGroup(ctx context.Context, kind snapshot.Kind, group string, window shared.Window) ([]*snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.fail("ListByGroup"); err != nil {
		return nil, err
	}
	return r.filter(func(s *snapshot.Snapshot) bool {
		return s.Kind == kind && s.Group == group && window.Contains(s.CapturedAt)
	}), nil
}

// ListByEntity implements snapshot.Repository.
func (r *SnapshotRepository) ListByEntity(ctx context.Context, kind snapshot.Kind, entityID string, window shared.Window) ([]*snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.fail("ListByEntity"); err != nil {
		return nil, err
	}
	return r.filter(func(s *snapshot.Snapshot) bool {
		return s.Kind == kind && s.EntityID == entityID && window.Contains(s.CapturedAt)
	}), nil
}

// ListLatestByGroup implements snapshot.Repository.
func (r *SnapshotRepository) ListLatestByGroup(ctx context.Context, kind snapshot.Kind, group string, perEntity int) ([]*snapshot.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.fail("ListLatestByGroup"); err != nil {
		return nil, err
	}
	if perEntity <= 0 {
		perEntity = 2
	}

	byEntity := make(map[string][]*snapshot.Snapshot)
	var order []string
	for _, s := range r.snaps {
		if s.Kind != kind || s.Group != group {
			continue
		}
		if _, ok := byEntity[s.EntityID]; !ok {
			order = append(order, s.EntityID)
		}
		byEntity[s.EntityID] = append(byEntity[s.EntityID], s)
	}

	out := make([]*snapshot.Snapshot, 0)
	for _, id := range order {
		series := byEntity[id]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].CapturedAt.Before(series[j].CapturedAt)
		})
		if len(series) > perEntity {
			series = series[len(series)-perEntity:]
		}
		out = append(out, series...)
	}
	return out, nil
}

// ListGroups implements snapshot.Repository.
func (r *SnapshotRepository) ListGroups(ctx context.Context, kind snapshot.Kind) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.fail("ListGroups"); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	groups := make([]string, 0)
	for _, s := range r.snaps {
		if s.Kind != kind || s.Group == "" {
			continue
		}
		if _, ok := seen[s.Group]; ok {
			continue
		}
		seen[s.Group] = struct{}{}
		groups = append(groups, s.Group)
	}
	sort.Strings(groups)
	return groups, nil
}

// Append implements snapshot.Repository.
func (r *SnapshotRepository) Append(ctx context.Context, batchID string, snaps []*snapshot.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fail("Append"); err != nil {
		return err
	}
	r.snaps = append(r.snaps, snaps...)
	return nil
}

// Len returns the number of stored snapshots.
func (r *SnapshotRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snaps)
}
