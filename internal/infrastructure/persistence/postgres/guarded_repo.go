package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/pkg/circuitbreaker"
	"github.com/rokstats/rokstats/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// GUARDED REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// GuardedRepository decorates a snapshot.Repository with a per-call timeout,
// a circuit breaker and store error metrics. A rejected call is reported as
// shared.ErrStoreUnavailable without touching the store.
type GuardedRepository struct {
	inner   snapshot.Repository
	breaker *circuitbreaker.CircuitBreaker
	metrics *metrics.Manager
	timeout time.Duration
}

var _ snapshot.Repository = (*GuardedRepository)(nil)

// NewGuardedRepository wraps inner. A nil breaker or metrics manager is
// allowed; a zero timeout leaves the caller's deadline untouched.
func NewGuardedRepository(inner snapshot.Repository, breaker *circuitbreaker.CircuitBreaker, m *metrics.Manager, timeout time.Duration) *GuardedRepository {
	return &GuardedRepository{
		inner:   inner,
		breaker: breaker,
		metrics: m,
		timeout: timeout,
	}
}

// guard runs fn under the timeout and breaker. Only store failures count
// against the breaker.
func (g *GuardedRepository) guard(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var callErr error
	run := func(ctx context.Context) error {
		callErr = fn(ctx)
		if shared.IsStoreUnavailable(callErr) {
			return callErr
		}
		return nil
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(ctx, run)
	} else {
		err = run(ctx)
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		g.metrics.StoreError(op)
		return shared.StoreUnavailable(op, err)
	}
	if shared.IsStoreUnavailable(callErr) {
		g.metrics.StoreError(op)
	}
	return callErr
}

// ListByGroup implements snapshot.Repository.
func (g *GuardedRepository) ListByGroup(ctx context.Context, kind snapshot.Kind, group string, window shared.Window) ([]*snapshot.Snapshot, error) {
	var out []*snapshot.Snapshot
	err := g.guard(ctx, "ListByGroup", func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListByGroup(ctx, kind, group, window)
		return err
	})
	return out, err
}

// ListByEntity implements snapshot.Repository.
func (g *GuardedRepository) ListByEntity(ctx context.Context, kind snapshot.Kind, entityID string, window shared.Window) ([]*snapshot.Snapshot, error) {
	var out []*snapshot.Snapshot
	err := g.guard(ctx, "ListByEntity", func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListByEntity(ctx, kind, entityID, window)
		return err
	})
	return out, err
}

// ListLatestByGroup implements snapshot.Repository.
func (g *GuardedRepository) ListLatestByGroup(ctx context.Context, kind snapshot.Kind, group string, perEntity int) ([]*snapshot.Snapshot, error) {
	var out []*snapshot.Snapshot
	err := g.guard(ctx, "ListLatestByGroup", func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListLatestByGroup(ctx, kind, group, perEntity)
		return err
	})
	return out, err
}

// ListGroups implements snapshot.Repository.
func (g *GuardedRepository) ListGroups(ctx context.Context, kind snapshot.Kind) ([]string, error) {
	var out []string
	err := g.guard(ctx, "ListGroups", func(ctx context.Context) error {
		var err error
		out, err = g.inner.ListGroups(ctx, kind)
		return err
	})
	return out, err
}

// Append implements snapshot.Repository.
func (g *GuardedRepository) Append(ctx context.Context, batchID string, snaps []*snapshot.Snapshot) error {
	err := g.guard(ctx, "Append", func(ctx context.Context) error {
		return g.inner.Append(ctx, batchID, snaps)
	})
	if err == nil {
		g.metrics.SnapshotsAppended(len(snaps))
	}
	return err
}
