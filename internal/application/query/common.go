package query

import (
	"context"
	"strings"
	"time"

	"github.com/rokstats/rokstats/internal/domain/ranking"
	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/pkg/logger"
	"github.com/rokstats/rokstats/pkg/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// ResultCache is an optional read-through cache of query results.
// Entries are scoped by entity kind and group; scope "*" spans every group
// of a kind. Implementations must make an invalidated scope unreadable.
//
// Get reports the scope generation it read; SetAt writes under that
// generation, so a result loaded across an invalidation is never readable.
type ResultCache interface {
	Get(ctx context.Context, kind, scope, key string, dest any) (hit bool, generation int64, err error)
	SetAt(ctx context.Context, kind, scope string, generation int64, key string, value any) error
}

// ScopeAllGroups is the cache scope of results spanning a whole kind.
const ScopeAllGroups = "*"

// Dependencies are shared by every query handler.
type Dependencies struct {
	// Snapshots is the snapshot store. Required.
	Snapshots snapshot.Repository

	// Engine is the ranking engine. Required.
	Engine *ranking.Engine

	// Cache is optional; nil disables caching.
	Cache ResultCache

	// Metrics is optional.
	Metrics *metrics.Manager

	// Logger is optional; nil discards logs.
	Logger *logger.Logger
}

func (d Dependencies) log() *logger.Logger {
	if d.Logger == nil {
		return logger.Nop()
	}
	return d.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// ParseWindow builds a window from optional RFC 3339 or YYYY-MM-DD bounds.
// Malformed bounds are validation errors; start after end is ErrInvalidWindow.
func ParseWindow(start, end string) (shared.Window, error) {
	from, err := shared.ParseWindowBound(start, false)
	if err != nil {
		return shared.Window{}, err
	}
	to, err := shared.ParseWindowBound(end, true)
	if err != nil {
		return shared.Window{}, err
	}
	return shared.NewWindow(from, to)
}

// cacheKey joins the parts identifying a result.
func cacheKey(op string, parts ...string) string {
	return op + "|" + strings.Join(parts, "|")
}

// readThrough serves a result from the cache or loads and stores it.
// Cache failures are logged and bypassed.
func readThrough[T any](ctx context.Context, d Dependencies, op string, kind snapshot.Kind, scope, key string, load func(context.Context) (*T, error)) (*T, error) {
	log := d.log().With(logger.Operation(op), logger.EntityKind(kind.String()))

	cacheable := d.Cache != nil
	var generation int64
	if cacheable {
		var (
			cached T
			hit    bool
			err    error
		)
		hit, generation, err = d.Cache.Get(ctx, kind.String(), scope, key, &cached)
		switch {
		case err != nil:
			cacheable = false
			d.Metrics.CacheError(op)
			log.Warn("cache read failed, bypassing", logger.Err(err))
		case hit:
			d.Metrics.CacheHit(op)
			return &cached, nil
		default:
			d.Metrics.CacheMiss(op)
		}
	}

	start := time.Now()
	result, err := load(ctx)
	if err != nil {
		return nil, err
	}
	d.Metrics.ObserveEngine(op, time.Since(start))

	if cacheable {
		if err := d.Cache.SetAt(ctx, kind.String(), scope, generation, key, result); err != nil {
			d.Metrics.CacheError(op)
			log.Warn("cache write failed", logger.Err(err))
		}
	}

	return result, nil
}
