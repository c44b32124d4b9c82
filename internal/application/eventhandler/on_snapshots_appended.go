// Package eventhandler contains reactions to domain events.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/pkg/logger"
	"github.com/rokstats/rokstats/pkg/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SNAPSHOTS APPENDED HANDLER
// Invalidates cached results of every group touched by an append.
// ═══════════════════════════════════════════════════════════════════════════

// CacheInvalidator makes cached results of the given groups unreachable.
// groups maps entity kind to group ids.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, groups map[string][]string) (int, error)
}

// OnSnapshotsAppendedHandler reacts to shared.EventSnapshotsAppended.
type OnSnapshotsAppendedHandler struct {
	cache   CacheInvalidator
	metrics *metrics.Manager
	log     *logger.Logger
	timeout time.Duration
}

// NewOnSnapshotsAppendedHandler creates the handler.
func NewOnSnapshotsAppendedHandler(cache CacheInvalidator, m *metrics.Manager, log *logger.Logger) *OnSnapshotsAppendedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnSnapshotsAppendedHandler{
		cache:   cache,
		metrics: m,
		log:     log.With(logger.Component("cache_invalidator")),
		timeout: 5 * time.Second,
	}
}

// Subscribe registers the handler on bus.
func (h *OnSnapshotsAppendedHandler) Subscribe(bus shared.EventBus) error {
	return bus.Subscribe(shared.EventSnapshotsAppended, h.Handle)
}

// Handle implements shared.EventHandler.
func (h *OnSnapshotsAppendedHandler) Handle(event shared.Event) error {
	appended, ok := event.(shared.SnapshotsAppendedEvent)
	if !ok {
		return fmt.Errorf("unexpected event %T for %s", event, shared.EventSnapshotsAppended)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	n, err := h.cache.Invalidate(ctx, appended.Groups)
	if err != nil {
		h.metrics.CacheError("invalidate")
		return fmt.Errorf("invalidate batch %s: %w", appended.AggregateID(), err)
	}

	h.metrics.CacheInvalidated(n)
	h.log.Debug("cache invalidated",
		logger.String("batch_id", appended.AggregateID()),
		logger.Int("scopes", n),
	)
	return nil
}
