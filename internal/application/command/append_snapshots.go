// Package command contains write operations (CQRS - Commands).
// The only write is appending snapshots; stored snapshots are never mutated.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPEND SNAPSHOTS COMMAND
// Validates a batch of snapshots, stores it atomically and announces it so
// cached results of the touched groups are invalidated.
// ══════════════════════════════════════════════════════════════════════════════

// MaxBatchSize caps the number of snapshots in one command.
const MaxBatchSize = 10000

// SnapshotInput is the wire form of one snapshot.
type SnapshotInput struct {
	EntityID   string            `json:"entity_id"`
	Kind       string            `json:"kind"`
	Group      string            `json:"group"`
	CapturedAt string            `json:"captured_at"`
	Name       string            `json:"name"`
	Alliance   string            `json:"alliance"`
	Metrics    map[string]string `json:"metrics"`
}

// ToSnapshot converts and validates the input.
func (in SnapshotInput) ToSnapshot() (*snapshot.Snapshot, error) {
	kind, err := snapshot.ParseKind(in.Kind)
	if err != nil {
		return nil, err
	}

	capturedAt, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(in.CapturedAt))
	if err != nil {
		return nil, shared.WrapError("snapshot", "Parse", shared.ErrInvalidFormat, "captured_at must be RFC3339", err)
	}

	metrics := make(snapshot.Metrics, len(in.Metrics))
	for name, raw := range in.Metrics {
		m, ok := snapshot.ParseMetric(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return nil, shared.WrapError("snapshot", "Parse", shared.ErrInvalidInput, "unknown metric "+name, shared.ErrInvalidMetric)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, shared.WrapError("snapshot", "Parse", shared.ErrInvalidFormat, "metric "+name+" is not a number", err)
		}
		metrics[m] = v
	}

	group := strings.TrimSpace(in.Group)
	if kind == snapshot.KindKingdom {
		group = ""
	}

	s := &snapshot.Snapshot{
		EntityID:   strings.TrimSpace(in.EntityID),
		Kind:       kind,
		Group:      group,
		CapturedAt: capturedAt.UTC(),
		Name:       strings.TrimSpace(in.Name),
		Alliance:   strings.TrimSpace(in.Alliance),
		Metrics:    metrics,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AppendSnapshotsCommand contains the batch to append.
type AppendSnapshotsCommand struct {
	Snapshots []SnapshotInput

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command shape.
func (c AppendSnapshotsCommand) Validate() error {
	if len(c.Snapshots) == 0 {
		return shared.NewDomainError("command", "AppendSnapshots", shared.ErrEmptyValue, "at least one snapshot is required")
	}
	if len(c.Snapshots) > MaxBatchSize {
		return shared.NewDomainError("command", "AppendSnapshots", shared.ErrValueOutOfRange,
			fmt.Sprintf("at most %d snapshots per batch", MaxBatchSize))
	}
	return nil
}

// AppendSnapshotsResult describes the stored batch.
type AppendSnapshotsResult struct {
	BatchID  string              `json:"batch_id"`
	Appended int                 `json:"appended"`
	Groups   map[string][]string `json:"groups"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AppendSnapshotsHandler handles AppendSnapshotsCommand.
type AppendSnapshotsHandler struct {
	repo     snapshot.Repository
	eventBus shared.EventBus
	log      *logger.Logger
	newID    func() string
}

// NewAppendSnapshotsHandler creates a new AppendSnapshotsHandler.
// eventBus may be nil when nothing listens for appends.
func NewAppendSnapshotsHandler(repo snapshot.Repository, eventBus shared.EventBus, log *logger.Logger) *AppendSnapshotsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AppendSnapshotsHandler{
		repo:     repo,
		eventBus: eventBus,
		log:      log.With(logger.Component("append_snapshots")),
		newID:    func() string { return uuid.New().String() },
	}
}

// Handle executes the command. Nothing is stored unless every snapshot is valid.
func (h *AppendSnapshotsHandler) Handle(ctx context.Context, cmd AppendSnapshotsCommand) (*AppendSnapshotsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	snaps := make([]*snapshot.Snapshot, 0, len(cmd.Snapshots))
	for i, in := range cmd.Snapshots {
		s, err := in.ToSnapshot()
		if err != nil {
			return nil, shared.WrapError("command", "AppendSnapshots", shared.ErrValidation,
				fmt.Sprintf("snapshot %d is invalid", i), err)
		}
		snaps = append(snaps, s)
	}

	batchID := h.newID()
	if err := h.repo.Append(ctx, batchID, snaps); err != nil {
		return nil, err
	}

	groups := touchedGroups(snaps)
	result := &AppendSnapshotsResult{
		BatchID:  batchID,
		Appended: len(snaps),
		Groups:   groups,
	}

	h.log.Info("snapshots appended",
		logger.String("batch_id", batchID),
		logger.Int("count", len(snaps)),
		logger.String("correlation_id", cmd.CorrelationID),
	)

	if h.eventBus != nil {
		event := shared.NewSnapshotsAppendedEvent(batchID, groups, len(snaps))
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		if err := h.eventBus.Publish(event); err != nil {
			h.log.Error("failed to publish snapshots appended event",
				logger.String("batch_id", batchID),
				logger.Err(err),
			)
		}
	}

	return result, nil
}

// touchedGroups maps each kind to the sorted distinct groups in snaps.
func touchedGroups(snaps []*snapshot.Snapshot) map[string][]string {
	seen := make(map[string]map[string]struct{})
	for _, s := range snaps {
		kind := s.Kind.String()
		if seen[kind] == nil {
			seen[kind] = make(map[string]struct{})
		}
		seen[kind][s.Group] = struct{}{}
	}

	out := make(map[string][]string, len(seen))
	for kind, set := range seen {
		groups := make([]string, 0, len(set))
		for g := range set {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		out[kind] = groups
	}
	return out
}
