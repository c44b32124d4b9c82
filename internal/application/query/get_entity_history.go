package query

import (
	"context"
	"strings"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ENTITY HISTORY QUERY
// Boundary snapshots, deltas, scores and the raw series of one entity.
// ══════════════════════════════════════════════════════════════════════════════

// GetEntityHistoryQuery contains the history parameters.
type GetEntityHistoryQuery struct {
	Kind     snapshot.Kind
	EntityID string

	// Start and End are optional window bounds (RFC 3339 or YYYY-MM-DD).
	Start string
	End   string
}

// Validate checks the query.
func (q *GetEntityHistoryQuery) Validate() error {
	if !q.Kind.IsValid() {
		return shared.ErrInvalidKind
	}
	q.EntityID = strings.TrimSpace(q.EntityID)
	if q.EntityID == "" {
		return shared.ErrInvalidEntity
	}
	return nil
}

// BoundaryDTO holds the start and end snapshots of a window.
type BoundaryDTO struct {
	Start *SnapshotDTO `json:"start"`
	End   *SnapshotDTO `json:"end"`
}

// EntityHistoryResult is the history of one entity.
type EntityHistoryResult struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`

	// NoData is true when no snapshot falls inside the window.
	NoData bool `json:"no_data"`

	Window   WindowDTO         `json:"window"`
	Boundary *BoundaryDTO      `json:"boundary,omitempty"`
	Deltas   map[string]string `json:"deltas,omitempty"`
	Scores   map[string]string `json:"scores,omitempty"`
	Series   []SnapshotDTO     `json:"series"`
}

// GetEntityHistoryHandler handles GetEntityHistoryQuery.
type GetEntityHistoryHandler struct {
	deps Dependencies
}

// NewGetEntityHistoryHandler creates a new GetEntityHistoryHandler.
func NewGetEntityHistoryHandler(deps Dependencies) *GetEntityHistoryHandler {
	return &GetEntityHistoryHandler{deps: deps}
}

// Handle executes the query.
func (h *GetEntityHistoryHandler) Handle(ctx context.Context, query GetEntityHistoryQuery) (*EntityHistoryResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	window, err := ParseWindow(query.Start, query.End)
	if err != nil {
		return nil, err
	}

	ck := cacheKey("history", query.EntityID, window.Key())

	return readThrough(ctx, h.deps, "history", query.Kind, ScopeAllGroups, ck, func(ctx context.Context) (*EntityHistoryResult, error) {
		snaps, err := h.deps.Snapshots.ListByEntity(ctx, query.Kind, query.EntityID, window)
		if err != nil {
			return nil, err
		}

		hist, err := h.deps.Engine.EntityHistory(query.Kind, query.EntityID, snaps, window)
		if err != nil {
			return nil, err
		}

		res := &EntityHistoryResult{
			EntityID: hist.EntityID,
			Kind:     hist.Kind.String(),
			NoData:   hist.NoData,
			Window:   toWindowDTO(window),
			Series:   make([]SnapshotDTO, 0, len(hist.Series)),
		}
		if hist.NoData {
			return res, nil
		}

		res.Boundary = &BoundaryDTO{
			Start: toSnapshotDTO(hist.Start),
			End:   toSnapshotDTO(hist.End),
		}
		res.Deltas = hist.Deltas.Strings()
		res.Scores = formatScores(hist.Scores)
		for _, s := range hist.Series {
			res.Series = append(res.Series, *toSnapshotDTO(s))
		}
		return res, nil
	})
}
