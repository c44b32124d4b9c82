package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/rokstats/rokstats/internal/domain/ranking"
	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK ENTITIES QUERY
// Ranks every entity of a group by a raw counter, a delta or a derived score
// over an optional window.
// ══════════════════════════════════════════════════════════════════════════════

// RankEntitiesQuery contains the ranking parameters.
type RankEntitiesQuery struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Scope
	// ─────────────────────────────────────────────────────────────────────────

	// Kind selects players or kingdoms.
	Kind snapshot.Kind

	// Group is the kingdom id for players. Ignored for kingdoms.
	Group string

	// Start and End are optional window bounds (RFC 3339 or YYYY-MM-DD).
	Start string
	End   string

	// ─────────────────────────────────────────────────────────────────────────
	// Ordering, search and paging
	// ─────────────────────────────────────────────────────────────────────────

	// SortKey is a metric, delta_<metric> or score name. Empty selects the
	// configured default.
	SortKey string

	// Direction is "desc" (default) or "asc".
	Direction string

	// Search is an entity id or a name fragment.
	Search string

	Page     int
	PageSize int
}

// Validate checks the query and normalizes its scope.
func (q *RankEntitiesQuery) Validate() error {
	if !q.Kind.IsValid() {
		return shared.ErrInvalidKind
	}
	q.Group = strings.TrimSpace(q.Group)
	if q.Kind == snapshot.KindKingdom {
		q.Group = ""
	} else if q.Group == "" {
		return shared.NewDomainError("query", "RankEntities", shared.ErrEmptyValue, "kingdom is required to rank players")
	}
	q.Search = strings.TrimSpace(q.Search)
	return nil
}

// RankEntitiesResult is one page of the ranking.
type RankEntitiesResult struct {
	Kind   string      `json:"kind"`
	Group  string      `json:"group,omitempty"`
	Items  []RecordDTO `json:"items"`
	Page   PageDTO     `json:"pagination"`
	Sort   SortDTO     `json:"sort"`
	Window WindowDTO   `json:"window"`
	Scores []string    `json:"scores"`
}

// RankEntitiesHandler handles RankEntitiesQuery.
type RankEntitiesHandler struct {
	deps Dependencies
}

// NewRankEntitiesHandler creates a new RankEntitiesHandler.
func NewRankEntitiesHandler(deps Dependencies) *RankEntitiesHandler {
	return &RankEntitiesHandler{deps: deps}
}

// Handle executes the query.
func (h *RankEntitiesHandler) Handle(ctx context.Context, query RankEntitiesQuery) (*RankEntitiesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	window, err := ParseWindow(query.Start, query.End)
	if err != nil {
		return nil, err
	}

	key, fallback := h.deps.Engine.ResolveSortKey(query.SortKey)
	if fallback {
		h.deps.Metrics.SortKeyFallback(query.Kind.String())
		h.deps.log().Warn("unknown sort key, using default",
			logger.SortKey(query.SortKey),
			logger.String("default", key.String()),
			logger.EntityKind(query.Kind.String()),
			logger.Group(query.Group),
		)
	}
	dir := ranking.ParseDirection(query.Direction)

	ck := cacheKey("rank",
		window.Key(),
		key.String(),
		string(dir),
		query.Search,
		strconv.Itoa(query.Page),
		strconv.Itoa(query.PageSize),
	)

	result, err := readThrough(ctx, h.deps, "rank", query.Kind, query.Group, ck, func(ctx context.Context) (*RankEntitiesResult, error) {
		snaps, err := h.deps.Snapshots.ListByGroup(ctx, query.Kind, query.Group, window)
		if err != nil {
			return nil, err
		}

		ranked, err := h.deps.Engine.RankEntities(query.Kind, snaps, window, ranking.RankOptions{
			SortKey:   key.String(),
			Direction: dir,
			Search:    query.Search,
			Page:      query.Page,
			PageSize:  query.PageSize,
		})
		if err != nil {
			return nil, err
		}

		return h.buildResult(query, window, ranked), nil
	})
	if err != nil {
		return nil, err
	}

	if fallback {
		result.Sort.Fallback = true
		result.Sort.Requested = query.SortKey
	}
	return result, nil
}

func (h *RankEntitiesHandler) buildResult(query RankEntitiesQuery, window shared.Window, ranked *ranking.RankResult) *RankEntitiesResult {
	items := make([]RecordDTO, 0, len(ranked.Items))
	for _, r := range ranked.Items {
		items = append(items, toRecordDTO(r))
	}

	return &RankEntitiesResult{
		Kind:  query.Kind.String(),
		Group: query.Group,
		Items: items,
		Page: PageDTO{
			Page:       ranked.Page,
			PageSize:   ranked.PageSize,
			TotalItems: ranked.TotalItems,
			TotalPages: ranked.TotalPages,
			HasNext:    ranked.HasNext,
			HasPrev:    ranked.HasPrev,
		},
		Sort: SortDTO{
			Key:       ranked.SortKey.String(),
			Direction: string(ranked.Direction),
		},
		Window: toWindowDTO(window),
		Scores: h.deps.Engine.Scores().Names(),
	}
}
