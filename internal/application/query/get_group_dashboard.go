package query

import (
	"context"
	"strings"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GROUP DASHBOARD QUERY
// Compares a group's total of one metric between the latest and the
// previous snapshot of every entity.
// ══════════════════════════════════════════════════════════════════════════════

// GetGroupDashboardQuery contains the dashboard parameters.
type GetGroupDashboardQuery struct {
	Kind snapshot.Kind

	// Group is the kingdom id for players. Ignored for kingdoms.
	Group string

	// Metric is the counter to aggregate. Empty selects the default.
	Metric string
}

// Validate checks the query and normalizes its scope.
func (q *GetGroupDashboardQuery) Validate() error {
	if !q.Kind.IsValid() {
		return shared.ErrInvalidKind
	}
	q.Group = strings.TrimSpace(q.Group)
	if q.Kind == snapshot.KindKingdom {
		q.Group = ""
	} else if q.Group == "" {
		return shared.NewDomainError("query", "GetGroupDashboard", shared.ErrEmptyValue, "kingdom is required for a player dashboard")
	}
	q.Metric = strings.ToLower(strings.TrimSpace(q.Metric))
	return nil
}

// GroupDashboardResult is the aggregate summary of a group.
type GroupDashboardResult struct {
	Kind               string `json:"kind"`
	Group              string `json:"group,omitempty"`
	Metric             string `json:"metric"`
	TotalCurrent       string `json:"total_current"`
	TotalPrevious      string `json:"total_previous"`
	TotalChange        string `json:"total_change"`
	TotalChangePercent string `json:"total_change_percent"`
	EntityCount        int    `json:"entity_count"`
}

// GetGroupDashboardHandler handles GetGroupDashboardQuery.
type GetGroupDashboardHandler struct {
	deps          Dependencies
	defaultMetric snapshot.Metric
}

// NewGetGroupDashboardHandler creates a new GetGroupDashboardHandler.
// defaultMetric is used when the query names none.
func NewGetGroupDashboardHandler(deps Dependencies, defaultMetric snapshot.Metric) *GetGroupDashboardHandler {
	if !defaultMetric.IsValid() {
		defaultMetric = snapshot.MetricPower
	}
	return &GetGroupDashboardHandler{deps: deps, defaultMetric: defaultMetric}
}

// Handle executes the query.
func (h *GetGroupDashboardHandler) Handle(ctx context.Context, query GetGroupDashboardQuery) (*GroupDashboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	metric := h.defaultMetric
	if query.Metric != "" {
		m, ok := snapshot.ParseMetric(query.Metric)
		if !ok {
			return nil, shared.ErrInvalidMetric
		}
		metric = m
	}

	ck := cacheKey("dashboard", metric.String())

	return readThrough(ctx, h.deps, "dashboard", query.Kind, query.Group, ck, func(ctx context.Context) (*GroupDashboardResult, error) {
		snaps, err := h.deps.Snapshots.ListLatestByGroup(ctx, query.Kind, query.Group, 2)
		if err != nil {
			return nil, err
		}

		sum, err := h.deps.Engine.Summarize(query.Kind, snaps, metric)
		if err != nil {
			return nil, err
		}

		return &GroupDashboardResult{
			Kind:               query.Kind.String(),
			Group:              query.Group,
			Metric:             sum.Metric.String(),
			TotalCurrent:       sum.TotalCurrent.String(),
			TotalPrevious:      sum.TotalPrevious.String(),
			TotalChange:        sum.TotalChange.String(),
			TotalChangePercent: sum.ChangePercent.StringFixed(2),
			EntityCount:        sum.EntityCount,
		}, nil
	})
}
