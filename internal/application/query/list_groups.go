package query

import (
	"context"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ListGroupsQuery lists the groups that hold snapshots of a kind.
type ListGroupsQuery struct {
	Kind snapshot.Kind
}

// ListGroupsResult holds group ids in ascending order.
type ListGroupsResult struct {
	Kind   string   `json:"kind"`
	Groups []string `json:"groups"`
}

// ListGroupsHandler handles ListGroupsQuery.
type ListGroupsHandler struct {
	deps Dependencies
}

// NewListGroupsHandler creates a new ListGroupsHandler.
func NewListGroupsHandler(deps Dependencies) *ListGroupsHandler {
	return &ListGroupsHandler{deps: deps}
}

// Handle executes the query.
func (h *ListGroupsHandler) Handle(ctx context.Context, query ListGroupsQuery) (*ListGroupsResult, error) {
	if !query.Kind.IsValid() {
		return nil, shared.ErrInvalidKind
	}

	return readThrough(ctx, h.deps, "groups", query.Kind, ScopeAllGroups, cacheKey("groups"), func(ctx context.Context) (*ListGroupsResult, error) {
		groups, err := h.deps.Snapshots.ListGroups(ctx, query.Kind)
		if err != nil {
			return nil, err
		}
		return &ListGroupsResult{Kind: query.Kind.String(), Groups: groups}, nil
	})
}
