// Package ranking is the snapshot-delta engine: it resolves window boundaries,
// computes deltas and composite scores, orders and pages entities, and
// aggregates group dashboards. It performs no I/O and holds no shared state.
package ranking

import (
	"sort"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOUNDARY RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Boundary is the pair of snapshots delimiting an entity's window.
// Start and End are the same snapshot when only one falls inside the window.
type Boundary struct {
	Start *snapshot.Snapshot
	End   *snapshot.Snapshot

	// Series is every snapshot inside the window in chronological order.
	Series []*snapshot.Snapshot
}

// ResolveBoundary picks the earliest snapshot at or after window.Start and the
// latest at or before window.End. Snapshots with equal CapturedAt keep their
// input order, so on a tie the first input row starts the window and the last
// input row ends it. ok is false when no snapshot falls inside the window.
func ResolveBoundary(snaps []*snapshot.Snapshot, window shared.Window) (b Boundary, ok bool) {
	series := SortChronologically(snaps)

	inWindow := series[:0]
	for _, s := range series {
		if window.Contains(s.CapturedAt) {
			inWindow = append(inWindow, s)
		}
	}
	if len(inWindow) == 0 {
		return Boundary{}, false
	}

	return Boundary{
		Start:  inWindow[0],
		End:    inWindow[len(inWindow)-1],
		Series: inWindow,
	}, true
}

// SortChronologically returns a copy of snaps stably sorted by CapturedAt.
func SortChronologically(snaps []*snapshot.Snapshot) []*snapshot.Snapshot {
	out := make([]*snapshot.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	return out
}

// EntitySnapshots is the snapshot sequence of one entity.
type EntitySnapshots struct {
	EntityID  string
	Snapshots []*snapshot.Snapshot
}

// GroupByEntity partitions snaps per entity id. Entities appear in order of
// their first snapshot in the input; each sequence keeps input order.
func GroupByEntity(snaps []*snapshot.Snapshot) []EntitySnapshots {
	index := make(map[string]int)
	var groups []EntitySnapshots

	for _, s := range snaps {
		if s == nil {
			continue
		}
		i, ok := index[s.EntityID]
		if !ok {
			i = len(groups)
			index[s.EntityID] = i
			groups = append(groups, EntitySnapshots{EntityID: s.EntityID})
		}
		groups[i].Snapshots = append(groups[i].Snapshots, s)
	}
	return groups
}

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIER FILTER
// ══════════════════════════════════════════════════════════════════════════════

// IDFilter drops entities whose identifier is shorter than the minimum
// configured for their kind. Short ids are leftovers of bad imports.
type IDFilter struct {
	MinLength map[snapshot.Kind]int
}

// DefaultIDFilter requires 8-character player ids and any kingdom id.
func DefaultIDFilter() IDFilter {
	return IDFilter{MinLength: map[snapshot.Kind]int{
		snapshot.KindPlayer:  8,
		snapshot.KindKingdom: 1,
	}}
}

// Allow reports whether id is long enough for kind.
func (f IDFilter) Allow(kind snapshot.Kind, id string) bool {
	if id == "" {
		return false
	}
	return len(id) >= f.MinLength[kind]
}
