package ranking

import (
	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// History is the window view of a single entity.
type History struct {
	EntityID string
	Kind     snapshot.Kind

	// NoData is set when no snapshot falls inside the window.
	// Every other field except EntityID and Kind is then empty.
	NoData bool

	Start  *snapshot.Snapshot
	End    *snapshot.Snapshot
	Deltas snapshot.Metrics
	Scores map[string]decimal.Decimal

	// Series is every snapshot inside the window, oldest first.
	Series []*snapshot.Snapshot
}

// EntityHistory computes the boundary, deltas and scores of one entity.
// Snapshots belonging to other entities are ignored.
func (e *Engine) EntityHistory(kind snapshot.Kind, entityID string, snaps []*snapshot.Snapshot, window shared.Window) (*History, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	h := &History{EntityID: entityID, Kind: kind}

	own := make([]*snapshot.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s != nil && s.EntityID == entityID {
			own = append(own, s)
		}
	}

	b, ok := ResolveBoundary(own, window)
	if !ok {
		h.NoData = true
		return h, nil
	}

	h.Start = b.Start
	h.End = b.End
	h.Series = b.Series
	h.Deltas = ComputeDeltas(b)
	h.Scores = e.scores.Compute(h.Deltas)
	return h, nil
}
