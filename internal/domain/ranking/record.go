package ranking

import (
	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// Record is one entity's derived view over a window.
type Record struct {
	EntityID string
	Kind     snapshot.Kind
	Group    string

	// Name and Alliance are taken from the end snapshot.
	Name     string
	Alliance string

	Start *snapshot.Snapshot
	End   *snapshot.Snapshot

	// Deltas are end - start per metric, unclamped.
	Deltas snapshot.Metrics

	// Scores are the composite scores, computed from clamped deltas.
	Scores map[string]decimal.Decimal

	// Rank is the 1-based position in the full ordered list, 0 until ranked.
	Rank int
}

// NewRecord derives a record from a resolved boundary.
func NewRecord(b Boundary, scores *ScoreTable) *Record {
	deltas := ComputeDeltas(b)
	r := &Record{
		EntityID: b.End.EntityID,
		Kind:     b.End.Kind,
		Group:    b.End.Group,
		Name:     b.End.Name,
		Alliance: b.End.Alliance,
		Start:    b.Start,
		End:      b.End,
		Deltas:   deltas,
		Scores:   map[string]decimal.Decimal{},
	}
	if scores != nil {
		r.Scores = scores.Compute(deltas)
	}
	return r
}
