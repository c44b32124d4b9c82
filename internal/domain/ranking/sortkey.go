package ranking

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

const deltaPrefix = "delta_"

// SortSource tells which part of a record a sort key reads.
type SortSource int

const (
	// SortRaw orders by the end-snapshot value of a metric.
	SortRaw SortSource = iota
	// SortDelta orders by the change of a metric over the window.
	SortDelta
	// SortScore orders by a composite score.
	SortScore
)

// SortKey identifies the value records are ordered by.
type SortKey struct {
	Source SortSource
	Metric snapshot.Metric
	Score  string
}

// RawKey sorts by the current value of m.
func RawKey(m snapshot.Metric) SortKey { return SortKey{Source: SortRaw, Metric: m} }

// DeltaKey sorts by the gain of m.
func DeltaKey(m snapshot.Metric) SortKey { return SortKey{Source: SortDelta, Metric: m} }

// ScoreKey sorts by a composite score.
func ScoreKey(name string) SortKey { return SortKey{Source: SortScore, Score: name} }

// String renders the key in the form accepted by ParseSortKey.
func (k SortKey) String() string {
	switch k.Source {
	case SortDelta:
		return deltaPrefix + k.Metric.String()
	case SortScore:
		return k.Score
	default:
		return k.Metric.String()
	}
}

// Value extracts the sort value from a record.
func (k SortKey) Value(r *Record) decimal.Decimal {
	switch k.Source {
	case SortDelta:
		return r.Deltas.Get(k.Metric)
	case SortScore:
		return r.Scores[k.Score]
	default:
		if r.End == nil {
			return decimal.Zero
		}
		return r.End.Metric(k.Metric)
	}
}

// ParseSortKey parses "<metric>", "delta_<metric>" or "<score name>".
// ok is false for anything else.
func ParseSortKey(s string, scores *ScoreTable) (SortKey, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortKey{}, false
	}
	if m, ok := snapshot.ParseMetric(s); ok {
		return RawKey(m), true
	}
	if strings.HasPrefix(s, deltaPrefix) {
		if m, ok := snapshot.ParseMetric(strings.TrimPrefix(s, deltaPrefix)); ok {
			return DeltaKey(m), true
		}
		return SortKey{}, false
	}
	if scores != nil && scores.Has(s) {
		return ScoreKey(s), true
	}
	return SortKey{}, false
}

// Direction is the sort order of the primary key.
type Direction string

const (
	Descending Direction = "desc"
	Ascending  Direction = "asc"
)

// ParseDirection accepts "asc"/"desc" in any case; anything else is descending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Ascending)) {
		return Ascending
	}
	return Descending
}
