package ranking

import (
	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

var hundred = decimal.NewFromInt(100)

// Summary compares a group's total between each entity's latest and
// second-latest snapshot.
type Summary struct {
	Metric        snapshot.Metric
	TotalCurrent  decimal.Decimal
	TotalPrevious decimal.Decimal
	TotalChange   decimal.Decimal
	// ChangePercent is rounded to two decimals and zero when TotalPrevious is zero.
	ChangePercent decimal.Decimal
	EntityCount   int
}

// Summarize aggregates metric over the group's snapshots. An entity with a
// single snapshot adds the same value to both totals.
func (e *Engine) Summarize(kind snapshot.Kind, snaps []*snapshot.Snapshot, metric snapshot.Metric) (*Summary, error) {
	if !metric.IsValid() {
		return nil, shared.ErrInvalidMetric
	}

	sum := &Summary{
		Metric:        metric,
		TotalCurrent:  decimal.Zero,
		TotalPrevious: decimal.Zero,
		TotalChange:   decimal.Zero,
		ChangePercent: decimal.Zero,
	}

	for _, group := range GroupByEntity(snaps) {
		if !e.ids.Allow(kind, group.EntityID) {
			continue
		}
		series := SortChronologically(group.Snapshots)
		if len(series) == 0 {
			continue
		}
		current := series[len(series)-1]
		previous := current
		if len(series) > 1 {
			previous = series[len(series)-2]
		}
		sum.TotalCurrent = sum.TotalCurrent.Add(current.Metric(metric))
		sum.TotalPrevious = sum.TotalPrevious.Add(previous.Metric(metric))
		sum.EntityCount++
	}

	sum.TotalChange = sum.TotalCurrent.Sub(sum.TotalPrevious)
	if !sum.TotalPrevious.IsZero() {
		sum.ChangePercent = sum.TotalChange.Mul(hundred).DivRound(sum.TotalPrevious, 2)
	}
	return sum, nil
}
