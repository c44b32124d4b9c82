package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELTAS
// ══════════════════════════════════════════════════════════════════════════════

// ComputeDeltas returns end - start for every known metric. Deltas are signed:
// counters such as power may shrink between snapshots.
func ComputeDeltas(b Boundary) snapshot.Metrics {
	deltas := make(snapshot.Metrics, len(snapshot.AllMetrics))
	for _, m := range snapshot.AllMetrics {
		if b.Start == nil || b.End == nil {
			deltas[m] = decimal.Zero
			continue
		}
		deltas[m] = b.End.Metric(m).Sub(b.Start.Metric(m))
	}
	return deltas
}

// ══════════════════════════════════════════════════════════════════════════════
// SCORE FORMULAS
// ══════════════════════════════════════════════════════════════════════════════

// ScoreDKP is the name of the default composite score.
const ScoreDKP = "dkp"

// Weight multiplies the delta of one metric.
type Weight struct {
	Metric snapshot.Metric
	Factor decimal.Decimal
}

// ScoreFormula is a named weighted sum over metric deltas.
type ScoreFormula struct {
	Name    string
	Weights []Weight
}

// Compute evaluates the formula. Each contributing delta is clamped at zero
// before weighting; the deltas themselves are left untouched.
func (f ScoreFormula) Compute(deltas snapshot.Metrics) decimal.Decimal {
	total := decimal.Zero
	for _, w := range f.Weights {
		d := deltas.Get(w.Metric)
		if d.IsNegative() {
			d = decimal.Zero
		}
		total = total.Add(d.Mul(w.Factor))
	}
	return total
}

// ScoreTable is the set of composite scores the engine derives for every record.
type ScoreTable struct {
	formulas []ScoreFormula
	byName   map[string]int
}

// DefaultWeights is the DKP table: 10 per T4 kill, 30 per T5 kill, 80 per dead.
func DefaultWeights() map[string]map[string]int64 {
	return map[string]map[string]int64{
		ScoreDKP: {
			snapshot.MetricT4Kills.String(): 10,
			snapshot.MetricT5Kills.String(): 30,
			snapshot.MetricDeads.String():   80,
		},
	}
}

// DefaultScoreTable returns a table holding only the DKP formula.
func DefaultScoreTable() *ScoreTable {
	t, err := NewScoreTable(DefaultWeights())
	if err != nil {
		panic(err)
	}
	return t
}

// NewScoreTable builds a table from score name -> metric -> weight.
// Score names must not collide with metric names or the delta_ prefix.
func NewScoreTable(weights map[string]map[string]int64) (*ScoreTable, error) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	t := &ScoreTable{
		formulas: make([]ScoreFormula, 0, len(names)),
		byName:   make(map[string]int, len(names)),
	}

	for _, name := range names {
		clean := strings.ToLower(strings.TrimSpace(name))
		if clean == "" {
			return nil, shared.NewDomainError("ranking", "NewScoreTable", shared.ErrEmptyValue, "score name is empty")
		}
		if _, isMetric := snapshot.ParseMetric(clean); isMetric || strings.HasPrefix(clean, deltaPrefix) {
			return nil, shared.NewDomainError("ranking", "NewScoreTable", shared.ErrInvalidInput,
				fmt.Sprintf("score name %q collides with a metric sort key", clean))
		}
		if _, dup := t.byName[clean]; dup {
			return nil, shared.NewDomainError("ranking", "NewScoreTable", shared.ErrInvalidInput,
				fmt.Sprintf("score %q defined twice", clean))
		}

		metricNames := make([]string, 0, len(weights[name]))
		for m := range weights[name] {
			metricNames = append(metricNames, m)
		}
		sort.Strings(metricNames)

		f := ScoreFormula{Name: clean}
		for _, mn := range metricNames {
			m, ok := snapshot.ParseMetric(mn)
			if !ok {
				return nil, shared.WrapError("ranking", "NewScoreTable", shared.ErrInvalidInput,
					fmt.Sprintf("score %q references unknown metric %q", clean, mn), shared.ErrInvalidMetric)
			}
			f.Weights = append(f.Weights, Weight{Metric: m, Factor: decimal.NewFromInt(weights[name][mn])})
		}

		t.byName[clean] = len(t.formulas)
		t.formulas = append(t.formulas, f)
	}
	return t, nil
}

// Names returns score names in sorted order.
func (t *ScoreTable) Names() []string {
	out := make([]string, len(t.formulas))
	for i, f := range t.formulas {
		out[i] = f.Name
	}
	return out
}

// Has reports whether a score with name exists.
func (t *ScoreTable) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Compute evaluates every formula over deltas.
func (t *ScoreTable) Compute(deltas snapshot.Metrics) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(t.formulas))
	for _, f := range t.formulas {
		out[f.Name] = f.Compute(deltas)
	}
	return out
}
