package snapshot

import (
	"github.com/shopspring/decimal"
)

// Metric is the name of a counter tracked in a snapshot.
type Metric string

const (
	MetricPower         Metric = "power"
	MetricKillPoints    Metric = "kill_points"
	MetricT1Kills       Metric = "t1_kills"
	MetricT2Kills       Metric = "t2_kills"
	MetricT3Kills       Metric = "t3_kills"
	MetricT4Kills       Metric = "t4_kills"
	MetricT5Kills       Metric = "t5_kills"
	MetricDeads         Metric = "deads"
	MetricRSSGathered   Metric = "rss_gathered"
	MetricRSSAssistance Metric = "rss_assistance"
	MetricHelps         Metric = "helps"
)

// AllMetrics lists every counter in storage column order.
var AllMetrics = []Metric{
	MetricPower,
	MetricKillPoints,
	MetricT1Kills,
	MetricT2Kills,
	MetricT3Kills,
	MetricT4Kills,
	MetricT5Kills,
	MetricDeads,
	MetricRSSGathered,
	MetricRSSAssistance,
	MetricHelps,
}

var knownMetrics = func() map[Metric]struct{} {
	m := make(map[Metric]struct{}, len(AllMetrics))
	for _, metric := range AllMetrics {
		m[metric] = struct{}{}
	}
	return m
}()

// IsValid checks that the metric is a known counter.
func (m Metric) IsValid() bool {
	_, ok := knownMetrics[m]
	return ok
}

// String returns the string representation.
func (m Metric) String() string {
	return string(m)
}

// ParseMetric returns the metric named s and whether it exists.
func ParseMetric(s string) (Metric, bool) {
	m := Metric(s)
	return m, m.IsValid()
}

// Metrics is a set of counter values keyed by metric.
type Metrics map[Metric]decimal.Decimal

// Get returns the value of m, zero when absent.
func (ms Metrics) Get(m Metric) decimal.Decimal {
	if ms == nil {
		return decimal.Zero
	}
	v, ok := ms[m]
	if !ok {
		return decimal.Zero
	}
	return v
}

// Strings renders all known metrics as decimal strings.
func (ms Metrics) Strings() map[string]string {
	out := make(map[string]string, len(AllMetrics))
	for _, m := range AllMetrics {
		out[m.String()] = ms.Get(m).String()
	}
	return out
}

// ParseMetrics builds Metrics from decimal strings, skipping unknown names.
func ParseMetrics(raw map[string]string) (Metrics, error) {
	out := make(Metrics, len(raw))
	for name, value := range raw {
		m, ok := ParseMetric(name)
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, err
		}
		out[m] = d
	}
	return out, nil
}
