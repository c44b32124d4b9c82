package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokstats/rokstats/internal/domain/shared"
)

func validSnapshot() *Snapshot {
	return &Snapshot{
		EntityID:   "51234567",
		Kind:       KindPlayer,
		Group:      "2041",
		CapturedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Name:       "Governor",
		Metrics: Metrics{
			MetricPower: decimal.NewFromInt(1_000_000),
		},
	}
}

func TestSnapshot_Validate(t *testing.T) {
	assert.NoError(t, validSnapshot().Validate())

	s := validSnapshot()
	s.EntityID = " "
	assert.True(t, errors.Is(s.Validate(), shared.ErrInvalidEntity))

	s = validSnapshot()
	s.Kind = "alliance"
	assert.True(t, errors.Is(s.Validate(), shared.ErrInvalidKind))

	s = validSnapshot()
	s.CapturedAt = time.Time{}
	assert.True(t, shared.IsValidation(s.Validate()))

	s = validSnapshot()
	s.Metrics[MetricDeads] = decimal.NewFromInt(-1)
	assert.True(t, errors.Is(s.Validate(), shared.ErrNegativeValue))

	s = validSnapshot()
	s.Metrics[MetricDeads] = decimal.RequireFromString("1.5")
	assert.True(t, errors.Is(s.Validate(), shared.ErrInvalidFormat))

	s = validSnapshot()
	s.Metrics["mana"] = decimal.NewFromInt(1)
	assert.True(t, errors.Is(s.Validate(), shared.ErrInvalidMetric))
}

func TestMetrics_MissingReadsZero(t *testing.T) {
	s := validSnapshot()
	assert.True(t, s.Metric(MetricHelps).IsZero())

	var empty Metrics
	assert.True(t, empty.Get(MetricPower).IsZero())

	strs := s.Metrics.Strings()
	assert.Len(t, strs, len(AllMetrics))
	assert.Equal(t, "1000000", strs["power"])
	assert.Equal(t, "0", strs["helps"])
}

func TestParseMetrics(t *testing.T) {
	ms, err := ParseMetrics(map[string]string{
		"kill_points": "123456789012345678901234567890",
		"unknown":     "5",
	})
	require.NoError(t, err)
	assert.Len(t, ms, 1)
	assert.Equal(t, "123456789012345678901234567890", ms.Get(MetricKillPoints).String())

	_, err = ParseMetrics(map[string]string{"power": "lots"})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Players")
	require.NoError(t, err)
	assert.Equal(t, KindPlayer, k)

	k, err = ParseKind("kingdom")
	require.NoError(t, err)
	assert.Equal(t, KindKingdom, k)

	_, err = ParseKind("alliances")
	assert.True(t, shared.IsValidation(err))
}
