// Package snapshot contains the domain model of timestamped entity statistics.
// Snapshots are append-only: once captured they are never mutated.
package snapshot

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind identifies what a snapshot describes.
type Kind string

const (
	// KindPlayer is a governor inside a kingdom. Its group is the kingdom id.
	KindPlayer Kind = "player"

	// KindKingdom is a whole kingdom. Kingdoms share a single empty group.
	KindKingdom Kind = "kingdom"
)

// IsValid checks that the kind is known.
func (k Kind) IsValid() bool {
	return k == KindPlayer || k == KindKingdom
}

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// ParseKind parses a kind, accepting plural forms used in URLs.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player", "players":
		return KindPlayer, nil
	case "kingdom", "kingdoms":
		return KindKingdom, nil
	default:
		return "", shared.ErrInvalidKind
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is the state of one entity's counters at CapturedAt.
type Snapshot struct {
	// EntityID is the stable numeric identifier of the player or kingdom.
	EntityID string

	// Kind tells whether EntityID is a player or a kingdom.
	Kind Kind

	// Group is the listing scope: the kingdom id for players, empty for kingdoms.
	Group string

	// CapturedAt is when the statistics were recorded. Values may repeat.
	CapturedAt time.Time

	// Name is the display name at capture time.
	Name string

	// Alliance is the alliance tag at capture time (players only).
	Alliance string

	// Metrics holds the counters. Missing entries read as zero.
	Metrics Metrics
}

// Metric returns the value of a counter, zero when absent.
func (s *Snapshot) Metric(m Metric) decimal.Decimal {
	return s.Metrics.Get(m)
}

// Validate checks the invariants of a snapshot before it is appended.
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.EntityID) == "" {
		return shared.ErrInvalidEntity
	}
	if !s.Kind.IsValid() {
		return shared.ErrInvalidKind
	}
	if s.CapturedAt.IsZero() {
		return shared.NewDomainError("snapshot", "Validate", shared.ErrEmptyValue, "captured_at is required")
	}
	for m, v := range s.Metrics {
		if !m.IsValid() {
			return shared.ErrInvalidMetric
		}
		if v.IsNegative() {
			return shared.NewDomainError("snapshot", "Validate", shared.ErrNegativeValue, "metric "+m.String()+" is negative")
		}
		if !v.Equal(v.Truncate(0)) {
			return shared.NewDomainError("snapshot", "Validate", shared.ErrInvalidFormat, "metric "+m.String()+" must be a whole number")
		}
	}
	return nil
}
