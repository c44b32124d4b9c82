// Package query contains read operations (CQRS - Queries).
//
// Every handler loads snapshots from the store, runs the ranking engine and
// maps its output into DTOs whose counters are decimal strings and whose
// timestamps are RFC 3339 in UTC.
package query

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/ranking"
	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTOs
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotDTO is one stored snapshot.
type SnapshotDTO struct {
	EntityID   string            `json:"entity_id"`
	Kind       string            `json:"kind"`
	Group      string            `json:"group,omitempty"`
	CapturedAt string            `json:"captured_at"`
	Name       string            `json:"name"`
	Alliance   string            `json:"alliance,omitempty"`
	Metrics    map[string]string `json:"metrics"`
}

// RecordDTO is one ranked entity.
type RecordDTO struct {
	Rank     int    `json:"rank"`
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`
	Group    string `json:"group,omitempty"`
	Name     string `json:"name"`
	Alliance string `json:"alliance,omitempty"`

	// StartAt and EndAt are the capture times of the boundary snapshots.
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`

	// Metrics are the end snapshot counters.
	Metrics map[string]string `json:"metrics"`
	Deltas  map[string]string `json:"deltas"`
	Scores  map[string]string `json:"scores"`
}

// PageDTO describes the position of a page in the filtered list.
type PageDTO struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// SortDTO echoes the effective ordering.
type SortDTO struct {
	Key       string `json:"key"`
	Direction string `json:"direction"`

	// Requested is the caller's key when it was unknown and replaced.
	Requested string `json:"requested,omitempty"`
	Fallback  bool   `json:"fallback"`
}

// WindowDTO echoes the resolved window. Nil bounds are open.
type WindowDTO struct {
	Start *string `json:"start"`
	End   *string `json:"end"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MAPPERS
// ══════════════════════════════════════════════════════════════════════════════

// FormatTime renders t as RFC 3339 in UTC, keeping any fractional seconds.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatScores(scores map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(scores))
	for name, v := range scores {
		out[name] = v.String()
	}
	return out
}

func toSnapshotDTO(s *snapshot.Snapshot) *SnapshotDTO {
	if s == nil {
		return nil
	}
	return &SnapshotDTO{
		EntityID:   s.EntityID,
		Kind:       s.Kind.String(),
		Group:      s.Group,
		CapturedAt: FormatTime(s.CapturedAt),
		Name:       s.Name,
		Alliance:   s.Alliance,
		Metrics:    s.Metrics.Strings(),
	}
}

func toRecordDTO(r *ranking.Record) RecordDTO {
	return RecordDTO{
		Rank:     r.Rank,
		EntityID: r.EntityID,
		Kind:     r.Kind.String(),
		Group:    r.Group,
		Name:     r.Name,
		Alliance: r.Alliance,
		StartAt:  FormatTime(r.Start.CapturedAt),
		EndAt:    FormatTime(r.End.CapturedAt),
		Metrics:  r.End.Metrics.Strings(),
		Deltas:   r.Deltas.Strings(),
		Scores:   formatScores(r.Scores),
	}
}

func toWindowDTO(w shared.Window) WindowDTO {
	var dto WindowDTO
	if w.Start != nil {
		s := FormatTime(*w.Start)
		dto.Start = &s
	}
	if w.End != nil {
		e := FormatTime(*w.End)
		dto.End = &e
	}
	return dto
}
