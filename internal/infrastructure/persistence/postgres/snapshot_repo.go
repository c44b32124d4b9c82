package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements snapshot.Repository using PostgreSQL.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

var _ snapshot.Repository = (*SnapshotRepository)(nil)

// Metric column names equal metric names. They are fixed identifiers,
// never user input.
var (
	metricColumns = func() []string {
		cols := make([]string, len(snapshot.AllMetrics))
		for i, m := range snapshot.AllMetrics {
			cols[i] = string(m)
		}
		return cols
	}()

	// selectColumns reads counters as text so they round-trip through decimal.
	selectColumns = func() string {
		cols := []string{"entity_id", "entity_kind", "group_id", "captured_at", "name", "alliance"}
		for _, c := range metricColumns {
			cols = append(cols, c+"::text")
		}
		return strings.Join(cols, ", ")
	}()

	insertSnapshotSQL = func() string {
		cols := []string{"id", "batch_id", "entity_kind", "entity_id", "group_id", "captured_at", "name", "alliance"}
		cols = append(cols, metricColumns...)

		placeholders := make([]string, len(cols))
		for i := range cols {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			if i >= 8 {
				placeholders[i] += "::numeric"
			}
		}
		return fmt.Sprintf("INSERT INTO snapshots (%s) VALUES (%s)",
			strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	}()
)

// ListByGroup returns every snapshot of a group inside the window.
func (r *SnapshotRepository) ListByGroup(ctx context.Context, kind snapshot.Kind, group string, window shared.Window) ([]*snapshot.Snapshot, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM snapshots
		WHERE entity_kind = $1
		  AND group_id = $2
		  AND ($3::timestamptz IS NULL OR captured_at >= $3)
		  AND ($4::timestamptz IS NULL OR captured_at <= $4)
		ORDER BY entity_id, captured_at, seq
	`

	rows, err := r.conn.Query(ctx, query, string(kind), group, window.Start, window.End)
	if err != nil {
		return nil, shared.StoreUnavailable("ListByGroup", err)
	}
	defer rows.Close()

	return r.scanSnapshots("ListByGroup", rows)
}

// ListByEntity returns every snapshot of one entity inside the window.
func (r *SnapshotRepository) ListByEntity(ctx context.Context, kind snapshot.Kind, entityID string, window shared.Window) ([]*snapshot.Snapshot, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM snapshots
		WHERE entity_kind = $1
		  AND entity_id = $2
		  AND ($3::timestamptz IS NULL OR captured_at >= $3)
		  AND ($4::timestamptz IS NULL OR captured_at <= $4)
		ORDER BY captured_at, seq
	`

	rows, err := r.conn.Query(ctx, query, string(kind), entityID, window.Start, window.End)
	if err != nil {
		return nil, shared.StoreUnavailable("ListByEntity", err)
	}
	defer rows.Close()

	return r.scanSnapshots("ListByEntity", rows)
}

// ListLatestByGroup returns the perEntity most recent snapshots of each
// entity in a group, oldest first.
func (r *SnapshotRepository) ListLatestByGroup(ctx context.Context, kind snapshot.Kind, group string, perEntity int) ([]*snapshot.Snapshot, error) {
	if perEntity <= 0 {
		perEntity = 2
	}

	query := `
		SELECT ` + selectColumns + `
		FROM (
			SELECT s.*,
			       ROW_NUMBER() OVER (PARTITION BY entity_id ORDER BY captured_at DESC, seq DESC) AS rn
			FROM snapshots s
			WHERE entity_kind = $1 AND group_id = $2
		) latest
		WHERE rn <= $3
		ORDER BY entity_id, captured_at, seq
	`

	rows, err := r.conn.Query(ctx, query, string(kind), group, perEntity)
	if err != nil {
		return nil, shared.StoreUnavailable("ListLatestByGroup", err)
	}
	defer rows.Close()

	return r.scanSnapshots("ListLatestByGroup", rows)
}

// ListGroups returns the distinct non-empty groups for a kind.
func (r *SnapshotRepository) ListGroups(ctx context.Context, kind snapshot.Kind) ([]string, error) {
	query := `
		SELECT DISTINCT group_id
		FROM snapshots
		WHERE entity_kind = $1 AND group_id <> ''
		ORDER BY group_id
	`

	rows, err := r.conn.Query(ctx, query, string(kind))
	if err != nil {
		return nil, shared.StoreUnavailable("ListGroups", err)
	}
	defer rows.Close()

	groups := make([]string, 0)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, shared.StoreUnavailable("ListGroups", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StoreUnavailable("ListGroups", err)
	}

	return groups, nil
}

// Append inserts a batch of snapshots in one transaction.
func (r *SnapshotRepository) Append(ctx context.Context, batchID string, snaps []*snapshot.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	bid, err := uuid.Parse(batchID)
	if err != nil {
		return shared.WrapError("snapshot", "Append", shared.ErrInvalidID, "batch id must be a UUID", err)
	}

	err = r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ingest_batches (id, snapshot_count) VALUES ($1, $2)`,
			bid, len(snaps),
		); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		batch := &pgx.Batch{}
		for _, s := range snaps {
			args := make([]any, 0, 8+len(metricColumns))
			args = append(args,
				uuid.New(),
				bid,
				string(s.Kind),
				s.EntityID,
				s.Group,
				s.CapturedAt.UTC(),
				s.Name,
				s.Alliance,
			)
			for _, m := range snapshot.AllMetrics {
				if v, ok := s.Metrics[m]; ok {
					args = append(args, v.String())
				} else {
					args = append(args, nil)
				}
			}
			batch.Queue(insertSnapshotSQL, args...)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()

		for i := range snaps {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("insert snapshot %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return appendError(err)
	}

	return nil
}

// appendError maps a failed append. A replayed batch id is a conflict,
// not an outage, so it does not count against the store breaker.
func appendError(err error) error {
	if IsUniqueViolation(err) {
		return shared.WrapError("snapshot", "Append", shared.ErrConflict, "batch already stored", err)
	}
	return shared.StoreUnavailable("Append", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

// scanSnapshots scans rows produced by selectColumns.
func (r *SnapshotRepository) scanSnapshots(op string, rows pgx.Rows) ([]*snapshot.Snapshot, error) {
	snaps := make([]*snapshot.Snapshot, 0)

	for rows.Next() {
		var (
			s          snapshot.Snapshot
			kind       string
			capturedAt time.Time
		)
		counters := make([]*string, len(metricColumns))

		dest := []any{&s.EntityID, &kind, &s.Group, &capturedAt, &s.Name, &s.Alliance}
		for i := range counters {
			dest = append(dest, &counters[i])
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, shared.StoreUnavailable(op, err)
		}

		s.Kind = snapshot.Kind(kind)
		s.CapturedAt = capturedAt.UTC()
		s.Metrics = make(snapshot.Metrics, len(counters))
		for i, raw := range counters {
			if raw == nil {
				continue
			}
			v, err := decimal.NewFromString(*raw)
			if err != nil {
				return nil, shared.StoreUnavailable(op, fmt.Errorf("column %s: %w", metricColumns[i], err))
			}
			s.Metrics[snapshot.AllMetrics[i]] = v
		}

		snaps = append(snaps, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, shared.StoreUnavailable(op, err)
	}

	return snaps, nil
}
