package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Append-only point-in-time statistics for players and kingdoms.
-- Counters are NUMERIC(38,0) so they never overflow 64 bits.
CREATE TABLE IF NOT EXISTS snapshots (
    id UUID PRIMARY KEY,
    seq BIGINT GENERATED ALWAYS AS IDENTITY,
    entity_kind VARCHAR(16) NOT NULL,
    entity_id VARCHAR(64) NOT NULL,
    group_id VARCHAR(64) NOT NULL DEFAULT '',
    captured_at TIMESTAMP WITH TIME ZONE NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    alliance TEXT NOT NULL DEFAULT '',

    power NUMERIC(38,0),
    kill_points NUMERIC(38,0),
    t1_kills NUMERIC(38,0),
    t2_kills NUMERIC(38,0),
    t3_kills NUMERIC(38,0),
    t4_kills NUMERIC(38,0),
    t5_kills NUMERIC(38,0),
    deads NUMERIC(38,0),
    rss_gathered NUMERIC(38,0),
    rss_assistance NUMERIC(38,0),
    helps NUMERIC(38,0),

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT chk_snapshots_kind CHECK (entity_kind IN ('player', 'kingdom'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_seq ON snapshots(seq);
CREATE INDEX IF NOT EXISTS idx_snapshots_group_time ON snapshots(entity_kind, group_id, captured_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_entity_time ON snapshots(entity_kind, entity_id, captured_at);
`

const migration001Down = `
DROP TABLE IF EXISTS snapshots;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE INGEST BATCHES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- One row per append call, referenced by the snapshots it inserted.
CREATE TABLE IF NOT EXISTS ingest_batches (
    id UUID PRIMARY KEY,
    snapshot_count INTEGER NOT NULL,
    received_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

ALTER TABLE snapshots ADD COLUMN IF NOT EXISTS batch_id UUID REFERENCES ingest_batches(id);
CREATE INDEX IF NOT EXISTS idx_snapshots_batch ON snapshots(batch_id);
`

const migration002Down = `
DROP INDEX IF EXISTS idx_snapshots_batch;
ALTER TABLE snapshots DROP COLUMN IF EXISTS batch_id;
DROP TABLE IF EXISTS ingest_batches;
`

// GetMigrations returns all migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_snapshots",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_ingest_batches",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}
