package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokstats/rokstats/config"
)

const snapshotFile = `[
  {"entity_id": "10000001", "kind": "player", "group": "1001", "captured_at": "2024-03-01T12:00:00Z",
   "name": "Alpha", "metrics": {"t4_kills": "100", "t5_kills": "10", "deads": "5", "power": "1000000000"}},
  {"entity_id": "10000001", "kind": "player", "group": "1001", "captured_at": "2024-03-05T12:00:00Z",
   "name": "Alpha", "metrics": {"t4_kills": "110", "t5_kills": "20", "deads": "6", "power": "1500000000"}},
  {"entity_id": "10000002", "kind": "player", "group": "1001", "captured_at": "2024-03-01T12:00:00Z",
   "name": "Bravo", "metrics": {"power": "5000000000"}},
  {"entity_id": "10000002", "kind": "player", "group": "1001", "captured_at": "2024-03-05T12:00:00Z",
   "name": "Bravo", "metrics": {"t4_kills": "50", "power": "4000000000"}}
]`

func writeSnapshots(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshots.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunRank_FromFile(t *testing.T) {
	var out bytes.Buffer
	err := runRank(context.Background(), &out, config.New(), rankOptions{
		kind:      "player",
		group:     "1001",
		sortKey:   "dkp",
		page:      1,
		compact:   true,
		dashboard: true,
		input:     writeSnapshots(t, snapshotFile),
	})
	require.NoError(t, err)

	text := out.String()
	assert.Less(t, strings.Index(text, "Bravo"), strings.Index(text, "Alpha"), "Bravo has the higher DKP")
	assert.Contains(t, text, "480")
	assert.Contains(t, text, "page 1/1, 2 entities")
	assert.Contains(t, text, "kingdom 1001, power (2 entities)")
	assert.Contains(t, text, "5.5B")
}

func TestRunRank_WrappedFile(t *testing.T) {
	var out bytes.Buffer
	err := runRank(context.Background(), &out, config.New(), rankOptions{
		kind:  "player",
		group: "1001",
		page:  1,
		input: writeSnapshots(t, `{"snapshots": `+snapshotFile+`}`),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "4,000,000,000")
}

func TestRunRank_PlayersNeedGroup(t *testing.T) {
	var out bytes.Buffer
	err := runRank(context.Background(), &out, config.New(), rankOptions{
		kind:  "player",
		page:  1,
		input: writeSnapshots(t, snapshotFile),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known kingdoms: 1001")
}

func TestRunRank_RejectsBadInput(t *testing.T) {
	var out bytes.Buffer

	err := runRank(context.Background(), &out, config.New(), rankOptions{
		kind:  "player",
		group: "1001",
		input: writeSnapshots(t, `[{"entity_id": "10000001", "kind": "player", "group": "1001",
			"captured_at": "2024-03-01T12:00:00Z", "metrics": {"gold": "1"}}]`),
	})
	assert.Error(t, err)

	err = runRank(context.Background(), &out, config.New(), rankOptions{
		kind:  "alliance",
		input: writeSnapshots(t, snapshotFile),
	})
	assert.Error(t, err)
}
