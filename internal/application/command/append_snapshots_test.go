package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/internal/infrastructure/messaging"
	"github.com/rokstats/rokstats/internal/infrastructure/persistence/memory"
)

func validInput(id, group string) SnapshotInput {
	return SnapshotInput{
		EntityID:   id,
		Kind:       "player",
		Group:      group,
		CapturedAt: "2024-03-01T12:00:00Z",
		Name:       "Governor " + id,
		Metrics: map[string]string{
			"power":    "123456789012345678901234567890",
			"t4_kills": "10",
		},
	}
}

func TestSnapshotInput_ToSnapshot(t *testing.T) {
	s, err := validInput("10000001", " 1001 ").ToSnapshot()
	require.NoError(t, err)

	assert.Equal(t, snapshot.KindPlayer, s.Kind)
	assert.Equal(t, "1001", s.Group)
	assert.Equal(t, "123456789012345678901234567890", s.Metric(snapshot.MetricPower).String())
	assert.Equal(t, "0", s.Metric(snapshot.MetricDeads).String())
}

func TestSnapshotInput_Rejects(t *testing.T) {
	cases := map[string]func(*SnapshotInput){
		"unknown kind":     func(in *SnapshotInput) { in.Kind = "alliance" },
		"bad timestamp":    func(in *SnapshotInput) { in.CapturedAt = "01/03/2024" },
		"unknown metric":   func(in *SnapshotInput) { in.Metrics["gold"] = "1" },
		"negative counter": func(in *SnapshotInput) { in.Metrics["deads"] = "-5" },
		"fraction":         func(in *SnapshotInput) { in.Metrics["deads"] = "1.5" },
		"not a number":     func(in *SnapshotInput) { in.Metrics["deads"] = "lots" },
		"missing entity":   func(in *SnapshotInput) { in.EntityID = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput("10000001", "1001")
			mutate(&in)
			_, err := in.ToSnapshot()
			assert.True(t, shared.IsValidation(err), "got %v", err)
		})
	}
}

func TestAppendSnapshots_StoresAndPublishes(t *testing.T) {
	repo := memory.NewSnapshotRepository()
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})

	var events []shared.SnapshotsAppendedEvent
	require.NoError(t, bus.Subscribe(shared.EventSnapshotsAppended, func(e shared.Event) error {
		events = append(events, e.(shared.SnapshotsAppendedEvent))
		return nil
	}))

	h := NewAppendSnapshotsHandler(repo, bus, nil)
	h.newID = func() string { return "batch-1" }

	res, err := h.Handle(context.Background(), AppendSnapshotsCommand{
		Snapshots: []SnapshotInput{
			validInput("10000001", "1002"),
			validInput("10000002", "1001"),
			validInput("10000003", "1001"),
		},
		CorrelationID: "req-7",
	})
	require.NoError(t, err)

	assert.Equal(t, "batch-1", res.BatchID)
	assert.Equal(t, 3, res.Appended)
	assert.Equal(t, map[string][]string{"player": {"1001", "1002"}}, res.Groups)
	assert.Equal(t, 3, repo.Len())

	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Count)
	assert.Equal(t, "req-7", events[0].CorrelationID)
	assert.Equal(t, res.Groups, events[0].Groups)
}

func TestAppendSnapshots_InvalidBatchStoresNothing(t *testing.T) {
	repo := memory.NewSnapshotRepository()
	h := NewAppendSnapshotsHandler(repo, nil, nil)

	bad := validInput("10000002", "1001")
	bad.Kind = ""

	_, err := h.Handle(context.Background(), AppendSnapshotsCommand{
		Snapshots: []SnapshotInput{validInput("10000001", "1001"), bad},
	})
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, 0, repo.Len())

	_, err = h.Handle(context.Background(), AppendSnapshotsCommand{})
	assert.True(t, shared.IsValidation(err))
}

func TestAppendSnapshots_StoreFailure(t *testing.T) {
	repo := memory.NewSnapshotRepository()
	repo.Err = errors.New("connection reset")
	h := NewAppendSnapshotsHandler(repo, nil, nil)

	_, err := h.Handle(context.Background(), AppendSnapshotsCommand{
		Snapshots: []SnapshotInput{validInput("10000001", "1001")},
	})
	assert.True(t, shared.IsStoreUnavailable(err))
}
