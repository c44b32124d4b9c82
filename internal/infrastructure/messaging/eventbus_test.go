package messaging

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokstats/rokstats/internal/domain/shared"
)

func appendedEvent() shared.Event {
	return shared.NewSnapshotsAppendedEvent("batch-1", map[string][]string{"player": {"1001"}}, 3)
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})

	var got []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventSnapshotsAppended, func(e shared.Event) error {
		got = append(got, e)
		return nil
	}))

	require.NoError(t, bus.Publish(appendedEvent()))
	require.Len(t, got, 1)

	ev, ok := got[0].(shared.SnapshotsAppendedEvent)
	require.True(t, ok)
	assert.Equal(t, 3, ev.Count)
	assert.Equal(t, "batch-1", ev.AggregateID())
}

func TestInMemoryEventBus_AsyncDeliveryAndClose(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Subscribe(shared.EventSnapshotsAppended, func(shared.Event) error {
			calls.Add(1)
			return nil
		}))
	}

	require.NoError(t, bus.Publish(appendedEvent()))
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(3), calls.Load())
	assert.ErrorIs(t, bus.Publish(appendedEvent()), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventSnapshotsAppended, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})

	require.NoError(t, bus.Subscribe(shared.EventSnapshotsAppended, func(shared.Event) error {
		return errors.New("redis down")
	}))
	require.NoError(t, bus.Subscribe(shared.EventSnapshotsAppended, func(shared.Event) error {
		panic("boom")
	}))

	assert.NoError(t, bus.Publish(appendedEvent()))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}
