package eventhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/infrastructure/messaging"
)

type recordingInvalidator struct {
	calls []map[string][]string
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, groups map[string][]string) (int, error) {
	r.calls = append(r.calls, groups)
	if r.err != nil {
		return 0, r.err
	}
	return len(groups), nil
}

func TestOnSnapshotsAppended_InvalidatesTouchedGroups(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewOnSnapshotsAppendedHandler(inv, nil, nil)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	require.NoError(t, h.Subscribe(bus))

	groups := map[string][]string{"player": {"1001", "1002"}}
	require.NoError(t, bus.Publish(shared.NewSnapshotsAppendedEvent("batch-1", groups, 4)))

	require.Len(t, inv.calls, 1)
	assert.Equal(t, groups, inv.calls[0])
}

func TestOnSnapshotsAppended_ReportsCacheFailure(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis: connection refused")}
	h := NewOnSnapshotsAppendedHandler(inv, nil, nil)

	err := h.Handle(shared.NewSnapshotsAppendedEvent("batch-2", map[string][]string{"kingdom": {""}}, 1))
	assert.ErrorContains(t, err, "batch-2")
}
