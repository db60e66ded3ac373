package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgelink/internal/schema"
)

func TestQueuePublishAndRun(t *testing.T) {
	q := NewQueue(4)

	require.NoError(t, q.TryPublish(Event{Header: schema.EventHeader{Type: schema.EventLocalExecution, Seq: 1}}))
	require.NoError(t, q.TryPublish(Event{Header: schema.EventHeader{Type: schema.EventRemoteNotification, Seq: 2}}))
	q.Close()

	var seen []uint64
	q.Run(context.Background(), func(e Event) {
		seen = append(seen, e.Header.Seq)
	})
	assert.Equal(t, []uint64{1, 2}, seen)
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1)

	require.NoError(t, q.TryPublish(Event{}))
	assert.ErrorIs(t, q.TryPublish(Event{}), ErrQueueFull)
}

func TestQueueClosed(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.TryPublish(Event{}), ErrQueueClosed)
}

func TestQueueRunStopsOnContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q.Run(ctx, func(Event) { t.Fatal("handler should not run") })
}
