package correlation

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgelink/pkg/exception"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		assert.Len(t, id, len(idPrefix)+idHexLen)
		assert.Len(t, id, 20)
		assert.True(t, strings.HasPrefix(id, "TRD_"))
		_, dup := seen[id]
		assert.False(t, dup, "generated duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestBindRoundTrip(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Bind("TRD_1", "order-1"))

	id, ok := r.LookupByOrder("order-1")
	require.True(t, ok)
	assert.Equal(t, "TRD_1", id)

	// Idempotent for the identical pair.
	require.NoError(t, r.Bind("TRD_1", "order-1"))
}

func TestBindFirstWins(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Bind("TRD_1", "order-1"))
	err := r.Bind("TRD_2", "order-1")
	assert.ErrorIs(t, err, exception.ErrCorrelationConflict)

	id, ok := r.LookupByOrder("order-1")
	require.True(t, ok)
	assert.Equal(t, "TRD_1", id)
	assert.Equal(t, uint64(1), r.RejectedBinds())
}

func TestTicketRoundTrip(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.BindRemoteTicket("TRD_1", 9001))

	id, ok := r.LookupByTicket(9001)
	require.True(t, ok)
	assert.Equal(t, "TRD_1", id)

	ticket, ok := r.TicketForID("TRD_1")
	require.True(t, ok)
	assert.Equal(t, uint64(9001), ticket)
}

func TestTicketForIDRetriesBehindBinding(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Bind after the first lookup attempt has likely failed.
		r.BindRemoteTicket("TRD_1", 42)
	}()

	ticket, ok := r.TicketForID("TRD_1")
	wg.Wait()
	require.True(t, ok)
	assert.Equal(t, uint64(42), ticket)
}

func TestTicketForIDGivesUp(t *testing.T) {
	r := NewRegistry()

	_, ok := r.TicketForID("TRD_missing")
	assert.False(t, ok)
}

func TestPrune(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Bind("TRD_1", "order-1"))
	require.NoError(t, r.BindRemoteTicket("TRD_1", 9001))

	r.Prune("TRD_1")

	_, ok := r.LookupByOrder("order-1")
	assert.False(t, ok)
	_, ok = r.LookupByTicket(9001)
	assert.False(t, ok)

	// Pruning twice is a no-op.
	r.Prune("TRD_1")
}
