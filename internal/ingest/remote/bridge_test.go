package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgelink/internal/schema"
)

func parseRaw(t *testing.T, payload string) bridgeNotification {
	t.Helper()
	var raw bridgeNotification
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))
	return raw
}

func TestToNotification(t *testing.T) {
	raw := parseRaw(t, `{
		"event_type": "HEDGE_CLOSED",
		"base_id": "TRD_0a1b2c3d4e5f6071",
		"ticket": 123456,
		"quantity": "2.00",
		"closure_reason": "MANUAL_MT5_CLOSE",
		"message_id": "msg-1",
		"instrument": "NAS100",
		"timestamp": 1700000000000
	}`)

	n, ok := toNotification(raw)
	require.True(t, ok)
	assert.Equal(t, schema.RemoteHedgeClosed, n.Event)
	assert.Equal(t, "TRD_0a1b2c3d4e5f6071", n.BaseID)
	assert.Equal(t, uint64(123456), n.Ticket)
	assert.Equal(t, schema.Quantity(2), n.Quantity)
	assert.Equal(t, "MANUAL_MT5_CLOSE", n.Reason)
	assert.Equal(t, "NAS100", n.Instrument)
}

func TestToNotificationRejectsFractionalQuantity(t *testing.T) {
	raw := parseRaw(t, `{"event_type": "HEDGE_CLOSED", "base_id": "TRD_1", "quantity": "1.5"}`)
	_, ok := toNotification(raw)
	assert.False(t, ok)
}

func TestToNotificationRejectsUnknownEvent(t *testing.T) {
	raw := parseRaw(t, `{"event_type": "HEARTBEAT", "base_id": "TRD_1"}`)
	_, ok := toNotification(raw)
	assert.False(t, ok)
}

func TestParseEventType(t *testing.T) {
	assert.Equal(t, schema.RemoteHedgeOpened, parseEventType("HEDGE_OPENED"))
	assert.Equal(t, schema.RemoteHedgeClosed, parseEventType("hedge_closed"))
	assert.Equal(t, schema.RemoteCloseNotification, parseEventType("MT5_CLOSE_NOTIFICATION"))
	assert.Equal(t, schema.RemoteUnknown, parseEventType("PING"))
}
