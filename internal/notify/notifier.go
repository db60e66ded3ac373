// Package notify emits entry and closure messages to the hedge venue.
// It is a thin layer over the transport that adds send deduplication
// and sequence numbering; delivery retries belong to the transport.
package notify

import (
	"context"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hedgelink/internal/schema"
)

// Transport delivers outbound messages to the hedge venue.
type Transport interface {
	SendEntry(ctx context.Context, msg schema.EntryMessage) error
	SendClosure(ctx context.Context, msg schema.CloseMessage) error
}

// SentGuard deduplicates outbound sends per execution id.
type SentGuard interface {
	MarkSent(executionID string) bool
}

// Notifier stamps outgoing messages with monotonic sequence numbers
// and guarantees one entry message per execution.
type Notifier struct {
	transport Transport
	sent      SentGuard
	seq       atomic.Uint64
}

// NewNotifier creates a notifier over a transport.
func NewNotifier(transport Transport, sent SentGuard) *Notifier {
	return &Notifier{transport: transport, sent: sent}
}

// SendEntry emits one entry message for an execution. Repeat calls for
// the same execution id are skipped, so multiple trigger paths still
// produce a single message. The sent marker is set before delivery;
// the channel is at-least-once, so a lost message is redelivered by
// the transport rather than re-sent here.
func (n *Notifier) SendEntry(ctx context.Context, executionID string, msg schema.EntryMessage) error {
	if !n.sent.MarkSent(executionID) {
		logs.Infof("notify: entry already sent, executionId: %s, baseId: %s", executionID, msg.BaseID)
		return nil
	}

	msg.Seq = n.seq.Add(1)
	if err := n.transport.SendEntry(ctx, msg); err != nil {
		return errors.Wrapf(err, "send entry, baseId: %s", msg.BaseID)
	}
	logs.Infof("notify: entry sent, baseId: %s, qty: %d, seq: %d", msg.BaseID, msg.Quantity, msg.Seq)
	return nil
}

// SendClosure emits one closure message.
func (n *Notifier) SendClosure(ctx context.Context, msg schema.CloseMessage) error {
	msg.Seq = n.seq.Add(1)
	if err := n.transport.SendClosure(ctx, msg); err != nil {
		return errors.Wrapf(err, "send closure, baseId: %s", msg.BaseID)
	}
	logs.Infof("notify: closure sent, baseId: %s, qty: %d, ticket: %d, seq: %d", msg.BaseID, msg.Quantity, msg.Ticket, msg.Seq)
	return nil
}

// Seq returns the last assigned sequence number.
func (n *Notifier) Seq() uint64 {
	return n.seq.Load()
}
