// Package dedup provides the idempotence layer over inbound and
// outbound message identifiers.
//
// Three independent namespaces are tracked: processed local execution
// ids, sent-to-remote markers, and remote notification keys. Membership
// is monotonic for the life of the process; entries are never evicted.
package dedup

import (
	"fmt"
	"sync"
	"sync/atomic"

	"hedgelink/internal/schema"
)

const sentPrefix = "SENT_"

// Guard is the idempotence layer. Each namespace has its own lock so a
// burst of remote notifications cannot stall execution processing.
type Guard struct {
	execMu sync.Mutex
	execs  map[string]struct{}

	sendMu sync.Mutex
	sends  map[string]struct{}

	notifMu sync.Mutex
	notifs  map[string]struct{}

	duplicates uint64
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{
		execs:  make(map[string]struct{}),
		sends:  make(map[string]struct{}),
		notifs: make(map[string]struct{}),
	}
}

// MarkExecution records a local execution id. It returns false when the
// id was already processed.
func (g *Guard) MarkExecution(executionID string) bool {
	if executionID == "" {
		return true
	}
	g.execMu.Lock()
	defer g.execMu.Unlock()
	if _, ok := g.execs[executionID]; ok {
		atomic.AddUint64(&g.duplicates, 1)
		return false
	}
	g.execs[executionID] = struct{}{}
	return true
}

// MarkSent records that the entry message for an execution was handed
// to the transport. It returns false when it was already sent.
func (g *Guard) MarkSent(executionID string) bool {
	g.sendMu.Lock()
	defer g.sendMu.Unlock()
	key := sentPrefix + executionID
	if _, ok := g.sends[key]; ok {
		atomic.AddUint64(&g.duplicates, 1)
		return false
	}
	g.sends[key] = struct{}{}
	return true
}

// MarkNotification records a remote notification. The key combines the
// event type, base id and the remote ticket when present, falling back
// to the message id so sequential closes of the same group are not
// dropped. It returns false for duplicates.
func (g *Guard) MarkNotification(n schema.RemoteNotification) bool {
	suffix := n.MessageID
	if n.Ticket > 0 {
		suffix = fmt.Sprintf("%d", n.Ticket)
	}
	key := fmt.Sprintf("%s_%s_%s", n.Event, n.BaseID, suffix)

	g.notifMu.Lock()
	defer g.notifMu.Unlock()
	if _, ok := g.notifs[key]; ok {
		atomic.AddUint64(&g.duplicates, 1)
		return false
	}
	g.notifs[key] = struct{}{}
	return true
}

// Duplicates returns the number of duplicate events skipped so far.
func (g *Guard) Duplicates() uint64 {
	return atomic.LoadUint64(&g.duplicates)
}
