// Package correlation maintains the bidirectional maps between the
// shared base id and each venue's native identifiers.
package correlation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hedgelink/pkg/exception"
)

const (
	idPrefix  = "TRD_"
	idHexLen  = 16
	retryMax  = 3
	retryWait = 5 * time.Millisecond
)

// GenerateID returns a short collision-resistant base id. The fixed
// 20-char length keeps it inside the hedge venue's comment field limit.
func GenerateID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return idPrefix + hex[:idHexLen]
}

// Registry holds base id <-> local order id and base id <-> remote
// ticket mappings. All maps are guarded by one mutex; operations are
// pure in-memory lookups.
type Registry struct {
	mu            sync.Mutex
	idToOrder     map[string]string
	orderToID     map[string]string
	idToTicket    map[string]uint64
	ticketToID    map[uint64]string
	rejectedBinds uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		idToOrder:  make(map[string]string),
		orderToID:  make(map[string]string),
		idToTicket: make(map[string]uint64),
		ticketToID: make(map[uint64]string),
	}
}

// Bind associates a base id with a local order id. Rebinding the same
// pair is a no-op. A local order id already bound to a different base
// id is rejected: one order, one correlation id, first binding wins.
func (r *Registry) Bind(id, orderID string) error {
	if id == "" || orderID == "" {
		return exception.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.orderToID[orderID]; ok {
		if existing == id {
			return nil
		}
		r.rejectedBinds++
		return exception.ErrCorrelationConflict
	}
	r.orderToID[orderID] = id
	r.idToOrder[id] = orderID
	return nil
}

// LookupByOrder returns the base id bound to a local order id.
func (r *Registry) LookupByOrder(orderID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.orderToID[orderID]
	return id, ok
}

// BindRemoteTicket associates a base id with the hedge venue's ticket.
// Tickets may bind later than id creation; rebinding the same pair is a
// no-op and the first ticket wins on conflict.
func (r *Registry) BindRemoteTicket(id string, ticket uint64) error {
	if id == "" || ticket == 0 {
		return exception.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.idToTicket[id]; ok {
		if existing == ticket {
			return nil
		}
		r.rejectedBinds++
		return exception.ErrCorrelationConflict
	}
	r.idToTicket[id] = ticket
	r.ticketToID[ticket] = id
	return nil
}

// LookupByTicket returns the base id bound to a remote ticket.
func (r *Registry) LookupByTicket(ticket uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ticketToID[ticket]
	return id, ok
}

// TicketForID returns the remote ticket for a base id. Ticket binding
// races behind id creation, so the lookup retries a few times with a
// short delay before giving up. A missing ticket is not fatal; callers
// fall back to comment matching on the venue side.
func (r *Registry) TicketForID(id string) (uint64, bool) {
	for attempt := 0; attempt < retryMax; attempt++ {
		r.mu.Lock()
		ticket, ok := r.idToTicket[id]
		r.mu.Unlock()
		if ok && ticket > 0 {
			return ticket, true
		}
		if attempt < retryMax-1 {
			time.Sleep(retryWait)
		}
	}
	return 0, false
}

// Prune removes every mapping owned by a base id. Called when the
// owning trade group is removed from the ledger.
func (r *Registry) Prune(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if orderID, ok := r.idToOrder[id]; ok {
		delete(r.orderToID, orderID)
		delete(r.idToOrder, id)
	}
	if ticket, ok := r.idToTicket[id]; ok {
		delete(r.ticketToID, ticket)
		delete(r.idToTicket, id)
	}
}

// RejectedBinds returns the number of conflicting bind attempts.
func (r *Registry) RejectedBinds() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejectedBinds
}
