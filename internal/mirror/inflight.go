package mirror

import "sync"

// InFlight tracks the native ids of mirror-close orders between
// submission and fill. The resulting fill events are acknowledgements
// of a remote closure, not new user-initiated closures, so the
// ingestion path consumes the id instead of reclassifying the fill.
type InFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewInFlight creates an empty set.
func NewInFlight() *InFlight {
	return &InFlight{ids: make(map[string]struct{})}
}

// Add records a submitted mirror-close order id.
func (f *InFlight) Add(orderID string) {
	if orderID == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[orderID] = struct{}{}
}

// Take consumes an id, reporting whether it was in flight. At most one
// caller observes true for a given id.
func (f *InFlight) Take(orderID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[orderID]; !ok {
		return false
	}
	delete(f.ids, orderID)
	return true
}

// Contains reports whether an id is in flight without consuming it.
func (f *InFlight) Contains(orderID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ids[orderID]
	return ok
}

// Len returns the number of in-flight orders.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}
