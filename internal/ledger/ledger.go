// Package ledger tracks per-base-id aggregate quantity and closure
// state for every trade mirrored to the hedge venue.
package ledger

import (
	"sync"
	"time"

	"hedgelink/internal/schema"
	"hedgelink/pkg/exception"
)

// GroupState tracks the lifecycle of a trade group.
type GroupState uint16

const (
	GroupStateUnknown GroupState = iota
	GroupStateOpen
	GroupStatePartiallyClosing
	GroupStateFullyClosed
	GroupStatePendingRemoval
	GroupStateRemoved
)

func (s GroupState) String() string {
	switch s {
	case GroupStateOpen:
		return "open"
	case GroupStatePartiallyClosing:
		return "partially_closing"
	case GroupStateFullyClosed:
		return "fully_closed"
	case GroupStatePendingRemoval:
		return "pending_removal"
	case GroupStateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// TradeGroup holds the ledger's view of one correlated trade.
// Invariant: 0 <= RemainingQuantity <= TotalQuantity, and
// IsClosed exactly when RemainingQuantity is zero.
type TradeGroup struct {
	BaseID            string
	Direction         schema.Direction
	Instrument        string
	Account           string
	TotalQuantity     schema.Quantity
	RemainingQuantity schema.Quantity
	IsClosed          bool
	State             GroupState
	CreatedAt         time.Time
	ClosedAt          time.Time
}

// Ledger updates trade groups from entry and closure fills.
type Ledger struct {
	mu     sync.Mutex
	groups map[string]*TradeGroup
	now    func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		groups: make(map[string]*TradeGroup),
		now:    time.Now,
	}
}

// RegisterOrIncrement creates a trade group for a base id, or adds
// quantity to it when a multi-fill order reuses an existing id. The
// lookup-then-insert-or-update runs under one critical section so two
// concurrent fills cannot create duplicate groups.
func (l *Ledger) RegisterOrIncrement(id string, direction schema.Direction, qty schema.Quantity, instrument, account string) (TradeGroup, error) {
	if id == "" || qty <= 0 || direction == schema.DirectionUnknown {
		return TradeGroup{}, exception.ErrInvalidArgument
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[id]
	if !ok {
		g = &TradeGroup{
			BaseID:            id,
			Direction:         direction,
			Instrument:        instrument,
			Account:           account,
			TotalQuantity:     qty,
			RemainingQuantity: qty,
			State:             GroupStateOpen,
			CreatedAt:         l.now().UTC(),
		}
		l.groups[id] = g
		return *g, nil
	}

	g.TotalQuantity += qty
	g.RemainingQuantity += qty
	g.IsClosed = false
	g.State = GroupStateOpen
	return *g, nil
}

// DecrementRemaining applies a confirmed closing fill. The remaining
// quantity clamps at zero; on reaching zero the group transitions to
// fully closed and waits for the grace-period cleanup instead of being
// deleted, so late duplicate acknowledgements still resolve.
func (l *Ledger) DecrementRemaining(id string, qty schema.Quantity) (TradeGroup, error) {
	if qty <= 0 {
		return TradeGroup{}, exception.ErrInvalidArgument
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[id]
	if !ok {
		return TradeGroup{}, exception.ErrGroupUnknown
	}
	if g.RemainingQuantity <= 0 {
		return *g, exception.ErrGroupClosed
	}

	g.State = GroupStatePartiallyClosing
	g.RemainingQuantity -= qty
	if g.RemainingQuantity <= 0 {
		g.RemainingQuantity = 0
		g.IsClosed = true
		g.State = GroupStateFullyClosed
		g.ClosedAt = l.now().UTC()
	} else {
		g.State = GroupStateOpen
	}
	return *g, nil
}

// MarkClosed forces a group into the fully closed state regardless of
// remaining quantity. Used when the primary platform reports the whole
// position gone in one event.
func (l *Ledger) MarkClosed(id string) (TradeGroup, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[id]
	if !ok {
		return TradeGroup{}, exception.ErrGroupUnknown
	}
	if !g.IsClosed {
		g.RemainingQuantity = 0
		g.IsClosed = true
		g.State = GroupStateFullyClosed
		g.ClosedAt = l.now().UTC()
	}
	return *g, nil
}

// MarkPendingRemoval moves a fully closed group into the removal
// window. Returns false when the group is gone or still open.
func (l *Ledger) MarkPendingRemoval(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.groups[id]
	if !ok || !g.IsClosed {
		return false
	}
	g.State = GroupStatePendingRemoval
	return true
}

// Get returns a copy of the trade group for a base id.
func (l *Ledger) Get(id string) (TradeGroup, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.groups[id]
	if !ok {
		return TradeGroup{}, false
	}
	return *g, true
}

// Remove deletes a trade group. Removing an unknown id is a no-op so
// the delayed cleanup stays idempotent.
func (l *Ledger) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.groups[id]; !ok {
		return false
	}
	delete(l.groups, id)
	return true
}

// Open returns copies of every group with remaining quantity.
func (l *Ledger) Open() []TradeGroup {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TradeGroup, 0, len(l.groups))
	for _, g := range l.groups {
		if g.RemainingQuantity > 0 {
			out = append(out, *g)
		}
	}
	return out
}

// NetPosition sums open groups for an instrument and account into a
// signed net quantity: positive long, negative short. This is the
// classifier's fallback when the live account position is unavailable.
func (l *Ledger) NetPosition(instrument, account string) schema.Quantity {
	l.mu.Lock()
	defer l.mu.Unlock()
	var net schema.Quantity
	for _, g := range l.groups {
		if g.Instrument != instrument || g.Account != account {
			continue
		}
		switch g.Direction {
		case schema.DirectionLong:
			net += g.RemainingQuantity
		case schema.DirectionShort:
			net -= g.RemainingQuantity
		}
	}
	return net
}

// HasOpenClaim reports whether any open group still claims a position
// with this instrument and direction. Intelligent matching refuses to
// touch claimed positions.
func (l *Ledger) HasOpenClaim(instrument string, direction schema.Direction) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range l.groups {
		if !g.IsClosed && g.Instrument == instrument && g.Direction == direction {
			return true
		}
	}
	return false
}

// Count returns the number of tracked groups.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.groups)
}
