package mirror

import (
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hedgelink/internal/ledger"
	"hedgelink/internal/match"
	"hedgelink/internal/schema"
	"hedgelink/pkg/exception"
)

// Position is one live local position as the primary platform reports
// it.
type Position struct {
	Instrument string
	Account    string
	Direction  schema.Direction
	Quantity   schema.Quantity
}

// PositionSource lists live local positions.
type PositionSource interface {
	Positions() []Position
}

// OrderSubmitter places a closing order against the local account and
// returns its native order id.
type OrderSubmitter interface {
	SubmitClose(instrument, account string, direction schema.Direction, qty schema.Quantity) (string, error)
}

// TicketResolver reverse-maps a remote ticket to a base id.
type TicketResolver interface {
	LookupByTicket(ticket uint64) (string, bool)
}

// GroupSource is the handler's read view of the ledger.
type GroupSource interface {
	Get(id string) (ledger.TradeGroup, bool)
	HasOpenClaim(instrument string, direction schema.Direction) bool
}

// Submission describes the single closing order placed for one remote
// closure notification. The ledger is decremented only when the fill
// for OrderID comes back, never here.
type Submission struct {
	OrderID    string
	BaseID     string
	Instrument string
	Account    string
	Quantity   schema.Quantity
}

// Handler mirrors remote-initiated closures onto the local account.
type Handler struct {
	policy    ReasonPolicy
	resolver  TicketResolver
	groups    GroupSource
	positions PositionSource
	submitter OrderSubmitter
	families  match.Families
	inFlight  *InFlight
}

// NewHandler wires a closure handler. All collaborators are required.
func NewHandler(policy ReasonPolicy, resolver TicketResolver, groups GroupSource, positions PositionSource, submitter OrderSubmitter, families match.Families, inFlight *InFlight) *Handler {
	return &Handler{
		policy:    policy,
		resolver:  resolver,
		groups:    groups,
		positions: positions,
		submitter: submitter,
		families:  families,
		inFlight:  inFlight,
	}
}

// HandleClosure applies one remote closure notification. It returns
// the submission when a closing order was placed, nil when policy or
// state made the notification a no-op, and an error when resolution or
// submission failed. It never mutates the ledger.
func (h *Handler) HandleClosure(n schema.RemoteNotification) (*Submission, error) {
	if !h.policy.ShouldMirror(n.Reason) {
		logs.Infof("mirror: skip closure, reason: %s, baseId: %s", n.Reason, n.BaseID)
		return nil, nil
	}

	id := n.BaseID
	if id == "" && n.Ticket != 0 {
		if resolved, ok := h.resolver.LookupByTicket(n.Ticket); ok {
			id = resolved
		}
	}
	if id == "" {
		return h.closeByMatching(n)
	}
	return h.closeGroup(id, n)
}

// closeGroup mirrors a closure whose correlation id resolved.
func (h *Handler) closeGroup(id string, n schema.RemoteNotification) (*Submission, error) {
	g, ok := h.groups.Get(id)
	if !ok {
		return nil, errors.Wrapf(exception.ErrCorrelationUnknown, "baseId: %s", id)
	}
	if g.IsClosed {
		logs.Infof("mirror: group already closed, baseId: %s", id)
		return nil, nil
	}

	live, ok := h.livePosition(g.Instrument, g.Account, g.Direction)
	if !ok || live.Quantity <= 0 {
		return nil, errors.Wrapf(exception.ErrNoLivePosition, "baseId: %s, instrument: %s", id, g.Instrument)
	}

	desired := n.Quantity
	if desired <= 0 {
		desired = g.RemainingQuantity
	}
	qty := minQuantity(desired, live.Quantity)

	return h.submit(id, live.Instrument, live.Account, live.Direction, qty)
}

// closeByMatching mirrors a closure with no resolvable correlation id.
// A candidate position must match the notification's instrument family
// and must not be claimed by any open trade group. With two or more
// candidates the handler refuses to guess.
func (h *Handler) closeByMatching(n schema.RemoteNotification) (*Submission, error) {
	var candidates []Position
	for _, p := range h.positions.Positions() {
		if p.Quantity <= 0 {
			continue
		}
		if !h.families.SameFamily(p.Instrument, n.Instrument) {
			continue
		}
		if h.groups.HasOpenClaim(p.Instrument, p.Direction) {
			continue
		}
		candidates = append(candidates, p)
	}

	switch len(candidates) {
	case 0:
		return nil, errors.Wrapf(exception.ErrNoMatch, "instrument: %s, ticket: %d", n.Instrument, n.Ticket)
	case 1:
	default:
		for _, p := range candidates {
			logs.Infof("mirror: ambiguous candidate, instrument: %s, account: %s, direction: %s, qty: %d",
				p.Instrument, p.Account, p.Direction, p.Quantity)
		}
		return nil, errors.Wrapf(exception.ErrAmbiguousMatch, "instrument: %s, candidates: %d", n.Instrument, len(candidates))
	}

	target := candidates[0]
	desired := n.Quantity
	if desired <= 0 {
		desired = target.Quantity
	}
	qty := minQuantity(desired, target.Quantity)

	return h.submit("", target.Instrument, target.Account, target.Direction, qty)
}

// submit places the single closing order and tags it in flight so its
// own fill is not reclassified as a user-initiated closure.
func (h *Handler) submit(id, instrument, account string, direction schema.Direction, qty schema.Quantity) (*Submission, error) {
	orderID, err := h.submitter.SubmitClose(instrument, account, direction, qty)
	if err != nil {
		return nil, errors.Wrapf(exception.ErrSubmissionFailed, "baseId: %s, instrument: %s, qty: %d, cause: %v", id, instrument, qty, err)
	}

	h.inFlight.Add(orderID)
	logs.Infof("mirror: close submitted, baseId: %s, orderId: %s, instrument: %s, qty: %d", id, orderID, instrument, qty)
	return &Submission{
		OrderID:    orderID,
		BaseID:     id,
		Instrument: instrument,
		Account:    account,
		Quantity:   qty,
	}, nil
}

func (h *Handler) livePosition(instrument, account string, direction schema.Direction) (Position, bool) {
	for _, p := range h.positions.Positions() {
		if p.Instrument == instrument && p.Account == account && p.Direction == direction {
			return p, true
		}
	}
	return Position{}, false
}

func minQuantity(a, b schema.Quantity) schema.Quantity {
	if a < b {
		return a
	}
	return b
}
