package schema

// Quantity is a whole number of contracts.
type Quantity int64

// Price is a scaled integer. The scale is defined by configuration.
type Price int64

// Direction describes the side of an open position.
type Direction uint16

const (
	DirectionUnknown Direction = iota
	DirectionLong
	DirectionShort
)

// Opposite returns the closing direction for a position.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionUnknown
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "unknown"
	}
}

// OrderAction describes what a local order does to a position.
// Buy and Sell are ambiguous without position context; SellShort can
// only open and BuyToCover can only close.
type OrderAction uint16

const (
	ActionUnknown OrderAction = iota
	ActionBuy
	ActionSell
	ActionSellShort
	ActionBuyToCover
)

// IsBuying reports whether the action adds long exposure.
func (a OrderAction) IsBuying() bool {
	return a == ActionBuy || a == ActionBuyToCover
}

// IsSelling reports whether the action adds short exposure.
func (a OrderAction) IsSelling() bool {
	return a == ActionSell || a == ActionSellShort
}

// Direction returns the position direction an opening fill with this
// action would create.
func (a OrderAction) Direction() Direction {
	switch {
	case a.IsBuying():
		return DirectionLong
	case a.IsSelling():
		return DirectionShort
	default:
		return DirectionUnknown
	}
}

func (a OrderAction) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	case ActionSellShort:
		return "sell_short"
	case ActionBuyToCover:
		return "buy_to_cover"
	default:
		return "unknown"
	}
}

// LocalExecution is a fill reported by the primary platform.
type LocalExecution struct {
	ExecutionID string
	OrderID     string
	OrderName   string
	Instrument  string
	Account     string
	Action      OrderAction
	Quantity    Quantity
	Price       Price
	TsEvent     int64
}

// RemoteEventType identifies the kind of message received from the
// hedge venue.
type RemoteEventType uint16

const (
	RemoteUnknown RemoteEventType = iota
	RemoteHedgeOpened
	RemoteHedgeClosed
	RemoteCloseNotification
)

func (t RemoteEventType) String() string {
	switch t {
	case RemoteHedgeOpened:
		return "HEDGE_OPENED"
	case RemoteHedgeClosed:
		return "HEDGE_CLOSED"
	case RemoteCloseNotification:
		return "CLOSE_NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// RemoteNotification is a message received from the hedge venue.
// Ticket and Quantity are optional; OrderType distinguishes
// acknowledgements of locally-initiated closes from venue-initiated
// closures.
type RemoteNotification struct {
	Event      RemoteEventType
	BaseID     string
	Ticket     uint64
	Quantity   Quantity
	Reason     string
	MessageID  string
	OrderType  string
	Instrument string
	TsEvent    int64
}

// EntryMessage tells the hedge venue to open a mirroring position.
type EntryMessage struct {
	BaseID        string
	Direction     Direction
	Quantity      Quantity
	Price         Price
	Instrument    string
	Account       string
	Seq           uint64
	ContractNum   int32
	TotalQuantity Quantity
}

// CloseHedgeAction is the action field the hedge venue matches on.
const CloseHedgeAction = "CLOSE_HEDGE"

// CloseMessage tells the hedge venue to close a mirrored position.
// Ticket is zero when the registry could not resolve one; the venue
// then falls back to comment matching.
type CloseMessage struct {
	BaseID   string
	Quantity Quantity
	Reason   string
	Ticket   uint64
	Seq      uint64
}

// EntryRegistered is the replayable ledger operation for a new or
// incremented trade group.
type EntryRegistered struct {
	BaseID     string
	Direction  Direction
	Quantity   Quantity
	Instrument string
	Account    string
}

// GroupReduced is the replayable ledger operation for a confirmed
// closing fill.
type GroupReduced struct {
	BaseID   string
	Quantity Quantity
}

// GroupRemoved is the replayable ledger operation for a cleaned-up
// trade group.
type GroupRemoved struct {
	BaseID string
}
