// Package classify labels each local execution as an entry or a
// closure. It never mutates state; callers act on the result.
package classify

import (
	"strings"

	"hedgelink/internal/schema"
)

// Kind is the classification outcome.
type Kind uint16

const (
	KindUnknown Kind = iota
	KindEntry
	KindClosure
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindClosure:
		return "closure"
	default:
		return "unknown"
	}
}

// Heuristic identifies which rule produced the classification, for
// audit logging.
type Heuristic uint16

const (
	HeuristicNone Heuristic = iota
	HeuristicOrderName
	HeuristicAction
	HeuristicLivePosition
	HeuristicLedgerPosition
)

func (h Heuristic) String() string {
	switch h {
	case HeuristicOrderName:
		return "order_name"
	case HeuristicAction:
		return "order_action"
	case HeuristicLivePosition:
		return "live_position"
	case HeuristicLedgerPosition:
		return "ledger_position"
	default:
		return "none"
	}
}

// Result is a classification with its audit trail.
type Result struct {
	Kind      Kind
	Heuristic Heuristic
}

// LiveSource reads the net account position for an instrument:
// positive long, negative short. ok is false when the platform cannot
// answer, which switches the classifier to its ledger fallback.
type LiveSource interface {
	NetPosition(instrument, account string) (qty schema.Quantity, ok bool)
}

// LedgerSource sums open trade groups into a net position. Used when
// the live position is unavailable.
type LedgerSource interface {
	NetPosition(instrument, account string) schema.Quantity
}

var closingNameMarkers = []string{"CLOSE", "EXIT", "STOP", "TARGET", "TP", "SL"}

// Classifier applies the heuristic chain to local executions.
type Classifier struct {
	live   LiveSource
	ledger LedgerSource
}

// NewClassifier creates a classifier. live may be nil when the hosting
// platform exposes no position API; ledger must not be nil.
func NewClassifier(live LiveSource, ledger LedgerSource) *Classifier {
	return &Classifier{live: live, ledger: ledger}
}

// Classify labels an execution. The heuristics run in priority order:
// order-name markers, then actions that can only open or only close,
// then position state with the ledger as fallback.
func (c *Classifier) Classify(e schema.LocalExecution) Result {
	if isClosingOrderName(e.OrderName) {
		return Result{Kind: KindClosure, Heuristic: HeuristicOrderName}
	}

	switch e.Action {
	case schema.ActionBuyToCover:
		return Result{Kind: KindClosure, Heuristic: HeuristicAction}
	case schema.ActionSellShort:
		return Result{Kind: KindEntry, Heuristic: HeuristicAction}
	}

	if c.live != nil {
		if net, ok := c.live.NetPosition(e.Instrument, e.Account); ok {
			return Result{Kind: kindFromNet(net, e.Action), Heuristic: HeuristicLivePosition}
		}
	}
	net := c.ledger.NetPosition(e.Instrument, e.Account)
	return Result{Kind: kindFromNet(net, e.Action), Heuristic: HeuristicLedgerPosition}
}

// kindFromNet resolves ambiguous buy/sell actions against the current
// net position. Flat means a new entry; reducing the open side means a
// closure.
func kindFromNet(net schema.Quantity, action schema.OrderAction) Kind {
	switch {
	case net > 0:
		if action.IsSelling() {
			return KindClosure
		}
		return KindEntry
	case net < 0:
		if action.IsBuying() {
			return KindClosure
		}
		return KindEntry
	default:
		return KindEntry
	}
}

func isClosingOrderName(name string) bool {
	if name == "" {
		return false
	}
	upper := strings.ToUpper(name)
	for _, marker := range closingNameMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
