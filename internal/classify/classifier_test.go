package classify

import (
	"testing"

	"hedgelink/internal/schema"
)

type stubLive struct {
	net schema.Quantity
	ok  bool
}

func (s stubLive) NetPosition(string, string) (schema.Quantity, bool) { return s.net, s.ok }

type stubLedger struct {
	net schema.Quantity
}

func (s stubLedger) NetPosition(string, string) schema.Quantity { return s.net }

func TestClassify(t *testing.T) {
	testCases := []struct {
		desc      string
		exec      schema.LocalExecution
		liveNet   schema.Quantity
		liveOK    bool
		ledgerNet schema.Quantity
		kind      Kind
		heuristic Heuristic
	}{
		{
			"close marker in order name",
			schema.LocalExecution{OrderName: "Close position", Action: schema.ActionSell},
			0, true, 0,
			KindClosure, HeuristicOrderName,
		},
		{
			"stop loss marker",
			schema.LocalExecution{OrderName: "SL-1", Action: schema.ActionSell},
			5, true, 0,
			KindClosure, HeuristicOrderName,
		},
		{
			"target marker",
			schema.LocalExecution{OrderName: "Profit Target", Action: schema.ActionSell},
			5, true, 0,
			KindClosure, HeuristicOrderName,
		},
		{
			"buy to cover can only close",
			schema.LocalExecution{OrderName: "order-7", Action: schema.ActionBuyToCover},
			0, true, 0,
			KindClosure, HeuristicAction,
		},
		{
			"sell short can only open",
			schema.LocalExecution{OrderName: "order-8", Action: schema.ActionSellShort},
			3, true, 0,
			KindEntry, HeuristicAction,
		},
		{
			"flat live position is an entry",
			schema.LocalExecution{OrderName: "order-9", Action: schema.ActionBuy},
			0, true, 0,
			KindEntry, HeuristicLivePosition,
		},
		{
			"sell against net long closes",
			schema.LocalExecution{OrderName: "order-10", Action: schema.ActionSell},
			2, true, 0,
			KindClosure, HeuristicLivePosition,
		},
		{
			"buy against net long adds",
			schema.LocalExecution{OrderName: "order-11", Action: schema.ActionBuy},
			2, true, 0,
			KindEntry, HeuristicLivePosition,
		},
		{
			"buy against net short closes",
			schema.LocalExecution{OrderName: "order-12", Action: schema.ActionBuy},
			-2, true, 0,
			KindClosure, HeuristicLivePosition,
		},
		{
			"sell against net short adds",
			schema.LocalExecution{OrderName: "order-13", Action: schema.ActionSell},
			-2, true, 0,
			KindEntry, HeuristicLivePosition,
		},
		{
			"ledger fallback when live unavailable",
			schema.LocalExecution{OrderName: "order-14", Action: schema.ActionSell},
			0, false, 4,
			KindClosure, HeuristicLedgerPosition,
		},
		{
			"ledger fallback flat",
			schema.LocalExecution{OrderName: "order-15", Action: schema.ActionSell},
			0, false, 0,
			KindEntry, HeuristicLedgerPosition,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			c := NewClassifier(stubLive{tc.liveNet, tc.liveOK}, stubLedger{tc.ledgerNet})
			got := c.Classify(tc.exec)

			if got.Kind != tc.kind {
				t.Fatalf("kind mismatch! should be %s but got %s", tc.kind, got.Kind)
			}
			if got.Heuristic != tc.heuristic {
				t.Fatalf("heuristic mismatch! should be %s but got %s", tc.heuristic, got.Heuristic)
			}
		})
	}
}

func TestClassifyNilLiveSource(t *testing.T) {
	c := NewClassifier(nil, stubLedger{net: 1})
	got := c.Classify(schema.LocalExecution{OrderName: "order-1", Action: schema.ActionSell})

	if got.Kind != KindClosure || got.Heuristic != HeuristicLedgerPosition {
		t.Fatalf("expected ledger-based closure, got %+v", got)
	}
}
