package match

import (
	"sort"

	"github.com/yanun0323/logs"

	"hedgelink/internal/ledger"
	"hedgelink/internal/schema"
)

// GroupSource lists the open trade groups the matcher may claim.
type GroupSource interface {
	Open() []ledger.TradeGroup
}

// Matcher resolves a closure execution to an open trade group when the
// closing order carries a different native id than the opening order.
// It never mutates state; it only answers which group, if any.
type Matcher struct {
	groups GroupSource
}

// NewMatcher creates a matcher over a group source.
func NewMatcher(groups GroupSource) *Matcher {
	return &Matcher{groups: groups}
}

// MatchClosure finds the open group a closing execution reduces. The
// candidates are open groups on the same instrument and account whose
// direction opposes the closing action. With no candidate the caller
// treats the execution as an entry. With several, the oldest group wins
// and the full candidate set is logged as a correctness risk.
func (m *Matcher) MatchClosure(e schema.LocalExecution) (ledger.TradeGroup, bool) {
	closes := e.Action.Direction().Opposite()

	var candidates []ledger.TradeGroup
	for _, g := range m.groups.Open() {
		if g.Instrument == e.Instrument && g.Account == e.Account && g.Direction == closes {
			candidates = append(candidates, g)
		}
	}

	switch len(candidates) {
	case 0:
		return ledger.TradeGroup{}, false
	case 1:
		return candidates[0], true
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	for _, g := range candidates {
		logs.Infof("closure matcher: ambiguous candidate, baseId: %s, createdAt: %s, remaining: %d",
			g.BaseID, g.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"), g.RemainingQuantity)
	}
	logs.Errorf("closure matcher: %d candidates for closure, instrument: %s, account: %s, picking oldest: %s",
		len(candidates), e.Instrument, e.Account, candidates[0].BaseID)
	return candidates[0], true
}
