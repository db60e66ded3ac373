package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgelink/internal/ledger"
	"hedgelink/internal/schema"
)

type stubGroups []ledger.TradeGroup

func (s stubGroups) Open() []ledger.TradeGroup { return s }

func group(id string, direction schema.Direction, createdAt time.Time) ledger.TradeGroup {
	return ledger.TradeGroup{
		BaseID:            id,
		Direction:         direction,
		Instrument:        "NQ 12-25",
		Account:           "Sim101",
		TotalQuantity:     2,
		RemainingQuantity: 2,
		CreatedAt:         createdAt,
	}
}

func TestMatchClosureNoCandidate(t *testing.T) {
	m := NewMatcher(stubGroups{})
	_, ok := m.MatchClosure(schema.LocalExecution{
		Instrument: "NQ 12-25", Account: "Sim101", Action: schema.ActionSell,
	})
	assert.False(t, ok)
}

func TestMatchClosureSingleCandidate(t *testing.T) {
	now := time.Now()
	m := NewMatcher(stubGroups{
		group("TRD_long", schema.DirectionLong, now),
		group("TRD_short", schema.DirectionShort, now),
	})

	// A sell reduces the long group only.
	g, ok := m.MatchClosure(schema.LocalExecution{
		Instrument: "NQ 12-25", Account: "Sim101", Action: schema.ActionSell,
	})
	require.True(t, ok)
	assert.Equal(t, "TRD_long", g.BaseID)

	g, ok = m.MatchClosure(schema.LocalExecution{
		Instrument: "NQ 12-25", Account: "Sim101", Action: schema.ActionBuyToCover,
	})
	require.True(t, ok)
	assert.Equal(t, "TRD_short", g.BaseID)
}

func TestMatchClosureIgnoresOtherInstrumentAndAccount(t *testing.T) {
	now := time.Now()
	other := group("TRD_other", schema.DirectionLong, now)
	other.Instrument = "ES 12-25"
	foreign := group("TRD_foreign", schema.DirectionLong, now)
	foreign.Account = "Sim102"

	m := NewMatcher(stubGroups{other, foreign})
	_, ok := m.MatchClosure(schema.LocalExecution{
		Instrument: "NQ 12-25", Account: "Sim101", Action: schema.ActionSell,
	})
	assert.False(t, ok)
}

func TestMatchClosureFIFOTieBreak(t *testing.T) {
	base := time.Unix(1000, 0)
	m := NewMatcher(stubGroups{
		group("TRD_2", schema.DirectionLong, base.Add(2*time.Second)),
		group("TRD_1", schema.DirectionLong, base.Add(1*time.Second)),
		group("TRD_3", schema.DirectionLong, base.Add(3*time.Second)),
	})

	g, ok := m.MatchClosure(schema.LocalExecution{
		Instrument: "NQ 12-25", Account: "Sim101", Action: schema.ActionSell,
	})
	require.True(t, ok)
	assert.Equal(t, "TRD_1", g.BaseID)
}

func TestFamilies(t *testing.T) {
	f := DefaultFamilies()

	assert.Equal(t, "NQ", f.Resolve("NAS100"))
	assert.Equal(t, "NQ", f.Resolve("nas100"))
	assert.Equal(t, "ES", f.Resolve("SPX"))
	assert.Equal(t, "BTCUSD", f.Resolve("BTCUSD"))

	assert.Equal(t, "NQ", Root("NQ 12-25"))
	assert.Equal(t, "ES", Root("es 03-26"))

	assert.True(t, f.SameFamily("NQ 12-25", "NAS100"))
	assert.True(t, f.SameFamily("ES 12-25", "ES"))
	assert.False(t, f.SameFamily("NQ 12-25", "SPX"))
}
