package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"hedgelink/internal/mirror"
	"hedgelink/internal/sched"
	"hedgelink/internal/schema"
)

type stubTransport struct {
	entries  []schema.EntryMessage
	closures []schema.CloseMessage
}

func (s *stubTransport) SendEntry(_ context.Context, msg schema.EntryMessage) error {
	s.entries = append(s.entries, msg)
	return nil
}

func (s *stubTransport) SendClosure(_ context.Context, msg schema.CloseMessage) error {
	s.closures = append(s.closures, msg)
	return nil
}

type stubSubmitter struct {
	nextID    string
	submitted []schema.Quantity
	fail      bool
}

func (s *stubSubmitter) SubmitClose(_, _ string, _ schema.Direction, qty schema.Quantity) (string, error) {
	if s.fail {
		return "", errors.New("rejected")
	}
	s.submitted = append(s.submitted, qty)
	return s.nextID, nil
}

type stubPositions struct {
	positions []mirror.Position
}

func (s *stubPositions) Positions() []mirror.Position {
	return s.positions
}

type fixture struct {
	svc       *Service
	transport *stubTransport
	submitter *stubSubmitter
	positions *stubPositions
	scheduler *sched.ManualScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	transport := &stubTransport{}
	submitter := &stubSubmitter{nextID: "MIRROR-1"}
	positions := &stubPositions{}
	scheduler := sched.NewManualScheduler()

	svc, err := NewService(Config{
		Account:         "Sim101",
		GraceWindow:     5 * time.Second,
		EnableMirroring: true,
	}, Deps{
		Positions: positions,
		Submitter: submitter,
		Transport: transport,
		Scheduler: scheduler,
	})
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		transport: transport,
		submitter: submitter,
		positions: positions,
		scheduler: scheduler,
	}
}

func entryFill(execID, orderID string, qty schema.Quantity) schema.LocalExecution {
	return schema.LocalExecution{
		ExecutionID: execID,
		OrderID:     orderID,
		OrderName:   "Entry",
		Instrument:  "NQ 12-25",
		Account:     "Sim101",
		Action:      schema.ActionBuy,
		Quantity:    qty,
		Price:       2150025,
	}
}

func closeFill(execID, orderID string, qty schema.Quantity) schema.LocalExecution {
	return schema.LocalExecution{
		ExecutionID: execID,
		OrderID:     orderID,
		OrderName:   "Close",
		Instrument:  "NQ 12-25",
		Account:     "Sim101",
		Action:      schema.ActionSell,
		Quantity:    qty,
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(Config{Account: "Sim101"}, Deps{})
	assert.Error(t, err)

	_, err = NewService(Config{}, Deps{
		Submitter: &stubSubmitter{},
		Transport: &stubTransport{},
		Scheduler: sched.NewManualScheduler(),
	})
	assert.Error(t, err)
}

func TestEntryThenPartialCloseThenRemoteClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.OnLocalExecution(ctx, entryFill("E1", "ORD-1", 2))

	require.Len(t, f.transport.entries, 1)
	baseID := f.transport.entries[0].BaseID
	assert.Len(t, baseID, 20)
	assert.Equal(t, schema.Quantity(2), f.transport.entries[0].TotalQuantity)

	g, ok := f.svc.State().Ledger.Get(baseID)
	require.True(t, ok)
	assert.Equal(t, schema.Quantity(2), g.RemainingQuantity)

	// Venue reports the hedge opened with its ticket.
	f.svc.OnRemoteNotification(ctx, schema.RemoteNotification{
		Event:  schema.RemoteHedgeOpened,
		BaseID: baseID,
		Ticket: 700123,
	})

	// Local partial close: one closure message with the ticket.
	f.positions.positions = []mirror.Position{{
		Instrument: "NQ 12-25", Account: "Sim101",
		Direction: schema.DirectionLong, Quantity: 2,
	}}
	f.svc.OnLocalExecution(ctx, closeFill("E2", "ORD-2", 1))

	require.Len(t, f.transport.closures, 1)
	assert.Equal(t, baseID, f.transport.closures[0].BaseID)
	assert.Equal(t, uint64(700123), f.transport.closures[0].Ticket)
	assert.Equal(t, "NT_ORIGINAL_TRADE_CLOSED", f.transport.closures[0].Reason)

	g, _ = f.svc.State().Ledger.Get(baseID)
	assert.Equal(t, schema.Quantity(1), g.RemainingQuantity)
	assert.False(t, g.IsClosed)

	// Venue closes the rest; the mirror order fill drains the group.
	f.positions.positions[0].Quantity = 1
	f.svc.OnRemoteNotification(ctx, schema.RemoteNotification{
		Event:    schema.RemoteHedgeClosed,
		BaseID:   baseID,
		Ticket:   700123,
		Quantity: 1,
		Reason:   "MANUAL_MT5_CLOSE",
	})
	require.Equal(t, []schema.Quantity{1}, f.submitter.submitted)

	f.svc.OnLocalExecution(ctx, closeFill("E3", "MIRROR-1", 1))

	g, _ = f.svc.State().Ledger.Get(baseID)
	assert.True(t, g.IsClosed)
	assert.Equal(t, 1, f.scheduler.Pending())

	// Grace window elapses; group and correlation rows go away.
	f.scheduler.Advance(5 * time.Second)
	_, ok = f.svc.State().Ledger.Get(baseID)
	assert.False(t, ok)
	_, ok = f.svc.State().Registry.LookupByOrder("ORD-1")
	assert.False(t, ok)

	// Mirror fill must not produce a second closure message.
	assert.Len(t, f.transport.closures, 1)
}

func TestDuplicateRemoteClosureSubmitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.OnLocalExecution(ctx, entryFill("E1", "ORD-1", 1))
	baseID := f.transport.entries[0].BaseID
	f.positions.positions = []mirror.Position{{
		Instrument: "NQ 12-25", Account: "Sim101",
		Direction: schema.DirectionLong, Quantity: 1,
	}}

	n := schema.RemoteNotification{
		Event:    schema.RemoteHedgeClosed,
		BaseID:   baseID,
		Ticket:   700200,
		Quantity: 1,
		Reason:   "MANUAL_MT5_CLOSE",
	}
	f.svc.OnRemoteNotification(ctx, n)
	f.svc.OnRemoteNotification(ctx, n)

	assert.Len(t, f.submitter.submitted, 1)
	assert.Equal(t, uint64(1), f.svc.State().Metrics.Snapshot().DuplicateEvents)
}

func TestDuplicateExecutionMutatesLedgerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e := entryFill("E1", "ORD-1", 2)
	f.svc.OnLocalExecution(ctx, e)
	f.svc.OnLocalExecution(ctx, e)

	require.Len(t, f.transport.entries, 1)
	g, ok := f.svc.State().Ledger.Get(f.transport.entries[0].BaseID)
	require.True(t, ok)
	assert.Equal(t, schema.Quantity(2), g.TotalQuantity)
}

func TestSubmissionFailureLeavesGroupOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.OnLocalExecution(ctx, entryFill("E1", "ORD-1", 1))
	baseID := f.transport.entries[0].BaseID
	f.positions.positions = []mirror.Position{{
		Instrument: "NQ 12-25", Account: "Sim101",
		Direction: schema.DirectionLong, Quantity: 1,
	}}
	f.submitter.fail = true

	f.svc.OnRemoteNotification(ctx, schema.RemoteNotification{
		Event:    schema.RemoteHedgeClosed,
		BaseID:   baseID,
		Quantity: 1,
		Reason:   "MANUAL_MT5_CLOSE",
	})

	g, ok := f.svc.State().Ledger.Get(baseID)
	require.True(t, ok)
	assert.False(t, g.IsClosed)
	assert.Equal(t, uint64(1), f.svc.State().Metrics.Snapshot().SubmissionFailures)
}

func TestPolicySuppressedClosureSkipsMirror(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.OnLocalExecution(ctx, entryFill("E1", "ORD-1", 1))
	baseID := f.transport.entries[0].BaseID

	f.svc.OnRemoteNotification(ctx, schema.RemoteNotification{
		Event:    schema.RemoteHedgeClosed,
		BaseID:   baseID,
		Quantity: 1,
		Reason:   "EA_ADJUSTMENT_CLOSE",
	})

	assert.Empty(t, f.submitter.submitted)
	assert.Equal(t, uint64(1), f.svc.State().Metrics.Snapshot().MirrorSkips)
}

func TestCloseAckNeverMirrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.OnLocalExecution(ctx, entryFill("E1", "ORD-1", 1))
	baseID := f.transport.entries[0].BaseID

	f.svc.OnRemoteNotification(ctx, schema.RemoteNotification{
		Event:     schema.RemoteCloseNotification,
		BaseID:    baseID,
		OrderType: "NT_CLOSE_ACK",
		Quantity:  1,
	})

	assert.Empty(t, f.submitter.submitted)
}

func TestMirroringDisabledSkips(t *testing.T) {
	transport := &stubTransport{}
	submitter := &stubSubmitter{nextID: "MIRROR-1"}
	svc, err := NewService(Config{Account: "Sim101"}, Deps{
		Submitter: submitter,
		Transport: transport,
		Scheduler: sched.NewManualScheduler(),
	})
	require.NoError(t, err)

	svc.OnLocalExecution(context.Background(), entryFill("E1", "ORD-1", 1))
	svc.OnRemoteNotification(context.Background(), schema.RemoteNotification{
		Event:    schema.RemoteHedgeClosed,
		BaseID:   transport.entries[0].BaseID,
		Quantity: 1,
		Reason:   "MANUAL_MT5_CLOSE",
	})

	assert.Empty(t, submitter.submitted)
	assert.Equal(t, uint64(1), svc.State().Metrics.Snapshot().MirrorSkips)
}

func TestClosureWithoutGroupRegistersEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A BuyToCover fill with no open group anywhere becomes an entry.
	f.svc.OnLocalExecution(ctx, schema.LocalExecution{
		ExecutionID: "E1",
		OrderID:     "ORD-9",
		Instrument:  "NQ 12-25",
		Account:     "Sim101",
		Action:      schema.ActionBuyToCover,
		Quantity:    1,
	})

	require.Len(t, f.transport.entries, 1)
	assert.Empty(t, f.transport.closures)
	assert.Equal(t, 1, f.svc.State().Ledger.Count())
}

func TestPublishAndRunDispatch(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	f.svc.PublishLocal(entryFill("E1", "ORD-1", 1))
	f.svc.Stop()

	f.svc.Run(ctx)
	cancel()

	require.Len(t, f.transport.entries, 1)
	assert.Equal(t, 1, f.svc.State().Ledger.Count())
}
