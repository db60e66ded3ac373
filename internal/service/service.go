// Package service runs the reconciliation loop: it classifies local
// executions, keeps the trade group ledger consistent, mirrors
// remote-initiated closures and notifies the hedge venue of local
// activity.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"hedgelink/internal/bus"
	"hedgelink/internal/classify"
	"hedgelink/internal/codec"
	"hedgelink/internal/correlation"
	"hedgelink/internal/ledger"
	"hedgelink/internal/match"
	"hedgelink/internal/mirror"
	"hedgelink/internal/notify"
	"hedgelink/internal/recorder"
	"hedgelink/internal/sched"
	"hedgelink/internal/schema"
	"hedgelink/internal/store"
	"hedgelink/pkg/exception"
)

// Event sources recorded in journal headers.
const (
	SourceLocal  uint16 = 1
	SourceRemote uint16 = 2
	SourceLedger uint16 = 3
)

// reasonLocalClose marks closures that originated on the primary
// platform. The venue acknowledges these without mirroring them back.
const reasonLocalClose = "NT_ORIGINAL_TRADE_CLOSED"

// orderTypeCloseAck marks venue messages that acknowledge a
// locally-initiated close. They carry no new intent.
const orderTypeCloseAck = "NT_CLOSE_ACK"

// Config tunes the reconciliation service.
type Config struct {
	Account         string
	GraceWindow     time.Duration
	QueueCap        int
	EnableMirroring bool
}

// Deps are the service collaborators. Submitter, Transport and
// Scheduler are required; the rest default or disable.
type Deps struct {
	State     *State
	Positions mirror.PositionSource
	Submitter mirror.OrderSubmitter
	Transport notify.Transport
	Scheduler sched.Scheduler
	Journal   *recorder.Writer
	History   *store.History
	Policy    mirror.ReasonPolicy
	Families  match.Families
}

// Service is the reconciliation engine. All state mutations happen on
// the caller's goroutine; Run serializes them through the bus queue.
type Service struct {
	cfg        Config
	state      *State
	classifier *classify.Classifier
	matcher    *match.Matcher
	handler    *mirror.Handler
	notifier   *notify.Notifier
	scheduler  sched.Scheduler
	journal    *recorder.Writer
	history    *store.History
	queue      *bus.Queue

	pendingMu sync.Mutex
	pending   map[string]mirror.Submission

	mirrorEnabled atomic.Bool
	seq           atomic.Uint64
}

type noPositions struct{}

func (noPositions) Positions() []mirror.Position { return nil }

// liveSource adapts the platform position feed to the classifier.
type liveSource struct {
	positions mirror.PositionSource
}

func (s liveSource) NetPosition(instrument, account string) (schema.Quantity, bool) {
	if s.positions == nil {
		return 0, false
	}
	var net schema.Quantity
	for _, p := range s.positions.Positions() {
		if p.Instrument != instrument || p.Account != account {
			continue
		}
		switch p.Direction {
		case schema.DirectionLong:
			net += p.Quantity
		case schema.DirectionShort:
			net -= p.Quantity
		}
	}
	return net, true
}

// NewService wires the reconciliation engine.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Submitter == nil || deps.Transport == nil || deps.Scheduler == nil {
		return nil, exception.ErrNilInstance
	}
	if cfg.Account == "" {
		return nil, exception.ErrInvalidArgument
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 5 * time.Second
	}
	if cfg.QueueCap <= 0 {
		cfg.QueueCap = 1024
	}

	state := deps.State
	if state == nil {
		state = NewState()
	}
	policy := deps.Policy
	if policy == nil {
		policy = mirror.DefaultPolicy()
	}
	families := deps.Families
	if families == nil {
		families = match.DefaultFamilies()
	}
	positions := deps.Positions
	if positions == nil {
		positions = noPositions{}
	}

	var live classify.LiveSource
	if deps.Positions != nil {
		live = liveSource{positions: deps.Positions}
	}

	s := &Service{
		cfg:        cfg,
		state:      state,
		classifier: classify.NewClassifier(live, state.Ledger),
		matcher:    match.NewMatcher(state.Ledger),
		handler:    mirror.NewHandler(policy, state.Registry, state.Ledger, positions, deps.Submitter, families, state.InFlight),
		notifier:   notify.NewNotifier(deps.Transport, state.Guard),
		scheduler:  deps.Scheduler,
		journal:    deps.Journal,
		history:    deps.History,
		queue:      bus.NewQueue(cfg.QueueCap),
		pending:    make(map[string]mirror.Submission),
	}
	s.mirrorEnabled.Store(cfg.EnableMirroring)
	return s, nil
}

// State exposes the owned reconciliation state.
func (s *Service) State() *State {
	return s.state
}

// SetMirroringEnabled toggles closure mirroring at runtime. Config
// reloads flip this without restarting the loop.
func (s *Service) SetMirroringEnabled(enabled bool) {
	s.mirrorEnabled.Store(enabled)
}

// PublishLocal enqueues a local execution for the service loop.
func (s *Service) PublishLocal(e schema.LocalExecution) {
	s.publish(schema.EventLocalExecution, SourceLocal, e.TsEvent, codec.EncodeLocalExecution(nil, e))
}

// PublishRemote enqueues a venue notification for the service loop.
func (s *Service) PublishRemote(n schema.RemoteNotification) {
	s.publish(schema.EventRemoteNotification, SourceRemote, n.TsEvent, codec.EncodeRemoteNotification(nil, n))
}

func (s *Service) publish(eventType schema.EventType, source uint16, tsEvent int64, payload []byte) {
	header := schema.NewHeader(eventType, source, s.seq.Add(1), tsEvent, time.Now().UTC().UnixNano())
	if err := s.queue.TryPublish(bus.Event{Header: header, Payload: payload}); err != nil {
		s.state.Metrics.IncQueueDrop()
		logs.Errorf("drop event, type: %d, err: %+v", eventType, err)
	}
}

// Run consumes the bus queue until the context ends. Every state
// mutation happens here, on one goroutine.
func (s *Service) Run(ctx context.Context) {
	s.queue.Run(ctx, func(e bus.Event) {
		s.state.Metrics.ObserveEvent(e.Header)
		switch e.Header.Type {
		case schema.EventLocalExecution:
			exec, ok := codec.DecodeLocalExecution(e.Payload)
			if !ok {
				logs.Errorf("drop undecodable execution, seq: %d", e.Header.Seq)
				return
			}
			s.OnLocalExecution(ctx, exec)
		case schema.EventRemoteNotification:
			n, ok := codec.DecodeRemoteNotification(e.Payload)
			if !ok {
				logs.Errorf("drop undecodable notification, seq: %d", e.Header.Seq)
				return
			}
			s.OnRemoteNotification(ctx, n)
		default:
			logs.Errorf("drop unexpected bus event, type: %d", e.Header.Type)
		}
	})
}

// Stop closes the queue and cancels pending cleanups.
func (s *Service) Stop() {
	s.queue.Close()
	s.scheduler.Stop()
}

// OnLocalExecution applies one fill from the primary platform.
func (s *Service) OnLocalExecution(ctx context.Context, e schema.LocalExecution) {
	s.journalEvent(schema.EventLocalExecution, SourceLocal, e.TsEvent, codec.EncodeLocalExecution(nil, e))

	if !s.state.Guard.MarkExecution(e.ExecutionID) {
		s.state.Metrics.IncDuplicateEvent()
		logs.Infof("skip duplicate execution, executionId: %s", e.ExecutionID)
		return
	}

	// Fills of our own mirror-close orders confirm a remote closure;
	// reclassifying them would close the position twice.
	if s.state.InFlight.Take(e.OrderID) {
		s.onMirrorFill(e)
		return
	}

	result := s.classifier.Classify(e)
	logs.Infof("execution classified, executionId: %s, kind: %s, heuristic: %s",
		e.ExecutionID, result.Kind, result.Heuristic)

	if result.Kind == classify.KindClosure {
		if s.onLocalClosure(ctx, e) {
			return
		}
		// No open group takes this closure; book it as an entry.
		logs.Infof("closure without matching group, registering entry, executionId: %s", e.ExecutionID)
	}
	s.onLocalEntry(ctx, e)
}

// onMirrorFill confirms a mirror-close order and decrements the
// ledger. This is the only place remote-initiated closures reach the
// ledger: at fill time, not at submission.
func (s *Service) onMirrorFill(e schema.LocalExecution) {
	sub, ok := s.takePending(e.OrderID)
	if !ok || sub.BaseID == "" {
		logs.Infof("mirror close filled for untracked position, orderId: %s, qty: %d", e.OrderID, e.Quantity)
		return
	}

	g, err := s.state.Ledger.DecrementRemaining(sub.BaseID, e.Quantity)
	if err != nil {
		logs.Errorf("mirror fill on unusable group, baseId: %s, err: %+v", sub.BaseID, err)
		return
	}
	s.journalEvent(schema.EventGroupReduced, SourceLedger, e.TsEvent,
		codec.EncodeGroupReduced(nil, schema.GroupReduced{BaseID: sub.BaseID, Quantity: e.Quantity}))
	s.state.Metrics.IncClosureApplied()
	logs.Infof("mirror close filled, baseId: %s, qty: %d, remaining: %d", sub.BaseID, e.Quantity, g.RemainingQuantity)

	if g.IsClosed {
		s.scheduleCleanup(sub.BaseID)
	}
}

// onLocalClosure reduces the matched group and tells the venue to
// close the hedge. Returns false when no open group takes the fill.
func (s *Service) onLocalClosure(ctx context.Context, e schema.LocalExecution) bool {
	id, ok := s.state.Registry.LookupByOrder(e.OrderID)
	if !ok {
		g, matched := s.matcher.MatchClosure(e)
		if !matched {
			return false
		}
		id = g.BaseID
	}

	g, err := s.state.Ledger.DecrementRemaining(id, e.Quantity)
	if err != nil {
		logs.Errorf("closure on unusable group, baseId: %s, err: %+v", id, err)
		return true
	}
	s.journalEvent(schema.EventGroupReduced, SourceLedger, e.TsEvent,
		codec.EncodeGroupReduced(nil, schema.GroupReduced{BaseID: id, Quantity: e.Quantity}))
	s.state.Metrics.IncClosureApplied()

	ticket, _ := s.state.Registry.TicketForID(id)
	msg := schema.CloseMessage{
		BaseID:   id,
		Quantity: e.Quantity,
		Reason:   reasonLocalClose,
		Ticket:   ticket,
	}
	if err := s.notifier.SendClosure(ctx, msg); err != nil {
		logs.Errorf("send closure, baseId: %s, err: %+v", id, err)
	}
	s.journalEvent(schema.EventCloseMessage, SourceLedger, e.TsEvent, codec.EncodeCloseMessage(nil, msg))

	if g.IsClosed {
		s.scheduleCleanup(id)
	}
	return true
}

// onLocalEntry registers the fill in the ledger and notifies the
// venue to open a mirroring hedge.
func (s *Service) onLocalEntry(ctx context.Context, e schema.LocalExecution) {
	id, ok := s.state.Registry.LookupByOrder(e.OrderID)
	if !ok {
		id = correlation.GenerateID()
		if err := s.state.Registry.Bind(id, e.OrderID); err != nil {
			logs.Errorf("bind base id, orderId: %s, err: %+v", e.OrderID, err)
			return
		}
	}

	g, err := s.state.Ledger.RegisterOrIncrement(id, e.Action.Direction(), e.Quantity, e.Instrument, e.Account)
	if err != nil {
		logs.Errorf("register entry, baseId: %s, err: %+v", id, err)
		return
	}
	s.journalEvent(schema.EventEntryRegistered, SourceLedger, e.TsEvent,
		codec.EncodeEntryRegistered(nil, schema.EntryRegistered{
			BaseID:     id,
			Direction:  g.Direction,
			Quantity:   e.Quantity,
			Instrument: e.Instrument,
			Account:    e.Account,
		}))
	s.state.Metrics.IncEntryRegistered()

	msg := schema.EntryMessage{
		BaseID:        id,
		Direction:     g.Direction,
		Quantity:      e.Quantity,
		Price:         e.Price,
		Instrument:    e.Instrument,
		Account:       e.Account,
		ContractNum:   int32(e.Quantity),
		TotalQuantity: g.TotalQuantity,
	}
	if err := s.notifier.SendEntry(ctx, e.ExecutionID, msg); err != nil {
		logs.Errorf("send entry, baseId: %s, err: %+v", id, err)
	}
	s.journalEvent(schema.EventEntryMessage, SourceLedger, e.TsEvent, codec.EncodeEntryMessage(nil, msg))
}

// OnRemoteNotification applies one venue message.
func (s *Service) OnRemoteNotification(ctx context.Context, n schema.RemoteNotification) {
	s.journalEvent(schema.EventRemoteNotification, SourceRemote, n.TsEvent, codec.EncodeRemoteNotification(nil, n))

	if !s.state.Guard.MarkNotification(n) {
		s.state.Metrics.IncDuplicateEvent()
		logs.Infof("skip duplicate notification, event: %s, baseId: %s", n.Event, n.BaseID)
		return
	}

	switch n.Event {
	case schema.RemoteHedgeOpened:
		s.onHedgeOpened(n)
	case schema.RemoteHedgeClosed, schema.RemoteCloseNotification:
		s.onRemoteClosure(n)
	default:
		logs.Errorf("drop unknown notification, event: %s, baseId: %s", n.Event, n.BaseID)
	}
}

// onHedgeOpened binds the venue ticket so later closures resolve
// without matching.
func (s *Service) onHedgeOpened(n schema.RemoteNotification) {
	if n.BaseID == "" || n.Ticket == 0 {
		logs.Errorf("hedge opened without ticket binding, baseId: %s, ticket: %d", n.BaseID, n.Ticket)
		return
	}
	if err := s.state.Registry.BindRemoteTicket(n.BaseID, n.Ticket); err != nil {
		logs.Errorf("bind remote ticket, baseId: %s, ticket: %d, err: %+v", n.BaseID, n.Ticket, err)
		return
	}
	logs.Infof("hedge opened, baseId: %s, ticket: %d", n.BaseID, n.Ticket)
}

// onRemoteClosure mirrors a venue-initiated closure. Every failure is
// resolved locally with a safe default; the loop never halts.
func (s *Service) onRemoteClosure(n schema.RemoteNotification) {
	if n.OrderType == orderTypeCloseAck {
		logs.Infof("close acknowledged by venue, baseId: %s, ticket: %d", n.BaseID, n.Ticket)
		return
	}
	if !s.mirrorEnabled.Load() {
		s.state.Metrics.IncMirrorSkip()
		logs.Infof("mirroring disabled, skip closure, baseId: %s", n.BaseID)
		return
	}

	sub, err := s.handler.HandleClosure(n)
	if err != nil {
		switch {
		case errors.Is(err, exception.ErrCorrelationUnknown), errors.Is(err, exception.ErrNoMatch):
			s.state.Metrics.IncUnknownCorrelation()
			logs.Infof("closure for unknown position, treating as already closed, baseId: %s, ticket: %d", n.BaseID, n.Ticket)
		case errors.Is(err, exception.ErrAmbiguousMatch):
			s.state.Metrics.IncAmbiguousAbort()
			logs.Errorf("abort ambiguous closure, instrument: %s, err: %+v", n.Instrument, err)
		case errors.Is(err, exception.ErrSubmissionFailed):
			s.state.Metrics.IncSubmissionFailure()
			logs.Errorf("mirror close rejected, baseId: %s, err: %+v", n.BaseID, err)
		default:
			logs.Errorf("handle closure, baseId: %s, err: %+v", n.BaseID, err)
		}
		return
	}
	if sub == nil {
		s.state.Metrics.IncMirrorSkip()
		return
	}

	s.state.Metrics.IncMirrorSubmission()
	s.trackPending(*sub)
}

// scheduleCleanup holds a fully closed group through the grace window
// before removing it, so late duplicate acknowledgements still resolve.
func (s *Service) scheduleCleanup(id string) {
	s.state.Ledger.MarkPendingRemoval(id)
	s.scheduler.Schedule(id, s.cfg.GraceWindow, func() {
		s.cleanup(id)
	})
}

func (s *Service) cleanup(id string) {
	if g, ok := s.state.Ledger.Get(id); ok && s.history.Enabled() {
		if err := s.history.SaveClosed(context.Background(), g); err != nil {
			logs.Errorf("archive closed trade, baseId: %s, err: %+v", id, err)
		}
	}
	if s.state.Ledger.Remove(id) {
		s.state.Registry.Prune(id)
		s.journalEvent(schema.EventGroupRemoved, SourceLedger, 0,
			codec.EncodeGroupRemoved(nil, schema.GroupRemoved{BaseID: id}))
		logs.Infof("trade group removed after grace window, baseId: %s", id)
	}
}

// WriteSnapshot persists the current ledger state.
func (s *Service) WriteSnapshot(path string) error {
	snap := s.state.Ledger.SnapshotWithMeta(s.seq.Load(), time.Now().UTC().UnixNano())
	return ledger.WriteSnapshot(path, snap)
}

func (s *Service) journalEvent(eventType schema.EventType, source uint16, tsEvent int64, payload []byte) {
	if s.journal == nil {
		return
	}
	header := schema.NewHeader(eventType, source, s.seq.Add(1), tsEvent, time.Now().UTC().UnixNano())
	if err := s.journal.TryAppend(header, payload); err != nil {
		s.state.Metrics.IncQueueDrop()
		logs.Errorf("journal append, type: %d, err: %+v", eventType, err)
	}
}

func (s *Service) trackPending(sub mirror.Submission) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[sub.OrderID] = sub
}

func (s *Service) takePending(orderID string) (mirror.Submission, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	sub, ok := s.pending[orderID]
	if ok {
		delete(s.pending, orderID)
	}
	return sub, ok
}
