package service

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"hedgelink/internal/codec"
	"hedgelink/internal/ledger"
	"hedgelink/internal/recorder"
	"hedgelink/internal/schema"
)

// ApplyJournalEvent replays one journaled event onto a ledger. Only
// ledger operations mutate state; raw inputs and outbound messages are
// journaled for audit and skipped here.
func ApplyJournalEvent(l *ledger.Ledger, header schema.EventHeader, payload []byte) error {
	switch header.Type {
	case schema.EventEntryRegistered:
		op, ok := codec.DecodeEntryRegistered(payload)
		if !ok {
			return errors.Errorf("decode entry registered, seq: %d", header.Seq)
		}
		if _, err := l.RegisterOrIncrement(op.BaseID, op.Direction, op.Quantity, op.Instrument, op.Account); err != nil {
			return errors.Wrapf(err, "replay entry, baseId: %s", op.BaseID)
		}
	case schema.EventGroupReduced:
		op, ok := codec.DecodeGroupReduced(payload)
		if !ok {
			return errors.Errorf("decode group reduced, seq: %d", header.Seq)
		}
		if _, err := l.DecrementRemaining(op.BaseID, op.Quantity); err != nil {
			// Duplicate reductions past zero are expected on replay of
			// an at-least-once stream.
			logs.Infof("replay: skip reduction, baseId: %s, err: %+v", op.BaseID, err)
		}
	case schema.EventGroupRemoved:
		op, ok := codec.DecodeGroupRemoved(payload)
		if !ok {
			return errors.Errorf("decode group removed, seq: %d", header.Seq)
		}
		l.Remove(op.BaseID)
	}
	return nil
}

// Rebuild replays a journal directory into a fresh ledger.
func Rebuild(ctx context.Context, cfg recorder.PlaybackConfig) (*ledger.Ledger, error) {
	playback, err := recorder.NewPlayback(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "new playback")
	}

	l := ledger.NewLedger()
	if err := playback.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		return ApplyJournalEvent(l, header, payload)
	}); err != nil {
		return nil, errors.Wrap(err, "replay journal")
	}
	return l, nil
}
