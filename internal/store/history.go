// Package store archives fully closed trade groups to PostgreSQL.
// It is a read-only consumer of ledger state; reconciliation never
// depends on it.
package store

import (
	"context"
	"time"

	"github.com/yanun0323/errors"

	"hedgelink/internal/ledger"
	"hedgelink/pkg/conn"
)

// ClosedTradeRecord is the history row for one closed trade group.
type ClosedTradeRecord struct {
	ID            uint   `gorm:"primaryKey"`
	BaseID        string `gorm:"uniqueIndex;size:32"`
	Instrument    string `gorm:"size:64"`
	Account       string `gorm:"size:64"`
	Direction     string `gorm:"size:8"`
	TotalQuantity int64
	OpenedAt      time.Time
	ClosedAt      time.Time
	RecordedAt    time.Time
}

// TableName fixes the history table name.
func (ClosedTradeRecord) TableName() string { return "closed_trades" }

// History writes closed trade groups to the database. A nil client
// disables archiving; every method then no-ops.
type History struct {
	client *conn.Client
}

// NewHistory migrates the history table and returns a writer.
func NewHistory(client *conn.Client) (*History, error) {
	if client == nil {
		return &History{}, nil
	}
	if err := client.DB().AutoMigrate(&ClosedTradeRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate closed trades")
	}
	return &History{client: client}, nil
}

// Enabled reports whether a database is attached.
func (h *History) Enabled() bool {
	return h != nil && h.client != nil
}

// SaveClosed archives a fully closed trade group. Re-saving the same
// base id overwrites the existing row, so the grace-window path can
// archive before removal without caring about retries.
func (h *History) SaveClosed(ctx context.Context, g ledger.TradeGroup) error {
	if !h.Enabled() {
		return nil
	}
	record := ClosedTradeRecord{
		BaseID:        g.BaseID,
		Instrument:    g.Instrument,
		Account:       g.Account,
		Direction:     g.Direction.String(),
		TotalQuantity: int64(g.TotalQuantity),
		OpenedAt:      g.CreatedAt,
		ClosedAt:      g.ClosedAt,
		RecordedAt:    time.Now().UTC(),
	}
	err := h.client.DB().WithContext(ctx).
		Where("base_id = ?", g.BaseID).
		Assign(record).
		FirstOrCreate(&ClosedTradeRecord{}).Error
	if err != nil {
		return errors.Wrapf(err, "archive closed trade, baseId: %s", g.BaseID)
	}
	return nil
}

// Recent returns the latest archived trades, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]ClosedTradeRecord, error) {
	if !h.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var records []ClosedTradeRecord
	err := h.client.DB().WithContext(ctx).
		Order("closed_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "query closed trades")
	}
	return records, nil
}
