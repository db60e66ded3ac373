package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"hedgelink/internal/schema"
)

// Snapshot captures trade group state at a point in time.
type Snapshot struct {
	Timestamp   int64        `json:"timestamp"`
	LastSeq     uint64       `json:"lastSeq"`
	LastEventTs int64        `json:"lastEventTs"`
	Groups      []GroupEntry `json:"groups"`
}

// GroupEntry is a single trade group entry.
type GroupEntry struct {
	BaseID            string           `json:"baseId"`
	Direction         schema.Direction `json:"direction"`
	Instrument        string           `json:"instrument"`
	Account           string           `json:"account"`
	TotalQuantity     schema.Quantity  `json:"totalQty"`
	RemainingQuantity schema.Quantity  `json:"remainingQty"`
	IsClosed          bool             `json:"isClosed"`
}

// Snapshot builds a snapshot from the current groups.
func (l *Ledger) Snapshot() Snapshot {
	return l.SnapshotWithMeta(0, 0)
}

// SnapshotWithMeta builds a snapshot with event metadata.
func (l *Ledger) SnapshotWithMeta(lastSeq uint64, lastEventTs int64) Snapshot {
	l.mu.Lock()
	entries := make([]GroupEntry, 0, len(l.groups))
	for _, g := range l.groups {
		entries = append(entries, GroupEntry{
			BaseID:            g.BaseID,
			Direction:         g.Direction,
			Instrument:        g.Instrument,
			Account:           g.Account,
			TotalQuantity:     g.TotalQuantity,
			RemainingQuantity: g.RemainingQuantity,
			IsClosed:          g.IsClosed,
		})
	}
	l.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].BaseID < entries[j].BaseID
	})
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     lastSeq,
		LastEventTs: lastEventTs,
		Groups:      entries,
	}
}

// ApplySnapshot replaces the ledger contents with a snapshot.
func (l *Ledger) ApplySnapshot(snapshot Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.groups = make(map[string]*TradeGroup, len(snapshot.Groups))
	for _, entry := range snapshot.Groups {
		state := GroupStateOpen
		if entry.IsClosed {
			state = GroupStateFullyClosed
		}
		l.groups[entry.BaseID] = &TradeGroup{
			BaseID:            entry.BaseID,
			Direction:         entry.Direction,
			Instrument:        entry.Instrument,
			Account:           entry.Account,
			TotalQuantity:     entry.TotalQuantity,
			RemainingQuantity: entry.RemainingQuantity,
			IsClosed:          entry.IsClosed,
			State:             state,
			CreatedAt:         l.now().UTC(),
		}
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots hold the same groups.
func CompareSnapshots(expected, actual Snapshot) error {
	if len(expected.Groups) != len(actual.Groups) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Groups), len(actual.Groups))
	}
	expectedMap := make(map[string]GroupEntry, len(expected.Groups))
	for _, entry := range expected.Groups {
		expectedMap[entry.BaseID] = entry
	}
	for _, entry := range actual.Groups {
		want, ok := expectedMap[entry.BaseID]
		if !ok {
			return fmt.Errorf("snapshot missing group: %s", entry.BaseID)
		}
		if want.RemainingQuantity != entry.RemainingQuantity || want.TotalQuantity != entry.TotalQuantity || want.IsClosed != entry.IsClosed {
			return fmt.Errorf("snapshot group mismatch: baseId=%s expected=%+v actual=%+v", entry.BaseID, want, entry)
		}
	}
	return nil
}
