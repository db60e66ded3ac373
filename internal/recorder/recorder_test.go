package recorder

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgelink/internal/codec"
	"hedgelink/internal/schema"
)

func writeJournal(t *testing.T, dir string, events []appendRequest) {
	t.Helper()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	for _, e := range events {
		require.NoError(t, w.TryAppend(e.header, e.payload))
	}
	require.NoError(t, w.Close())
}

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()

	exec := schema.LocalExecution{
		ExecutionID: "exec-1",
		OrderID:     "order-1",
		Instrument:  "NQ 12-25",
		Account:     "Sim101",
		Action:      schema.ActionBuy,
		Quantity:    2,
	}
	op := schema.EntryRegistered{
		BaseID:     "TRD_1",
		Direction:  schema.DirectionLong,
		Quantity:   2,
		Instrument: "NQ 12-25",
		Account:    "Sim101",
	}
	writeJournal(t, dir, []appendRequest{
		{schema.NewHeader(schema.EventLocalExecution, 0, 1, 0, 0), codec.EncodeLocalExecution(nil, exec)},
		{schema.NewHeader(schema.EventEntryRegistered, 0, 2, 0, 0), codec.EncodeEntryRegistered(nil, op)},
	})

	playback, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)

	var types []schema.EventType
	err = playback.Run(context.Background(), func(h schema.EventHeader, payload []byte) error {
		types = append(types, h.Type)
		switch h.Type {
		case schema.EventLocalExecution:
			decoded, ok := codec.DecodeLocalExecution(payload)
			require.True(t, ok)
			assert.Equal(t, exec, decoded)
		case schema.EventEntryRegistered:
			decoded, ok := codec.DecodeEntryRegistered(payload)
			require.True(t, ok)
			assert.Equal(t, op, decoded)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []schema.EventType{schema.EventLocalExecution, schema.EventEntryRegistered}, types)
}

func TestJournalDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, []appendRequest{
		{schema.NewHeader(schema.EventGroupRemoved, 0, 1, 0, 0), codec.EncodeGroupRemoved(nil, schema.GroupRemoved{BaseID: "TRD_1"})},
	})

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	path := filepath.Join(dir, entries[0].Name())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[recordHeaderSize] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	playback, err := NewPlayback(PlaybackConfig{Dir: dir})
	require.NoError(t, err)
	err = playback.Run(context.Background(), func(schema.EventHeader, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReaderBoundsPayloadLength(t *testing.T) {
	headerBuf := make([]byte, recordHeaderSize)
	encodeHeader(headerBuf, schema.NewHeader(schema.EventGroupRemoved, 0, 1, 0, 0), 0)
	// Corrupt the length field to claim a multi-gigabyte payload. The
	// reader must reject it before allocating, checksum unseen.
	binary.LittleEndian.PutUint32(headerBuf[16:20], ^uint32(0))

	var buf bytes.Buffer
	buf.Write(headerBuf)
	buf.Write(make([]byte, recordChecksumSize))

	r := NewReader(&buf, ReaderOptions{})
	_, _, err := r.Next()
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestWriterLifecycle(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, FlushInterval: time.Millisecond})
	require.NoError(t, err)

	// Appends before Start are rejected.
	err = w.TryAppend(schema.NewHeader(schema.EventGroupRemoved, 0, 1, 0, 0), nil)
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, w.Close())
	err = w.TryAppend(schema.NewHeader(schema.EventGroupRemoved, 0, 2, 0, 0), nil)
	assert.ErrorIs(t, err, ErrClosed)
}
