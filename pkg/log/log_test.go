package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCBORRoundTrip(t *testing.T) {
	e := Event{
		Timestamp:  time.Now().UTC(),
		DeviceID:   "0102030405aa",
		Category:   CategoryRelay,
		Opcode:     0x52,
		Source:     "35/12",
		Correlator: "9b4f6fd0-1dc7-4f9e-9f3a-000000000001",
		Relay: &RelayEvent{
			RemainingHops: 2,
			BudgetMillis:  1280,
		},
	}

	data, err := EncodeEvent(e)
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, e.DeviceID, got.DeviceID)
	assert.Equal(t, e.Category, got.Category)
	assert.Equal(t, e.Opcode, got.Opcode)
	require.NotNil(t, got.Relay)
	assert.Equal(t, uint8(2), got.Relay.RemainingHops)
	assert.Equal(t, uint32(1280), got.Relay.BudgetMillis)
	assert.WithinDuration(t, e.Timestamp, got.Timestamp, time.Microsecond)
}

func TestFileLoggerAppendsDecodableRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cborlog")

	fl, err := NewFileLogger(path)
	require.NoError(t, err)

	fl.Log(Event{Timestamp: time.Now(), Category: CategoryCommand, Opcode: 0x63})
	fl.Log(Event{Timestamp: time.Now(), Category: CategoryResponse, Opcode: 0x23})
	require.NoError(t, fl.Close())

	// Log after Close is ignored.
	fl.Log(Event{Category: CategoryError})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := NewDecoder(f)
	var events []Event
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			break
		}
		events = append(events, e)
	}
	require.Len(t, events, 2)
	assert.Equal(t, CategoryCommand, events[0].Category)
	assert.Equal(t, uint8(0x23), events[1].Opcode)
}

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b int
	m := NewMultiLogger(
		FuncLogger(func(Event) { a++ }),
		FuncLogger(func(Event) { b++ }),
	)
	m.Log(Event{Category: CategoryState})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestSlogAdapterWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(h))

	adapter.Log(Event{
		Timestamp: time.Now(),
		Category:  CategoryAuthReject,
		Opcode:    0x63,
		Source:    "1/2",
	})

	out := buf.String()
	assert.Contains(t, out, "AUTH_REJECT")
	assert.Contains(t, out, "source=1/2")
}
