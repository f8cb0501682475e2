package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger. Useful in
// development to watch engine activity on the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("category", event.Category.String()),
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.Opcode != 0 {
		attrs = append(attrs, slog.Int("opcode", int(event.Opcode)))
	}
	if event.Source != "" {
		attrs = append(attrs, slog.String("source", event.Source))
	}
	if event.Correlator != "" {
		attrs = append(attrs, slog.String("correlator", event.Correlator))
	}

	switch {
	case event.State != nil:
		attrs = append(attrs,
			slog.String("old_state", event.State.OldState),
			slog.String("new_state", event.State.NewState),
		)
		if event.State.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.State.Reason))
		}
	case event.Relay != nil:
		attrs = append(attrs,
			slog.Int("remaining_hops", int(event.Relay.RemainingHops)),
			slog.Bool("terminal", event.Relay.Terminal),
		)
		if event.Relay.BudgetMillis != 0 {
			attrs = append(attrs, slog.Uint64("budget_ms", uint64(event.Relay.BudgetMillis)))
		}
		if event.Relay.Failed {
			attrs = append(attrs, slog.Bool("failed", true))
		}
	case event.Persist != nil:
		attrs = append(attrs,
			slog.String("segment", event.Persist.Segment),
			slog.Bool("failed", event.Persist.Failed),
		)
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
