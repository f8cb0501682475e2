// Package nodestate implements the node state machine: the persisted
// configuration state byte, the runtime soft-offline overlay and
// deferred reset scheduling.
//
// The machine never resets the device itself. Handlers schedule a
// reset with a cause and the pump owner collects it; executing the
// reset is the application's job.
package nodestate

import (
	"errors"
	"fmt"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// State is the persisted node state byte.
type State uint8

// Persisted state byte values. The numbering is part of the wire
// contract: ChangeState requests and memory reads of the state byte
// carry these exact values.
const (
	ApplicationUnconfigured     State = 2
	ApplicationlessUnconfigured State = 3
	ConfiguredOnline            State = 4
	ConfiguredHardOffline       State = 6
	ConfiguredBypass            State = 12
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case ApplicationUnconfigured:
		return "APPLICATION_UNCONFIGURED"
	case ApplicationlessUnconfigured:
		return "APPLICATIONLESS_UNCONFIGURED"
	case ConfiguredOnline:
		return "CONFIGURED_ONLINE"
	case ConfiguredHardOffline:
		return "CONFIGURED_HARD_OFFLINE"
	case ConfiguredBypass:
		return "CONFIGURED_BYPASS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// IsValid reports whether the byte is one of the persisted states.
func (s State) IsValid() bool {
	switch s {
	case ApplicationUnconfigured, ApplicationlessUnconfigured,
		ConfiguredOnline, ConfiguredHardOffline, ConfiguredBypass:
		return true
	}
	return false
}

// IsConfigured reports whether the state carries a usable network
// configuration.
func (s State) IsConfigured() bool {
	switch s {
	case ConfiguredOnline, ConfiguredHardOffline, ConfiguredBypass:
		return true
	}
	return false
}

// ResetCause records why a reset was scheduled.
type ResetCause uint8

const (
	ResetSoftware ResetCause = iota + 1
	ResetHardware
	ResetExternal
)

// String returns the cause name.
func (c ResetCause) String() string {
	switch c {
	case ResetSoftware:
		return "SOFTWARE"
	case ResetHardware:
		return "HARDWARE"
	case ResetExternal:
		return "EXTERNAL"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrSwitchoverFailed rejects leaving the applicationless state
	// while the firmware switchover failure flag is set.
	ErrSwitchoverFailed = errors.New("firmware switchover failure flag is set")

	// ErrInvalidState rejects a ChangeState request carrying a byte
	// that is not a persisted state value.
	ErrInvalidState = errors.New("invalid node state byte")

	// ErrInvalidMode rejects an unknown SetMode argument.
	ErrInvalidMode = errors.New("invalid node mode")
)

// Notifier receives online/offline transitions. The application uses
// them to start and stop output propagation.
type Notifier interface {
	NodeOnline()
	NodeOffline()
}

// NoopNotifier ignores all notifications.
type NoopNotifier struct{}

func (NoopNotifier) NodeOnline()  {}
func (NoopNotifier) NodeOffline() {}

// Machine is the node state machine. Not safe for concurrent use; it
// shares the engine's single-writer pump.
type Machine struct {
	state       State
	softOffline bool

	switchoverFailed bool

	resetPending bool
	resetCause   ResetCause

	// persist writes the state byte into the checksummed region and
	// recomputes the configuration checksum.
	persist  func(uint8)
	notifier Notifier
}

// New builds a machine over the persisted state byte. persist is
// called with the new byte on every persisted transition.
func New(initial State, persist func(uint8)) *Machine {
	if !initial.IsValid() {
		initial = ApplicationlessUnconfigured
	}
	return &Machine{
		state:    initial,
		persist:  persist,
		notifier: NoopNotifier{},
	}
}

// SetNotifier replaces the application notifier.
func (m *Machine) SetNotifier(n Notifier) {
	if n == nil {
		n = NoopNotifier{}
	}
	m.notifier = n
}

// SetSwitchoverFailed arms or clears the firmware switchover failure
// guard.
func (m *Machine) SetSwitchoverFailed(failed bool) {
	m.switchoverFailed = failed
}

// State returns the persisted state byte.
func (m *Machine) State() State {
	return m.state
}

// SoftOffline reports whether the runtime soft-offline overlay is
// active. The overlay is never persisted; a reset clears it.
func (m *Machine) SoftOffline() bool {
	return m.softOffline
}

// Online reports whether the node propagates datapoint outputs.
func (m *Machine) Online() bool {
	return m.state == ConfiguredOnline && !m.softOffline
}

// SetMode applies a SetNodeMode request. explicit carries the state
// byte of a ChangeState request and is ignored for the other modes.
func (m *Machine) SetMode(mode wire.NodeMode, explicit State) error {
	switch mode {
	case wire.ModeOffline:
		if !m.softOffline {
			m.softOffline = true
			m.notifier.NodeOffline()
		}
		return nil
	case wire.ModeOnline:
		if m.softOffline {
			m.softOffline = false
			m.notifier.NodeOnline()
		}
		return nil
	case wire.ModeReset:
		m.ScheduleReset(ResetSoftware)
		return nil
	case wire.ModePhysicalReset:
		m.ScheduleReset(ResetHardware)
		return nil
	case wire.ModeChangeState:
		return m.changeState(explicit)
	default:
		return fmt.Errorf("mode %d: %w", mode, ErrInvalidMode)
	}
}

// changeState overwrites the persisted state byte.
func (m *Machine) changeState(next State) error {
	if !next.IsValid() {
		return fmt.Errorf("state %d: %w", next, ErrInvalidState)
	}
	if m.state == ApplicationlessUnconfigured &&
		next != ApplicationlessUnconfigured && m.switchoverFailed {
		return ErrSwitchoverFailed
	}
	m.transition(next)
	return nil
}

// DomainLeft records that a domain table entry was vacated. Vacating
// the last valid domain forces the unconfigured state and schedules a
// reset.
func (m *Machine) DomainLeft(remaining int) {
	if remaining > 0 {
		return
	}
	m.transition(ApplicationUnconfigured)
	m.ScheduleReset(ResetSoftware)
}

// transition persists a state change and maintains the overlay and
// notifications.
func (m *Machine) transition(next State) {
	wasOnline := m.Online()
	m.state = next
	m.softOffline = false
	if m.persist != nil {
		m.persist(uint8(next))
	}
	if nowOnline := m.Online(); nowOnline != wasOnline {
		if nowOnline {
			m.notifier.NodeOnline()
		} else {
			m.notifier.NodeOffline()
		}
	}
}

// ScheduleReset arms the deferred reset flag. A later cause does not
// overwrite an armed one; the first scheduled reset wins.
func (m *Machine) ScheduleReset(cause ResetCause) {
	if m.resetPending {
		return
	}
	m.resetPending = true
	m.resetCause = cause
}

// ResetPending reports whether a reset is armed.
func (m *Machine) ResetPending() bool {
	return m.resetPending
}

// TakeScheduledReset consumes the armed reset, if any. The pump owner
// calls this once per poll and executes the reset outside the engine.
func (m *Machine) TakeScheduledReset() (ResetCause, bool) {
	if !m.resetPending {
		return 0, false
	}
	m.resetPending = false
	cause := m.resetCause
	m.resetCause = 0
	return cause, true
}
