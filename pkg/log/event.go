package log

import (
	"time"
)

// Event is one protocol event captured by the engine.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// DeviceID identifies the device instance (unique id, hex).
	DeviceID string `cbor:"2,keyasint,omitempty"`

	// Category classifies the event.
	Category Category `cbor:"3,keyasint"`

	// Opcode is the raw opcode byte of the command or response this
	// event refers to, when applicable.
	Opcode uint8 `cbor:"4,keyasint,omitempty"`

	// Service is the transport service of the inbound message.
	Service uint8 `cbor:"5,keyasint,omitempty"`

	// Source is the sender address ("subnet/node"), when known.
	Source string `cbor:"6,keyasint,omitempty"`

	// Correlator is the request correlator (UUID) of the transaction.
	Correlator string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (at most one is set).
	State   *StateChangeEvent `cbor:"8,keyasint,omitempty"`
	Relay   *RelayEvent       `cbor:"9,keyasint,omitempty"`
	Persist *PersistEvent     `cbor:"10,keyasint,omitempty"`
	Error   *ErrorEvent       `cbor:"11,keyasint,omitempty"`
}

// Category classifies a protocol event.
type Category uint8

const (
	// CategoryCommand is an inbound command accepted for handling.
	CategoryCommand Category = 0

	// CategoryResponse is an outcome emitted by a handler.
	CategoryResponse Category = 1

	// CategoryAuthReject is an authentication gate rejection.
	CategoryAuthReject Category = 2

	// CategoryState is a node state machine transition.
	CategoryState Category = 3

	// CategoryRelay is a proxy relay engine event.
	CategoryRelay Category = 4

	// CategoryPersist is a persistence flush.
	CategoryPersist Category = 5

	// CategoryError is an error at any layer.
	CategoryError Category = 6
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryResponse:
		return "RESPONSE"
	case CategoryAuthReject:
		return "AUTH_REJECT"
	case CategoryState:
		return "STATE"
	case CategoryRelay:
		return "RELAY"
	case CategoryPersist:
		return "PERSIST"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a node state machine transition.
type StateChangeEvent struct {
	// OldState and NewState are the state names.
	OldState string `cbor:"1,keyasint,omitempty"`
	NewState string `cbor:"2,keyasint"`

	// Reason for the transition (mode request, leave-domain, reset).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// RelayEvent captures one step of a proxy relay chain.
type RelayEvent struct {
	// RemainingHops after this step.
	RemainingHops uint8 `cbor:"1,keyasint"`

	// Terminal is true when the chain was terminated here.
	Terminal bool `cbor:"2,keyasint,omitempty"`

	// BudgetMillis is the outbound timeout budget assigned.
	BudgetMillis uint32 `cbor:"3,keyasint,omitempty"`

	// Failed is true for relay-failure completions.
	Failed bool `cbor:"4,keyasint,omitempty"`
}

// PersistEvent captures a persistence flush.
type PersistEvent struct {
	// Segment is the segment name written.
	Segment string `cbor:"1,keyasint"`

	// Failed is true when the storage collaborator reported an error.
	Failed bool `cbor:"2,keyasint,omitempty"`
}

// ErrorEvent captures an error at any layer.
type ErrorEvent struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes the operation being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
