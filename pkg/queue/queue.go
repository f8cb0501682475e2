// Package queue provides the bounded outbound message queues shared by
// the command handlers and the proxy relay engine.
//
// Four queues exist per device: priority and non-priority variants of
// the network-layer and transport-layer queues. Handlers never block on
// a full queue; they check IsFull and arm a cooperative retry deadline
// instead.
package queue

import (
	"errors"

	"github.com/google/uuid"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// ErrFull is returned by EnqueueTail when the queue is at capacity.
var ErrFull = errors.New("outbound queue full")

// Layer selects the protocol layer a message is handed to.
type Layer uint8

const (
	// LayerNetwork bypasses the transport retry machinery.
	LayerNetwork Layer = 0

	// LayerTransport goes through the transport retry machinery.
	LayerTransport Layer = 1
)

// String returns the layer name.
func (l Layer) String() string {
	if l == LayerTransport {
		return "TRANSPORT"
	}
	return "NETWORK"
}

// Message is one outbound APDU with its addressing and service
// parameters.
type Message struct {
	// Dest is the resolved destination address.
	Dest wire.Destination

	// Service is the transport service to send with.
	Service wire.ServiceType

	// Priority selects the priority queue pair.
	Priority bool

	// Data is the APDU, opcode byte first.
	Data []byte

	// Deadline is the transaction timeout budget in milliseconds.
	// Zero means the transport default.
	DeadlineMillis uint32

	// OneTimeKeys, when non-nil, carries per-domain derived
	// authentication keys used for this message only.
	OneTimeKeys [][6]byte

	// Correlator ties the message to an inbound request awaiting the
	// delivery outcome. Zero when no completion is expected.
	Correlator uuid.UUID
}

// Queue is a bounded FIFO of outbound messages.
type Queue struct {
	msgs []*Message
	cap  int
}

// New creates a queue holding at most capacity messages.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{cap: capacity}
}

// IsFull reports whether the queue is at capacity.
func (q *Queue) IsFull() bool {
	return len(q.msgs) >= q.cap
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.msgs)
}

// EnqueueTail appends a message, or returns ErrFull.
func (q *Queue) EnqueueTail(m *Message) error {
	if q.IsFull() {
		return ErrFull
	}
	q.msgs = append(q.msgs, m)
	return nil
}

// DequeueHead removes and returns the oldest message.
func (q *Queue) DequeueHead() (*Message, bool) {
	if len(q.msgs) == 0 {
		return nil, false
	}
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m, true
}

// Set holds the four outbound queues of one device.
type Set struct {
	Network           *Queue
	NetworkPriority   *Queue
	Transport         *Queue
	TransportPriority *Queue
}

// NewSet creates the four queues, each with the given capacity.
func NewSet(capacity int) *Set {
	return &Set{
		Network:           New(capacity),
		NetworkPriority:   New(capacity),
		Transport:         New(capacity),
		TransportPriority: New(capacity),
	}
}

// Select returns the queue for the given layer and priority.
func (s *Set) Select(layer Layer, priority bool) *Queue {
	if layer == LayerTransport {
		if priority {
			return s.TransportPriority
		}
		return s.Transport
	}
	if priority {
		return s.NetworkPriority
	}
	return s.Network
}
