package wire

import (
	"fmt"

	"github.com/google/uuid"
)

// Address identifies a node on the fieldbus as subnet/node within a
// domain. Node is a 7-bit value.
type Address struct {
	Subnet uint8
	Node   uint8
}

// String returns "subnet/node".
func (a Address) String() string {
	return fmt.Sprintf("%d/%d", a.Subnet, a.Node)
}

// Envelope carries the receive metadata of one inbound APDU. It is
// assembled by the transport collaborator before dispatch.
type Envelope struct {
	// Source is the sender's subnet/node address.
	Source Address

	// DomainIndex is the domain table index the message arrived on.
	DomainIndex uint8

	// Service is the transport service the message arrived with.
	Service ServiceType

	// Authenticated is true when the transport layer verified the
	// message against the domain authentication key.
	Authenticated bool

	// ArrivalGroup is the multicast group the message arrived on, if
	// the destination was a group address.
	ArrivalGroup *uint8

	// Correlator ties a request to its eventual outcome. It is set
	// only when Service is ServiceRequest; its lifetime is one inbound
	// transaction.
	Correlator uuid.UUID
}

// IsRequest returns true when the inbound service expects a response.
func (e *Envelope) IsRequest() bool {
	return e.Service == ServiceRequest
}

// DestinationKind tags the address variant of an outbound message.
type DestinationKind uint8

const (
	// DestGroup addresses a multicast group within a domain.
	DestGroup DestinationKind = 0

	// DestSubnetNode addresses a single node.
	DestSubnetNode DestinationKind = 1

	// DestBroadcast addresses every node of a subnet (subnet 0 = domain
	// wide).
	DestBroadcast DestinationKind = 2

	// DestUniqueID addresses a node by its 6-byte unique identifier.
	DestUniqueID DestinationKind = 3
)

// String returns the destination kind name.
func (k DestinationKind) String() string {
	switch k {
	case DestGroup:
		return "GROUP"
	case DestSubnetNode:
		return "SUBNET_NODE"
	case DestBroadcast:
		return "BROADCAST"
	case DestUniqueID:
		return "UNIQUE_ID"
	default:
		return "UNKNOWN"
	}
}

// Destination is the resolved target of an outbound message.
type Destination struct {
	Kind        DestinationKind
	DomainIndex uint8

	// Group is set for DestGroup.
	Group uint8

	// Subnet/Node are set for DestSubnetNode and DestBroadcast
	// (Node unused for broadcast).
	Subnet uint8
	Node   uint8

	// UniqueID is set for DestUniqueID. Subnet may carry a routing hint.
	UniqueID [6]byte

	// Retry and TxTimer are the transport retry count and encoded
	// transmit timer for this message.
	Retry   uint8
	TxTimer uint8
}
