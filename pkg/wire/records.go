package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record decode errors.
var (
	ErrShortRecord   = errors.New("record too short")
	ErrRecordVariant = errors.New("unknown record variant")
)

// Record sizes in bytes.
const (
	DomainRecordSize    = 15
	AddressRecordSize   = 5
	DatapointRecordSize = 4
	AliasRecordSize     = DatapointRecordSize + 2
)

// AuthType is the 2-bit domain authentication scheme selector.
type AuthType uint8

const (
	// AuthNone disables domain-wide authentication.
	AuthNone AuthType = 0

	// AuthStandard enables the standard challenge scheme.
	AuthStandard AuthType = 1

	// AuthExtended enables the extended challenge scheme.
	AuthExtended AuthType = 2
)

// DomainRecord is one domain table entry.
//
// Wire layout (15 bytes):
//
//	[0:6]  id (padded with zeros past IDLen)
//	[6]    subnet
//	[7]    bit7 = nonClone, bits 0-6 = node
//	[8]    bits 0-2 = id length, bit3 = dhcp, bits 4-5 = auth type,
//	       bit6 = ls-mode, bit7 = invalid
//	[9:15] authentication key
type DomainRecord struct {
	ID       [6]byte
	IDLen    uint8 // one of 0, 1, 3, 6
	Subnet   uint8
	Node     uint8 // 7 bits
	NonClone bool
	Key      [6]byte
	Invalid  bool
	LSMode   bool
	DHCP     bool
	Auth     AuthType
}

// ValidIDLen reports whether the id length is one of the four legal
// domain id lengths.
func (d *DomainRecord) ValidIDLen() bool {
	switch d.IDLen {
	case 0, 1, 3, 6:
		return true
	}
	return false
}

// Encode renders the 15-byte wire layout.
func (d *DomainRecord) Encode() []byte {
	out := make([]byte, DomainRecordSize)
	copy(out[0:6], d.ID[:])
	out[6] = d.Subnet
	out[7] = d.Node & 0x7F
	if d.NonClone {
		out[7] |= 0x80
	}
	out[8] = d.IDLen & 0x07
	if d.DHCP {
		out[8] |= 0x08
	}
	out[8] |= (uint8(d.Auth) & 0x03) << 4
	if d.LSMode {
		out[8] |= 0x40
	}
	if d.Invalid {
		out[8] |= 0x80
	}
	copy(out[9:15], d.Key[:])
	return out
}

// DecodeDomainRecord parses a 15-byte domain record.
func DecodeDomainRecord(data []byte) (DomainRecord, error) {
	if len(data) < DomainRecordSize {
		return DomainRecord{}, fmt.Errorf("domain record: %w (%d bytes)", ErrShortRecord, len(data))
	}
	var d DomainRecord
	copy(d.ID[:], data[0:6])
	d.Subnet = data[6]
	d.Node = data[7] & 0x7F
	d.NonClone = data[7]&0x80 != 0
	d.IDLen = data[8] & 0x07
	d.DHCP = data[8]&0x08 != 0
	d.Auth = AuthType((data[8] >> 4) & 0x03)
	d.LSMode = data[8]&0x40 != 0
	d.Invalid = data[8]&0x80 != 0
	copy(d.Key[:], data[9:15])
	return d, nil
}

// Redacted returns a copy with the authentication key zeroed, for
// reports over unauthenticated channels.
func (d DomainRecord) Redacted() DomainRecord {
	d.Key = [6]byte{}
	return d
}

// AddressKind tags the address table entry variant.
type AddressKind uint8

const (
	// AddrTurnaround binds a datapoint to another datapoint on the
	// same node.
	AddrTurnaround AddressKind = 0

	// AddrSubnetNode addresses a single peer node.
	AddrSubnetNode AddressKind = 1

	// AddrGroup addresses a multicast group.
	AddrGroup AddressKind = 2

	// AddrBroadcast addresses a subnet or the whole domain.
	AddrBroadcast AddressKind = 3
)

// String returns the address kind name.
func (k AddressKind) String() string {
	switch k {
	case AddrTurnaround:
		return "TURNAROUND"
	case AddrSubnetNode:
		return "SUBNET_NODE"
	case AddrGroup:
		return "GROUP"
	case AddrBroadcast:
		return "BROADCAST"
	default:
		return "UNKNOWN"
	}
}

// AddressRecord is one address table entry. The variant discriminant
// lives in the top two bits of the first byte.
//
// Wire layouts (5 bytes each):
//
//	Group:      [0] = 10 | size:6        (size 0 = unlimited)
//	            [1] = domainIdx:1 << 7 | member:7
//	            [2] = repeat:4 << 4 | retry:4
//	            [3] = receiveTimer:4 << 4 | transmitTimer:4
//	            [4] = group id
//	SubnetNode: [0] = 01 | domainIdx:1
//	            [1] = node:7
//	            [2] = subnet
//	            [3] = repeat:4 << 4 | retry:4
//	            [4] = transmitTimer:4
//	Broadcast:  [0] = 11 | domainIdx:1
//	            [1] = subnet
//	            [2] = backlog:6
//	            [3] = repeat:4 << 4 | retry:4
//	            [4] = transmitTimer:4
//	Turnaround: [0] = 00
//	            [1] = inUse:1
//	            [2] = repeat:4 << 4 | retry:4
//	            [3] = transmitTimer:4
//	            [4] = 0
type AddressRecord struct {
	Kind AddressKind

	DomainIndex uint8

	// Group fields.
	Group        uint8
	Member       uint8
	GroupSize    uint8 // 0..63, 0 = unlimited
	ReceiveTimer uint8

	// SubnetNode / Broadcast fields.
	Node    uint8
	Subnet  uint8
	Backlog uint8

	// Turnaround fields.
	InUse bool

	// Common transport fields.
	Repeat   uint8
	Retry    uint8
	TxTimer  uint8
}

// Encode renders the 5-byte wire layout.
func (a *AddressRecord) Encode() []byte {
	out := make([]byte, AddressRecordSize)
	switch a.Kind {
	case AddrGroup:
		out[0] = 0x80 | a.GroupSize&0x3F
		out[1] = (a.DomainIndex&0x01)<<7 | a.Member&0x7F
		out[2] = a.Repeat<<4 | a.Retry&0x0F
		out[3] = a.ReceiveTimer<<4 | a.TxTimer&0x0F
		out[4] = a.Group
	case AddrSubnetNode:
		out[0] = 0x40 | a.DomainIndex&0x01
		out[1] = a.Node & 0x7F
		out[2] = a.Subnet
		out[3] = a.Repeat<<4 | a.Retry&0x0F
		out[4] = a.TxTimer & 0x0F
	case AddrBroadcast:
		out[0] = 0xC0 | a.DomainIndex&0x01
		out[1] = a.Subnet
		out[2] = a.Backlog & 0x3F
		out[3] = a.Repeat<<4 | a.Retry&0x0F
		out[4] = a.TxTimer & 0x0F
	case AddrTurnaround:
		if a.InUse {
			out[1] = 0x01
		}
		out[2] = a.Repeat<<4 | a.Retry&0x0F
		out[3] = a.TxTimer & 0x0F
	}
	return out
}

// DecodeAddressRecord parses a 5-byte address table record.
func DecodeAddressRecord(data []byte) (AddressRecord, error) {
	if len(data) < AddressRecordSize {
		return AddressRecord{}, fmt.Errorf("address record: %w (%d bytes)", ErrShortRecord, len(data))
	}
	var a AddressRecord
	switch data[0] >> 6 {
	case 0x02: // group
		a.Kind = AddrGroup
		a.GroupSize = data[0] & 0x3F
		a.DomainIndex = data[1] >> 7
		a.Member = data[1] & 0x7F
		a.Repeat = data[2] >> 4
		a.Retry = data[2] & 0x0F
		a.ReceiveTimer = data[3] >> 4
		a.TxTimer = data[3] & 0x0F
		a.Group = data[4]
	case 0x01: // subnet/node
		a.Kind = AddrSubnetNode
		a.DomainIndex = data[0] & 0x01
		a.Node = data[1] & 0x7F
		a.Subnet = data[2]
		a.Repeat = data[3] >> 4
		a.Retry = data[3] & 0x0F
		a.TxTimer = data[4] & 0x0F
	case 0x03: // broadcast
		a.Kind = AddrBroadcast
		a.DomainIndex = data[0] & 0x01
		a.Subnet = data[1]
		a.Backlog = data[2] & 0x3F
		a.Repeat = data[3] >> 4
		a.Retry = data[3] & 0x0F
		a.TxTimer = data[4] & 0x0F
	default: // turnaround
		a.Kind = AddrTurnaround
		a.InUse = data[1]&0x01 != 0
		a.Repeat = data[2] >> 4
		a.Retry = data[2] & 0x0F
		a.TxTimer = data[3] & 0x0F
	}
	return a, nil
}

// DatapointDirection is the configured direction of a datapoint.
type DatapointDirection uint8

const (
	// DirectionIn receives updates from the network.
	DirectionIn DatapointDirection = 0

	// DirectionOut propagates local updates to the network.
	DirectionOut DatapointDirection = 1
)

// String returns the direction name.
func (d DatapointDirection) String() string {
	if d == DirectionOut {
		return "OUT"
	}
	return "IN"
}

// DatapointRecord is one datapoint config table entry.
//
// Wire layout (4 bytes):
//
//	[0] = priority:1 << 7 | direction:1 << 6 | selector bits 13..8
//	[1] = selector bits 7..0
//	[2] = turnaround:1 << 7 | service:2 << 5 | auth:1 << 4 | addrIndex bits 7..4
//	[3] = addrIndex bits 3..0 << 4 | aes:1
//
// The address table index is split across bytes 2 and 3; 0xFF means
// "no entry".
type DatapointRecord struct {
	Selector      uint16 // 14 bits
	Direction     DatapointDirection
	Priority      bool
	Turnaround    bool
	Service       ServiceType
	Authenticated bool
	AddressIndex  uint8
	AES           bool
}

// Encode renders the 4-byte wire layout.
func (r *DatapointRecord) Encode() []byte {
	out := make([]byte, DatapointRecordSize)
	out[0] = uint8(r.Selector>>8) & 0x3F
	if r.Direction == DirectionOut {
		out[0] |= 0x40
	}
	if r.Priority {
		out[0] |= 0x80
	}
	out[1] = uint8(r.Selector)
	out[2] = uint8(r.Service&0x03) << 5
	if r.Turnaround {
		out[2] |= 0x80
	}
	if r.Authenticated {
		out[2] |= 0x10
	}
	out[2] |= r.AddressIndex >> 4
	out[3] = r.AddressIndex << 4
	if r.AES {
		out[3] |= 0x01
	}
	return out
}

// DecodeDatapointRecord parses a 4-byte datapoint config record.
func DecodeDatapointRecord(data []byte) (DatapointRecord, error) {
	if len(data) < DatapointRecordSize {
		return DatapointRecord{}, fmt.Errorf("datapoint record: %w (%d bytes)", ErrShortRecord, len(data))
	}
	var r DatapointRecord
	r.Selector = uint16(data[0]&0x3F)<<8 | uint16(data[1])
	if data[0]&0x40 != 0 {
		r.Direction = DirectionOut
	}
	r.Priority = data[0]&0x80 != 0
	r.Turnaround = data[2]&0x80 != 0
	r.Service = ServiceType((data[2] >> 5) & 0x03)
	r.Authenticated = data[2]&0x10 != 0
	r.AddressIndex = data[2]<<4 | data[3]>>4
	r.AES = data[3]&0x01 != 0
	return r, nil
}

// UnboundPrimary marks an alias not bound to a primary datapoint.
const UnboundPrimary = 0xFFFF

// AliasRecord is one alias config table entry: a datapoint record plus
// the index of the primary datapoint sharing its value (big-endian,
// 0xFFFF = unbound).
type AliasRecord struct {
	Base    DatapointRecord
	Primary uint16
}

// Encode renders the 6-byte wire layout.
func (r *AliasRecord) Encode() []byte {
	out := r.Base.Encode()
	out = append(out, 0, 0)
	binary.BigEndian.PutUint16(out[DatapointRecordSize:], r.Primary)
	return out
}

// DecodeAliasRecord parses a 6-byte alias config record.
func DecodeAliasRecord(data []byte) (AliasRecord, error) {
	if len(data) < AliasRecordSize {
		return AliasRecord{}, fmt.Errorf("alias record: %w (%d bytes)", ErrShortRecord, len(data))
	}
	base, err := DecodeDatapointRecord(data)
	if err != nil {
		return AliasRecord{}, err
	}
	return AliasRecord{
		Base:    base,
		Primary: binary.BigEndian.Uint16(data[DatapointRecordSize:AliasRecordSize]),
	}, nil
}
