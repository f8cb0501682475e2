package proxy

import (
	"errors"
	"fmt"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// Chain wire layout, following the proxy relay opcode byte:
//
//	[0] header: uniform:1 << 7 | longTimer:1 << 6 | allAgents:1 << 5 |
//	            hops:5
//	[1] retry:4 << 4 | txTimer:4
//	[2] shared subnet (present only under uniform addressing with
//	    hops > 0)
//	hop records, oldest first:
//	    2 bytes (subnet, node), or 1 byte (node) under uniform
//	    addressing
//	terminal target (see Terminal)
//	payload APDU, opcode byte first
var (
	ErrShortChain      = errors.New("proxy chain truncated")
	ErrTerminalVariant = errors.New("unknown terminal address variant")
)

// MaxHops is the 5-bit hop count limit.
const MaxHops = 31

// Header flag bits.
const (
	flagUniform   = 0x80
	flagLongTimer = 0x40
	flagAllAgents = 0x20
	hopCountMask  = 0x1F
)

// Hop is one intermediate agent address.
type Hop struct {
	Subnet uint8
	Node   uint8
}

// TerminalKind tags the terminal target address variant.
type TerminalKind uint8

const (
	TerminalGroup      TerminalKind = 0
	TerminalSubnetNode TerminalKind = 1
	TerminalUniqueID   TerminalKind = 2
	TerminalBroadcast  TerminalKind = 3
)

// String returns the terminal kind name.
func (k TerminalKind) String() string {
	switch k {
	case TerminalGroup:
		return "GROUP"
	case TerminalSubnetNode:
		return "SUBNET_NODE"
	case TerminalUniqueID:
		return "UNIQUE_ID"
	case TerminalBroadcast:
		return "BROADCAST"
	default:
		return "UNKNOWN"
	}
}

// Terminal target wire layout:
//
//	[0] altKey:1 << 4 | compact:1 << 3 | kind:3
//	body, full form:
//	    group:       group, size, retry:4 << 4 | txTimer:4
//	    subnet/node: subnet, node, retry:4 << 4 | txTimer:4
//	    unique id:   subnet, uid[6], retry:4 << 4 | txTimer:4
//	    broadcast:   subnet, retry:4 << 4 | txTimer:4
//	body, compact form (retry/timer inherited from the chain header):
//	    group:       group
//	    subnet/node: subnet, node
//	    unique id:   uid[6]
//	    broadcast:   subnet
//	[altKey] 6-byte additive key delta
//
// Four kinds with a full and a compact form each give the eight
// terminal address encodings.
type Terminal struct {
	Kind         TerminalKind
	Compact      bool
	AlternateKey bool
	KeyDelta     [6]byte

	Group    uint8
	Size     uint8
	Subnet   uint8
	Node     uint8
	UniqueID [6]byte

	// Retry and TxTimer are valid only for the full forms.
	Retry   uint8
	TxTimer uint8
}

const (
	termKindMask   = 0x07
	termCompactBit = 0x08
	termAltKeyBit  = 0x10
)

// Chain is one decoded proxy relay request.
type Chain struct {
	Uniform   bool
	LongTimer bool
	AllAgents bool

	Retry   uint8
	TxTimer uint8

	// SharedSubnet is the single encoded subnet under uniform
	// addressing.
	SharedSubnet uint8

	Hops     []Hop
	Terminal Terminal

	// Payload is the APDU delivered to the terminal target.
	Payload []byte
}

// DecodeChain parses the chain bytes following the relay opcode.
func DecodeChain(data []byte) (Chain, error) {
	if len(data) < 2 {
		return Chain{}, fmt.Errorf("chain header: %w", ErrShortChain)
	}
	var c Chain
	c.Uniform = data[0]&flagUniform != 0
	c.LongTimer = data[0]&flagLongTimer != 0
	c.AllAgents = data[0]&flagAllAgents != 0
	hops := int(data[0] & hopCountMask)
	c.Retry = data[1] >> 4
	c.TxTimer = data[1] & 0x0F
	off := 2

	if c.Uniform && hops > 0 {
		if len(data) < off+1 {
			return Chain{}, fmt.Errorf("shared subnet: %w", ErrShortChain)
		}
		c.SharedSubnet = data[off]
		off++
	}

	hopSize := 2
	if c.Uniform {
		hopSize = 1
	}
	if len(data) < off+hops*hopSize {
		return Chain{}, fmt.Errorf("%d hop records: %w", hops, ErrShortChain)
	}
	c.Hops = make([]Hop, hops)
	for i := range c.Hops {
		if c.Uniform {
			c.Hops[i] = Hop{Subnet: c.SharedSubnet, Node: data[off] & 0x7F}
		} else {
			c.Hops[i] = Hop{Subnet: data[off], Node: data[off+1] & 0x7F}
		}
		off += hopSize
	}

	n, err := decodeTerminal(data[off:], &c.Terminal)
	if err != nil {
		return Chain{}, err
	}
	off += n

	c.Payload = data[off:]
	return c, nil
}

func decodeTerminal(data []byte, t *Terminal) (int, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("terminal header: %w", ErrShortChain)
	}
	kind := data[0] & termKindMask
	if kind > uint8(TerminalBroadcast) {
		return 0, fmt.Errorf("terminal kind %d: %w", kind, ErrTerminalVariant)
	}
	t.Kind = TerminalKind(kind)
	t.Compact = data[0]&termCompactBit != 0
	t.AlternateKey = data[0]&termAltKeyBit != 0
	off := 1

	bodyLen := terminalBodyLen(t.Kind, t.Compact)
	if len(data) < off+bodyLen {
		return 0, fmt.Errorf("terminal body: %w", ErrShortChain)
	}
	body := data[off : off+bodyLen]
	switch t.Kind {
	case TerminalGroup:
		t.Group = body[0]
		if !t.Compact {
			t.Size = body[1]
			t.Retry = body[2] >> 4
			t.TxTimer = body[2] & 0x0F
		}
	case TerminalSubnetNode:
		t.Subnet = body[0]
		t.Node = body[1] & 0x7F
		if !t.Compact {
			t.Retry = body[2] >> 4
			t.TxTimer = body[2] & 0x0F
		}
	case TerminalUniqueID:
		if t.Compact {
			copy(t.UniqueID[:], body[0:6])
		} else {
			t.Subnet = body[0]
			copy(t.UniqueID[:], body[1:7])
			t.Retry = body[7] >> 4
			t.TxTimer = body[7] & 0x0F
		}
	case TerminalBroadcast:
		t.Subnet = body[0]
		if !t.Compact {
			t.Retry = body[1] >> 4
			t.TxTimer = body[1] & 0x0F
		}
	}
	off += bodyLen

	if t.AlternateKey {
		if len(data) < off+6 {
			return 0, fmt.Errorf("terminal key delta: %w", ErrShortChain)
		}
		copy(t.KeyDelta[:], data[off:off+6])
		off += 6
	}
	return off, nil
}

func terminalBodyLen(kind TerminalKind, compact bool) int {
	switch kind {
	case TerminalGroup:
		if compact {
			return 1
		}
		return 3
	case TerminalSubnetNode:
		if compact {
			return 2
		}
		return 3
	case TerminalUniqueID:
		if compact {
			return 6
		}
		return 8
	case TerminalBroadcast:
		if compact {
			return 1
		}
		return 2
	}
	return 0
}

// Encode renders the chain back to its wire form. Used when
// re-enqueueing the remaining chain toward the next hop.
func (c Chain) Encode() []byte {
	out := make([]byte, 0, 4+len(c.Hops)*2+16+len(c.Payload))
	var h byte
	if c.Uniform {
		h |= flagUniform
	}
	if c.LongTimer {
		h |= flagLongTimer
	}
	if c.AllAgents {
		h |= flagAllAgents
	}
	h |= byte(len(c.Hops)) & hopCountMask
	out = append(out, h, c.Retry<<4|c.TxTimer&0x0F)

	if c.Uniform && len(c.Hops) > 0 {
		out = append(out, c.SharedSubnet)
	}
	for _, hop := range c.Hops {
		if c.Uniform {
			out = append(out, hop.Node&0x7F)
		} else {
			out = append(out, hop.Subnet, hop.Node&0x7F)
		}
	}
	out = append(out, encodeTerminal(&c.Terminal)...)
	return append(out, c.Payload...)
}

func encodeTerminal(t *Terminal) []byte {
	h := byte(t.Kind) & termKindMask
	if t.Compact {
		h |= termCompactBit
	}
	if t.AlternateKey {
		h |= termAltKeyBit
	}
	out := []byte{h}
	switch t.Kind {
	case TerminalGroup:
		if t.Compact {
			out = append(out, t.Group)
		} else {
			out = append(out, t.Group, t.Size, t.Retry<<4|t.TxTimer&0x0F)
		}
	case TerminalSubnetNode:
		if t.Compact {
			out = append(out, t.Subnet, t.Node&0x7F)
		} else {
			out = append(out, t.Subnet, t.Node&0x7F, t.Retry<<4|t.TxTimer&0x0F)
		}
	case TerminalUniqueID:
		if t.Compact {
			out = append(out, t.UniqueID[:]...)
		} else {
			out = append(out, t.Subnet)
			out = append(out, t.UniqueID[:]...)
			out = append(out, t.Retry<<4|t.TxTimer&0x0F)
		}
	case TerminalBroadcast:
		if t.Compact {
			out = append(out, t.Subnet)
		} else {
			out = append(out, t.Subnet, t.Retry<<4|t.TxTimer&0x0F)
		}
	}
	if t.AlternateKey {
		out = append(out, t.KeyDelta[:]...)
	}
	return out
}

// Destination resolves the terminal target to an outbound destination.
// Compact forms inherit the chain header's retry and timer values.
func (c *Chain) Destination(domainIdx uint8) wire.Destination {
	t := &c.Terminal
	d := wire.Destination{
		DomainIndex: domainIdx,
		Retry:       t.Retry,
		TxTimer:     t.TxTimer,
	}
	if t.Compact {
		d.Retry = c.Retry
		d.TxTimer = c.TxTimer
	}
	switch t.Kind {
	case TerminalGroup:
		d.Kind = wire.DestGroup
		d.Group = t.Group
	case TerminalSubnetNode:
		d.Kind = wire.DestSubnetNode
		d.Subnet = t.Subnet
		d.Node = t.Node
	case TerminalUniqueID:
		d.Kind = wire.DestUniqueID
		d.Subnet = t.Subnet
		d.UniqueID = t.UniqueID
	case TerminalBroadcast:
		d.Kind = wire.DestBroadcast
		d.Subnet = t.Subnet
	}
	return d
}
