package config

import "encoding/binary"

// DescriptorSize is the encoded size of the read-only descriptor.
const DescriptorSize = 15

// Descriptor flag bits.
const (
	flagWriteProtected = 0x01
	flagTwoDomains     = 0x02
)

// Descriptor is the read-only device descriptor. All fields except
// NodeState are fixed at configuration time; NodeState is owned by the
// node state machine but lives inside the checksummed region.
//
// Encoded layout:
//
//	[0:6]   unique id
//	[6]     model code
//	[7]     firmware version
//	[8]     node state byte
//	[9]     address table size
//	[10:12] datapoint table size (big-endian)
//	[12:14] alias table size (big-endian)
//	[14]    flags (bit0 write-protect, bit1 two-domains)
type Descriptor struct {
	UniqueID        [6]byte
	ModelCode       uint8
	FirmwareVersion uint8
	NodeState       uint8
	AddressEntries  uint8
	Datapoints      uint16
	Aliases         uint16
	WriteProtected  bool
	TwoDomains      bool
}

// Encode renders the descriptor bytes.
func (d Descriptor) Encode() []byte {
	out := make([]byte, DescriptorSize)
	copy(out[0:6], d.UniqueID[:])
	out[6] = d.ModelCode
	out[7] = d.FirmwareVersion
	out[8] = d.NodeState
	out[9] = d.AddressEntries
	binary.BigEndian.PutUint16(out[10:12], d.Datapoints)
	binary.BigEndian.PutUint16(out[12:14], d.Aliases)
	if d.WriteProtected {
		out[14] |= flagWriteProtected
	}
	if d.TwoDomains {
		out[14] |= flagTwoDomains
	}
	return out
}

// DecodeDescriptor parses descriptor bytes.
func DecodeDescriptor(data []byte) (Descriptor, error) {
	if len(data) < DescriptorSize {
		return Descriptor{}, ErrOutOfRange
	}
	var d Descriptor
	copy(d.UniqueID[:], data[0:6])
	d.ModelCode = data[6]
	d.FirmwareVersion = data[7]
	d.NodeState = data[8]
	d.AddressEntries = data[9]
	d.Datapoints = binary.BigEndian.Uint16(data[10:12])
	d.Aliases = binary.BigEndian.Uint16(data[12:14])
	d.WriteProtected = data[14]&flagWriteProtected != 0
	d.TwoDomains = data[14]&flagTwoDomains != 0
	return d, nil
}
