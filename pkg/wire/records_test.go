package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainRecordLayout(t *testing.T) {
	d := DomainRecord{
		ID:       [6]byte{0x51},
		IDLen:    1,
		Subnet:   0x23,
		Node:     12,
		NonClone: true,
		Key:      [6]byte{1, 2, 3, 4, 5, 6},
		Auth:     AuthStandard,
	}

	enc := d.Encode()
	require.Len(t, enc, DomainRecordSize)
	assert.Equal(t, byte(0x51), enc[0])
	assert.Equal(t, byte(0x23), enc[6])
	assert.Equal(t, byte(0x8C), enc[7], "nonClone bit + node")
	assert.Equal(t, byte(0x11), enc[8], "idLen 1 + standard auth")

	dec, err := DecodeDomainRecord(enc)
	require.NoError(t, err)
	assert.Equal(t, d, dec)
}

func TestDomainRecordIDLenValidation(t *testing.T) {
	for _, n := range []uint8{0, 1, 3, 6} {
		d := DomainRecord{IDLen: n}
		assert.True(t, d.ValidIDLen(), "len %d must be valid", n)
	}
	for _, n := range []uint8{2, 4, 5, 7} {
		d := DomainRecord{IDLen: n}
		assert.False(t, d.ValidIDLen(), "len %d must be invalid", n)
	}
}

func TestDomainRecordRedacted(t *testing.T) {
	d := DomainRecord{Key: [6]byte{9, 9, 9, 9, 9, 9}}
	assert.Equal(t, [6]byte{}, d.Redacted().Key)
	assert.Equal(t, [6]byte{9, 9, 9, 9, 9, 9}, d.Key, "redaction must copy")
}

func TestAddressRecordVariants(t *testing.T) {
	tests := []struct {
		name string
		rec  AddressRecord
	}{
		{"Group", AddressRecord{
			Kind: AddrGroup, DomainIndex: 1, Group: 200, Member: 9,
			GroupSize: 12, Repeat: 2, Retry: 3, ReceiveTimer: 4, TxTimer: 5,
		}},
		{"SubnetNode", AddressRecord{
			Kind: AddrSubnetNode, DomainIndex: 0, Node: 15, Subnet: 0x23,
			Repeat: 1, Retry: 2, TxTimer: 3,
		}},
		{"Broadcast", AddressRecord{
			Kind: AddrBroadcast, DomainIndex: 1, Subnet: 7, Backlog: 20,
			Repeat: 0, Retry: 15, TxTimer: 9,
		}},
		{"Turnaround", AddressRecord{
			Kind: AddrTurnaround, InUse: true, Repeat: 3, Retry: 3, TxTimer: 1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.rec.Encode()
			require.Len(t, enc, AddressRecordSize)
			dec, err := DecodeAddressRecord(enc)
			require.NoError(t, err)
			assert.Equal(t, tt.rec, dec)
		})
	}
}

func TestAddressRecordDiscriminant(t *testing.T) {
	// The top two bits of byte 0 select the variant.
	rec, err := DecodeAddressRecord([]byte{0x80, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, AddrGroup, rec.Kind)
	assert.Equal(t, uint8(0), rec.GroupSize, "size 0 = unlimited")

	rec, err = DecodeAddressRecord([]byte{0x00, 0x00, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, AddrTurnaround, rec.Kind)
	assert.False(t, rec.InUse)
}

func TestDatapointRecordSplitAddressIndex(t *testing.T) {
	r := DatapointRecord{
		Selector:      0x3FFF,
		Direction:     DirectionOut,
		Priority:      true,
		Service:       ServiceRequest,
		Authenticated: true,
		AddressIndex:  0xA5,
		AES:           true,
	}

	enc := r.Encode()
	require.Len(t, enc, DatapointRecordSize)
	// High nibble of the address index sits in the low nibble of byte 2,
	// low nibble in the high nibble of byte 3.
	assert.Equal(t, byte(0x0A), enc[2]&0x0F)
	assert.Equal(t, byte(0x50), enc[3]&0xF0)

	dec, err := DecodeDatapointRecord(enc)
	require.NoError(t, err)
	assert.Equal(t, r, dec)
}

func TestAliasRecordUnbound(t *testing.T) {
	a := AliasRecord{Primary: UnboundPrimary}
	enc := a.Encode()
	require.Len(t, enc, AliasRecordSize)
	assert.Equal(t, []byte{0xFF, 0xFF}, enc[4:6])

	dec, err := DecodeAliasRecord(enc)
	require.NoError(t, err)
	assert.Equal(t, uint16(UnboundPrimary), dec.Primary)
}

func TestShortRecordsRejected(t *testing.T) {
	_, err := DecodeDomainRecord(make([]byte, DomainRecordSize-1))
	assert.ErrorIs(t, err, ErrShortRecord)
	_, err = DecodeAddressRecord(make([]byte, 2))
	assert.ErrorIs(t, err, ErrShortRecord)
	_, err = DecodeDatapointRecord(nil)
	assert.ErrorIs(t, err, ErrShortRecord)
	_, err = DecodeAliasRecord(make([]byte, 5))
	assert.ErrorIs(t, err, ErrShortRecord)
}
