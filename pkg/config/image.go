package config

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// The checksummed region is the canonical encoding of everything the
// configuration checksum covers, in a fixed order: the node-state
// byte, then the domain, address, datapoint and alias tables. The
// statistics region and the descriptor constants sit outside it.

// checksummedRegion renders the canonical encoding of the checksummed
// region.
func (s *Store) checksummedRegion() []byte {
	out := make([]byte, 0, s.regionSize())
	out = append(out, s.descriptor.NodeState)
	for i := range s.domains {
		out = append(out, s.domains[i].Encode()...)
	}
	for i := range s.addresses {
		out = append(out, s.addresses[i].Encode()...)
	}
	for i := range s.datapoints {
		out = append(out, s.datapoints[i].Encode()...)
	}
	for i := range s.aliases {
		out = append(out, s.aliases[i].Encode()...)
	}
	return out
}

// regionSize returns the checksummed region length in bytes.
func (s *Store) regionSize() int {
	return 1 +
		len(s.domains)*wire.DomainRecordSize +
		len(s.addresses)*wire.AddressRecordSize +
		len(s.datapoints)*wire.DatapointRecordSize +
		len(s.aliases)*wire.AliasRecordSize
}

// applyRegion decodes a full checksummed-region image back into the
// configuration tables. Table sizes are fixed at construction, so the
// image must match regionSize exactly.
func (s *Store) applyRegion(data []byte) error {
	if len(data) != s.regionSize() {
		return fmt.Errorf("config image: %w (%d bytes, want %d)", ErrOutOfRange, len(data), s.regionSize())
	}
	s.descriptor.NodeState = data[0]
	off := 1
	for i := range s.domains {
		d, err := wire.DecodeDomainRecord(data[off:])
		if err != nil {
			return err
		}
		s.domains[i] = d
		off += wire.DomainRecordSize
	}
	for i := range s.addresses {
		a, err := wire.DecodeAddressRecord(data[off:])
		if err != nil {
			return err
		}
		s.addresses[i] = a
		off += wire.AddressRecordSize
	}
	for i := range s.datapoints {
		r, err := wire.DecodeDatapointRecord(data[off:])
		if err != nil {
			return err
		}
		s.datapoints[i] = r
		off += wire.DatapointRecordSize
	}
	for i := range s.aliases {
		a, err := wire.DecodeAliasRecord(data[off:])
		if err != nil {
			return err
		}
		s.aliases[i] = a
		off += wire.AliasRecordSize
	}
	return nil
}

// persistImage is the durable snapshot written to the persistence
// store. The region travels as its canonical encoding so the on-disk
// layout follows the wire layout, and the checksum rides along to
// detect torn or stale images on restore.
type persistImage struct {
	_        struct{} `cbor:",toarray"`
	Version  uint8
	Region   []byte
	Checksum uint8
	Stats    []byte
}

// imageVersion guards against loading snapshots from incompatible
// releases.
const imageVersion = 1

var (
	imageEncMode cbor.EncMode
	imageDecMode cbor.DecMode
)

func init() {
	var err error
	imageEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	imageDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Snapshot renders the durable CBOR image of the store.
func (s *Store) Snapshot() ([]byte, error) {
	img := persistImage{
		Version:  imageVersion,
		Region:   s.checksummedRegion(),
		Checksum: s.checksum,
		Stats:    s.stats.Encode(),
	}
	return imageEncMode.Marshal(img)
}

// Restore loads a durable image produced by Snapshot. A checksum
// mismatch means the image does not describe the region it carries;
// the store is left untouched in that case.
func (s *Store) Restore(data []byte) error {
	var img persistImage
	if err := imageDecMode.Unmarshal(data, &img); err != nil {
		return fmt.Errorf("config image: %w", err)
	}
	if img.Version != imageVersion {
		return fmt.Errorf("config image: unsupported version %d", img.Version)
	}
	if !VerifyChecksum(img.Region, img.Checksum) {
		return fmt.Errorf("config image: %w", ErrChecksumMismatch)
	}
	if err := s.applyRegion(img.Region); err != nil {
		return err
	}
	if st, err := DecodeStatistics(img.Stats); err == nil {
		s.stats = st
	}
	s.checksum = img.Checksum
	s.dirty = false
	return nil
}
