package config

import (
	"fmt"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// Absolute base addresses of the memory-mapped regions.
const (
	ReadOnlyBase uint16 = 0x0000
	ConfigBase   uint16 = 0x4000
	StatsBase    uint16 = 0xF000
)

// region identifies one memory-mapped region.
type region uint8

const (
	regionReadOnly region = iota
	regionConfig
	regionStats
)

// resolve maps a memory mode and offset onto a region and an offset
// within it. Absolute addresses are matched against the region bases;
// anything between regions is out of range (unless the application's
// direct window claims it, which the callers check first).
func (s *Store) resolve(mode wire.MemoryMode, offset uint16, length int) (region, int, error) {
	var (
		r    region
		base uint16
	)
	switch mode {
	case wire.MemoryReadOnlyRelative:
		r = regionReadOnly
	case wire.MemoryConfigRelative:
		r = regionConfig
	case wire.MemoryStatsRelative:
		r = regionStats
	case wire.MemoryAbsolute:
		switch {
		case offset >= StatsBase:
			r, base = regionStats, StatsBase
		case offset >= ConfigBase:
			r, base = regionConfig, ConfigBase
		default:
			r, base = regionReadOnly, ReadOnlyBase
		}
		offset -= base
	default:
		return 0, 0, fmt.Errorf("memory mode %s: %w", mode, ErrOutOfRange)
	}

	end := int(offset) + length
	if end > s.regionLen(r) {
		s.RecordFailure(CauseValidation, CodeOutOfRange)
		return 0, 0, fmt.Errorf("offset %#04x length %d: %w", offset, length, ErrOutOfRange)
	}
	return r, int(offset), nil
}

// regionLen returns the byte length of a region. The config region is
// the checksummed region image plus the trailing checksum byte.
func (s *Store) regionLen(r region) int {
	switch r {
	case regionReadOnly:
		return DescriptorSize
	case regionConfig:
		return s.regionSize() + 1
	case regionStats:
		return StatisticsSize
	}
	return 0
}

// regionImage materializes the current encoding of a region.
func (s *Store) regionImage(r region) []byte {
	switch r {
	case regionReadOnly:
		return s.descriptor.Encode()
	case regionConfig:
		return append(s.checksummedRegion(), s.checksum)
	case regionStats:
		return s.stats.Encode()
	}
	return nil
}

// ReadMemory reads length bytes at offset in the given mode. Absolute
// accesses consult the direct window first.
func (s *Store) ReadMemory(mode wire.MemoryMode, offset uint16, length int) ([]byte, error) {
	if mode == wire.MemoryAbsolute && s.directWindow != nil {
		buf := make([]byte, length)
		handled, err := s.directWindow(offset, buf, false)
		if err != nil {
			s.RecordFailure(CauseValidation, CodeOutOfRange)
			return nil, err
		}
		if handled {
			return buf, nil
		}
	}
	r, off, err := s.resolve(mode, offset, length)
	if err != nil {
		return nil, err
	}
	img := s.regionImage(r)
	out := make([]byte, length)
	copy(out, img[off:off+length])
	return out, nil
}

// WriteMemory patches data into the region at offset. Structured
// regions are written by materializing the current image, patching it
// and decoding the result back into the tables, so partial record
// writes behave exactly like the flat memory they emulate.
//
// Write protection restricts writes to the configuration and
// read-only relative ranges; the read-only region additionally rejects
// writes to anything but the node-state byte even on unprotected
// devices.
func (s *Store) WriteMemory(mode wire.MemoryMode, offset uint16, data []byte) error {
	if s.descriptor.WriteProtected &&
		mode != wire.MemoryConfigRelative && mode != wire.MemoryReadOnlyRelative {
		s.RecordFailure(CauseValidation, CodeWriteProtected)
		return ErrWriteProtected
	}
	if mode == wire.MemoryAbsolute && s.directWindow != nil {
		handled, err := s.directWindow(offset, data, true)
		if err != nil {
			s.RecordFailure(CauseValidation, CodeOutOfRange)
			return err
		}
		if handled {
			return nil
		}
	}
	r, off, err := s.resolve(mode, offset, len(data))
	if err != nil {
		return err
	}

	switch r {
	case regionReadOnly:
		// Only the node-state byte of the descriptor is writable.
		if off != 8 || len(data) != 1 {
			s.RecordFailure(CauseValidation, CodeOutOfRange)
			return fmt.Errorf("read-only region offset %d: %w", off, ErrRegionReadOnly)
		}
		s.descriptor.NodeState = data[0]
		s.RecomputeChecksum()
	case regionConfig:
		img := append(s.checksummedRegion(), s.checksum)
		copy(img[off:], data)
		if err := s.applyRegion(img[:len(img)-1]); err != nil {
			return err
		}
		// A patched checksum byte is accepted verbatim; the checksum
		// action flag on the write command recomputes it if asked.
		s.checksum = img[len(img)-1]
	case regionStats:
		img := s.stats.Encode()
		copy(img[off:], data)
		st, err := DecodeStatistics(img)
		if err != nil {
			return err
		}
		s.stats = st
		// Statistics sit outside the checksummed region; no flush.
		return nil
	}
	s.SchedulePersist()
	return nil
}
