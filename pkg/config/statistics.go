package config

import "encoding/binary"

// StatisticsSize is the encoded size of the statistics region:
// six big-endian 16-bit counters plus the last-error byte and a
// reserved pad byte.
const StatisticsSize = int(causeCount)*2 + 2

// Statistics is the diagnostic statistics region: one saturating
// counter per failure cause plus the last recorded error code.
type Statistics struct {
	Counters  [causeCount]uint16
	LastError uint8
}

// Record bumps the counter for cause and stores code as the last error.
func (s *Statistics) Record(cause Cause, code uint8) {
	if cause < causeCount && s.Counters[cause] != 0xFFFF {
		s.Counters[cause]++
	}
	s.LastError = code
}

// Clear zeroes all counters and the last-error byte.
func (s *Statistics) Clear() {
	*s = Statistics{}
}

// Encode renders the statistics region bytes.
func (s *Statistics) Encode() []byte {
	out := make([]byte, StatisticsSize)
	for i, c := range s.Counters {
		binary.BigEndian.PutUint16(out[i*2:], c)
	}
	out[len(out)-2] = s.LastError
	return out
}

// DecodeStatistics parses the statistics region bytes.
func DecodeStatistics(data []byte) (Statistics, error) {
	if len(data) < StatisticsSize {
		return Statistics{}, ErrOutOfRange
	}
	var s Statistics
	for i := range s.Counters {
		s.Counters[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	s.LastError = data[StatisticsSize-2]
	return s, nil
}
