package persistence

import "errors"

// Well-known segment names.
const (
	// SegmentConfig holds the configuration image (domains, address
	// table, datapoint/alias config, descriptor).
	SegmentConfig = "config"

	// SegmentValues holds persisted datapoint values.
	SegmentValues = "values"
)

// ErrSegmentNotFound is returned when reading a segment that has never
// been written.
var ErrSegmentNotFound = errors.New("segment not found")

// Store is the persistent-storage collaborator. Implementations must
// tolerate ReadSegment for absent segments by returning
// ErrSegmentNotFound.
type Store interface {
	// ReadSegment returns the full content of a named segment.
	ReadSegment(name string) ([]byte, error)

	// WriteSegment replaces the full content of a named segment.
	WriteSegment(name string, data []byte) error

	// DeleteSegment removes a named segment. Deleting an absent
	// segment is not an error.
	DeleteSegment(name string) error

	// EnterTransaction brackets a multi-segment update. Transactions
	// do not nest.
	EnterTransaction() error

	// ExitTransaction completes the bracketed update.
	ExitTransaction() error
}
