package config

import "errors"

// Store errors. Handlers translate these into protocol failure
// responses; the matching diagnostic code is recorded in the
// statistics region by the store itself.
var (
	ErrInvalidDomainIndex    = errors.New("invalid domain index")
	ErrInvalidDomainLength   = errors.New("domain id length not in {0,1,3,6}")
	ErrInvalidAddressIndex   = errors.New("invalid address table index")
	ErrInvalidDatapointIndex = errors.New("invalid datapoint config index")
	ErrInvalidAliasIndex     = errors.New("invalid alias config index")
	ErrOutOfRange            = errors.New("memory range out of bounds")
	ErrWriteProtected        = errors.New("device is write protected")
	ErrRegionReadOnly        = errors.New("region does not accept writes")
	ErrChecksumMismatch      = errors.New("configuration checksum mismatch")
)

// Cause classifies a recorded failure, mirroring the protocol error
// taxonomy. Causes index the statistics counters.
type Cause uint8

const (
	CauseValidation Cause = iota
	CauseAuthMismatch
	CauseWrongState
	CausePersistence
	CauseBufferExhaustion
	CauseRelayTimeout

	causeCount
)

// String returns the cause name.
func (c Cause) String() string {
	switch c {
	case CauseValidation:
		return "VALIDATION_FAILURE"
	case CauseAuthMismatch:
		return "AUTHENTICATION_MISMATCH"
	case CauseWrongState:
		return "WRONG_STATE"
	case CausePersistence:
		return "PERSISTENCE_FAILURE"
	case CauseBufferExhaustion:
		return "BUFFER_EXHAUSTION"
	case CauseRelayTimeout:
		return "RELAY_TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic error codes recorded as the last-error byte of the
// statistics region.
const (
	CodeInvalidDomain         uint8 = 1
	CodeInvalidDomainLength   uint8 = 2
	CodeInvalidAddressIndex   uint8 = 3
	CodeInvalidDatapointIndex uint8 = 4
	CodeInvalidAliasIndex     uint8 = 5
	CodeLengthMismatch        uint8 = 6
	CodeWrongState            uint8 = 7
	CodeAuthMismatch          uint8 = 8
	CodeBufferExhaustion      uint8 = 9
	CodeRelayTimeout          uint8 = 10
	CodePersistenceFailure    uint8 = 11
	CodeOutOfRange            uint8 = 12
	CodeWriteProtected        uint8 = 13
)
