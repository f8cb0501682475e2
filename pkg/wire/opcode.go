package wire

import "fmt"

// Class identifies the opcode class carried in the top bits of the
// first APDU byte.
type Class uint8

const (
	// ClassUnknown marks a byte that matches neither class tag.
	ClassUnknown Class = 0

	// ClassManagement is the 011x_xxxx opcode class.
	ClassManagement Class = 1

	// ClassDiagnostic is the 0101_xxxx opcode class.
	ClassDiagnostic Class = 2
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassManagement:
		return "MANAGEMENT"
	case ClassDiagnostic:
		return "DIAGNOSTIC"
	default:
		return "UNKNOWN"
	}
}

// Opcode base values and tag masks.
const (
	// MgmtBase is the public base of management opcodes (tag 011).
	MgmtBase = 0x60

	// MgmtOpMask extracts the 5-bit management operation code.
	MgmtOpMask = 0x1F

	// DiagBase is the public base of diagnostic opcodes (tag 0101).
	DiagBase = 0x50

	// DiagOpMask extracts the 4-bit diagnostic operation code.
	DiagOpMask = 0x0F

	// MgmtSuccessBase replaces the management tag on success responses.
	MgmtSuccessBase = 0x20

	// MgmtFailureBase replaces the management tag on failure responses.
	MgmtFailureBase = 0x00

	// DiagSuccessBase replaces the diagnostic tag on success responses.
	DiagSuccessBase = 0x30

	// DiagFailureBase replaces the diagnostic tag on failure responses.
	DiagFailureBase = 0x10
)

// MgmtOp is a 5-bit management operation code.
type MgmtOp uint8

const (
	// MgmtQueryID requests device identification, gated by a selection
	// predicate and an optional memory pattern match.
	MgmtQueryID MgmtOp = 0x01

	// MgmtRespondToQuery arms or disarms responses to identification queries.
	MgmtRespondToQuery MgmtOp = 0x02

	// MgmtUpdateDomain writes one domain table entry.
	MgmtUpdateDomain MgmtOp = 0x03

	// MgmtLeaveDomain vacates one domain table entry.
	MgmtLeaveDomain MgmtOp = 0x04

	// MgmtUpdateKey adds a per-byte delta to a domain authentication key.
	MgmtUpdateKey MgmtOp = 0x05

	// MgmtUpdateAddress writes one address table entry.
	MgmtUpdateAddress MgmtOp = 0x06

	// MgmtQueryAddress reads one address table entry.
	MgmtQueryAddress MgmtOp = 0x07

	// MgmtQueryDatapointConfig reads one datapoint config table entry.
	MgmtQueryDatapointConfig MgmtOp = 0x08

	// MgmtUpdateGroupAddress updates size/timer fields of the group
	// entry matching the arrival multicast group.
	MgmtUpdateGroupAddress MgmtOp = 0x09

	// MgmtQueryDomain reads one domain table entry.
	MgmtQueryDomain MgmtOp = 0x0A

	// MgmtUpdateDatapointConfig writes one datapoint config table entry.
	MgmtUpdateDatapointConfig MgmtOp = 0x0B

	// MgmtSetNodeMode drives the node state machine.
	MgmtSetNodeMode MgmtOp = 0x0C

	// MgmtReadMemory reads from one of the named memory regions.
	MgmtReadMemory MgmtOp = 0x0D

	// MgmtWriteMemory writes to one of the named memory regions with an
	// optional action bitmask.
	MgmtWriteMemory MgmtOp = 0x0E

	// MgmtChecksumRecalc forces a configuration checksum recomputation.
	MgmtChecksumRecalc MgmtOp = 0x0F

	// MgmtWink asks the application to identify itself physically.
	MgmtWink MgmtOp = 0x10

	// MgmtMemoryRefresh rewrites a configuration range in place.
	MgmtMemoryRefresh MgmtOp = 0x11

	// MgmtQueryDescriptor reads the read-only descriptor.
	MgmtQueryDescriptor MgmtOp = 0x12

	// MgmtDatapointFetch reads a datapoint value by index.
	MgmtDatapointFetch MgmtOp = 0x13

	// MgmtExpanded is the reserved operation whose first data byte
	// selects an extended operation.
	MgmtExpanded MgmtOp = 0x1D
)

// String returns the management operation name.
func (op MgmtOp) String() string {
	switch op {
	case MgmtQueryID:
		return "QUERY_ID"
	case MgmtRespondToQuery:
		return "RESPOND_TO_QUERY"
	case MgmtUpdateDomain:
		return "UPDATE_DOMAIN"
	case MgmtLeaveDomain:
		return "LEAVE_DOMAIN"
	case MgmtUpdateKey:
		return "UPDATE_KEY"
	case MgmtUpdateAddress:
		return "UPDATE_ADDRESS"
	case MgmtQueryAddress:
		return "QUERY_ADDRESS"
	case MgmtQueryDatapointConfig:
		return "QUERY_DATAPOINT_CONFIG"
	case MgmtUpdateGroupAddress:
		return "UPDATE_GROUP_ADDRESS"
	case MgmtQueryDomain:
		return "QUERY_DOMAIN"
	case MgmtUpdateDatapointConfig:
		return "UPDATE_DATAPOINT_CONFIG"
	case MgmtSetNodeMode:
		return "SET_NODE_MODE"
	case MgmtReadMemory:
		return "READ_MEMORY"
	case MgmtWriteMemory:
		return "WRITE_MEMORY"
	case MgmtChecksumRecalc:
		return "CHECKSUM_RECALC"
	case MgmtWink:
		return "WINK"
	case MgmtMemoryRefresh:
		return "MEMORY_REFRESH"
	case MgmtQueryDescriptor:
		return "QUERY_DESCRIPTOR"
	case MgmtDatapointFetch:
		return "DATAPOINT_FETCH"
	case MgmtExpanded:
		return "EXPANDED"
	default:
		return fmt.Sprintf("MGMT_%#02x", uint8(op))
	}
}

// DiagOp is a 4-bit diagnostic operation code.
type DiagOp uint8

const (
	// DiagQueryStatus reads the statistics region.
	DiagQueryStatus DiagOp = 0x01

	// DiagProxyRelay carries a multi-hop proxy chain.
	DiagProxyRelay DiagOp = 0x02

	// DiagClearStatus zeroes the statistics region.
	DiagClearStatus DiagOp = 0x03

	// DiagQueryTransceiver reads transceiver status registers.
	DiagQueryTransceiver DiagOp = 0x04
)

// String returns the diagnostic operation name.
func (op DiagOp) String() string {
	switch op {
	case DiagQueryStatus:
		return "QUERY_STATUS"
	case DiagProxyRelay:
		return "PROXY_RELAY"
	case DiagClearStatus:
		return "CLEAR_STATUS"
	case DiagQueryTransceiver:
		return "QUERY_TRANSCEIVER"
	default:
		return fmt.Sprintf("DIAG_%#02x", uint8(op))
	}
}

// ExpandedOp is the sub-command byte following the MgmtExpanded opcode.
type ExpandedOp uint8

const (
	// ExpQueryVersion reports the protocol version and capability flags.
	ExpQueryVersion ExpandedOp = 0x01

	// ExpUpdateDatapointByIndex writes a datapoint value by index with
	// an optional unpack transform.
	ExpUpdateDatapointByIndex ExpandedOp = 0x02

	// ExpReportDomain reads a domain entry with the key redacted.
	ExpReportDomain ExpandedOp = 0x03

	// ExpReportKeyedDomain reads a domain entry including the key.
	// The key is redacted when the inbound channel is unauthenticated.
	ExpReportKeyedDomain ExpandedOp = 0x04

	// ExpQueryAlias reads one alias config table entry.
	ExpQueryAlias ExpandedOp = 0x05

	// ExpUpdateAlias writes one alias config table entry.
	ExpUpdateAlias ExpandedOp = 0x06

	// ExpQueryIPMapping reports the IP address mapping introspection data.
	ExpQueryIPMapping ExpandedOp = 0x07

	// ExpQueryAddressMapping reports the address mapping table.
	ExpQueryAddressMapping ExpandedOp = 0x08

	// Firmware image session sub-protocol, forwarded to the firmware
	// transfer collaborator.
	ExpFirmwareOpen     ExpandedOp = 0x10
	ExpFirmwareData     ExpandedOp = 0x11
	ExpFirmwareValidate ExpandedOp = 0x12
	ExpFirmwareCommit   ExpandedOp = 0x13

	// Security session sub-protocol, forwarded to the security
	// collaborator. Info and Status are read-only and bypass the
	// authentication gate.
	ExpSecurityInfo   ExpandedOp = 0x14
	ExpSecurityStatus ExpandedOp = 0x15
	ExpSecurityStart  ExpandedOp = 0x16
	ExpSecurityFinish ExpandedOp = 0x17
)

// String returns the expanded operation name.
func (op ExpandedOp) String() string {
	switch op {
	case ExpQueryVersion:
		return "QUERY_VERSION"
	case ExpUpdateDatapointByIndex:
		return "UPDATE_DATAPOINT_BY_INDEX"
	case ExpReportDomain:
		return "REPORT_DOMAIN"
	case ExpReportKeyedDomain:
		return "REPORT_KEYED_DOMAIN"
	case ExpQueryAlias:
		return "QUERY_ALIAS"
	case ExpUpdateAlias:
		return "UPDATE_ALIAS"
	case ExpQueryIPMapping:
		return "QUERY_IP_MAPPING"
	case ExpQueryAddressMapping:
		return "QUERY_ADDRESS_MAPPING"
	case ExpFirmwareOpen:
		return "FIRMWARE_OPEN"
	case ExpFirmwareData:
		return "FIRMWARE_DATA"
	case ExpFirmwareValidate:
		return "FIRMWARE_VALIDATE"
	case ExpFirmwareCommit:
		return "FIRMWARE_COMMIT"
	case ExpSecurityInfo:
		return "SECURITY_INFO"
	case ExpSecurityStatus:
		return "SECURITY_STATUS"
	case ExpSecurityStart:
		return "SECURITY_START"
	case ExpSecurityFinish:
		return "SECURITY_FINISH"
	default:
		return fmt.Sprintf("EXPANDED_%#02x", uint8(op))
	}
}

// IsReadOnly returns true for expanded operations that never mutate
// device state.
func (op ExpandedOp) IsReadOnly() bool {
	switch op {
	case ExpQueryVersion, ExpReportDomain, ExpQueryAlias,
		ExpQueryIPMapping, ExpQueryAddressMapping,
		ExpSecurityInfo, ExpSecurityStatus:
		return true
	default:
		return false
	}
}

// DecodeOpcode classifies the first APDU byte. For ClassManagement the
// returned op is the 5-bit operation code, for ClassDiagnostic the
// 4-bit code. ClassUnknown is returned for any other tag.
func DecodeOpcode(b byte) (Class, uint8) {
	if b&0xE0 == MgmtBase {
		return ClassManagement, b & MgmtOpMask
	}
	if b&0xF0 == DiagBase {
		return ClassDiagnostic, b & DiagOpMask
	}
	return ClassUnknown, 0
}

// MgmtOpcode builds the request opcode byte for a management operation.
func MgmtOpcode(op MgmtOp) byte {
	return MgmtBase | byte(op&MgmtOpMask)
}

// DiagOpcode builds the request opcode byte for a diagnostic operation.
func DiagOpcode(op DiagOp) byte {
	return DiagBase | byte(op&DiagOpMask)
}

// SuccessOpcode derives the success response opcode from a request
// opcode byte. The operation code is preserved; the class tag is
// replaced by the success marker.
func SuccessOpcode(request byte) byte {
	class, op := DecodeOpcode(request)
	switch class {
	case ClassDiagnostic:
		return DiagSuccessBase | op
	default:
		return MgmtSuccessBase | op
	}
}

// FailureOpcode derives the failure response opcode from a request
// opcode byte.
func FailureOpcode(request byte) byte {
	class, op := DecodeOpcode(request)
	switch class {
	case ClassDiagnostic:
		return DiagFailureBase | op
	default:
		return MgmtFailureBase | op
	}
}
