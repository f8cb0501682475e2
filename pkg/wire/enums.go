package wire

// ServiceType is the transport service an inbound message arrived with.
type ServiceType uint8

const (
	// ServiceAcknowledged expects a link-layer acknowledgement but no
	// application response.
	ServiceAcknowledged ServiceType = 0

	// ServiceRepeated sends the message several times without
	// acknowledgement.
	ServiceRepeated ServiceType = 1

	// ServiceUnacknowledged sends the message exactly once.
	ServiceUnacknowledged ServiceType = 2

	// ServiceRequest expects an application-layer response correlated
	// to the request.
	ServiceRequest ServiceType = 3
)

// String returns the service type name.
func (s ServiceType) String() string {
	switch s {
	case ServiceAcknowledged:
		return "ACKNOWLEDGED"
	case ServiceRepeated:
		return "REPEATED"
	case ServiceUnacknowledged:
		return "UNACKNOWLEDGED"
	case ServiceRequest:
		return "REQUEST"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the service type is one of the four defined
// transport services.
func (s ServiceType) IsValid() bool {
	return s <= ServiceRequest
}

// MemoryMode selects the address space of a memory access operation.
type MemoryMode uint8

const (
	// MemoryAbsolute addresses the flat device address space.
	MemoryAbsolute MemoryMode = 0

	// MemoryReadOnlyRelative addresses the read-only descriptor region.
	MemoryReadOnlyRelative MemoryMode = 1

	// MemoryConfigRelative addresses the configuration region.
	MemoryConfigRelative MemoryMode = 2

	// MemoryStatsRelative addresses the statistics region.
	MemoryStatsRelative MemoryMode = 3

	// MemoryDebugExt and MemoryMfgExt are vendor-reserved extension
	// codes. They decode but are rejected by the handlers.
	MemoryDebugExt MemoryMode = 4
	MemoryMfgExt   MemoryMode = 5
)

// String returns the memory mode name.
func (m MemoryMode) String() string {
	switch m {
	case MemoryAbsolute:
		return "ABSOLUTE"
	case MemoryReadOnlyRelative:
		return "READ_ONLY_RELATIVE"
	case MemoryConfigRelative:
		return "CONFIG_RELATIVE"
	case MemoryStatsRelative:
		return "STATS_RELATIVE"
	case MemoryDebugExt:
		return "DEBUG_EXT"
	case MemoryMfgExt:
		return "MFG_EXT"
	default:
		return "UNKNOWN"
	}
}

// Write-memory action bitmask values. Both bits may be set; the
// checksum action runs before the reset is scheduled.
const (
	// ActionRecomputeChecksum recomputes the configuration checksum
	// after the write.
	ActionRecomputeChecksum = 0x01

	// ActionScheduleReset schedules a software reset after the write.
	ActionScheduleReset = 0x04
)

// IDSelector is the selection predicate of an identification query.
type IDSelector uint8

const (
	// SelectUnconfigured matches only unconfigured nodes.
	SelectUnconfigured IDSelector = 0

	// SelectSelected matches only nodes armed by RespondToQuery.
	SelectSelected IDSelector = 1

	// SelectBoth matches either.
	SelectBoth IDSelector = 2
)

// String returns the selector name.
func (s IDSelector) String() string {
	switch s {
	case SelectUnconfigured:
		return "UNCONFIGURED"
	case SelectSelected:
		return "SELECTED"
	case SelectBoth:
		return "BOTH"
	default:
		return "UNKNOWN"
	}
}

// NodeMode is the mode argument of a SetNodeMode request.
type NodeMode uint8

const (
	// ModeOffline requests soft-offline operation.
	ModeOffline NodeMode = 0

	// ModeOnline requests online operation.
	ModeOnline NodeMode = 1

	// ModeReset schedules a software reset.
	ModeReset NodeMode = 2

	// ModeChangeState overwrites the persisted state byte directly.
	ModeChangeState NodeMode = 3

	// ModePhysicalReset schedules a hardware reset.
	ModePhysicalReset NodeMode = 4
)

// String returns the node mode name.
func (m NodeMode) String() string {
	switch m {
	case ModeOffline:
		return "OFFLINE"
	case ModeOnline:
		return "ONLINE"
	case ModeReset:
		return "RESET"
	case ModeChangeState:
		return "CHANGE_STATE"
	case ModePhysicalReset:
		return "PHYSICAL_RESET"
	default:
		return "UNKNOWN"
	}
}
