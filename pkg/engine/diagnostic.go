package engine

import (
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// handleQueryStatus reads the statistics region: the per-cause
// diagnostic counters and the last recorded error code.
func (d *Device) handleQueryStatus(opcode byte) *wire.Response {
	return wire.Success(opcode, d.store.Stats().Encode())
}

// handleClearStatus zeroes the statistics region.
func (d *Device) handleClearStatus(opcode byte) *wire.Response {
	d.store.Stats().Clear()
	return wire.Success(opcode, nil)
}

// handleQueryTransceiver reports the transceiver status registers via
// the driver collaborator.
func (d *Device) handleQueryTransceiver(opcode byte) *wire.Response {
	if d.config.Transceiver == nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, d.config.Transceiver())
}
