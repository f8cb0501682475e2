package engine

import (
	"encoding/binary"
	"time"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/config"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// dispatchExpanded routes the sub-command byte following the expanded
// opcode. An unknown sub-command behaves like an unknown opcode.
func (d *Device) dispatchExpanded(now time.Time, env wire.Envelope, opcode byte, data []byte) *wire.Response {
	if len(data) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	op, sub := wire.ExpandedOp(data[0]), data[1:]

	switch op {
	case wire.ExpQueryVersion:
		return d.handleQueryVersion(opcode)
	case wire.ExpUpdateDatapointByIndex:
		return d.handleUpdateDatapointByIndex(now, env, opcode, sub)
	case wire.ExpReportDomain:
		return d.handleReportDomain(opcode, sub, false)
	case wire.ExpReportKeyedDomain:
		return d.handleReportDomain(opcode, sub, env.Authenticated)
	case wire.ExpQueryAlias:
		return d.handleQueryAlias(opcode, sub)
	case wire.ExpUpdateAlias:
		return d.handleUpdateAlias(opcode, sub)
	case wire.ExpQueryIPMapping:
		return d.handleQueryIPMapping(opcode)
	case wire.ExpQueryAddressMapping:
		return d.handleQueryAddressMapping(opcode)
	case wire.ExpFirmwareOpen, wire.ExpFirmwareData,
		wire.ExpFirmwareValidate, wire.ExpFirmwareCommit:
		return d.forwardSubProtocol(opcode, d.config.Firmware, op, sub)
	case wire.ExpSecurityInfo, wire.ExpSecurityStatus,
		wire.ExpSecurityStart, wire.ExpSecurityFinish:
		return d.forwardSubProtocol(opcode, d.config.Security, op, sub)
	default:
		return wire.Failure(opcode)
	}
}

// handleQueryVersion reports the protocol version and the capability
// flags of this device.
func (d *Device) handleQueryVersion(opcode byte) *wire.Response {
	var caps uint16
	if d.profile.TwoDomains {
		caps |= capTwoDomains
	}
	if d.profile.Aliases > 0 {
		caps |= capAliases
	}
	caps |= capProxyRelay
	if d.config.Firmware != nil {
		caps |= capFirmware
	}
	if d.config.Security != nil {
		caps |= capSecurity
	}
	out := make([]byte, 3)
	out[0] = ProtocolVersion
	binary.BigEndian.PutUint16(out[1:], caps)
	return wire.Success(opcode, out)
}

// handleUpdateDatapointByIndex writes a datapoint value from the
// network. Layout after the sub-command byte: index (short or
// escaped), transform count, transform entries (destination offset,
// length), value bytes.
func (d *Device) handleUpdateDatapointByIndex(now time.Time, env wire.Envelope, opcode byte, data []byte) *wire.Response {
	idx, rest, ok := decodeIndex(data)
	if !ok || len(rest) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}

	rec, err := d.store.ReadDatapointConfig(idx)
	if err != nil {
		return wire.Failure(opcode)
	}
	if rec.Direction == wire.DirectionOut {
		return d.failValidation(opcode, config.CodeInvalidDatapointIndex)
	}
	if rec.Authenticated && !env.Authenticated {
		d.store.RecordFailure(config.CauseAuthMismatch, config.CodeAuthMismatch)
		return wire.Failure(opcode)
	}

	target, err := d.resolveValueIndex(idx)
	if err != nil {
		return wire.Failure(opcode)
	}
	stored, found := d.DatapointValue(target)
	if !found {
		return d.failValidation(opcode, config.CodeInvalidDatapointIndex)
	}

	transforms := int(rest[0])
	rest = rest[1:]
	if len(rest) < transforms*2 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	entries := rest[:transforms*2]
	value := rest[transforms*2:]

	if transforms == 0 {
		// Plain form: exact length match against the declared size.
		if len(value) != len(stored) {
			return d.failValidation(opcode, config.CodeLengthMismatch)
		}
		copy(stored, value)
	} else {
		// Unpack form: the compact wire value maps segment by segment
		// into the native layout. Validate everything before copying.
		total := 0
		for i := 0; i < transforms; i++ {
			dst := int(entries[i*2])
			length := int(entries[i*2+1])
			if dst+length > len(stored) {
				return d.failValidation(opcode, config.CodeOutOfRange)
			}
			total += length
		}
		if total != len(value) {
			return d.failValidation(opcode, config.CodeLengthMismatch)
		}
		src := 0
		for i := 0; i < transforms; i++ {
			dst := int(entries[i*2])
			length := int(entries[i*2+1])
			copy(stored[dst:dst+length], value[src:src+length])
			src += length
		}
	}

	if d.machine.State().IsConfigured() {
		d.notifier.DatapointUpdated(target, stored)
	}
	if d.persistValuesAt.IsZero() {
		d.persistValuesAt = now.Add(persistDebounce)
	}
	return wire.Success(opcode, nil)
}

// handleReportDomain reads a domain entry for the expanded report
// operations. keyed controls whether the authentication key may
// accompany the report.
func (d *Device) handleReportDomain(opcode byte, data []byte, keyed bool) *wire.Response {
	if len(data) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := d.store.AccessDomain(data[0])
	if err != nil {
		return wire.Failure(opcode)
	}
	if !keyed {
		rec = rec.Redacted()
	}
	return wire.Success(opcode, rec.Encode())
}

func (d *Device) handleQueryAlias(opcode byte, data []byte) *wire.Response {
	idx, _, ok := decodeIndex(data)
	if !ok {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := d.store.ReadAliasConfig(idx)
	if err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, rec.Encode())
}

func (d *Device) handleUpdateAlias(opcode byte, data []byte) *wire.Response {
	idx, rest, ok := decodeIndex(data)
	if !ok || len(rest) < wire.AliasRecordSize {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := wire.DecodeAliasRecord(rest)
	if err != nil {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	if err := d.store.WriteAliasConfig(idx, rec); err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, nil)
}

// handleQueryIPMapping reports the application-provided IP mapping
// introspection payload.
func (d *Device) handleQueryIPMapping(opcode byte) *wire.Response {
	return wire.Success(opcode, d.config.IPMapping)
}

// handleQueryAddressMapping reports the domain address assignments:
// a count byte followed by (subnet, node) per valid domain.
func (d *Device) handleQueryAddressMapping(opcode byte) *wire.Response {
	out := []byte{0}
	for i := 0; i < d.store.DomainCount(); i++ {
		rec, err := d.store.AccessDomain(uint8(i))
		if err != nil || rec.Invalid {
			continue
		}
		out = append(out, rec.Subnet, rec.Node)
		out[0]++
	}
	return wire.Success(opcode, out)
}

// forwardSubProtocol hands a sub-command to its session collaborator.
func (d *Device) forwardSubProtocol(opcode byte, p SubProtocol, op wire.ExpandedOp, data []byte) *wire.Response {
	if p == nil {
		d.store.RecordFailure(config.CauseWrongState, config.CodeWrongState)
		return wire.Failure(opcode)
	}
	out, err := p.Handle(op, data)
	if err != nil {
		d.logError(err, op.String())
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, out)
}
