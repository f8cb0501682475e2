package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/config"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/nodestate"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// wideIndexEscape marks the escaped two-byte index form.
const wideIndexEscape = 0xFF

// decodeIndex reads a datapoint/alias table index: one byte, or the
// escape byte followed by a big-endian 16-bit index.
func decodeIndex(data []byte) (idx uint16, rest []byte, ok bool) {
	if len(data) < 1 {
		return 0, nil, false
	}
	if data[0] != wideIndexEscape {
		return uint16(data[0]), data[1:], true
	}
	if len(data) < 3 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint16(data[1:3]), data[3:], true
}

// failValidation records a validation failure and builds the failure
// response.
func (d *Device) failValidation(opcode byte, code uint8) *wire.Response {
	d.store.RecordFailure(config.CauseValidation, code)
	return wire.Failure(opcode)
}

// handleQueryID answers an identification query. The selection
// predicate and the optional memory pattern decide between answering
// and a null response; only malformed requests fail.
func (d *Device) handleQueryID(opcode byte, data []byte) *wire.Response {
	if len(data) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	selector := wire.IDSelector(data[0])

	var matches bool
	switch selector {
	case wire.SelectUnconfigured:
		matches = !d.machine.State().IsConfigured()
	case wire.SelectSelected:
		matches = d.selected
	case wire.SelectBoth:
		matches = !d.machine.State().IsConfigured() || d.selected
	default:
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	if !matches {
		return wire.NullResponse()
	}

	// Optional pattern block: mode, offset, length, pattern bytes.
	if pattern := data[1:]; len(pattern) > 0 {
		if len(pattern) < 4 {
			return d.failValidation(opcode, config.CodeLengthMismatch)
		}
		mode := wire.MemoryMode(pattern[0])
		offset := binary.BigEndian.Uint16(pattern[1:3])
		length := int(pattern[3])
		want := pattern[4:]
		if len(want) != length {
			return d.failValidation(opcode, config.CodeLengthMismatch)
		}
		got, err := d.store.ReadMemory(mode, offset, length)
		if err != nil {
			return wire.Failure(opcode)
		}
		if !bytes.Equal(got, want) {
			return wire.NullResponse()
		}
	}

	desc := d.store.Descriptor()
	out := make([]byte, 0, 9)
	out = append(out, desc.UniqueID[:]...)
	out = append(out, desc.ModelCode, desc.FirmwareVersion, uint8(d.machine.State()))
	return wire.Success(opcode, out)
}

// handleRespondToQuery arms or disarms the Selected predicate of
// identification queries.
func (d *Device) handleRespondToQuery(opcode byte, data []byte) *wire.Response {
	if len(data) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	d.selected = data[0] != 0
	return wire.Success(opcode, nil)
}

func (d *Device) handleUpdateDomain(opcode byte, data []byte) *wire.Response {
	if len(data) < 1+wire.DomainRecordSize {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := wire.DecodeDomainRecord(data[1:])
	if err != nil {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	if err := d.store.UpdateDomain(data[0], rec, true); err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, nil)
}

func (d *Device) handleLeaveDomain(opcode byte, data []byte) *wire.Response {
	if len(data) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	remaining, err := d.store.LeaveDomain(data[0])
	if err != nil {
		return wire.Failure(opcode)
	}
	d.machine.DomainLeft(remaining)
	return wire.Success(opcode, nil)
}

func (d *Device) handleUpdateKey(opcode byte, data []byte) *wire.Response {
	if len(data) < 7 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	var delta [6]byte
	copy(delta[:], data[1:7])
	if err := d.store.UpdateKey(data[0], delta); err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, nil)
}

func (d *Device) handleUpdateAddress(opcode byte, data []byte) *wire.Response {
	if len(data) < 1+wire.AddressRecordSize {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := wire.DecodeAddressRecord(data[1:])
	if err != nil {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	if err := d.store.UpdateAddress(data[0], rec); err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, nil)
}

func (d *Device) handleQueryAddress(opcode byte, data []byte) *wire.Response {
	if len(data) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := d.store.AccessAddress(data[0])
	if err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, rec.Encode())
}

func (d *Device) handleQueryDatapointConfig(opcode byte, data []byte) *wire.Response {
	idx, _, ok := decodeIndex(data)
	if !ok {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := d.store.ReadDatapointConfig(idx)
	if err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, rec.Encode())
}

// handleUpdateGroupAddress updates the size and timer fields of the
// group entry matching the arrival multicast group. The entry's
// identity fields are untouchable through this operation.
func (d *Device) handleUpdateGroupAddress(opcode byte, env wire.Envelope, data []byte) *wire.Response {
	if env.ArrivalGroup == nil {
		return d.failValidation(opcode, config.CodeInvalidAddressIndex)
	}
	if len(data) < wire.AddressRecordSize {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	update, err := wire.DecodeAddressRecord(data)
	if err != nil || update.Kind != wire.AddrGroup {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	idx, found := d.store.GroupEntry(env.DomainIndex, *env.ArrivalGroup)
	if !found {
		return d.failValidation(opcode, config.CodeInvalidAddressIndex)
	}

	entry, err := d.store.AccessAddress(idx)
	if err != nil {
		return wire.Failure(opcode)
	}
	entry.GroupSize = update.GroupSize
	entry.ReceiveTimer = update.ReceiveTimer
	entry.Repeat = update.Repeat
	entry.Retry = update.Retry
	entry.TxTimer = update.TxTimer
	if err := d.store.UpdateAddress(idx, entry); err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, nil)
}

// handleQueryDomain reads a domain entry. The authentication key never
// crosses an unauthenticated channel.
func (d *Device) handleQueryDomain(opcode byte, env wire.Envelope, data []byte) *wire.Response {
	if len(data) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := d.store.AccessDomain(data[0])
	if err != nil {
		return wire.Failure(opcode)
	}
	if !env.Authenticated {
		rec = rec.Redacted()
	}
	return wire.Success(opcode, rec.Encode())
}

func (d *Device) handleUpdateDatapointConfig(opcode byte, data []byte) *wire.Response {
	idx, rest, ok := decodeIndex(data)
	if !ok || len(rest) < wire.DatapointRecordSize {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	rec, err := wire.DecodeDatapointRecord(rest)
	if err != nil {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	if err := d.store.WriteDatapointConfig(idx, rec); err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, nil)
}

func (d *Device) handleSetNodeMode(now time.Time, opcode byte, data []byte) *wire.Response {
	if len(data) < 1 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	mode := wire.NodeMode(data[0])
	var explicit nodestate.State
	if mode == wire.ModeChangeState {
		if len(data) < 2 {
			return d.failValidation(opcode, config.CodeLengthMismatch)
		}
		explicit = nodestate.State(data[1])
	}

	old := d.machine.State()
	if err := d.machine.SetMode(mode, explicit); err != nil {
		switch {
		case errors.Is(err, nodestate.ErrSwitchoverFailed),
			errors.Is(err, nodestate.ErrInvalidState):
			d.store.RecordFailure(config.CauseWrongState, config.CodeWrongState)
		default:
			d.store.RecordFailure(config.CauseValidation, config.CodeLengthMismatch)
		}
		return wire.Failure(opcode)
	}
	if d.machine.State() != old {
		d.logStateChange(now, old, d.machine.State(), mode.String())
	}
	return wire.Success(opcode, nil)
}

func (d *Device) handleReadMemory(opcode byte, data []byte) *wire.Response {
	if len(data) < 4 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	mode := wire.MemoryMode(data[0])
	offset := binary.BigEndian.Uint16(data[1:3])
	count := int(data[3])

	out, err := d.store.ReadMemory(mode, offset, count)
	if err != nil {
		return wire.Failure(opcode)
	}
	return wire.Success(opcode, out)
}

func (d *Device) handleWriteMemory(opcode byte, data []byte) *wire.Response {
	if len(data) < 5 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	mode := wire.MemoryMode(data[0])
	offset := binary.BigEndian.Uint16(data[1:3])
	count := int(data[3])
	action := data[4]
	payload := data[5:]
	if len(payload) != count {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}

	if err := d.store.WriteMemory(mode, offset, payload); err != nil {
		return wire.Failure(opcode)
	}
	if action&wire.ActionRecomputeChecksum != 0 {
		d.store.RecomputeChecksum()
		d.store.SchedulePersist()
	}
	if action&wire.ActionScheduleReset != 0 {
		d.machine.ScheduleReset(nodestate.ResetSoftware)
	}
	return wire.Success(opcode, nil)
}

func (d *Device) handleChecksumRecalc(opcode byte) *wire.Response {
	sum := d.store.RecomputeChecksum()
	d.store.SchedulePersist()
	return wire.Success(opcode, []byte{sum})
}

func (d *Device) handleWink(opcode byte) *wire.Response {
	d.notifier.Wink()
	return wire.Success(opcode, nil)
}

// handleMemoryRefresh rewrites a configuration range in place, forcing
// a fresh physical write of cells that may have decayed.
func (d *Device) handleMemoryRefresh(opcode byte, data []byte) *wire.Response {
	if len(data) < 3 {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	offset := binary.BigEndian.Uint16(data[0:2])
	count := int(data[2])

	img, err := d.store.ReadMemory(wire.MemoryConfigRelative, offset, count)
	if err != nil {
		return wire.Failure(opcode)
	}
	if err := d.store.WriteMemory(wire.MemoryConfigRelative, offset, img); err != nil {
		return wire.Failure(opcode)
	}
	d.store.RecomputeChecksum()
	d.store.SchedulePersist()
	return wire.Success(opcode, nil)
}

func (d *Device) handleQueryDescriptor(opcode byte) *wire.Response {
	desc := d.store.Descriptor()
	return wire.Success(opcode, desc.Encode())
}

func (d *Device) handleDatapointFetch(opcode byte, data []byte) *wire.Response {
	idx, _, ok := decodeIndex(data)
	if !ok {
		return d.failValidation(opcode, config.CodeLengthMismatch)
	}
	target, err := d.resolveValueIndex(idx)
	if err != nil {
		return wire.Failure(opcode)
	}
	value, found := d.DatapointValue(target)
	if !found {
		return d.failValidation(opcode, config.CodeInvalidDatapointIndex)
	}
	return wire.Success(opcode, value)
}

// resolveValueIndex maps a global datapoint/alias index to the value
// table slot. Alias indexes resolve through the alias's bound primary.
func (d *Device) resolveValueIndex(idx uint16) (uint16, error) {
	if int(idx) < len(d.values) {
		return idx, nil
	}
	rec, err := d.store.ReadAliasConfig(idx - uint16(len(d.values)))
	if err != nil {
		return 0, err
	}
	if rec.Primary == wire.UnboundPrimary || int(rec.Primary) >= len(d.values) {
		d.store.RecordFailure(config.CauseValidation, config.CodeInvalidAliasIndex)
		return 0, config.ErrInvalidAliasIndex
	}
	return rec.Primary, nil
}
