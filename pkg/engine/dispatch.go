package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/config"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/log"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/nodestate"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// Dispatch processes one inbound APDU and returns the response owed to
// the sender. The result is nil when the inbound service expects no
// response, when the outcome is deferred (proxy relay), or when an
// unknown opcode arrives on a non-request service. A null response
// means acknowledged with nothing sent.
//
// Handlers run to completion without blocking; any wait becomes an
// armed deadline picked up by Poll.
func (d *Device) Dispatch(now time.Time, env wire.Envelope, apdu []byte) *wire.Response {
	if len(apdu) == 0 {
		// Same contract as an unrecognized opcode: a requester still
		// gets a failure, everything else is dropped.
		return d.finish(env, wire.Failure(0))
	}
	opcode, data := apdu[0], apdu[1:]
	class, code := wire.DecodeOpcode(opcode)

	d.logCommand(now, env, opcode)

	var resp *wire.Response
	switch class {
	case wire.ClassManagement:
		resp = d.dispatchManagement(now, env, opcode, wire.MgmtOp(code), data)
	case wire.ClassDiagnostic:
		resp = d.dispatchDiagnostic(now, env, opcode, wire.DiagOp(code), data)
	default:
		resp = wire.Failure(opcode)
	}
	return d.finish(env, resp)
}

// finish suppresses responses for non-request services. Mutations have
// already been applied by the handler; only the reply is dropped.
func (d *Device) finish(env wire.Envelope, resp *wire.Response) *wire.Response {
	if resp == nil || !env.IsRequest() {
		return nil
	}
	return resp
}

func (d *Device) dispatchManagement(now time.Time, env wire.Envelope, opcode byte, op wire.MgmtOp, data []byte) *wire.Response {
	if !d.authorized(env, op, data) {
		d.logAuthReject(now, env, opcode)
		d.store.RecordFailure(config.CauseAuthMismatch, config.CodeAuthMismatch)
		return wire.Failure(opcode)
	}

	switch op {
	case wire.MgmtQueryID:
		return d.handleQueryID(opcode, data)
	case wire.MgmtRespondToQuery:
		return d.handleRespondToQuery(opcode, data)
	case wire.MgmtUpdateDomain:
		return d.handleUpdateDomain(opcode, data)
	case wire.MgmtLeaveDomain:
		return d.handleLeaveDomain(opcode, data)
	case wire.MgmtUpdateKey:
		return d.handleUpdateKey(opcode, data)
	case wire.MgmtUpdateAddress:
		return d.handleUpdateAddress(opcode, data)
	case wire.MgmtQueryAddress:
		return d.handleQueryAddress(opcode, data)
	case wire.MgmtQueryDatapointConfig:
		return d.handleQueryDatapointConfig(opcode, data)
	case wire.MgmtUpdateGroupAddress:
		return d.handleUpdateGroupAddress(opcode, env, data)
	case wire.MgmtQueryDomain:
		return d.handleQueryDomain(opcode, env, data)
	case wire.MgmtUpdateDatapointConfig:
		return d.handleUpdateDatapointConfig(opcode, data)
	case wire.MgmtSetNodeMode:
		return d.handleSetNodeMode(now, opcode, data)
	case wire.MgmtReadMemory:
		return d.handleReadMemory(opcode, data)
	case wire.MgmtWriteMemory:
		return d.handleWriteMemory(opcode, data)
	case wire.MgmtChecksumRecalc:
		return d.handleChecksumRecalc(opcode)
	case wire.MgmtWink:
		return d.handleWink(opcode)
	case wire.MgmtMemoryRefresh:
		return d.handleMemoryRefresh(opcode, data)
	case wire.MgmtQueryDescriptor:
		return d.handleQueryDescriptor(opcode)
	case wire.MgmtDatapointFetch:
		return d.handleDatapointFetch(opcode, data)
	case wire.MgmtExpanded:
		return d.dispatchExpanded(now, env, opcode, data)
	default:
		return wire.Failure(opcode)
	}
}

func (d *Device) dispatchDiagnostic(now time.Time, env wire.Envelope, opcode byte, op wire.DiagOp, data []byte) *wire.Response {
	if d.gateActive(env) {
		d.logAuthReject(now, env, opcode)
		d.store.RecordFailure(config.CauseAuthMismatch, config.CodeAuthMismatch)
		return wire.Failure(opcode)
	}

	switch op {
	case wire.DiagQueryStatus:
		return d.handleQueryStatus(opcode)
	case wire.DiagProxyRelay:
		return d.relay.Process(now, env, data)
	case wire.DiagClearStatus:
		return d.handleClearStatus(opcode)
	case wire.DiagQueryTransceiver:
		return d.handleQueryTransceiver(opcode)
	default:
		return wire.Failure(opcode)
	}
}

// gateActive reports whether the authentication gate rejects this
// message outright: domain authentication is configured and the
// transport did not verify the sender.
func (d *Device) gateActive(env wire.Envelope) bool {
	return d.store.AuthEnabled() && !env.Authenticated
}

// authorized applies the authentication gate to a management
// operation. A fixed allow-list of discovery and read-only operations
// passes unauthenticated; everything else requires a verified sender
// once any domain enables authentication.
func (d *Device) authorized(env wire.Envelope, op wire.MgmtOp, data []byte) bool {
	if !d.gateActive(env) {
		return true
	}
	switch op {
	case wire.MgmtQueryID, wire.MgmtRespondToQuery:
		return true
	case wire.MgmtExpanded:
		if len(data) == 0 {
			return false
		}
		switch wire.ExpandedOp(data[0]) {
		case wire.ExpQueryVersion, wire.ExpQueryIPMapping,
			wire.ExpSecurityInfo, wire.ExpSecurityStatus:
			return true
		}
		return false
	default:
		return false
	}
}

func (d *Device) logCommand(now time.Time, env wire.Envelope, opcode byte) {
	d.logger.Log(log.Event{
		Timestamp:  now,
		DeviceID:   d.deviceID,
		Category:   log.CategoryCommand,
		Opcode:     opcode,
		Service:    uint8(env.Service),
		Source:     env.Source.String(),
		Correlator: correlatorString(env.Correlator),
	})
}

func (d *Device) logAuthReject(now time.Time, env wire.Envelope, opcode byte) {
	d.logger.Log(log.Event{
		Timestamp: now,
		DeviceID:  d.deviceID,
		Category:  log.CategoryAuthReject,
		Opcode:    opcode,
		Service:   uint8(env.Service),
		Source:    env.Source.String(),
	})
}

func (d *Device) logStateChange(now time.Time, old, next nodestate.State, reason string) {
	d.logger.Log(log.Event{
		Timestamp: now,
		DeviceID:  d.deviceID,
		Category:  log.CategoryState,
		State: &log.StateChangeEvent{
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func correlatorString(c uuid.UUID) string {
	if c == uuid.Nil {
		return ""
	}
	return c.String()
}
