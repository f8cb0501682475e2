// Package proxy implements the multi-hop relay engine: chain decode,
// forwarding toward the next hop with a growing timeout budget, and
// terminal delivery with the eight target address encodings.
//
// The engine shares the device pump. It never blocks on a full
// outbound queue; a bounded cooperative wait is armed instead and
// re-checked on each Poll.
package proxy

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/config"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/log"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/queue"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// Timeout budget growth per remaining hop, in milliseconds. The long
// rate applies under the long-timer flag or a high base timer, so a
// slow chain's retries do not expire before the chain completes.
const (
	hopBudgetMillis     = 256
	hopBudgetLongMillis = 512
	highBaseMillis      = 768
)

// bufferWait is the bounded cooperative wait for a free outbound
// queue slot.
const bufferWait = 1024 * time.Millisecond

// txTimerMillis maps the 4-bit encoded transmit timer to milliseconds.
var txTimerMillis = [16]uint32{
	16, 24, 32, 48, 64, 96, 128, 192,
	256, 384, 512, 768, 1024, 1536, 2048, 3072,
}

// budget computes the transaction timeout for a message that still has
// remaining hops ahead of it.
func budget(timerCode uint8, longTimer bool, remaining int) uint32 {
	base := txTimerMillis[timerCode&0x0F]
	perHop := uint32(hopBudgetMillis)
	if longTimer || base >= highBaseMillis {
		perHop = hopBudgetLongMillis
	}
	return base + perHop*uint32(remaining)
}

// KeySource provides the configured domain authentication keys for
// alternate-key derivation.
type KeySource interface {
	// DomainKeys returns the keys of all valid domains, in table order.
	DomainKeys() [][6]byte
}

// FailureRecorder counts relay failures in the device statistics
// region.
type FailureRecorder interface {
	RecordFailure(cause config.Cause, code uint8)
}

// Completion is a deferred relay outcome surfaced by Poll.
type Completion struct {
	Correlator uuid.UUID
	Response   *wire.Response
}

// wait is one relay parked on a full outbound queue.
type wait struct {
	deadline     time.Time
	env          wire.Envelope
	layer        queue.Layer
	priority     bool
	msg          *queue.Message
	isRequest    bool
	correlator   uuid.UUID
	originalHops uint8
}

// pending is a forwarded request-service relay awaiting the lower
// layer's outcome.
type pending struct {
	correlator   uuid.UUID
	originalHops uint8
}

// Engine drives proxy relay requests for one device.
type Engine struct {
	queues *queue.Set
	keys   KeySource
	stats  FailureRecorder
	logger log.Logger

	deviceID string

	waits   []*wait
	pending []pending
}

// NewEngine builds a relay engine over the device's outbound queues.
// stats may be nil when no statistics region is attached.
func NewEngine(deviceID string, queues *queue.Set, keys KeySource, stats FailureRecorder, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Engine{
		queues:   queues,
		keys:     keys,
		stats:    stats,
		logger:   logger,
		deviceID: deviceID,
	}
}

// Process handles one inbound proxy relay request. data is the chain
// following the relay opcode byte. The returned response is nil when
// the outcome is deferred: parked on a full queue, or awaiting the
// lower layer's delivery result.
func (p *Engine) Process(now time.Time, env wire.Envelope, data []byte) *wire.Response {
	chain, err := DecodeChain(data)
	if err != nil {
		p.logRelay(now, env, &log.RelayEvent{Failed: true})
		if env.IsRequest() {
			return wire.Failure(wire.DiagOpcode(wire.DiagProxyRelay))
		}
		return nil
	}

	originalHops := uint8(len(chain.Hops))
	if len(chain.Hops) > 0 {
		return p.relayToNextHop(now, env, chain, originalHops)
	}
	return p.actAsTerminalAgent(now, env, chain, originalHops)
}

// relayToNextHop strips the consumed hop and re-enqueues the remaining
// chain addressed to it.
func (p *Engine) relayToNextHop(now time.Time, env wire.Envelope, chain Chain, originalHops uint8) *wire.Response {
	next := chain.Hops[0]
	chain.Hops = chain.Hops[1:]
	remaining := len(chain.Hops)

	msg := &queue.Message{
		Dest: wire.Destination{
			Kind:        wire.DestSubnetNode,
			DomainIndex: env.DomainIndex,
			Subnet:      next.Subnet,
			Node:        next.Node,
			Retry:       chain.Retry,
			TxTimer:     chain.TxTimer,
		},
		Service:        env.Service,
		Data:           append([]byte{wire.DiagOpcode(wire.DiagProxyRelay)}, chain.Encode()...),
		DeadlineMillis: budget(chain.TxTimer, chain.LongTimer, remaining),
	}
	if env.IsRequest() {
		msg.Correlator = env.Correlator
	}

	// All-agents relay additionally delivers the payload to the hop
	// itself, unacknowledged, alongside the forwarded chain.
	if chain.AllAgents {
		dup := &queue.Message{
			Dest:    msg.Dest,
			Service: wire.ServiceUnacknowledged,
			Data:    chain.Payload,
		}
		p.enqueueOrWait(now, env, dup, originalHops, false)
	}

	p.logRelay(now, env, &log.RelayEvent{
		RemainingHops: uint8(remaining),
		BudgetMillis:  msg.DeadlineMillis,
	})
	return p.enqueueOrWait(now, env, msg, originalHops, env.IsRequest())
}

// actAsTerminalAgent delivers the payload to the decoded terminal
// target.
func (p *Engine) actAsTerminalAgent(now time.Time, env wire.Envelope, chain Chain, originalHops uint8) *wire.Response {
	msg := &queue.Message{
		Dest:    chain.Destination(env.DomainIndex),
		Service: env.Service,
		Data:    chain.Payload,
	}
	if env.IsRequest() {
		msg.Correlator = env.Correlator
	}
	if chain.Terminal.AlternateKey && p.keys != nil {
		msg.OneTimeKeys = deriveKeys(p.keys.DomainKeys(), chain.Terminal.KeyDelta)
	}
	p.logRelay(now, env, &log.RelayEvent{Terminal: true})
	return p.enqueueOrWait(now, env, msg, originalHops, env.IsRequest())
}

// deriveKeys adds the delta per byte modulo 256 to each configured
// domain key. The derived keys live only on the outbound message.
func deriveKeys(keys [][6]byte, delta [6]byte) [][6]byte {
	out := make([][6]byte, len(keys))
	for i, k := range keys {
		for j := range k {
			k[j] += delta[j]
		}
		out[i] = k
	}
	return out
}

// enqueueOrWait enqueues the message, or parks it when the queue is
// full. Request-service relays defer their response until the lower
// layer reports the delivery outcome.
func (p *Engine) enqueueOrWait(now time.Time, env wire.Envelope, msg *queue.Message, originalHops uint8, isRequest bool) *wire.Response {
	layer := queue.LayerTransport
	q := p.queues.Select(layer, msg.Priority)
	if err := q.EnqueueTail(msg); err == nil {
		if isRequest {
			p.pending = append(p.pending, pending{
				correlator:   msg.Correlator,
				originalHops: originalHops,
			})
		}
		return nil
	}

	p.waits = append(p.waits, &wait{
		deadline:     now.Add(bufferWait),
		env:          env,
		layer:        layer,
		priority:     msg.Priority,
		msg:          msg,
		isRequest:    isRequest,
		correlator:   msg.Correlator,
		originalHops: originalHops,
	})
	return nil
}

// Poll retries parked relays and expires those whose wait elapsed.
// Every expiry surfaces a failure completion echoing the original hop
// count; non-request relays respond only through this failure path,
// so the completion carries a nil correlator for them.
func (p *Engine) Poll(now time.Time) []Completion {
	var done []Completion
	remaining := p.waits[:0]
	for _, w := range p.waits {
		q := p.queues.Select(w.layer, w.priority)
		if err := q.EnqueueTail(w.msg); err == nil {
			if w.isRequest {
				p.pending = append(p.pending, pending{
					correlator:   w.correlator,
					originalHops: w.originalHops,
				})
			}
			continue
		}
		if now.Before(w.deadline) {
			remaining = append(remaining, w)
			continue
		}
		p.recordFailure(config.CauseBufferExhaustion, config.CodeBufferExhaustion)
		p.logRelay(now, w.env, &log.RelayEvent{
			RemainingHops: w.originalHops,
			BudgetMillis:  w.msg.DeadlineMillis,
			Failed:        true,
		})
		done = append(done, Completion{
			Correlator: w.correlator,
			Response:   failureWithHops(w.originalHops),
		})
	}
	p.waits = remaining
	return done
}

// Complete translates the lower layer's delivery outcome for a
// forwarded request-service relay into the response owed to the
// original requester. It returns nil for unknown correlators.
func (p *Engine) Complete(correlator uuid.UUID, delivered bool) *wire.Response {
	for i, pd := range p.pending {
		if pd.correlator != correlator {
			continue
		}
		p.pending = append(p.pending[:i], p.pending[i+1:]...)
		if delivered {
			return wire.Success(wire.DiagOpcode(wire.DiagProxyRelay), nil)
		}
		p.recordFailure(config.CauseRelayTimeout, config.CodeRelayTimeout)
		return failureWithHops(pd.originalHops)
	}
	return nil
}

// Waiting reports the number of relays parked on full queues.
func (p *Engine) Waiting() int {
	return len(p.waits)
}

func (p *Engine) recordFailure(cause config.Cause, code uint8) {
	if p.stats != nil {
		p.stats.RecordFailure(cause, code)
	}
}

// failureWithHops builds the relay failure response carrying the
// original hop count.
func failureWithHops(hops uint8) *wire.Response {
	return &wire.Response{
		Opcode: wire.FailureOpcode(wire.DiagOpcode(wire.DiagProxyRelay)),
		Data:   []byte{hops},
	}
}

func (p *Engine) logRelay(now time.Time, env wire.Envelope, relay *log.RelayEvent) {
	p.logger.Log(log.Event{
		Timestamp:  now,
		DeviceID:   p.deviceID,
		Category:   log.CategoryRelay,
		Opcode:     wire.DiagOpcode(wire.DiagProxyRelay),
		Service:    uint8(env.Service),
		Source:     env.Source.String(),
		Correlator: correlatorString(env.Correlator),
		Relay:      relay,
	})
}

func correlatorString(c uuid.UUID) string {
	if c == uuid.Nil {
		return ""
	}
	return c.String()
}
