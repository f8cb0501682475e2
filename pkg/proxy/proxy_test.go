package proxy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/config"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/queue"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

type fixedKeys [][6]byte

func (k fixedKeys) DomainKeys() [][6]byte { return k }

type countingStats struct {
	causes []config.Cause
	codes  []uint8
}

func (c *countingStats) RecordFailure(cause config.Cause, code uint8) {
	c.causes = append(c.causes, cause)
	c.codes = append(c.codes, code)
}

func requestEnvelope() wire.Envelope {
	return wire.Envelope{
		Source:     wire.Address{Subnet: 1, Node: 2},
		Service:    wire.ServiceRequest,
		Correlator: uuid.New(),
	}
}

// threeHopChain builds a uniform-addressing chain through nodes 10, 11
// and 12 of subnet 5, terminating at a compact subnet/node target.
func threeHopChain() Chain {
	return Chain{
		Uniform:      true,
		Retry:        3,
		TxTimer:      2, // 32ms base
		SharedSubnet: 5,
		Hops: []Hop{
			{Subnet: 5, Node: 10},
			{Subnet: 5, Node: 11},
			{Subnet: 5, Node: 12},
		},
		Terminal: Terminal{
			Kind:    TerminalSubnetNode,
			Compact: true,
			Subnet:  7,
			Node:    30,
		},
		Payload: []byte{0x61, 0x01},
	}
}

func TestChainRoundTrip(t *testing.T) {
	in := threeHopChain()
	out, err := DecodeChain(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestChainRoundTripNonUniform(t *testing.T) {
	in := Chain{
		LongTimer: true,
		AllAgents: true,
		Retry:     1,
		TxTimer:   9,
		Hops:      []Hop{{Subnet: 3, Node: 4}, {Subnet: 8, Node: 9}},
		Terminal: Terminal{
			Kind:         TerminalUniqueID,
			AlternateKey: true,
			KeyDelta:     [6]byte{1, 2, 3, 4, 5, 6},
			Subnet:       2,
			UniqueID:     [6]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01},
			Retry:        2,
			TxTimer:      5,
		},
		Payload: []byte{0x51},
	}
	out, err := DecodeChain(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTerminalVariantSizes(t *testing.T) {
	cases := []struct {
		kind    TerminalKind
		compact bool
		want    int
	}{
		{TerminalGroup, false, 3},
		{TerminalGroup, true, 1},
		{TerminalSubnetNode, false, 3},
		{TerminalSubnetNode, true, 2},
		{TerminalUniqueID, false, 8},
		{TerminalUniqueID, true, 6},
		{TerminalBroadcast, false, 2},
		{TerminalBroadcast, true, 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, terminalBodyLen(tc.kind, tc.compact), tc.kind.String())
	}
}

func TestDecodeChainRejectsTruncation(t *testing.T) {
	full := threeHopChain().Encode()
	for n := 0; n < len(full)-2; n++ {
		_, err := DecodeChain(full[:n])
		assert.Error(t, err, "prefix of %d bytes", n)
	}
}

func TestCompactTerminalInheritsHeaderTimers(t *testing.T) {
	c := threeHopChain()
	d := c.Destination(0)
	assert.Equal(t, wire.DestSubnetNode, d.Kind)
	assert.Equal(t, uint8(3), d.Retry)
	assert.Equal(t, uint8(2), d.TxTimer)
}

func TestThreeHopBudgetsMonotonic(t *testing.T) {
	qs := queue.NewSet(8)
	e := NewEngine("dev", qs, nil, nil, nil)
	now := time.Now()

	chain := threeHopChain()
	data := chain.Encode()
	var budgets []uint32

	// Walk the chain the way three successive agents would.
	for hop := 0; hop < 3; hop++ {
		resp := e.Process(now, requestEnvelope(), data)
		assert.Nil(t, resp, "forwarding defers the response")

		msg, ok := qs.Transport.DequeueHead()
		require.True(t, ok)
		require.Equal(t, byte(wire.DiagOpcode(wire.DiagProxyRelay)), msg.Data[0])
		assert.Equal(t, uint8(5), msg.Dest.Subnet)
		assert.Equal(t, uint8(10+hop), msg.Dest.Node)
		budgets = append(budgets, msg.DeadlineMillis)

		data = msg.Data[1:]
	}

	decoded, err := DecodeChain(data)
	require.NoError(t, err)
	assert.Empty(t, decoded.Hops, "three forwards consume all three hops")

	// Each agent sees one fewer remaining hop, so each assigned budget
	// is at least the next one; the first agent carries the most.
	assert.Equal(t, uint32(32+2*256), budgets[0])
	assert.Equal(t, uint32(32+1*256), budgets[1])
	assert.Equal(t, uint32(32+0*256), budgets[2])
	for i := 1; i < len(budgets); i++ {
		assert.GreaterOrEqual(t, budgets[i-1], budgets[i])
	}

	// The last agent acts as terminal and enqueues the payload.
	resp := e.Process(now, requestEnvelope(), data)
	assert.Nil(t, resp)
	msg, ok := qs.Transport.DequeueHead()
	require.True(t, ok)
	assert.Equal(t, []byte{0x61, 0x01}, msg.Data)
	assert.Equal(t, wire.DestSubnetNode, msg.Dest.Kind)
	assert.Equal(t, uint8(7), msg.Dest.Subnet)
}

func TestLongTimerBudget(t *testing.T) {
	assert.Equal(t, uint32(32+2*512), budget(2, true, 2))
	// A high base timer forces the long rate even without the flag.
	assert.Equal(t, uint32(768+2*512), budget(11, false, 2))
	assert.Equal(t, uint32(256+2*256), budget(8, false, 2))
}

func TestFullQueueFailsAfterBoundedWait(t *testing.T) {
	qs := queue.NewSet(1)
	// Keep every queue permanently full.
	require.NoError(t, qs.Transport.EnqueueTail(&queue.Message{}))

	e := NewEngine("dev", qs, nil, nil, nil)
	now := time.Now()
	env := requestEnvelope()

	resp := e.Process(now, env, threeHopChain().Encode())
	assert.Nil(t, resp)
	assert.Equal(t, 1, e.Waiting())

	// Within the wait window nothing completes.
	done := e.Poll(now.Add(500 * time.Millisecond))
	assert.Empty(t, done)
	assert.Equal(t, 1, e.Waiting())

	// Past the window the relay fails with the original hop count.
	done = e.Poll(now.Add(2 * time.Second))
	require.Len(t, done, 1)
	assert.Equal(t, env.Correlator, done[0].Correlator)
	require.True(t, done[0].Response.IsFailure())
	assert.Equal(t, []byte{3}, done[0].Response.Data)
	assert.Equal(t, 0, e.Waiting())
}

func TestFullQueueFailsNonRequestRelay(t *testing.T) {
	qs := queue.NewSet(1)
	require.NoError(t, qs.Transport.EnqueueTail(&queue.Message{}))

	stats := &countingStats{}
	e := NewEngine("dev", qs, nil, stats, nil)
	now := time.Now()
	env := requestEnvelope()
	env.Service = wire.ServiceAcknowledged
	env.Correlator = uuid.Nil

	assert.Nil(t, e.Process(now, env, threeHopChain().Encode()))
	require.Equal(t, 1, e.Waiting())

	// Non-request relays respond only on relay failure; the expiry
	// still surfaces that failure as a completion.
	done := e.Poll(now.Add(5 * time.Second))
	require.Len(t, done, 1)
	assert.Equal(t, uuid.Nil, done[0].Correlator)
	require.True(t, done[0].Response.IsFailure())
	assert.Equal(t, []byte{3}, done[0].Response.Data)
	assert.Equal(t, 0, e.Waiting())

	require.Len(t, stats.causes, 1)
	assert.Equal(t, config.CauseBufferExhaustion, stats.causes[0])
	assert.Equal(t, config.CodeBufferExhaustion, stats.codes[0])
}

func TestWaitRetriesWhenSlotFrees(t *testing.T) {
	qs := queue.NewSet(1)
	require.NoError(t, qs.Transport.EnqueueTail(&queue.Message{}))

	e := NewEngine("dev", qs, nil, nil, nil)
	now := time.Now()
	env := requestEnvelope()

	e.Process(now, env, threeHopChain().Encode())
	require.Equal(t, 1, e.Waiting())

	qs.Transport.DequeueHead()
	done := e.Poll(now.Add(100 * time.Millisecond))
	assert.Empty(t, done, "a freed slot completes the forward, not the transaction")
	assert.Equal(t, 0, e.Waiting())
	assert.Equal(t, 1, qs.Transport.Len())
}

func TestAllAgentsDualDelivery(t *testing.T) {
	qs := queue.NewSet(8)
	e := NewEngine("dev", qs, nil, nil, nil)

	chain := threeHopChain()
	chain.AllAgents = true
	env := requestEnvelope()

	e.Process(time.Now(), env, chain.Encode())

	require.Equal(t, 2, qs.Transport.Len())

	// The unacknowledged payload copy is enqueued alongside the
	// forwarded chain, both addressed to the next hop.
	dup, _ := qs.Transport.DequeueHead()
	assert.Equal(t, wire.ServiceUnacknowledged, dup.Service)
	assert.Equal(t, []byte{0x61, 0x01}, dup.Data)
	assert.Equal(t, uint8(10), dup.Dest.Node)

	fwd, _ := qs.Transport.DequeueHead()
	assert.Equal(t, wire.ServiceRequest, fwd.Service)
	assert.Equal(t, byte(wire.DiagOpcode(wire.DiagProxyRelay)), fwd.Data[0])
	assert.Equal(t, uint8(10), fwd.Dest.Node)
}

func TestAlternateKeyDerivation(t *testing.T) {
	qs := queue.NewSet(8)
	keys := fixedKeys{{0x10, 0x20, 0xFF, 0x00, 0x01, 0x02}}
	e := NewEngine("dev", qs, keys, nil, nil)

	chain := Chain{
		TxTimer: 1,
		Terminal: Terminal{
			Kind:         TerminalBroadcast,
			Compact:      true,
			Subnet:       0,
			AlternateKey: true,
			KeyDelta:     [6]byte{0x01, 0x01, 0x01, 0x01, 0x01, 0x01},
		},
		Payload: []byte{0x61},
	}
	e.Process(time.Now(), requestEnvelope(), chain.Encode())

	msg, ok := qs.Transport.DequeueHead()
	require.True(t, ok)
	require.Len(t, msg.OneTimeKeys, 1)
	assert.Equal(t, [6]byte{0x11, 0x21, 0x00, 0x01, 0x02, 0x03}, msg.OneTimeKeys[0])
}

func TestCompleteTranslatesOutcome(t *testing.T) {
	qs := queue.NewSet(8)
	e := NewEngine("dev", qs, nil, nil, nil)
	env := requestEnvelope()

	e.Process(time.Now(), env, threeHopChain().Encode())

	resp := e.Complete(env.Correlator, true)
	require.NotNil(t, resp)
	assert.False(t, resp.IsFailure())
	assert.Equal(t, wire.SuccessOpcode(wire.DiagOpcode(wire.DiagProxyRelay)), resp.Opcode)

	// The pending entry is consumed.
	assert.Nil(t, e.Complete(env.Correlator, true))
}

func TestCompleteFailureEchoesHops(t *testing.T) {
	qs := queue.NewSet(8)
	stats := &countingStats{}
	e := NewEngine("dev", qs, nil, stats, nil)
	env := requestEnvelope()

	e.Process(time.Now(), env, threeHopChain().Encode())

	resp := e.Complete(env.Correlator, false)
	require.NotNil(t, resp)
	assert.True(t, resp.IsFailure())
	assert.Equal(t, []byte{3}, resp.Data)

	require.Len(t, stats.causes, 1)
	assert.Equal(t, config.CauseRelayTimeout, stats.causes[0])
	assert.Equal(t, config.CodeRelayTimeout, stats.codes[0])
}

func TestNonRequestRelayHasNoPendingCompletion(t *testing.T) {
	qs := queue.NewSet(8)
	e := NewEngine("dev", qs, nil, nil, nil)
	env := requestEnvelope()
	env.Service = wire.ServiceAcknowledged
	env.Correlator = uuid.Nil

	resp := e.Process(time.Now(), env, threeHopChain().Encode())
	assert.Nil(t, resp)
	assert.Nil(t, e.Complete(uuid.Nil, false))
}

func TestMalformedChainFailsRequest(t *testing.T) {
	qs := queue.NewSet(8)
	e := NewEngine("dev", qs, nil, nil, nil)

	resp := e.Process(time.Now(), requestEnvelope(), []byte{0x83})
	require.NotNil(t, resp)
	assert.True(t, resp.IsFailure())

	env := requestEnvelope()
	env.Service = wire.ServiceUnacknowledged
	assert.Nil(t, e.Process(time.Now(), env, []byte{0x83}), "non-request decode failures are silent")
}
