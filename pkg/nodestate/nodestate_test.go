package nodestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) NodeOnline()  { n.events = append(n.events, "online") }
func (n *recordingNotifier) NodeOffline() { n.events = append(n.events, "offline") }

func TestSoftOfflineOverlay(t *testing.T) {
	var persisted []uint8
	m := New(ConfiguredOnline, func(b uint8) { persisted = append(persisted, b) })
	n := &recordingNotifier{}
	m.SetNotifier(n)

	require.True(t, m.Online())

	require.NoError(t, m.SetMode(wire.ModeOffline, 0))
	assert.False(t, m.Online())
	assert.True(t, m.SoftOffline())
	assert.Equal(t, ConfiguredOnline, m.State(), "soft offline does not touch the persisted state")
	assert.Empty(t, persisted)

	// A second offline request is a no-op, no duplicate notification.
	require.NoError(t, m.SetMode(wire.ModeOffline, 0))
	assert.Equal(t, []string{"offline"}, n.events)

	require.NoError(t, m.SetMode(wire.ModeOnline, 0))
	assert.True(t, m.Online())
	assert.Equal(t, []string{"offline", "online"}, n.events)
}

func TestChangeStatePersists(t *testing.T) {
	var persisted []uint8
	m := New(ApplicationUnconfigured, func(b uint8) { persisted = append(persisted, b) })

	require.NoError(t, m.SetMode(wire.ModeChangeState, ConfiguredOnline))
	assert.Equal(t, ConfiguredOnline, m.State())
	assert.Equal(t, []uint8{uint8(ConfiguredOnline)}, persisted)

	err := m.SetMode(wire.ModeChangeState, State(99))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, ConfiguredOnline, m.State())
}

func TestSwitchoverFailureGuard(t *testing.T) {
	m := New(ApplicationlessUnconfigured, nil)
	m.SetSwitchoverFailed(true)

	err := m.SetMode(wire.ModeChangeState, ApplicationUnconfigured)
	assert.ErrorIs(t, err, ErrSwitchoverFailed)
	assert.Equal(t, ApplicationlessUnconfigured, m.State())

	// Re-asserting the applicationless state itself stays allowed.
	require.NoError(t, m.SetMode(wire.ModeChangeState, ApplicationlessUnconfigured))

	m.SetSwitchoverFailed(false)
	require.NoError(t, m.SetMode(wire.ModeChangeState, ApplicationUnconfigured))
	assert.Equal(t, ApplicationUnconfigured, m.State())
}

func TestResetScheduling(t *testing.T) {
	m := New(ConfiguredOnline, nil)

	_, ok := m.TakeScheduledReset()
	require.False(t, ok)

	require.NoError(t, m.SetMode(wire.ModeReset, 0))
	require.True(t, m.ResetPending())

	// The first armed cause wins.
	require.NoError(t, m.SetMode(wire.ModePhysicalReset, 0))

	cause, ok := m.TakeScheduledReset()
	require.True(t, ok)
	assert.Equal(t, ResetSoftware, cause)

	_, ok = m.TakeScheduledReset()
	assert.False(t, ok, "take consumes the armed reset")
}

func TestDomainLeftForcesUnconfigured(t *testing.T) {
	var persisted []uint8
	m := New(ConfiguredOnline, func(b uint8) { persisted = append(persisted, b) })
	n := &recordingNotifier{}
	m.SetNotifier(n)

	m.DomainLeft(1)
	assert.Equal(t, ConfiguredOnline, m.State())
	assert.False(t, m.ResetPending())

	m.DomainLeft(0)
	assert.Equal(t, ApplicationUnconfigured, m.State())
	assert.True(t, m.ResetPending())
	assert.Equal(t, []uint8{uint8(ApplicationUnconfigured)}, persisted)
	assert.Equal(t, []string{"offline"}, n.events)
}

func TestTransitionClearsSoftOffline(t *testing.T) {
	m := New(ConfiguredOnline, nil)
	require.NoError(t, m.SetMode(wire.ModeOffline, 0))
	require.True(t, m.SoftOffline())

	require.NoError(t, m.SetMode(wire.ModeChangeState, ConfiguredOnline))
	assert.False(t, m.SoftOffline())
	assert.True(t, m.Online())
}

func TestStateClassification(t *testing.T) {
	assert.True(t, ConfiguredOnline.IsConfigured())
	assert.True(t, ConfiguredBypass.IsConfigured())
	assert.False(t, ApplicationUnconfigured.IsConfigured())
	assert.False(t, State(0).IsValid())
	assert.True(t, ConfiguredHardOffline.IsValid())
}
