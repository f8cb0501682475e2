// Package engine implements the application-layer management engine of
// one fieldbus device: command dispatch, the authentication gate, the
// command handlers and the cooperative event pump.
package engine

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/config"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/log"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/nodestate"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/persistence"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/profile"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/proxy"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/queue"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// ProtocolVersion is reported by the expanded version query.
const ProtocolVersion = 2

// Capability flag bits of the version query response.
const (
	capTwoDomains = 0x0001
	capAliases    = 0x0002
	capProxyRelay = 0x0004
	capFirmware   = 0x0008
	capSecurity   = 0x0010
)

// persistDebounce coalesces bursts of mutating commands into one
// physical write.
const persistDebounce = 200 * time.Millisecond

// defaultQueueCapacity bounds each of the four outbound queues.
const defaultQueueCapacity = 16

// AppNotifier receives application-level notifications from the
// engine. Implementations run inside the pump and must not block.
type AppNotifier interface {
	// Wink asks the application to identify the device physically.
	Wink()

	// DatapointUpdated reports a datapoint value written from the
	// network. The value slice is the stored copy; do not retain it.
	DatapointUpdated(index uint16, value []byte)
}

// NoopNotifier ignores all notifications.
type NoopNotifier struct{}

func (NoopNotifier) Wink() {}

func (NoopNotifier) DatapointUpdated(uint16, []byte) {}

// SubProtocol handles a forwarded sub-command session (firmware image
// transfer, security session). The returned bytes become the success
// response payload.
type SubProtocol interface {
	Handle(op wire.ExpandedOp, data []byte) ([]byte, error)
}

// DeviceConfig carries the collaborators of one device instance.
type DeviceConfig struct {
	// Profile describes the device model. Required.
	Profile profile.Profile

	// Storage persists the configuration image. Optional; nil disables
	// persistence.
	Storage persistence.Store

	// Logger receives protocol events. Optional.
	Logger log.Logger

	// Notifier receives application notifications. Optional.
	Notifier AppNotifier

	// QueueCapacity bounds each outbound queue. Zero means the default.
	QueueCapacity int

	// Firmware and Security handle forwarded sub-protocol commands.
	// Optional; a nil collaborator fails the corresponding commands.
	Firmware SubProtocol
	Security SubProtocol

	// Transceiver reports the transceiver status registers for the
	// diagnostic query. Optional.
	Transceiver func() []byte

	// IPMapping is the address-mapping introspection payload. Optional.
	IPMapping []byte
}

// Validate checks the configuration.
func (c *DeviceConfig) Validate() error {
	if err := c.Profile.Validate(); err != nil {
		return err
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue capacity %d out of range", c.QueueCapacity)
	}
	return nil
}

// Device is one fieldbus device instance. All mutable state hangs off
// the Device; two instances never share anything. Not safe for
// concurrent use: Dispatch and Poll share one pump goroutine.
type Device struct {
	config  DeviceConfig
	profile profile.Profile

	store   *config.Store
	machine *nodestate.Machine
	queues  *queue.Set
	relay   *proxy.Engine

	storage  persistence.Store
	logger   log.Logger
	notifier AppNotifier

	deviceID string

	// values is the datapoint value table, indexed like the datapoint
	// config table. Entries are bound by the application with their
	// declared sizes.
	values [][]byte

	// selected is armed by RespondToQuery and read by the identity
	// query predicate.
	selected bool

	// Debounced persistence deadlines, zero when disarmed.
	persistAt       time.Time
	persistValuesAt time.Time
}

// NewDevice builds a device from its profile and collaborators, and
// restores the persisted configuration image when one exists.
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := config.New(cfg.Profile)
	if err != nil {
		return nil, err
	}

	d := &Device{
		config:   cfg,
		profile:  cfg.Profile,
		store:    store,
		storage:  cfg.Storage,
		logger:   cfg.Logger,
		notifier: cfg.Notifier,
		deviceID: cfg.Profile.UniqueID,
		values:   make([][]byte, cfg.Profile.Datapoints),
	}
	if d.logger == nil {
		d.logger = log.NoopLogger{}
	}
	if d.notifier == nil {
		d.notifier = NoopNotifier{}
	}

	capacity := cfg.QueueCapacity
	if capacity == 0 {
		capacity = defaultQueueCapacity
	}
	d.queues = queue.NewSet(capacity)
	d.relay = proxy.NewEngine(d.deviceID, d.queues, store, store, d.logger)

	if d.storage != nil {
		d.restore()
	}

	// A fresh store carries no state byte yet.
	if st := nodestate.State(store.NodeState()); !st.IsValid() {
		store.SetNodeState(uint8(nodestate.ApplicationlessUnconfigured))
	}
	d.machine = nodestate.New(nodestate.State(store.NodeState()), store.SetNodeState)
	return d, nil
}

// restore loads the persisted segments, tolerating their absence.
func (d *Device) restore() {
	if img, err := d.storage.ReadSegment(persistence.SegmentConfig); err == nil {
		if err := d.store.Restore(img); err != nil {
			d.logError(err, "restore config segment")
		}
	}
	if img, err := d.storage.ReadSegment(persistence.SegmentValues); err == nil {
		var vals [][]byte
		if err := cbor.Unmarshal(img, &vals); err != nil {
			d.logError(err, "restore values segment")
			return
		}
		for i := range vals {
			if i < len(d.values) {
				d.values[i] = vals[i]
			}
		}
	}
}

// Store exposes the configuration store. Application access must share
// the pump; never call into it concurrently with Dispatch or Poll.
func (d *Device) Store() *config.Store {
	return d.store
}

// StateMachine exposes the node state machine under the same pump
// contract as Store.
func (d *Device) StateMachine() *nodestate.Machine {
	return d.machine
}

// Queues exposes the outbound queues the transport collaborator drains.
func (d *Device) Queues() *queue.Set {
	return d.queues
}

// SetDirectWindow registers the application's absolute-memory window.
func (d *Device) SetDirectWindow(fn config.DirectWindowFunc) {
	d.store.SetDirectWindow(fn)
}

// BindDatapoint declares the value and size of a datapoint. The length
// of initial is the declared size network writes are validated
// against.
func (d *Device) BindDatapoint(index uint16, initial []byte) error {
	if int(index) >= len(d.values) {
		return fmt.Errorf("datapoint %d: %w", index, config.ErrInvalidDatapointIndex)
	}
	d.values[index] = append([]byte(nil), initial...)
	return nil
}

// DatapointValue returns the stored value of a datapoint.
func (d *Device) DatapointValue(index uint16) ([]byte, bool) {
	if int(index) >= len(d.values) || d.values[index] == nil {
		return nil, false
	}
	return d.values[index], true
}

// PollResult is what one pump call surfaced.
type PollResult struct {
	// Completions are deferred relay outcomes owed to earlier
	// requesters.
	Completions []proxy.Completion

	// ResetCause is set when a scheduled reset is due; the caller
	// executes it.
	ResetCause   nodestate.ResetCause
	ResetPending bool
}

// Poll advances the cooperative machinery: debounced persistence
// flushes, parked relay waits and scheduled resets. The engine makes
// progress only through Dispatch and Poll calls.
func (d *Device) Poll(now time.Time) PollResult {
	d.armPersist(now)
	if !d.persistAt.IsZero() && !now.Before(d.persistAt) {
		d.flushConfig()
		d.persistAt = time.Time{}
	}
	if !d.persistValuesAt.IsZero() && !now.Before(d.persistValuesAt) {
		d.flushValues()
		d.persistValuesAt = time.Time{}
	}

	var r PollResult
	r.Completions = d.relay.Poll(now)
	if cause, ok := d.machine.TakeScheduledReset(); ok {
		r.ResetCause = cause
		r.ResetPending = true
	}
	return r
}

// armPersist starts the debounce window on the first poll that sees
// the store dirty.
func (d *Device) armPersist(now time.Time) {
	if d.store.Dirty() && d.persistAt.IsZero() {
		d.persistAt = now.Add(persistDebounce)
	}
}

// flushConfig writes the configuration image. A storage failure is
// surfaced through the logger and the diagnostic counters; the
// in-memory state stands either way.
func (d *Device) flushConfig() {
	d.store.ClearDirty()
	if d.storage == nil {
		return
	}
	img, err := d.store.Snapshot()
	if err != nil {
		d.logPersist(persistence.SegmentConfig, err)
		return
	}
	err = d.storage.WriteSegment(persistence.SegmentConfig, img)
	d.logPersist(persistence.SegmentConfig, err)
}

// flushValues writes the datapoint value segment.
func (d *Device) flushValues() {
	if d.storage == nil {
		return
	}
	img, err := cbor.Marshal(d.values)
	if err != nil {
		d.logPersist(persistence.SegmentValues, err)
		return
	}
	err = d.storage.WriteSegment(persistence.SegmentValues, img)
	d.logPersist(persistence.SegmentValues, err)
}

// RelayDelivered reports a lower-layer delivery outcome for a
// forwarded request-service relay. The returned response, when
// non-nil, is owed to the original requester.
func (d *Device) RelayDelivered(correlator uuid.UUID, delivered bool) *wire.Response {
	return d.relay.Complete(correlator, delivered)
}

func (d *Device) logPersist(segment string, err error) {
	ev := log.Event{
		Timestamp: time.Now(),
		DeviceID:  d.deviceID,
		Category:  log.CategoryPersist,
		Persist:   &log.PersistEvent{Segment: segment},
	}
	if err != nil {
		ev.Persist.Failed = true
		d.store.RecordFailure(config.CausePersistence, config.CodePersistenceFailure)
	}
	d.logger.Log(ev)
}

func (d *Device) logError(err error, context string) {
	d.logger.Log(log.Event{
		Timestamp: time.Now(),
		DeviceID:  d.deviceID,
		Category:  log.CategoryError,
		Error:     &log.ErrorEvent{Message: err.Error(), Context: context},
	})
}
