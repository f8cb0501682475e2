package config

import (
	"fmt"

	"github.com/fieldnet-protocol/fieldnet-go/pkg/profile"
	"github.com/fieldnet-protocol/fieldnet-go/pkg/wire"
)

// MaxDomains is the number of domain table slots.
const MaxDomains = 2

// NoEntry marks an absent address table reference.
const NoEntry = 0xFF

// DirectWindowFunc is the application-registered absolute-memory
// window. It is consulted before the internal region table: handled
// reports whether the callback claimed the access.
type DirectWindowFunc func(addr uint16, data []byte, write bool) (handled bool, err error)

// Store owns the device's mutable configuration.
type Store struct {
	descriptor Descriptor
	domains    [MaxDomains]wire.DomainRecord
	addresses  []wire.AddressRecord
	datapoints []wire.DatapointRecord
	aliases    []wire.AliasRecord
	stats      Statistics

	checksum uint8
	dirty    bool

	directWindow DirectWindowFunc
}

// New builds an unconfigured store sized per the profile. Both domain
// slots start vacated and the datapoint table gets its initial selector
// assignment.
func New(p profile.Profile) (*Store, error) {
	uid, err := p.UniqueIDBytes()
	if err != nil {
		return nil, err
	}

	s := &Store{
		addresses:  make([]wire.AddressRecord, p.AddressEntries),
		datapoints: make([]wire.DatapointRecord, p.Datapoints),
		aliases:    make([]wire.AliasRecord, p.Aliases),
	}
	s.descriptor = Descriptor{
		UniqueID:        uid,
		ModelCode:       modelCode(p.ModelName),
		FirmwareVersion: p.FirmwareVersion,
		AddressEntries:  uint8(p.AddressEntries),
		Datapoints:      uint16(p.Datapoints),
		Aliases:         uint16(p.Aliases),
		WriteProtected:  p.WriteProtected,
		TwoDomains:      p.TwoDomains,
	}
	for i := range s.domains {
		s.domains[i].Invalid = true
	}
	s.ResetDatapointTable()
	s.RecomputeChecksum()
	s.dirty = false
	return s, nil
}

// modelCode derives the descriptor model code from the model name.
func modelCode(name string) uint8 {
	var c uint8
	for i := 0; i < len(name); i++ {
		c += name[i]
	}
	return c
}

// Stats exposes the statistics region for the diagnostic handlers.
func (s *Store) Stats() *Statistics {
	return &s.stats
}

// RecordFailure bumps the diagnostic counter for cause and remembers
// the error code. The statistics region is not part of the checksummed
// region, so no recomputation happens here.
func (s *Store) RecordFailure(cause Cause, code uint8) {
	s.stats.Record(cause, code)
}

// SetDirectWindow registers the application's absolute-memory window.
func (s *Store) SetDirectWindow(fn DirectWindowFunc) {
	s.directWindow = fn
}

// Descriptor returns a copy of the read-only descriptor.
func (s *Store) Descriptor() Descriptor {
	return s.descriptor
}

// WriteProtected reports the descriptor write-protect flag.
func (s *Store) WriteProtected() bool {
	return s.descriptor.WriteProtected
}

// SetNodeState overwrites the persisted node-state byte. The byte is
// owned by the node state machine but lives in the checksummed region.
func (s *Store) SetNodeState(state uint8) {
	s.descriptor.NodeState = state
	s.RecomputeChecksum()
	s.SchedulePersist()
}

// NodeState returns the persisted node-state byte.
func (s *Store) NodeState() uint8 {
	return s.descriptor.NodeState
}

// ---- domain table ----

// DomainCount returns the number of domain slots (1 or 2).
func (s *Store) DomainCount() int {
	if s.descriptor.TwoDomains {
		return MaxDomains
	}
	return 1
}

// AccessDomain returns the domain table entry at idx.
func (s *Store) AccessDomain(idx uint8) (wire.DomainRecord, error) {
	if int(idx) >= s.DomainCount() {
		s.RecordFailure(CauseValidation, CodeInvalidDomain)
		return wire.DomainRecord{}, fmt.Errorf("domain %d: %w", idx, ErrInvalidDomainIndex)
	}
	return s.domains[idx], nil
}

// UpdateDomain writes the domain table entry at idx. When preserveKey
// is set and the update carries an all-zero key, the stored key is
// kept. The checksum is recomputed before returning.
func (s *Store) UpdateDomain(idx uint8, d wire.DomainRecord, preserveKey bool) error {
	if int(idx) >= s.DomainCount() {
		s.RecordFailure(CauseValidation, CodeInvalidDomain)
		return fmt.Errorf("domain %d: %w", idx, ErrInvalidDomainIndex)
	}
	if !d.ValidIDLen() {
		s.RecordFailure(CauseValidation, CodeInvalidDomainLength)
		return fmt.Errorf("domain %d: %w (%d)", idx, ErrInvalidDomainLength, d.IDLen)
	}
	if preserveKey && d.Key == ([6]byte{}) {
		d.Key = s.domains[idx].Key
	}
	s.domains[idx] = d
	s.RecomputeChecksum()
	s.SchedulePersist()
	return nil
}

// LeaveDomain vacates the domain table entry at idx and reports how
// many valid domains remain.
func (s *Store) LeaveDomain(idx uint8) (remaining int, err error) {
	if int(idx) >= s.DomainCount() {
		s.RecordFailure(CauseValidation, CodeInvalidDomain)
		return 0, fmt.Errorf("domain %d: %w", idx, ErrInvalidDomainIndex)
	}
	s.domains[idx] = wire.DomainRecord{Invalid: true}
	s.RecomputeChecksum()
	s.SchedulePersist()

	for i := 0; i < s.DomainCount(); i++ {
		if !s.domains[i].Invalid {
			remaining++
		}
	}
	return remaining, nil
}

// UpdateKey adds delta to the domain authentication key, per byte
// modulo 256.
func (s *Store) UpdateKey(idx uint8, delta [6]byte) error {
	if int(idx) >= s.DomainCount() || s.domains[idx].Invalid {
		s.RecordFailure(CauseValidation, CodeInvalidDomain)
		return fmt.Errorf("domain %d: %w", idx, ErrInvalidDomainIndex)
	}
	for i := range delta {
		s.domains[idx].Key[i] += delta[i]
	}
	s.RecomputeChecksum()
	s.SchedulePersist()
	return nil
}

// HasValidDomain reports whether any domain slot is configured.
func (s *Store) HasValidDomain() bool {
	for i := 0; i < s.DomainCount(); i++ {
		if !s.domains[i].Invalid {
			return true
		}
	}
	return false
}

// DomainKeys returns the authentication keys of all valid domains, in
// table order. The proxy engine derives one-time keys from them.
func (s *Store) DomainKeys() [][6]byte {
	var keys [][6]byte
	for i := 0; i < s.DomainCount(); i++ {
		if !s.domains[i].Invalid {
			keys = append(keys, s.domains[i].Key)
		}
	}
	return keys
}

// AuthEnabled reports whether any valid domain requires
// authentication.
func (s *Store) AuthEnabled() bool {
	for i := 0; i < s.DomainCount(); i++ {
		if !s.domains[i].Invalid && s.domains[i].Auth != wire.AuthNone {
			return true
		}
	}
	return false
}

// ---- address table ----

// AddressCount returns the address table size.
func (s *Store) AddressCount() int {
	return len(s.addresses)
}

// AccessAddress returns the address table entry at idx.
func (s *Store) AccessAddress(idx uint8) (wire.AddressRecord, error) {
	if idx == NoEntry || int(idx) >= len(s.addresses) {
		s.RecordFailure(CauseValidation, CodeInvalidAddressIndex)
		return wire.AddressRecord{}, fmt.Errorf("address %d: %w", idx, ErrInvalidAddressIndex)
	}
	return s.addresses[idx], nil
}

// UpdateAddress writes the address table entry at idx.
func (s *Store) UpdateAddress(idx uint8, e wire.AddressRecord) error {
	if idx == NoEntry || int(idx) >= len(s.addresses) {
		s.RecordFailure(CauseValidation, CodeInvalidAddressIndex)
		return fmt.Errorf("address %d: %w", idx, ErrInvalidAddressIndex)
	}
	s.addresses[idx] = e
	s.RecomputeChecksum()
	s.SchedulePersist()
	return nil
}

// GroupEntry finds the group address entry matching the arrival group.
func (s *Store) GroupEntry(domainIdx, group uint8) (uint8, bool) {
	for i, e := range s.addresses {
		if e.Kind == wire.AddrGroup && e.DomainIndex == domainIdx && e.Group == group {
			return uint8(i), true
		}
	}
	return NoEntry, false
}

// ---- datapoint / alias config tables ----

// DatapointCount returns the datapoint config table size.
func (s *Store) DatapointCount() int {
	return len(s.datapoints)
}

// AliasCount returns the alias config table size.
func (s *Store) AliasCount() int {
	return len(s.aliases)
}

// ReadDatapointConfig returns the datapoint config entry at idx. The
// global index space covers aliases too: indexes at or past the
// datapoint table size address the alias table.
func (s *Store) ReadDatapointConfig(idx uint16) (wire.DatapointRecord, error) {
	if int(idx) >= len(s.datapoints) {
		aliasIdx := int(idx) - len(s.datapoints)
		if aliasIdx < len(s.aliases) {
			return s.aliases[aliasIdx].Base, nil
		}
		s.RecordFailure(CauseValidation, CodeInvalidDatapointIndex)
		return wire.DatapointRecord{}, fmt.Errorf("datapoint %d: %w", idx, ErrInvalidDatapointIndex)
	}
	return s.datapoints[idx], nil
}

// WriteDatapointConfig writes the datapoint config entry at idx, using
// the same global index space as ReadDatapointConfig.
func (s *Store) WriteDatapointConfig(idx uint16, r wire.DatapointRecord) error {
	if int(idx) >= len(s.datapoints) {
		aliasIdx := int(idx) - len(s.datapoints)
		if aliasIdx >= len(s.aliases) {
			s.RecordFailure(CauseValidation, CodeInvalidDatapointIndex)
			return fmt.Errorf("datapoint %d: %w", idx, ErrInvalidDatapointIndex)
		}
		s.aliases[aliasIdx].Base = r
	} else {
		s.datapoints[idx] = r
	}
	s.RecomputeChecksum()
	s.SchedulePersist()
	return nil
}

// ReadAliasConfig returns the alias config entry at idx.
func (s *Store) ReadAliasConfig(idx uint16) (wire.AliasRecord, error) {
	if int(idx) >= len(s.aliases) {
		s.RecordFailure(CauseValidation, CodeInvalidAliasIndex)
		return wire.AliasRecord{}, fmt.Errorf("alias %d: %w", idx, ErrInvalidAliasIndex)
	}
	return s.aliases[idx], nil
}

// WriteAliasConfig writes the alias config entry at idx.
func (s *Store) WriteAliasConfig(idx uint16, r wire.AliasRecord) error {
	if int(idx) >= len(s.aliases) {
		s.RecordFailure(CauseValidation, CodeInvalidAliasIndex)
		return fmt.Errorf("alias %d: %w", idx, ErrInvalidAliasIndex)
	}
	s.aliases[idx] = r
	s.RecomputeChecksum()
	s.SchedulePersist()
	return nil
}

// ResetDatapointTable reassigns selectors 0x3FFF downward across the
// datapoint table and unbinds every alias.
func (s *Store) ResetDatapointTable() {
	sel := uint16(0x3FFF)
	for i := range s.datapoints {
		s.datapoints[i] = wire.DatapointRecord{
			Selector:     sel,
			AddressIndex: NoEntry,
		}
		sel--
	}
	for i := range s.aliases {
		s.aliases[i] = wire.AliasRecord{
			Base:    wire.DatapointRecord{Selector: 0, AddressIndex: NoEntry},
			Primary: wire.UnboundPrimary,
		}
	}
	s.RecomputeChecksum()
	s.SchedulePersist()
}

// ---- checksum and persistence ----

// Checksum returns the current configuration checksum.
func (s *Store) Checksum() uint8 {
	return s.checksum
}

// RecomputeChecksum recomputes the checksum over the whole checksummed
// region. It is a pure function of the region content: calling it
// twice without an intervening mutation yields the same value.
func (s *Store) RecomputeChecksum() uint8 {
	s.checksum = ComputeChecksum(s.checksummedRegion())
	return s.checksum
}

// SchedulePersist marks the store dirty. The engine coalesces dirty
// marks into one physical write per debounce window.
func (s *Store) SchedulePersist() {
	s.dirty = true
}

// Dirty reports whether a persistence flush is pending.
func (s *Store) Dirty() bool {
	return s.dirty
}

// ClearDirty resets the pending-flush mark after a flush.
func (s *Store) ClearDirty() {
	s.dirty = false
}
