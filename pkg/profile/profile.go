// Package profile loads the static device profile: identity fields and
// table sizes fixed at configuration time. The profile is read once at
// device construction and never changes at runtime.
package profile

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table size limits.
const (
	// MaxAddressEntries is the address table capacity limit; index
	// 0xFF is reserved for "no entry".
	MaxAddressEntries = 254

	// MaxDatapoints bounds the datapoint config table.
	MaxDatapoints = 4096

	// MaxAliases bounds the alias config table.
	MaxAliases = 4096
)

// Profile describes one device model.
type Profile struct {
	// ModelName is the human-readable device model.
	ModelName string `yaml:"model_name"`

	// UniqueID is the 6-byte device identifier, hex encoded.
	UniqueID string `yaml:"unique_id"`

	// FirmwareVersion is the firmware version byte.
	FirmwareVersion uint8 `yaml:"firmware_version"`

	// AddressEntries is the address table size (1..254).
	AddressEntries int `yaml:"address_entries"`

	// Datapoints is the datapoint config table size.
	Datapoints int `yaml:"datapoints"`

	// Aliases is the alias config table size.
	Aliases int `yaml:"aliases"`

	// WriteProtected restricts memory writes to the configuration and
	// read-only relative ranges.
	WriteProtected bool `yaml:"write_protected"`

	// TwoDomains allows membership in a second domain.
	TwoDomains bool `yaml:"two_domains"`
}

// Default returns a small profile suitable for tests and examples.
func Default() Profile {
	return Profile{
		ModelName:       "fieldnet-node",
		UniqueID:        "000000000001",
		FirmwareVersion: 1,
		AddressEntries:  15,
		Datapoints:      62,
		Aliases:         8,
		TwoDomains:      true,
	}
}

// Load reads and validates a YAML profile file.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML profile data.
func Parse(data []byte) (Profile, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks field ranges.
func (p *Profile) Validate() error {
	if p.ModelName == "" {
		return fmt.Errorf("profile: model_name is required")
	}
	if _, err := p.UniqueIDBytes(); err != nil {
		return err
	}
	if p.AddressEntries < 1 || p.AddressEntries > MaxAddressEntries {
		return fmt.Errorf("profile: address_entries %d out of range 1..%d",
			p.AddressEntries, MaxAddressEntries)
	}
	if p.Datapoints < 0 || p.Datapoints > MaxDatapoints {
		return fmt.Errorf("profile: datapoints %d out of range 0..%d",
			p.Datapoints, MaxDatapoints)
	}
	if p.Aliases < 0 || p.Aliases > MaxAliases {
		return fmt.Errorf("profile: aliases %d out of range 0..%d",
			p.Aliases, MaxAliases)
	}
	return nil
}

// UniqueIDBytes decodes the hex unique id into its 6-byte form.
func (p Profile) UniqueIDBytes() ([6]byte, error) {
	var id [6]byte
	raw, err := hex.DecodeString(p.UniqueID)
	if err != nil || len(raw) != 6 {
		return id, fmt.Errorf("profile: unique_id must be 6 bytes hex, got %q", p.UniqueID)
	}
	copy(id[:], raw)
	return id, nil
}
