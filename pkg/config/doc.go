// Package config implements the persistent device configuration store:
// the domain table, the address table, the datapoint and alias config
// tables, the read-only descriptor and the statistics region.
//
// Every successful mutation is followed by a checksum recomputation
// over the whole checksummed region before the caller acknowledges the
// command. Physical persistence is debounced: mutations mark the store
// dirty and the engine flushes one image per debounce window.
//
// The store has a single writer by construction (one pump goroutine,
// one command at a time); it is not safe for concurrent mutation.
package config
