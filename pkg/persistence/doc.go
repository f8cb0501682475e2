// Package persistence defines the persistent-storage collaborator
// consumed by the configuration store: named segments opened for read
// or write, with transaction bracketing around multi-segment updates.
//
// The engine reports protocol success as soon as the in-memory mutation
// and checksum recomputation complete; storage failures are surfaced
// asynchronously and never roll back in-memory state.
package persistence
