// Package log captures protocol events emitted by the management
// engine: decoded commands, responses, authentication rejections, node
// state transitions, relay hops and persistence flushes.
//
// Events are compact integer-keyed CBOR records. Applications plug in a
// Logger implementation; NoopLogger disables logging, SlogAdapter
// bridges to log/slog for console output, FileLogger appends CBOR
// records to a file, and MultiLogger fans out to several sinks.
package log
