// Package log provides structured protocol logging for the graph registry
// protocol.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, session).
// It is separate from operational logging (slog): protocol capture provides
// a complete machine-readable trace of every frame and message exchanged
// with the graph service.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	opts = append(opts, roundtrip.WithProtocolLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For analysis: write to a CBOR file readable by pwscan-log
//	fl, _ := log.NewFileLogger("/tmp/scan.plog")
//
//	// Both
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Transport: raw frame bytes (FrameEvent)
//   - Wire: decoded messages (MessageEvent)
//   - Session: state changes such as barrier completion (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Log files are a concatenation of CBOR-encoded events with the .plog
// extension. The pwscan-log command views and summarizes them.
package log
