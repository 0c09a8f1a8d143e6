// Package roundtrip runs one scan of a graph service: it discovers the
// audio devices and the settings object, waits until every request it
// issued along the way has been answered, and returns what it found.
//
// # Completion
//
// The session tracks outstanding Sync tokens in a barrier.Set. The first
// token is issued before any handler is registered; each relevant global
// adds one more from inside its announcement callback. Dispatch is
// single-threaded, so a token is always tracked before its Done can be
// dispatched. The loop stops when the set drains:
//
//	Sync#1 ─┐
//	        ├─ Global(sink)     → Bind, Sync#2
//	        ├─ Global(settings) → Bind, Sync#3
//	        ├─ Info(sink)       → Device
//	        ├─ Property(...)    → Settings
//	        └─ Done#1, Done#2, Done#3 (any order) → Quit
//
// Any failure to bind or to issue a Sync aborts the whole session.
package roundtrip
