// Package props implements the property dictionaries attached to graph
// objects and the typed parsing helpers used to read them.
//
// A Dict is an ordered list of string key/value pairs. Order is preserved
// across the wire and through YAML fixtures; lookups return the first
// matching key.
//
// Consumers look up well-known keys and apply fallback defaults when a key
// is absent or its value does not parse:
//
//	channels := info.Props.Int("audio.channels", 2)
//	name := info.Props.String("node.name", props.Unknown)
package props
