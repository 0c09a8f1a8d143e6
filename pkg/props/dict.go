package props

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Unknown is the fallback for string properties that are absent.
const Unknown = "unknown"

// Well-known property keys.
const (
	KeyMediaClass        = "media.class"
	KeyNodeName          = "node.name"
	KeyNodeNick          = "node.nick"
	KeyNodeDescription   = "node.description"
	KeyAudioChannels     = "audio.channels"
	KeyClockQuantumLimit = "clock.quantum-limit"
	KeyMetadataName      = "metadata.name"
	KeyObjectSerial      = "object.serial"
)

// Item is a single key/value pair. It is encoded as a two-element CBOR array.
type Item struct {
	_     struct{} `cbor:",toarray"`
	Key   string
	Value string
}

// Dict is an ordered property dictionary.
type Dict []Item

// New builds a Dict from alternating keys and values.
// A trailing key without value is ignored.
func New(kv ...string) Dict {
	d := make(Dict, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		d = append(d, Item{Key: kv[i], Value: kv[i+1]})
	}
	return d
}

// Get returns the value of the first item with the given key.
func (d Dict) Get(key string) (string, bool) {
	for _, it := range d {
		if it.Key == key {
			return it.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (d Dict) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// String returns the value for key, or def if absent.
func (d Dict) String(key, def string) string {
	if v, ok := d.Get(key); ok {
		return v
	}
	return def
}

// Int returns the value for key parsed as a decimal integer, or def if the
// key is absent or the value does not parse.
func (d Dict) Int(key string, def int) int {
	v, ok := d.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Uint32 returns the value for key parsed as an unsigned 32-bit integer, or
// def if the key is absent or the value does not parse.
func (d Dict) Uint32(key string, def uint32) uint32 {
	v, ok := d.Get(key)
	if !ok {
		return def
	}
	n, err := ParseUint32(v)
	if err != nil {
		return def
	}
	return n
}

// Set replaces the value of the first item with key, or appends a new item.
func (d *Dict) Set(key, value string) {
	for i := range *d {
		if (*d)[i].Key == key {
			(*d)[i].Value = value
			return
		}
	}
	*d = append(*d, Item{Key: key, Value: value})
}

// Delete removes every item with key.
func (d *Dict) Delete(key string) {
	out := (*d)[:0]
	for _, it := range *d {
		if it.Key != key {
			out = append(out, it)
		}
	}
	*d = out
}

// Keys returns the keys in order.
func (d Dict) Keys() []string {
	keys := make([]string, len(d))
	for i, it := range d {
		keys[i] = it.Key
	}
	return keys
}

// Clone returns a copy that shares no storage with d.
func (d Dict) Clone() Dict {
	if d == nil {
		return nil
	}
	out := make(Dict, len(d))
	copy(out, d)
	return out
}

// UnmarshalYAML decodes a YAML mapping, keeping the document order.
// Scalar values of any YAML type are kept as their literal text.
func (d *Dict) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: properties must be a mapping", node.Line)
	}
	out := make(Dict, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: property %q must be a scalar", v.Line, k.Value)
		}
		out = append(out, Item{Key: k.Value, Value: v.Value})
	}
	*d = out
	return nil
}
