package graph

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/pwscan/pwscan-go/pkg/props"
	"github.com/pwscan/pwscan-go/pkg/wire"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultGraph []byte

// Graph errors.
var (
	ErrDuplicateID = errors.New("duplicate object id")
	ErrReservedID  = errors.New("object id reserved")
	ErrUnknownType = errors.New("unknown object type")
	ErrNoObject    = errors.New("no such object")
)

var typeNames = map[string]string{
	"node":     wire.TypeNode,
	"metadata": wire.TypeMetadata,
	"device":   wire.TypeDevice,
	"port":     wire.TypePort,
	"link":     wire.TypeLink,
	"client":   wire.TypeClient,
	"module":   wire.TypeModule,
}

// ResolveType maps a short type name ("node") or a full interface type to
// the full interface type.
func ResolveType(name string) (string, error) {
	if full, ok := typeNames[name]; ok {
		return full, nil
	}
	for _, full := range typeNames {
		if full == name {
			return full, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Entry is one metadata key.
type Entry struct {
	Subject uint32 `yaml:"subject"`
	Key     string `yaml:"key"`
	Type    string `yaml:"type"`
	Value   string `yaml:"value"`
}

// Object is one global.
type Object struct {
	ID      uint32     `yaml:"id"`
	Type    string     `yaml:"type"`
	Version uint32     `yaml:"version"`
	Props   props.Dict `yaml:"props"`

	// Info is sent to clients that bind a node. Nil means Props.
	Info props.Dict `yaml:"info"`

	// Metadata is sent, in order, to clients that bind a metadata object.
	Metadata []Entry `yaml:"metadata"`
}

// Global returns the announcement of o.
func (o *Object) Global() wire.Global {
	return wire.Global{ID: o.ID, Type: o.Type, Version: o.Version, Props: o.Props.Clone()}
}

// InfoProps returns the properties sent in info events.
func (o *Object) InfoProps() props.Dict {
	if o.Info != nil {
		return o.Info.Clone()
	}
	return o.Props.Clone()
}

// SetEntry sets or, with a nil value, removes a metadata key.
func (o *Object) SetEntry(subject uint32, key string, value *string) {
	for i, e := range o.Metadata {
		if e.Subject != subject || e.Key != key {
			continue
		}
		if value == nil {
			o.Metadata = append(o.Metadata[:i], o.Metadata[i+1:]...)
		} else {
			o.Metadata[i].Value = *value
		}
		return
	}
	if value != nil {
		o.Metadata = append(o.Metadata, Entry{Subject: subject, Key: key, Value: *value})
	}
}

func (o *Object) clone() *Object {
	c := *o
	c.Props = o.Props.Clone()
	if o.Info != nil {
		c.Info = o.Info.Clone()
	}
	c.Metadata = append([]Entry(nil), o.Metadata...)
	return &c
}

// Graph is a set of objects.
type Graph struct {
	Name    string    `yaml:"name"`
	Objects []*Object `yaml:"objects"`
}

// Load reads a graph from a YAML file.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML graph. Short type names are
// expanded.
func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	if err := g.normalize(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Default returns the built-in graph.
func Default() *Graph {
	g, err := Parse(defaultGraph)
	if err != nil {
		panic(fmt.Sprintf("graph: invalid default graph: %v", err))
	}
	return g
}

func (g *Graph) normalize() error {
	seen := make(map[uint32]bool, len(g.Objects))
	for _, o := range g.Objects {
		if err := validateObject(o); err != nil {
			return err
		}
		if seen[o.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateID, o.ID)
		}
		seen[o.ID] = true
	}
	sort.Slice(g.Objects, func(i, j int) bool { return g.Objects[i].ID < g.Objects[j].ID })
	return nil
}

// validateObject expands the type name and rejects reserved ids. Ids 0
// and 1 are the core and registry on every connection.
func validateObject(o *Object) error {
	if o.ID <= 1 {
		return fmt.Errorf("%w: %d", ErrReservedID, o.ID)
	}
	full, err := ResolveType(o.Type)
	if err != nil {
		return fmt.Errorf("object %d: %w", o.ID, err)
	}
	o.Type = full
	if o.Version == 0 {
		o.Version = 3
	}
	return nil
}

// Find returns the object with the given id.
func (g *Graph) Find(id uint32) (*Object, bool) {
	for _, o := range g.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}
