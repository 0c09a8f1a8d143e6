package graph

import (
	"fmt"

	"github.com/pwscan/pwscan-go/pkg/wire"
)

// ObjectCount returns the number of globals.
func (s *Service) ObjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Objects returns copies of all globals ordered by id.
func (s *Service) Objects() []Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := s.sortedObjects()
	out := make([]Object, len(sorted))
	for i, o := range sorted {
		out[i] = *o.clone()
	}
	return out
}

// AddObject adds a global and announces it to every client holding the
// registry.
func (s *Service) AddObject(o Object) error {
	obj := o.clone()
	if err := validateObject(obj); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[obj.ID]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, obj.ID)
	}
	s.objects[obj.ID] = obj

	g := obj.Global()
	s.broadcast(func(c *client) error {
		if !c.hasReg {
			return nil
		}
		return c.conn.SendPayload(wire.OpGlobal, c.registryID, g)
	})
	return nil
}

// RemoveObject removes a global, announces the removal and forgets every
// proxy bound to it.
func (s *Service) RemoveObject(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNoObject, id)
	}
	delete(s.objects, id)

	s.broadcast(func(c *client) error {
		for proxyID, globalID := range c.proxies {
			if globalID == id {
				delete(c.proxies, proxyID)
			}
		}
		if !c.hasReg {
			return nil
		}
		return c.conn.SendPayload(wire.OpGlobalRemove, c.registryID, wire.GlobalRemove{ID: id})
	})
	return nil
}

// SetMetadata sets, or with a nil value removes, a key of a metadata
// object and sends the change to every proxy bound to it.
func (s *Service) SetMetadata(id, subject uint32, key string, value *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoObject, id)
	}
	if o.Type != wire.TypeMetadata {
		return fmt.Errorf("object %d is not metadata", id)
	}
	o.SetEntry(subject, key, value)

	prop := wire.Property{Subject: subject, Key: key, Value: value}
	s.broadcastBound(id, func(c *client, proxyID uint32) error {
		return c.conn.SendPayload(wire.OpProperty, proxyID, prop)
	})
	return nil
}

// SetNodeProp changes one info property of a node and sends the new info
// to every proxy bound to it.
func (s *Service) SetNodeProp(id uint32, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoObject, id)
	}
	if o.Type != wire.TypeNode {
		return fmt.Errorf("object %d is not a node", id)
	}
	if o.Info == nil {
		o.Info = o.Props.Clone()
	}
	o.Info.Set(key, value)

	info := wire.Info{ID: o.ID, ChangeMask: wire.ChangeMaskProps, Props: o.InfoProps()}
	s.broadcastBound(id, func(c *client, proxyID uint32) error {
		return c.conn.SendPayload(wire.OpInfo, proxyID, info)
	})
	return nil
}

// broadcast runs fn for every client, dropping clients whose send fails.
// s.mu must be held.
func (s *Service) broadcast(fn func(c *client) error) {
	for id, c := range s.clients {
		if err := fn(c); err != nil {
			s.logger.Warn("dropping client", "conn", id, "error", err)
			delete(s.clients, id)
		}
	}
}

// broadcastBound runs fn for every proxy bound to global id.
// s.mu must be held.
func (s *Service) broadcastBound(id uint32, fn func(c *client, proxyID uint32) error) {
	s.broadcast(func(c *client) error {
		for proxyID, globalID := range c.proxies {
			if globalID != id {
				continue
			}
			if err := fn(c, proxyID); err != nil {
				return err
			}
		}
		return nil
	})
}
