// Package wire defines the CBOR wire format of the graph registry protocol.
//
// Every message is a CBOR map with integer keys, carried in one
// length-prefixed frame:
//
//	{
//	  1: opcode,     // uint8
//	  2: objectId,   // uint32: target (requests) or source (events)
//	  3: payload     // opcode-specific map
//	}
//
// # Requests and Events
//
// Requests travel from client to service (Hello, GetRegistry, Sync, Bind,
// Destroy). Events travel from service to client (Done, Global,
// GlobalRemove, Info, Property, Error). No request has a direct reply:
// a Sync carrying a sequence number is answered later by a Done carrying
// the same number, after every event caused by earlier requests.
//
// # Object IDs
//
// Object 0 is the core. Proxy ids (registry, bound objects) are chosen by
// the client and travel in GetRegistry and Bind; events for a proxy carry
// the proxy id, not the global id.
package wire
