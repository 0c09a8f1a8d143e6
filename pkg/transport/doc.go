// Package transport carries registry protocol messages between a scanning
// client and a graph service.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR Messages             │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│   Unix socket or TCP stream    │
//	└────────────────────────────────┘
//
// The graph service normally listens on a local unix socket; TCP is used
// when the service is located through mDNS.
//
// Conn is a framed, message-oriented connection. Sends are serialized;
// Receive must be called from a single goroutine. Server accepts
// connections and runs one read loop per connection.
package transport
