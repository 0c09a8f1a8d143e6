// Package discovery advertises and finds graph services over mDNS.
//
// A graph service reachable over TCP registers an instance of
// _pwgraph._tcp in the local domain. TXT records carry the protocol
// version and a human-readable name:
//
//	pv=3
//	name=studio
//	objs=12
//
// Browsing aggregates the addresses of one instance seen on several
// interfaces into a single Service.
package discovery
