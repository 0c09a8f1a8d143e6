// Package graph is a simulated graph service. It serves a fixed set of
// objects, described in YAML, over the registry protocol and lets a
// caller add, remove and change objects while clients are connected.
//
// The service handles each client's requests in arrival order and writes
// every event a request causes before handling the next request, so the
// Done of a Sync always follows the events of earlier requests.
package graph
