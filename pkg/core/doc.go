// Package core is the client side of a registry connection.
//
// A Core owns one transport connection. It starts reading as soon as it
// is created, queueing decoded events without bound, but it dispatches
// nothing until Run is called. Run delivers events one at a time on the
// calling goroutine, so callbacks never run concurrently and may issue
// requests (Sync, Bind) that are written before the next event is
// dispatched. A callback stops the loop with Quit.
//
// Object ids: the core is object 0, the registry proxy is object 1, and
// bound proxies get ids from 2 upward.
package core
