// Package transport provides a reference implementation of the opaque
// transport adapter spec.md §6.1 describes: the simulation core never
// touches a socket directly, only a Sender handle with send/is_open, a
// peer id string, and open/close notifications.
package transport

import "errors"

// ErrClosed is returned by Send once a connection has finished its
// teardown; callers treat it exactly like any other soft send failure.
var ErrClosed = errors.New("transport: connection closed")

// Sender is the contract spec.md §6.1 exposes to the simulation core: a
// best-effort, unreliable-is-fine datagram send and a liveness check.
// Send failures are soft by design — the core logs and continues, it never
// blocks a tick on a slow or dead peer.
type Sender interface {
	Send(payload []byte) error
	IsOpen() bool
}

// Handler receives the adapter's lifecycle and inbound-message
// notifications. The core only ever learns about a client through these
// three calls; it never initiates the transport connection itself.
type Handler interface {
	// OnOpen fires once a peer's channel is ready, handing the core a
	// Sender it can push outbound frames through from then on.
	OnOpen(peerID string, sender Sender)
	// OnMessage fires once per inbound frame. Per spec.md §6.3, only
	// ClientInput and Chat payloads are meaningful; anything else is the
	// core's responsibility to discard with a warning, not the adapter's.
	OnMessage(peerID string, payload []byte)
	// OnClose fires once, exactly once, when a peer's channel is gone for
	// any reason (graceful close, read/write error, server shutdown).
	OnClose(peerID string)
}
