// Package peer defines the transport the session layer runs on: a local
// endpoint that can be opened under an id, dial another id, and accept
// incoming channels. Channels are reliable, ordered and preserve message
// boundaries.
package peer

import (
	"context"
	"errors"
)

var (
	ErrPeerUnavailable = errors.New("peer: remote peer unavailable")
	ErrIDTaken         = errors.New("peer: id is taken")
	ErrTransportClosed = errors.New("peer: transport closed")
	ErrChannelClosed   = errors.New("peer: channel closed")
	ErrNotOpen         = errors.New("peer: transport not open")
)

// EventKind discriminates channel events.
type EventKind int

const (
	EventOpen EventKind = iota
	EventData
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventData:
		return "data"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one item from Channel.Events. Err is set on EventClose when the
// channel failed rather than being closed cleanly.
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Transport is the local endpoint.
type Transport interface {
	// Open allocates the local endpoint under id, or under an ephemeral id
	// when id is empty, and returns the id actually assigned.
	Open(ctx context.Context, id string) (string, error)

	// Connect dials remoteID. The returned channel emits EventOpen once it
	// is usable.
	Connect(ctx context.Context, remoteID string) (Channel, error)

	// Incoming yields channels dialed to this endpoint by other peers.
	Incoming() <-chan Channel

	Close() error
}

// Channel is a duplex message pipe to one remote peer.
type Channel interface {
	PeerID() string

	// ClientType is the remote client flavor ("cli" or "web") when known.
	ClientType() string

	Send(data []byte) error

	// Events is closed after the final EventClose.
	Events() <-chan Event

	Close() error
}
