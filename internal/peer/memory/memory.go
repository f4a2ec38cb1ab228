// Package memory is an in-process peer.Transport. Endpoints find each other
// through a shared Network and channels are backed by peer.Queue, so session
// tests run deterministically without sockets.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/BioHazard786/Warpchat/internal/peer"
)

// Network is the rendezvous point shared by in-memory transports.
type Network struct {
	mu        sync.Mutex
	endpoints map[string]*Transport
}

func NewNetwork() *Network {
	return &Network{endpoints: make(map[string]*Transport)}
}

// NewTransport returns an unopened endpoint announcing clientType to peers.
func (n *Network) NewTransport(clientType string) *Transport {
	return &Transport{
		network:    n,
		clientType: clientType,
		incoming:   make(chan peer.Channel, 16),
	}
}

// Lookup reports whether an endpoint is open under id.
func (n *Network) Lookup(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.endpoints[id]
	return ok
}

func (n *Network) register(id string, t *Transport) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, taken := n.endpoints[id]; taken {
		return peer.ErrIDTaken
	}
	n.endpoints[id] = t
	return nil
}

func (n *Network) unregister(id string, t *Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.endpoints[id] == t {
		delete(n.endpoints, id)
	}
}

func (n *Network) lookup(id string) *Transport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.endpoints[id]
}

// Transport implements peer.Transport in memory.
type Transport struct {
	network    *Network
	clientType string
	incoming   chan peer.Channel

	mu       sync.Mutex
	id       string
	open     bool
	closed   bool
	channels []*Channel
}

var _ peer.Transport = (*Transport)(nil)

func (t *Transport) Open(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return "", peer.ErrTransportClosed
	}
	if t.open {
		return t.id, nil
	}
	if id == "" {
		id = uuid.NewString()
	}
	if err := t.network.register(id, t); err != nil {
		return "", err
	}

	t.id = id
	t.open = true
	slog.Debug("memory transport open", "id", id)
	return id, nil
}

// ID returns the id assigned by Open.
func (t *Transport) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

func (t *Transport) Connect(ctx context.Context, remoteID string) (peer.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, peer.ErrTransportClosed
	}
	if !t.open {
		t.mu.Unlock()
		return nil, peer.ErrNotOpen
	}
	localID := t.id
	t.mu.Unlock()

	remote := t.network.lookup(remoteID)
	if remote == nil || remote == t {
		return nil, peer.ErrPeerUnavailable
	}

	local, far := newPair(localID, t.clientType, remoteID, remote.clientType)
	if !remote.accept(far) {
		return nil, peer.ErrPeerUnavailable
	}
	t.track(local)

	local.inbox.Push(peer.Event{Kind: peer.EventOpen})
	far.inbox.Push(peer.Event{Kind: peer.EventOpen})
	return local, nil
}

func (t *Transport) accept(ch *Channel) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	select {
	case t.incoming <- ch:
		t.channels = append(t.channels, ch)
		return true
	default:
		return false
	}
}

func (t *Transport) track(ch *Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channels = append(t.channels, ch)
}

func (t *Transport) Incoming() <-chan peer.Channel {
	return t.incoming
}

// Close unregisters the endpoint and closes every channel it holds.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	channels := t.channels
	t.channels = nil
	id, wasOpen := t.id, t.open
	close(t.incoming)
	t.mu.Unlock()

	if wasOpen {
		t.network.unregister(id, t)
	}
	for _, ch := range channels {
		ch.Close()
	}
	return nil
}

// Channel is one end of an in-memory pipe.
type Channel struct {
	peerID     string
	clientType string
	inbox      *peer.Queue
	remote     *Channel
	state      *pipeState
}

type pipeState struct {
	mu     sync.Mutex
	closed bool
}

var _ peer.Channel = (*Channel)(nil)

func newPair(aID, aType, bID, bType string) (*Channel, *Channel) {
	st := &pipeState{}
	a := &Channel{peerID: bID, clientType: bType, inbox: peer.NewQueue(), state: st}
	b := &Channel{peerID: aID, clientType: aType, inbox: peer.NewQueue(), state: st}
	a.remote, b.remote = b, a
	return a, b
}

func (c *Channel) PeerID() string     { return c.peerID }
func (c *Channel) ClientType() string { return c.clientType }

func (c *Channel) Events() <-chan peer.Event {
	return c.inbox.Events()
}

func (c *Channel) Send(data []byte) error {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	if c.state.closed {
		return peer.ErrChannelClosed
	}
	c.remote.inbox.Push(peer.Event{Kind: peer.EventData, Data: append([]byte(nil), data...)})
	return nil
}

// Close tears down both ends. Each end observes a final EventClose.
func (c *Channel) Close() error {
	c.state.mu.Lock()
	if c.state.closed {
		c.state.mu.Unlock()
		return nil
	}
	c.state.closed = true
	c.state.mu.Unlock()

	c.inbox.Finish(nil)
	c.remote.inbox.Finish(nil)
	return nil
}
