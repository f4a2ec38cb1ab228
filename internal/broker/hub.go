// Package broker is the rendezvous server. Peers open an id over a websocket
// and the hub relays SDP and ICE signals between ids. Application data never
// passes through it.
package broker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BioHazard786/Warpchat/internal/signaling"
)

// Hub owns every connection and the id table. All state is touched only by
// the Run goroutine.
type Hub struct {
	peers map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	stopped    chan struct{}
	stats      chan chan Stats
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Connections int `json:"connections"`
	Peers       int `json:"peers"`
}

func NewHub() *Hub {
	return &Hub{
		peers:      make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		stopped:    make(chan struct{}),
		stats:      make(chan chan Stats),
	}
}

// Run processes hub events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	clients := make(map[*Client]bool)
	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				close(c.send)
			}
			return

		case c := <-h.register:
			clients[c] = true
			slog.Debug("client connected", "remote", c.conn.RemoteAddr())

		case c := <-h.unregister:
			if !clients[c] {
				continue
			}
			delete(clients, c)
			h.drop(c)
			close(c.send)

		case in := <-h.inbound:
			if !clients[in.client] {
				continue
			}
			h.handle(in.client, in.msg)

		case reply := <-h.stats:
			reply <- Stats{Connections: len(clients), Peers: len(h.peers)}
		}
	}
}

// Stats asks the hub for its counters.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	case <-h.stopped:
		return Stats{}, context.Canceled
	}
	return <-reply, nil
}

func (h *Hub) handle(c *Client, msg *signaling.Message) {
	switch msg.Type {
	case signaling.MessageTypeOpen:
		h.open(c, msg)
	case signaling.MessageTypeSignal:
		h.relay(c, msg)
	default:
		slog.Debug("unknown message type", "type", msg.Type, "remote", c.conn.RemoteAddr())
		h.deliver(c, signaling.NewError("", signaling.ErrorBadMessage))
	}
}

func (h *Hub) open(c *Client, msg *signaling.Message) {
	if c.id != "" {
		h.deliver(c, signaling.NewError(c.id, signaling.ErrorAlreadyOpen))
		return
	}

	id := msg.ID
	if id == "" {
		id = uuid.NewString()
		for h.peers[id] != nil {
			id = uuid.NewString()
		}
	} else if h.peers[id] != nil {
		slog.Info("open rejected, id taken", "id", id)
		h.deliver(c, signaling.NewError(id, signaling.ErrorIDTaken))
		return
	}

	c.id = id
	c.clientType = msg.ClientType
	h.peers[id] = c
	slog.Info("peer opened", "id", id, "client_type", c.clientType)
	h.deliver(c, &signaling.Message{Type: signaling.MessageTypeOpened, ID: id})
}

func (h *Hub) relay(c *Client, msg *signaling.Message) {
	if c.id == "" {
		h.deliver(c, signaling.NewError("", signaling.ErrorNotOpen))
		return
	}

	target := h.peers[msg.To]
	if target == nil || target == c {
		slog.Debug("signal target not found", "from", c.id, "to", msg.To)
		h.deliver(c, signaling.NewError(msg.To, signaling.ErrorPeerNotFound))
		return
	}

	c.contacts[target.id] = true
	target.contacts[c.id] = true

	h.deliver(target, &signaling.Message{
		Type:       signaling.MessageTypeSignal,
		From:       c.id,
		To:         target.id,
		ClientType: c.clientType,
		Payload:    msg.Payload,
	})
}

// drop releases c's id and tells everyone it signaled with.
func (h *Hub) drop(c *Client) {
	if c.id == "" {
		return
	}
	if h.peers[c.id] == c {
		delete(h.peers, c.id)
	}
	for contact := range c.contacts {
		other := h.peers[contact]
		if other == nil {
			continue
		}
		delete(other.contacts, c.id)
		h.deliver(other, &signaling.Message{Type: signaling.MessageTypePeerLeft, From: c.id})
	}
	slog.Info("peer closed", "id", c.id)
}

// deliver never blocks the hub. A client whose buffer is full loses the frame.
func (h *Hub) deliver(c *Client, msg *signaling.Message) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("send buffer full, dropping frame", "id", c.id, "type", msg.Type)
	}
}
