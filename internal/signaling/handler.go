package signaling

import (
	"encoding/json"
	"log/slog"
)

// Signal is a relayed WebRTC signal from another peer.
type Signal struct {
	From       string
	ClientType string
	Payload    SignalPayload
}

// BrokerError is an error frame. ID names the peer it concerns, if any.
type BrokerError struct {
	ID   string
	Text string
}

// Handler routes incoming signaling messages to appropriate channels.
// Channels are closed when the connection ends.
type Handler struct {
	client   *Client
	Opened   chan string
	Signal   chan *Signal
	PeerLeft chan string
	Error    chan *BrokerError
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:   client,
		Opened:   make(chan string, 1),
		Signal:   make(chan *Signal, 64),
		PeerLeft: make(chan string, 8),
		Error:    make(chan *BrokerError, 8),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the connection closes.
func (h *Handler) Start() {
	defer func() {
		close(h.Opened)
		close(h.Signal)
		close(h.PeerLeft)
		close(h.Error)
	}()

	for msg := range h.client.Incoming() {
		switch msg.Type {
		case MessageTypeOpened:
			h.Opened <- msg.ID

		case MessageTypeSignal:
			h.handleSignal(msg)

		case MessageTypePeerLeft:
			h.PeerLeft <- msg.From

		case MessageTypeError:
			h.handleError(msg)

		default:
			slog.Debug("ignoring signaling message", "type", msg.Type)
		}
	}
}

// handleSignal parses the WebRTC signaling payload and forwards it.
func (h *Handler) handleSignal(msg *Message) {
	var payload SignalPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		slog.Warn("failed to parse signal payload", "from", msg.From, "error", err)
		return
	}

	h.Signal <- &Signal{
		From:       msg.From,
		ClientType: msg.ClientType,
		Payload:    payload,
	}
}

func (h *Handler) handleError(msg *Message) {
	e := &BrokerError{ID: msg.ID, Text: msg.ErrorText()}
	select {
	case h.Error <- e:
	default:
		slog.Warn("dropping broker error", "error", e.Text)
	}
}
