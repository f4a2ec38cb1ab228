// Package webrtc implements peer.Transport over pion data channels, using the
// signaling broker to exchange SDP and trickle ICE candidates.
package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpchat/internal/config"
	"github.com/BioHazard786/Warpchat/internal/peer"
	"github.com/BioHazard786/Warpchat/internal/protocol"
	"github.com/BioHazard786/Warpchat/internal/signaling"
	"github.com/BioHazard786/Warpchat/internal/utils"
)

// conn is the per-remote negotiation state.
type conn struct {
	remoteID string
	pc       *pion.PeerConnection
	ch       *Channel
	answered chan error

	mu         sync.Mutex
	remoteSet  bool
	candidates []pion.ICECandidateInit
}

type openResult struct {
	id  string
	err error
}

// Transport implements peer.Transport.
type Transport struct {
	cfg     *config.Config
	client  *signaling.Client
	handler *signaling.Handler
	api     *pion.API

	incoming chan peer.Channel
	opened   chan openResult

	mu     sync.Mutex
	id     string
	open   bool
	closed bool
	conns  map[string]*conn
}

var _ peer.Transport = (*Transport)(nil)

// NewTransport routes handler's signaling traffic into a transport. The
// caller connects client and runs handler.Start.
func NewTransport(cfg *config.Config, client *signaling.Client, handler *signaling.Handler) *Transport {
	t := &Transport{
		cfg:      cfg,
		client:   client,
		handler:  handler,
		api:      newAPI(),
		incoming: make(chan peer.Channel, 4),
		opened:   make(chan openResult, 1),
		conns:    make(map[string]*conn),
	}
	go t.route()
	return t
}

// Open claims id on the broker, or an ephemeral id when id is empty.
func (t *Transport) Open(ctx context.Context, id string) (string, error) {
	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return "", peer.ErrTransportClosed
	case t.open:
		defer t.mu.Unlock()
		return t.id, nil
	}
	t.mu.Unlock()

	err := t.client.Send(&signaling.Message{
		Type:       signaling.MessageTypeOpen,
		ID:         id,
		ClientType: protocol.ClientCLI,
	})
	if err != nil {
		return "", err
	}

	select {
	case res := <-t.opened:
		if res.err != nil {
			return "", res.err
		}
		t.mu.Lock()
		t.id, t.open = res.id, true
		t.mu.Unlock()
		slog.Info("signaling id open", "id", res.id)
		return res.id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.client.Done():
		return "", peer.ErrTransportClosed
	}
}

// Connect offers a data channel to remoteID and waits for its answer.
func (t *Transport) Connect(ctx context.Context, remoteID string) (peer.Channel, error) {
	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return nil, peer.ErrTransportClosed
	case !t.open:
		t.mu.Unlock()
		return nil, peer.ErrNotOpen
	case remoteID == t.id:
		t.mu.Unlock()
		return nil, peer.ErrPeerUnavailable
	}
	t.mu.Unlock()

	c, err := t.newConn(remoteID, "")
	if err != nil {
		return nil, err
	}

	dc, err := createDataChannel(c.pc)
	if err != nil {
		c.ch.Close()
		return nil, err
	}
	c.ch.attach(dc)

	offer, err := createOffer(c.pc)
	if err != nil {
		c.ch.Close()
		return nil, err
	}
	msg, err := descriptionSignal(remoteID, offer)
	if err == nil {
		err = t.client.Send(msg)
	}
	if err != nil {
		c.ch.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, utils.SignalTimeout)
	defer cancel()

	select {
	case err := <-c.answered:
		if err != nil {
			c.ch.Close()
			return nil, err
		}
		return c.ch, nil
	case <-ctx.Done():
		c.ch.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no answer from %s", peer.ErrPeerUnavailable, remoteID)
		}
		return nil, ctx.Err()
	}
}

func (t *Transport) Incoming() <-chan peer.Channel {
	return t.incoming
}

// Close closes every channel and the signaling connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conns := make([]*conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	close(t.incoming)
	t.mu.Unlock()

	for _, c := range conns {
		c.ch.Close()
	}
	t.client.Close()
	return nil
}

func (t *Transport) newConn(remoteID, clientType string) (*conn, error) {
	pc, err := t.api.NewPeerConnection(iceConfiguration(t.cfg))
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	c := &conn{
		remoteID: remoteID,
		pc:       pc,
		answered: make(chan error, 1),
	}
	c.ch = newChannel(remoteID, clientType, pc, func() { t.forget(c) })

	pc.OnICECandidate(func(cand *pion.ICECandidate) {
		if cand == nil {
			return
		}
		data, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		msg, err := signaling.NewSignal(remoteID, signaling.SignalPayload{
			Type:         signaling.SignalCandidate,
			ICECandidate: data,
		})
		if err != nil {
			return
		}
		if err := t.client.Send(msg); err != nil {
			slog.Debug("dropping ICE candidate", "peer", remoteID, "error", err)
		}
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		pc.Close()
		return nil, peer.ErrTransportClosed
	}
	if old := t.conns[remoteID]; old != nil {
		go old.ch.Close()
	}
	t.conns[remoteID] = c
	return c, nil
}

func (t *Transport) forget(c *conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[c.remoteID] == c {
		delete(t.conns, c.remoteID)
	}
}

func (t *Transport) lookup(remoteID string) *conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[remoteID]
}

// route drains the signaling handler until the broker connection ends.
func (t *Transport) route() {
	opened, signals := t.handler.Opened, t.handler.Signal
	left, failures := t.handler.PeerLeft, t.handler.Error

	for opened != nil || signals != nil || left != nil || failures != nil {
		select {
		case id, ok := <-opened:
			if !ok {
				opened = nil
				continue
			}
			t.deliverOpen(openResult{id: id})

		case s, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			t.handleSignal(s)

		case from, ok := <-left:
			if !ok {
				left = nil
				continue
			}
			if c := t.lookup(from); c != nil {
				slog.Info("peer left signaling", "peer", from)
				c.ch.shutdown(peer.ErrPeerUnavailable, false)
			}

		case e, ok := <-failures:
			if !ok {
				failures = nil
				continue
			}
			t.handleBrokerError(e)
		}
	}
	slog.Debug("signaling routing stopped")
}

func (t *Transport) deliverOpen(res openResult) {
	select {
	case t.opened <- res:
	default:
		slog.Debug("unsolicited open result", "id", res.id)
	}
}

func (t *Transport) handleBrokerError(e *signaling.BrokerError) {
	slog.Warn("broker error", "id", e.ID, "error", e.Text)

	switch e.Text {
	case signaling.ErrorPeerNotFound:
		if c := t.lookup(e.ID); c != nil {
			select {
			case c.answered <- fmt.Errorf("%w: %s", peer.ErrPeerUnavailable, e.ID):
			default:
			}
		}
	case signaling.ErrorIDTaken:
		t.deliverOpen(openResult{err: peer.ErrIDTaken})
	case signaling.ErrorAlreadyOpen, signaling.ErrorNotOpen:
		t.deliverOpen(openResult{err: fmt.Errorf("broker: %s", e.Text)})
	}
}

func (t *Transport) handleSignal(s *signaling.Signal) {
	switch s.Payload.Type {
	case signaling.SignalOffer:
		t.handleOffer(s)
	case signaling.SignalAnswer:
		t.handleAnswer(s)
	case signaling.SignalCandidate:
		t.handleCandidate(s)
	default:
		slog.Warn("unexpected signal", "from", s.From, "type", s.Payload.Type)
	}
}

func (t *Transport) handleOffer(s *signaling.Signal) {
	t.mu.Lock()
	accepting := t.open && !t.closed
	t.mu.Unlock()
	if !accepting {
		return
	}
	if t.lookup(s.From) != nil {
		slog.Warn("renegotiation is not supported, ignoring offer", "from", s.From)
		return
	}

	offer, err := sessionDescription(s.Payload)
	if err != nil {
		slog.Warn("bad offer", "from", s.From, "error", err)
		return
	}

	c, err := t.newConn(s.From, s.ClientType)
	if err != nil {
		slog.Warn("cannot answer offer", "from", s.From, "error", err)
		return
	}
	c.pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != Label {
			slog.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		c.ch.attach(dc)
		t.deliverIncoming(c.ch)
	})

	answer, err := createAnswer(c.pc, offer)
	if err != nil {
		slog.Warn("answer failed", "from", s.From, "error", err)
		c.ch.Close()
		return
	}
	c.markRemoteSet()

	msg, err := descriptionSignal(s.From, answer)
	if err == nil {
		err = t.client.Send(msg)
	}
	if err != nil {
		c.ch.Close()
	}
}

func (t *Transport) deliverIncoming(ch *Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		go ch.Close()
		return
	}
	select {
	case t.incoming <- ch:
	default:
		slog.Warn("incoming backlog full, dropping channel", "peer", ch.PeerID())
		go ch.Close()
	}
}

func (t *Transport) handleAnswer(s *signaling.Signal) {
	c := t.lookup(s.From)
	if c == nil {
		slog.Debug("answer for unknown peer", "from", s.From)
		return
	}

	answer, err := sessionDescription(s.Payload)
	if err == nil {
		err = c.pc.SetRemoteDescription(answer)
	}
	if err != nil {
		select {
		case c.answered <- err:
		default:
		}
		return
	}

	c.ch.setClientType(s.ClientType)
	c.markRemoteSet()
	select {
	case c.answered <- nil:
	default:
	}
}

func (t *Transport) handleCandidate(s *signaling.Signal) {
	c := t.lookup(s.From)
	if c == nil {
		slog.Debug("candidate for unknown peer", "from", s.From)
		return
	}

	var ice pion.ICECandidateInit
	if err := json.Unmarshal(s.Payload.ICECandidate, &ice); err != nil {
		slog.Warn("bad ICE candidate", "from", s.From, "error", err)
		return
	}

	c.mu.Lock()
	if !c.remoteSet {
		c.candidates = append(c.candidates, ice)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.pc.AddICECandidate(ice); err != nil {
		slog.Debug("add ICE candidate", "from", s.From, "error", err)
	}
}

// markRemoteSet flushes candidates that arrived before the remote description.
func (c *conn) markRemoteSet() {
	c.mu.Lock()
	c.remoteSet = true
	pending := c.candidates
	c.candidates = nil
	c.mu.Unlock()

	for _, ice := range pending {
		if err := c.pc.AddICECandidate(ice); err != nil {
			slog.Debug("add queued ICE candidate", "peer", c.remoteID, "error", err)
		}
	}
}
