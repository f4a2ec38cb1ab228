// Package session runs the two-party chat protocol over a peer.Transport:
// room bootstrap, key exchange, the encrypted message flow, file transfer and
// teardown.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/Warpchat/internal/codec"
	"github.com/BioHazard786/Warpchat/internal/participant"
	"github.com/BioHazard786/Warpchat/internal/peer"
	"github.com/BioHazard786/Warpchat/internal/protocol"
	"github.com/BioHazard786/Warpchat/internal/room"
	"github.com/BioHazard786/Warpchat/internal/transfer"
)

// Session is the live room as seen by one side.
type Session struct {
	RoomID      room.ID
	Key         room.Key
	IsOwner     bool
	HasPartner  bool
	LocalPeerID string
	DisplayName string
}

// Options tune a Controller. The zero value is usable.
type Options struct {
	// Cipher encrypts chat messages. Defaults to AES-256-GCM.
	Cipher *codec.Codec

	// ClientType is announced to peers and picks the wire framing.
	ClientType string

	ChunkSize int

	NewRoomID func() (room.ID, error)
	NewKey    func() (room.Key, error)
	Clock     func() time.Time
}

func (o *Options) setDefaults() {
	if o.Cipher == nil {
		o.Cipher = codec.Default()
	}
	if o.ClientType == "" {
		o.ClientType = protocol.ClientCLI
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = transfer.DefaultChunkSize
	}
	if o.NewRoomID == nil {
		o.NewRoomID = room.GenerateID
	}
	if o.NewKey == nil {
		o.NewKey = room.GenerateKey
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Controller owns one session from create/join to close. It is not reusable:
// once Closed, build a new Controller for the next room.
type Controller struct {
	transport peer.Transport
	sink      Sink
	opts      Options
	assembler *transfer.Assembler

	mu           sync.Mutex
	state        State
	sess         *Session
	key          []byte
	channel      peer.Channel
	wire         protocol.Codec
	roster       *participant.Registry
	outbox       []string
	decodedFirst bool
	err          error
	done         chan struct{}

	// closers are released by unlock, outside the lock.
	closers []io.Closer
}

func New(transport peer.Transport, sink Sink, opts Options) *Controller {
	if sink == nil {
		sink = NopSink{}
	}
	opts.setDefaults()
	return &Controller{
		transport: transport,
		sink:      sink,
		opts:      opts,
		assembler: transfer.NewAssembler(),
		wire:      protocol.JSON,
		done:      make(chan struct{}),
	}
}

// Create opens a new room and waits for the endpoint to come up. The room is
// then advertised through Sink.RoomReady and incoming channels are accepted.
func (c *Controller) Create(ctx context.Context, displayName string) (room.ID, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return "", &Error{Op: "create", Err: ErrSessionActive}
	}

	id, err := c.opts.NewRoomID()
	if err != nil {
		c.mu.Unlock()
		return "", &Error{Op: "create", Err: err}
	}
	if err := room.ValidateID(string(id)); err != nil {
		c.mu.Unlock()
		return "", &Error{Op: "create", Err: err}
	}
	key, err := c.opts.NewKey()
	if err != nil {
		c.mu.Unlock()
		return "", &Error{Op: "create", Err: err}
	}
	keyBytes, err := key.Bytes()
	if err != nil {
		c.mu.Unlock()
		return "", &Error{Op: "create", Err: err}
	}

	c.sess = &Session{
		RoomID:      id,
		Key:         key,
		IsOwner:     true,
		DisplayName: participant.NormalizeName(displayName),
	}
	c.key = keyBytes
	c.setState(StateAwaitingLocalOpen)
	c.mu.Unlock()

	localID, err := c.transport.Open(ctx, string(id))

	c.mu.Lock()
	defer c.unlock()
	if c.state != StateAwaitingLocalOpen {
		return "", &Error{Op: "create", Err: ErrSessionClosed}
	}
	if err != nil {
		return "", c.failLocked("open", err)
	}

	c.sess.LocalPeerID = localID
	c.roster = participant.NewRegistry(participant.Record{
		PeerID:      localID,
		DisplayName: c.sess.DisplayName,
		IsOwner:     true,
	})
	c.setState(StateWaitingForPeer)
	slog.Info("room open", "room", id)
	c.sink.RoomReady(id)

	go c.acceptLoop(c.transport.Incoming())
	return id, nil
}

// Join dials an existing room. input may be a bare room id or a room link.
// It returns once the channel is dialing; the key exchange continues in the
// background and is reported through the Sink.
func (c *Controller) Join(ctx context.Context, input, displayName string) error {
	id, err := room.FromInput(input)
	if err != nil {
		return &Error{Op: "join", Err: err}
	}

	c.mu.Lock()
	if c.sess != nil && c.sess.HasPartner {
		c.mu.Unlock()
		return &Error{Op: "join", Err: ErrCapacity}
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return &Error{Op: "join", Err: ErrSessionActive}
	}

	c.sess = &Session{
		RoomID:      id,
		DisplayName: participant.NormalizeName(displayName),
	}
	c.setState(StateAwaitingLocalOpen)
	c.mu.Unlock()

	localID, err := c.transport.Open(ctx, "")

	c.mu.Lock()
	if c.state != StateAwaitingLocalOpen {
		c.unlock()
		return &Error{Op: "join", Err: ErrSessionClosed}
	}
	if err != nil {
		err = c.failLocked("open", err)
		c.unlock()
		return err
	}
	c.sess.LocalPeerID = localID
	c.roster = participant.NewRegistry(participant.Record{
		PeerID:      localID,
		DisplayName: c.sess.DisplayName,
	})
	c.setState(StateDialing)
	c.mu.Unlock()

	ch, err := c.transport.Connect(ctx, string(id))

	c.mu.Lock()
	defer c.unlock()
	if c.state != StateDialing {
		if ch != nil {
			c.closers = append(c.closers, ch)
		}
		return &Error{Op: "join", Err: ErrSessionClosed}
	}
	if err != nil {
		return c.failLocked("connect", err)
	}

	c.attachLocked(ch)
	slog.Info("dialing room", "room", id, "peer", localID)
	return nil
}

// SendMessage encrypts and sends text. Messages sent before the key exchange
// completes are held and flushed once the session is active.
func (c *Controller) SendMessage(text string) error {
	c.mu.Lock()
	defer c.unlock()

	switch c.state {
	case StateActive:
		return c.sendChatLocked(text)
	case StateDialing, StateKeyExchange:
		c.outbox = append(c.outbox, text)
		return nil
	case StateWaitingForPeer:
		return &Error{Op: "send", Err: ErrNoPartner}
	default:
		return &Error{Op: "send", Err: ErrNotConnected}
	}
}

// Leave tears the session down. The owner tells the partner first, best
// effort. Calling Leave more than once is harmless.
func (c *Controller) Leave() error {
	c.mu.Lock()
	defer c.unlock()

	if c.state == StateClosed {
		return nil
	}
	if c.sess != nil && c.sess.IsOwner && c.channel != nil {
		if err := c.sendLocked(protocol.OwnerLeft{}); err != nil {
			slog.Debug("owner-left not delivered", "error", err)
		}
	}
	c.closeLocked(nil)
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return Session{}, false
	}
	return *c.sess, true
}

// Participants returns the roster, local participant first.
func (c *Controller) Participants() []participant.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roster == nil {
		return nil
	}
	return c.roster.All()
}

// Done is closed when the controller reaches StateClosed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns the terminal error, or nil after a clean Leave.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) acceptLoop(incoming <-chan peer.Channel) {
	for ch := range incoming {
		c.accept(ch)
	}
}

func (c *Controller) accept(ch peer.Channel) {
	c.mu.Lock()
	defer c.unlock()

	if c.state != StateWaitingForPeer || c.channel != nil {
		slog.Warn("rejecting channel", "peer", ch.PeerID(), "state", c.state)
		c.closers = append(c.closers, ch)
		return
	}
	c.attachLocked(ch)
	slog.Info("peer connecting", "peer", ch.PeerID())
}

func (c *Controller) attachLocked(ch peer.Channel) {
	c.channel = ch
	c.wire = protocol.SelectCodec(c.opts.ClientType, ch.ClientType())
	slog.Debug("channel attached", "peer", ch.PeerID(), "codec", c.wire.Name())
	go c.pump(ch)
}

func (c *Controller) pump(ch peer.Channel) {
	for ev := range ch.Events() {
		c.handleEvent(ch, ev)
	}
}

func (c *Controller) handleEvent(ch peer.Channel, ev peer.Event) {
	c.mu.Lock()
	defer c.unlock()

	if ch != c.channel {
		return
	}

	switch ev.Kind {
	case peer.EventOpen:
		c.onOpenLocked()
	case peer.EventData:
		c.onDataLocked(ev.Data)
	case peer.EventClose:
		c.onCloseLocked(ev.Err)
	}
}

func (c *Controller) onOpenLocked() {
	switch c.state {
	case StateWaitingForPeer:
		c.setState(StateKeyExchange)
		err := c.sendLocked(protocol.EncryptionKey{
			Key:         string(c.sess.Key),
			CreatorName: c.sess.DisplayName,
		})
		if err == nil {
			err = c.sendLocked(protocol.ParticipantJoined{
				DisplayName: c.sess.DisplayName,
				PeerID:      c.sess.LocalPeerID,
				IsRoomOwner: true,
			})
		}
		if err != nil {
			c.failLocked("send key", err)
		}
	case StateDialing:
		c.setState(StateKeyExchange)
	default:
		slog.Debug("unexpected channel open", "state", c.state)
	}
}

func (c *Controller) onDataLocked(data []byte) {
	msg, err := protocol.Decode(c.wire, data)
	if err != nil {
		slog.Warn("dropping undecodable frame", "error", err)
		return
	}
	if c.state != StateKeyExchange && c.state != StateActive {
		slog.Debug("dropping frame before open", "type", msg.MessageType(), "state", c.state)
		return
	}

	if _, ok := msg.(protocol.OwnerLeft); ok {
		c.onOwnerLeftLocked()
		return
	}

	if c.state == StateKeyExchange && !c.sess.IsOwner {
		if m, ok := msg.(protocol.EncryptionKey); ok {
			c.onKeyLocked(m)
		} else {
			slog.Debug("dropping message before key", "type", msg.MessageType())
		}
		return
	}

	switch m := msg.(type) {
	case protocol.EncryptionKey:
		if c.sess.IsOwner {
			slog.Warn("owner received an encryption key, ignoring")
		} else {
			slog.Warn("duplicate encryption key ignored")
		}
	case protocol.ParticipantJoined:
		c.onParticipantLocked(m)
	case protocol.ChatMessage:
		c.onChatLocked(m)
	case protocol.FileChunk:
		c.onChunkLocked(m)
	}
}

func (c *Controller) onKeyLocked(m protocol.EncryptionKey) {
	key, err := room.ParseKey(m.Key)
	if err != nil {
		c.closeLocked(keyExchangeError(err))
		return
	}
	keyBytes, err := key.Bytes()
	if err != nil {
		c.closeLocked(keyExchangeError(err))
		return
	}
	c.key = keyBytes
	c.sess.Key = key

	ownerID := c.channel.PeerID()
	if rec, joined := c.roster.Register(ownerID, m.CreatorName, true); joined {
		c.sink.ParticipantJoined(rec)
	}

	if err := c.sendLocked(protocol.ParticipantJoined{
		DisplayName: c.sess.DisplayName,
		PeerID:      c.sess.LocalPeerID,
	}); err != nil {
		c.failLocked("announce", err)
		return
	}

	c.activateLocked()
}

func (c *Controller) onParticipantLocked(m protocol.ParticipantJoined) {
	peerID := c.channel.PeerID()
	if m.PeerID != "" && m.PeerID != peerID {
		slog.Debug("participant id differs from channel", "claimed", m.PeerID, "peer", peerID)
	}
	if rec, joined := c.roster.Register(peerID, m.DisplayName, m.IsRoomOwner && !c.sess.IsOwner); joined {
		c.sink.ParticipantJoined(rec)
	}

	if c.state == StateKeyExchange && c.sess.IsOwner {
		c.activateLocked()
	}
}

func (c *Controller) activateLocked() {
	c.sess.HasPartner = true
	c.setState(StateActive)

	pending := c.outbox
	c.outbox = nil
	for _, text := range pending {
		if err := c.sendChatLocked(text); err != nil {
			slog.Warn("flushing held message failed", "error", err)
			return
		}
	}
}

func (c *Controller) onChatLocked(m protocol.ChatMessage) {
	if c.state != StateActive {
		slog.Debug("dropping message before active", "state", c.state)
		return
	}

	text, err := c.opts.Cipher.Decode(c.key, m.Message)
	if err != nil {
		if !c.decodedFirst {
			// The cipher is local config and never travels on the wire.
			slog.Warn("first message failed to decrypt, both peers must use the same cipher", "cipher", c.opts.Cipher.Name())
			c.closeLocked(keyExchangeError(fmt.Errorf("cipher %s: %w", c.opts.Cipher.Name(), err)))
			return
		}
		slog.Warn("dropping undecryptable message", "error", err)
		return
	}
	c.decodedFirst = true

	c.sink.MessageReceived(Message{
		PeerID: c.channel.PeerID(),
		From:   participant.NormalizeName(m.DisplayName),
		Text:   text,
		Sent:   time.UnixMilli(m.Timestamp),
	})
}

func (c *Controller) onChunkLocked(m protocol.FileChunk) {
	if c.state != StateActive {
		slog.Debug("dropping chunk before active", "state", c.state)
		return
	}

	payload, complete, err := c.assembler.Absorb(m)
	if err != nil {
		slog.Warn("file transfer aborted", "file", m.Name, "error", err)
		c.sink.TransferFailed(m.Name, err)
		return
	}
	if !complete {
		received, total := c.assembler.Progress(m.Name)
		c.sink.FileProgress(Progress{Name: m.Name, Received: received, Total: total})
		return
	}

	c.sink.FileProgress(Progress{Name: m.Name, Received: m.Total, Total: m.Total})
	from := ""
	if rec, ok := c.roster.Get(c.channel.PeerID()); ok {
		from = rec.DisplayName
	}
	slog.Info("file received", "file", m.Name, "chunks", m.Total)
	c.sink.FileReceived(ReceivedFile{
		Name:    m.Name,
		Type:    m.FileType,
		DataURL: payload,
		From:    from,
	})
}

func (c *Controller) onOwnerLeftLocked() {
	if c.sess.IsOwner {
		slog.Warn("owner-left from a non-owner peer ignored")
		return
	}
	c.dropPartnerLocked()
	c.closeLocked(&Error{Op: "receive", Err: ErrOwnerLeft})
}

func (c *Controller) onCloseLocked(cause error) {
	if c.state == StateWaitingForPeer {
		// Closed before it ever opened. Keep waiting for another peer.
		slog.Debug("pending channel closed", "error", cause)
		c.channel = nil
		return
	}
	if !c.state.connected() {
		return
	}

	c.dropPartnerLocked()
	err := ErrConnectionLost
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
	}
	c.closeLocked(&Error{Op: "channel", Err: err})
}

func (c *Controller) dropPartnerLocked() {
	if c.channel == nil || c.roster == nil {
		return
	}
	if name, ok := c.roster.Remove(c.channel.PeerID()); ok {
		c.sink.ParticipantLeft(name)
	}
}

func (c *Controller) sendChatLocked(text string) error {
	env, err := c.opts.Cipher.Encode(c.key, text)
	if err != nil {
		return &Error{Op: "send", Err: err}
	}
	err = c.sendLocked(protocol.ChatMessage{
		Message:     env,
		DisplayName: c.sess.DisplayName,
		Timestamp:   c.opts.Clock().UnixMilli(),
	})
	if err != nil {
		return transportError("send", err)
	}
	return nil
}

func (c *Controller) sendLocked(msg protocol.Message) error {
	if c.channel == nil {
		return ErrNotConnected
	}
	data, err := protocol.Encode(c.wire, msg)
	if err != nil {
		return err
	}
	return c.channel.Send(data)
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	slog.Debug("state change", "from", c.state, "to", s)
	c.state = s
	c.sink.StateChanged(s)
}

func (c *Controller) failLocked(op string, err error) error {
	e := transportError(op, err)
	c.closeLocked(e)
	return e
}

// closeLocked moves to StateClosed and wipes every piece of session state.
// The channel and transport are queued for unlock to close.
func (c *Controller) closeLocked(err error) {
	if c.state == StateClosed {
		return
	}

	if c.channel != nil {
		c.closers = append(c.closers, c.channel)
		c.channel = nil
	}
	c.closers = append(c.closers, c.transport)

	c.key = nil
	c.sess = nil
	c.outbox = nil
	c.decodedFirst = false
	c.assembler.Reset()
	if c.roster != nil {
		c.roster.Reset()
	}

	c.err = err
	if err != nil {
		slog.Info("session closed", "error", err)
	}
	c.setState(StateClosed)
	close(c.done)
	c.sink.Closed(err)
}

func (c *Controller) unlock() {
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	for _, cl := range closers {
		if err := cl.Close(); err != nil {
			slog.Debug("close failed", "error", err)
		}
	}
}
