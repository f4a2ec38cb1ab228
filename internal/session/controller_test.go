package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpchat/internal/codec"
	"github.com/BioHazard786/Warpchat/internal/participant"
	"github.com/BioHazard786/Warpchat/internal/peer"
	"github.com/BioHazard786/Warpchat/internal/peer/memory"
	"github.com/BioHazard786/Warpchat/internal/protocol"
	"github.com/BioHazard786/Warpchat/internal/room"
	"github.com/BioHazard786/Warpchat/internal/transfer"
)

const (
	testRoom = room.ID("AAAAAAAAAAAAAAAAAAAAAAAA")
	timeout  = 2 * time.Second
)

var (
	testKey  = room.Key(strings.Repeat("ab", 32))
	otherKey = room.Key(strings.Repeat("cd", 32))
)

type recorder struct {
	NopSink

	ready    chan room.ID
	joined   chan participant.Record
	left     chan string
	messages chan Message
	files    chan ReceivedFile
	failed   chan error
	closed   chan error

	mu       sync.Mutex
	progress []Progress
	closes   int
}

func newRecorder() *recorder {
	return &recorder{
		ready:    make(chan room.ID, 4),
		joined:   make(chan participant.Record, 16),
		left:     make(chan string, 16),
		messages: make(chan Message, 64),
		files:    make(chan ReceivedFile, 16),
		failed:   make(chan error, 16),
		closed:   make(chan error, 4),
	}
}

func (r *recorder) RoomReady(id room.ID)                   { r.ready <- id }
func (r *recorder) ParticipantJoined(p participant.Record) { r.joined <- p }
func (r *recorder) ParticipantLeft(name string)            { r.left <- name }
func (r *recorder) MessageReceived(m Message)              { r.messages <- m }
func (r *recorder) FileReceived(f ReceivedFile)            { r.files <- f }
func (r *recorder) TransferFailed(_ string, err error)     { r.failed <- err }

func (r *recorder) FileProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) Closed(err error) {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
	r.closed <- err
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatal("timed out waiting for notification")
		var zero T
		return zero
	}
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, timeout, 5*time.Millisecond,
		"want state %s, have %s", want, c.State())
}

func fixedIdentity(opts Options) Options {
	opts.NewRoomID = func() (room.ID, error) { return testRoom, nil }
	opts.NewKey = func() (room.Key, error) { return testKey, nil }
	return opts
}

type pair struct {
	net         *memory.Network
	owner       *Controller
	joiner      *Controller
	ownerSink   *recorder
	joinerSink  *recorder
	joinerTrans *memory.Transport
}

func newActivePair(t *testing.T, opts Options) *pair {
	t.Helper()
	ctx := context.Background()

	p := &pair{
		net:        memory.NewNetwork(),
		ownerSink:  newRecorder(),
		joinerSink: newRecorder(),
	}
	p.owner = New(p.net.NewTransport(protocol.ClientCLI), p.ownerSink, fixedIdentity(opts))
	p.joinerTrans = p.net.NewTransport(protocol.ClientCLI)
	p.joiner = New(p.joinerTrans, p.joinerSink, opts)

	id, err := p.owner.Create(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, testRoom, id)
	assert.Equal(t, testRoom, recv(t, p.ownerSink.ready))
	assert.Equal(t, StateWaitingForPeer, p.owner.State())

	require.NoError(t, p.joiner.Join(ctx, string(id), "bob"))
	waitState(t, p.owner, StateActive)
	waitState(t, p.joiner, StateActive)

	t.Cleanup(func() {
		p.owner.Leave()
		p.joiner.Leave()
	})
	return p
}

// rawPeer is a bare transport endpoint that speaks the wire protocol by hand.
type rawPeer struct {
	t    *testing.T
	tr   *memory.Transport
	ch   peer.Channel
	wire protocol.Codec
}

func (r *rawPeer) send(msg protocol.Message) {
	r.t.Helper()
	data, err := protocol.Encode(r.wire, msg)
	require.NoError(r.t, err)
	require.NoError(r.t, r.ch.Send(data))
}

func (r *rawPeer) sendChat(key room.Key, text string) {
	r.t.Helper()
	k, err := key.Bytes()
	require.NoError(r.t, err)
	env, err := codec.Encode(k, text)
	require.NoError(r.t, err)
	r.send(protocol.ChatMessage{Message: env, DisplayName: "raw", Timestamp: time.Now().UnixMilli()})
}

// next returns the next data frame, skipping the open event.
func (r *rawPeer) next() protocol.Message {
	r.t.Helper()
	for {
		select {
		case ev, ok := <-r.ch.Events():
			require.True(r.t, ok, "channel events closed")
			switch ev.Kind {
			case peer.EventOpen:
				continue
			case peer.EventClose:
				r.t.Fatal("channel closed while waiting for data")
			}
			msg, err := protocol.Decode(r.wire, ev.Data)
			require.NoError(r.t, err)
			return msg
		case <-time.After(timeout):
			r.t.Fatal("timed out waiting for frame")
		}
	}
}

func (r *rawPeer) waitClosed() {
	r.t.Helper()
	for {
		select {
		case ev, ok := <-r.ch.Events():
			if !ok || ev.Kind == peer.EventClose {
				return
			}
		case <-time.After(timeout):
			r.t.Fatal("timed out waiting for close")
		}
	}
}

// newRawOwner opens testRoom and lets a joiner controller dial it.
func newRawOwner(t *testing.T) (*rawPeer, *Controller, *recorder) {
	t.Helper()
	ctx := context.Background()
	net := memory.NewNetwork()

	tr := net.NewTransport(protocol.ClientCLI)
	_, err := tr.Open(ctx, string(testRoom))
	require.NoError(t, err)

	sink := newRecorder()
	joiner := New(net.NewTransport(protocol.ClientCLI), sink, Options{})
	require.NoError(t, joiner.Join(ctx, string(testRoom), "bob"))

	var ch peer.Channel
	select {
	case ch = <-tr.Incoming():
	case <-time.After(timeout):
		t.Fatal("joiner never dialed")
	}
	waitState(t, joiner, StateKeyExchange)

	t.Cleanup(func() {
		joiner.Leave()
		tr.Close()
	})
	return &rawPeer{t: t, tr: tr, ch: ch, wire: protocol.SelectCodec(protocol.ClientCLI, ch.ClientType())}, joiner, sink
}

func TestConcreteScenario(t *testing.T) {
	p := newActivePair(t, Options{})

	require.NoError(t, p.owner.SendMessage("hi"))
	msg := recv(t, p.joinerSink.messages)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "alice", msg.From)
	assert.Equal(t, string(testRoom), msg.PeerID)

	require.NoError(t, p.joiner.SendMessage("hello back"))
	assert.Equal(t, "hello back", recv(t, p.ownerSink.messages).Text)

	ownerSess, ok := p.owner.Session()
	require.True(t, ok)
	joinerSess, ok := p.joiner.Session()
	require.True(t, ok)
	assert.Equal(t, testKey, joinerSess.Key)
	assert.Equal(t, ownerSess.Key, joinerSess.Key)
	assert.True(t, ownerSess.IsOwner)
	assert.False(t, joinerSess.IsOwner)
	assert.True(t, ownerSess.HasPartner)
	assert.True(t, joinerSess.HasPartner)
	assert.Equal(t, string(testRoom), ownerSess.LocalPeerID)
}

func TestRosterAfterJoin(t *testing.T) {
	p := newActivePair(t, Options{})

	assert.Equal(t, "bob", recv(t, p.ownerSink.joined).DisplayName)
	owner := recv(t, p.joinerSink.joined)
	assert.Equal(t, "alice", owner.DisplayName)
	assert.True(t, owner.IsOwner)
	assert.Equal(t, string(testRoom), owner.PeerID)

	roster := p.owner.Participants()
	require.Len(t, roster, 2)
	assert.True(t, roster[0].IsLocal)
	assert.Equal(t, "alice", roster[0].DisplayName)
	assert.Equal(t, p.joinerTrans.ID(), roster[1].PeerID)

	roster = p.joiner.Participants()
	require.Len(t, roster, 2)
	assert.Equal(t, "bob", roster[0].DisplayName)
	assert.Equal(t, "alice", roster[1].DisplayName)
}

func TestOwnerSendsKeyFirst(t *testing.T) {
	ctx := context.Background()
	net := memory.NewNetwork()

	owner := New(net.NewTransport(protocol.ClientCLI), newRecorder(), fixedIdentity(Options{}))
	t.Cleanup(func() { owner.Leave() })
	_, err := owner.Create(ctx, "alice")
	require.NoError(t, err)

	tr := net.NewTransport(protocol.ClientWeb)
	_, err = tr.Open(ctx, "")
	require.NoError(t, err)
	ch, err := tr.Connect(ctx, string(testRoom))
	require.NoError(t, err)
	raw := &rawPeer{t: t, tr: tr, ch: ch, wire: protocol.SelectCodec(protocol.ClientWeb, ch.ClientType())}
	assert.Equal(t, protocol.JSON, raw.wire, "a web peer gets JSON framing")

	first, ok := raw.next().(protocol.EncryptionKey)
	require.True(t, ok, "first frame must be the key")
	assert.Equal(t, string(testKey), first.Key)
	assert.Equal(t, "alice", first.CreatorName)

	second, ok := raw.next().(protocol.ParticipantJoined)
	require.True(t, ok)
	assert.True(t, second.IsRoomOwner)
	assert.Equal(t, string(testRoom), second.PeerID)
	assert.Equal(t, StateKeyExchange, owner.State())

	raw.send(protocol.ParticipantJoined{DisplayName: "web user", PeerID: tr.ID()})
	waitState(t, owner, StateActive)
}

func TestJoinWithPartnerPresentIsRejected(t *testing.T) {
	p := newActivePair(t, Options{})
	before, _ := p.joiner.Session()
	roster := p.joiner.Participants()

	err := p.joiner.Join(context.Background(), string(testRoom), "bob again")
	assert.ErrorIs(t, err, ErrCapacity)

	err = p.owner.Join(context.Background(), string(testRoom), "alice again")
	assert.ErrorIs(t, err, ErrCapacity)

	after, ok := p.joiner.Session()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, roster, p.joiner.Participants())
	assert.Equal(t, StateActive, p.joiner.State())
}

func TestThirdPartyIsRejected(t *testing.T) {
	p := newActivePair(t, Options{})
	ctx := context.Background()

	intruder := p.net.NewTransport(protocol.ClientCLI)
	_, err := intruder.Open(ctx, "")
	require.NoError(t, err)
	ch, err := intruder.Connect(ctx, string(testRoom))
	require.NoError(t, err)

	raw := &rawPeer{t: t, tr: intruder, ch: ch}
	raw.waitClosed()

	assert.Equal(t, StateActive, p.owner.State())
	assert.Len(t, p.owner.Participants(), 2)

	require.NoError(t, p.owner.SendMessage("still here"))
	assert.Equal(t, "still here", recv(t, p.joinerSink.messages).Text)
}

func TestSecondCreateOrJoinIsRefused(t *testing.T) {
	ctx := context.Background()
	net := memory.NewNetwork()
	owner := New(net.NewTransport(protocol.ClientCLI), nil, fixedIdentity(Options{}))
	t.Cleanup(func() { owner.Leave() })

	_, err := owner.Create(ctx, "alice")
	require.NoError(t, err)

	_, err = owner.Create(ctx, "alice")
	assert.ErrorIs(t, err, ErrSessionActive)
	err = owner.Join(ctx, string(testRoom), "alice")
	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Equal(t, StateWaitingForPeer, owner.State())
}

func TestInvalidRoomIDTouchesNothing(t *testing.T) {
	net := memory.NewNetwork()
	tr := net.NewTransport(protocol.ClientCLI)
	sink := newRecorder()
	c := New(tr, sink, Options{})

	err := c.Join(context.Background(), "not-a-room", "bob")
	assert.ErrorIs(t, err, room.ErrInvalidID)
	var idErr *room.IdentityError
	assert.ErrorAs(t, err, &idErr)

	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, tr.ID(), "transport was never opened")
	_, ok := c.Session()
	assert.False(t, ok)
}

func TestDialFailureIsTerminal(t *testing.T) {
	net := memory.NewNetwork()
	sink := newRecorder()
	c := New(net.NewTransport(protocol.ClientCLI), sink, Options{})

	err := c.Join(context.Background(), string(testRoom), "bob")
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, peer.ErrPeerUnavailable)

	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.Err(), ErrTransport)
	assert.ErrorIs(t, recv(t, sink.closed), ErrTransport)

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestCreateWithTakenID(t *testing.T) {
	ctx := context.Background()
	net := memory.NewNetwork()
	_, err := net.NewTransport(protocol.ClientCLI).Open(ctx, string(testRoom))
	require.NoError(t, err)

	c := New(net.NewTransport(protocol.ClientCLI), nil, fixedIdentity(Options{}))
	_, err = c.Create(ctx, "alice")
	assert.ErrorIs(t, err, peer.ErrIDTaken)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, StateClosed, c.State())
}

func TestKeyMismatchClosesSession(t *testing.T) {
	raw, joiner, sink := newRawOwner(t)

	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "mallory"})
	raw.sendChat(otherKey, "you can't read this")

	err := recv(t, sink.closed)
	assert.ErrorIs(t, err, ErrKeyExchange)
	assert.ErrorIs(t, err, codec.ErrDecode)
	assert.Equal(t, StateClosed, joiner.State())
	assert.ErrorIs(t, joiner.Err(), ErrKeyExchange)

	_, ok := joiner.Session()
	assert.False(t, ok, "session is wiped")
}

func TestLaterDecodeFailuresAreDropped(t *testing.T) {
	raw, joiner, sink := newRawOwner(t)

	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "alice"})
	raw.sendChat(testKey, "one")
	raw.sendChat(otherKey, "garbled")
	raw.sendChat(testKey, "two")

	assert.Equal(t, "one", recv(t, sink.messages).Text)
	assert.Equal(t, "two", recv(t, sink.messages).Text)
	assert.Equal(t, StateActive, joiner.State())
}

func TestFirstKeyIsAuthoritative(t *testing.T) {
	raw, joiner, sink := newRawOwner(t)

	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "alice"})
	raw.send(protocol.EncryptionKey{Key: string(otherKey), CreatorName: "alice"})
	raw.sendChat(testKey, "first key wins")

	assert.Equal(t, "first key wins", recv(t, sink.messages).Text)
	sess, ok := joiner.Session()
	require.True(t, ok)
	assert.Equal(t, testKey, sess.Key)
}

func TestJoinerDropsTrafficBeforeKey(t *testing.T) {
	raw, joiner, sink := newRawOwner(t)

	raw.sendChat(testKey, "too early")
	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "alice"})
	raw.sendChat(testKey, "on time")

	assert.Equal(t, "on time", recv(t, sink.messages).Text)
	assert.Equal(t, StateActive, joiner.State())
}

func TestJoinerAnnouncesAfterKey(t *testing.T) {
	raw, _, _ := newRawOwner(t)

	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "alice"})
	joined, ok := raw.next().(protocol.ParticipantJoined)
	require.True(t, ok)
	assert.Equal(t, "bob", joined.DisplayName)
	assert.False(t, joined.IsRoomOwner)
}

func TestOutboxFlushesAfterKeyExchange(t *testing.T) {
	raw, joiner, _ := newRawOwner(t)

	require.NoError(t, joiner.SendMessage("queued"))
	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "alice"})

	_, ok := raw.next().(protocol.ParticipantJoined)
	require.True(t, ok, "announcement precedes held messages")

	chat, ok := raw.next().(protocol.ChatMessage)
	require.True(t, ok)
	k, err := testKey.Bytes()
	require.NoError(t, err)
	text, err := codec.Decode(k, chat.Message)
	require.NoError(t, err)
	assert.Equal(t, "queued", text)
	assert.Equal(t, "bob", chat.DisplayName)
}

func TestSendOutsideActive(t *testing.T) {
	c := New(memory.NewNetwork().NewTransport(protocol.ClientCLI), nil, fixedIdentity(Options{}))
	assert.ErrorIs(t, c.SendMessage("x"), ErrNotConnected)

	_, err := c.Create(context.Background(), "alice")
	require.NoError(t, err)
	assert.ErrorIs(t, c.SendMessage("x"), ErrNoPartner)
	assert.ErrorIs(t, c.SendFileData(context.Background(), "a", "text/plain", []byte("x")), ErrNotConnected)

	require.NoError(t, c.Leave())
	assert.ErrorIs(t, c.SendMessage("x"), ErrNotConnected)
}

func TestOwnerLeftClosesJoiner(t *testing.T) {
	p := newActivePair(t, Options{})

	require.NoError(t, p.owner.Leave())
	assert.NoError(t, recv(t, p.ownerSink.closed))

	err := recv(t, p.joinerSink.closed)
	assert.ErrorIs(t, err, ErrOwnerLeft)
	assert.Equal(t, "alice", recv(t, p.joinerSink.left))
	assert.Equal(t, StateClosed, p.joiner.State())
	assert.Nil(t, p.owner.Err())
}

func TestJoinerLossIsConnectionLost(t *testing.T) {
	p := newActivePair(t, Options{})

	require.NoError(t, p.joiner.Leave())

	err := recv(t, p.ownerSink.closed)
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "bob", recv(t, p.ownerSink.left))

	_, ok := p.owner.Session()
	assert.False(t, ok)
	assert.Len(t, p.owner.Participants(), 1)
	assert.Eventually(t, func() bool { return !p.net.Lookup(string(testRoom)) }, timeout, 5*time.Millisecond)
}

func TestLeaveIsIdempotent(t *testing.T) {
	sink := newRecorder()
	c := New(memory.NewNetwork().NewTransport(protocol.ClientCLI), sink, fixedIdentity(Options{}))
	_, err := c.Create(context.Background(), "alice")
	require.NoError(t, err)

	require.NoError(t, c.Leave())
	require.NoError(t, c.Leave())
	assert.Equal(t, StateClosed, c.State())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.closes)
}

func TestFileTransferEndToEnd(t *testing.T) {
	p := newActivePair(t, Options{ChunkSize: 1000})

	data := bytes.Repeat([]byte("warpchat!"), 3000)
	require.NoError(t, p.owner.SendFileData(context.Background(), "notes.txt", "text/plain", data))

	f := recv(t, p.joinerSink.files)
	assert.Equal(t, "notes.txt", f.Name)
	assert.Equal(t, "text/plain", f.Type)
	assert.Equal(t, "alice", f.From)

	mimeType, got, err := transfer.DecodeDataURL(f.DataURL)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mimeType)
	assert.Equal(t, data, got)

	total := transfer.ChunkCount(len(transfer.EncodeDataURL("text/plain", data)), 1000)
	p.ownerSink.mu.Lock()
	sent := p.ownerSink.progress
	p.ownerSink.mu.Unlock()
	require.Len(t, sent, total)
	assert.True(t, sent[len(sent)-1].Outgoing)
	assert.Equal(t, total, sent[len(sent)-1].Received)
}

func TestSendFileFromDisk(t *testing.T) {
	p := newActivePair(t, Options{})

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello file"), 0644))
	require.NoError(t, p.joiner.SendFile(context.Background(), path))

	f := recv(t, p.ownerSink.files)
	assert.Equal(t, "hello.txt", f.Name)
	_, got, err := transfer.DecodeDataURL(f.DataURL)
	require.NoError(t, err)
	assert.Equal(t, "hello file", string(got))
}

func TestOversizedFileIsRefused(t *testing.T) {
	p := newActivePair(t, Options{})

	err := p.owner.SendFileData(context.Background(), "big.bin", "", make([]byte, transfer.MaxFileSize+1))
	assert.ErrorIs(t, err, transfer.ErrFileTooLarge)
	assert.Equal(t, StateActive, p.owner.State())
}

func TestCancelledFileSend(t *testing.T) {
	p := newActivePair(t, Options{ChunkSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.owner.SendFileData(ctx, "a.txt", "text/plain", []byte("some file contents"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateActive, p.owner.State())
}

func TestTransferErrorKeepsSession(t *testing.T) {
	raw, joiner, sink := newRawOwner(t)
	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "alice"})

	raw.send(protocol.FileChunk{Name: "x.bin", Chunk: "aa", Index: 0, Total: 2})
	raw.send(protocol.FileChunk{Name: "x.bin", Chunk: "bb", Index: 1, Total: 3})
	assert.ErrorIs(t, recv(t, sink.failed), transfer.ErrTotalMismatch)
	assert.Equal(t, StateActive, joiner.State())

	url := transfer.EncodeDataURL("text/plain", []byte("ok"))
	raw.send(protocol.FileChunk{Name: "y.txt", FileType: "text/plain", Chunk: url, Index: 0, Total: 1})
	f := recv(t, sink.files)
	assert.Equal(t, "y.txt", f.Name)
	assert.Equal(t, url, f.DataURL)
}

func TestOversizedChunkTotalKeepsSession(t *testing.T) {
	raw, joiner, sink := newRawOwner(t)
	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "alice"})
	waitState(t, joiner, StateActive)

	raw.send(protocol.FileChunk{Name: "x", Chunk: "a", Index: 0, Total: 1 << 62})
	assert.ErrorIs(t, recv(t, sink.failed), transfer.ErrInvalidTotal)
	assert.Equal(t, StateActive, joiner.State())

	raw.sendChat(testKey, "still here")
	assert.Equal(t, "still here", recv(t, sink.messages).Text)
}

func TestOwnerLeftDuringKeyExchange(t *testing.T) {
	raw, joiner, sink := newRawOwner(t)
	require.Equal(t, StateKeyExchange, joiner.State())

	raw.send(protocol.OwnerLeft{})
	assert.ErrorIs(t, recv(t, sink.closed), ErrOwnerLeft)
	assert.Equal(t, StateClosed, joiner.State())
}

func TestCipherMismatchNamesCipher(t *testing.T) {
	raw, joiner, sink := newRawOwner(t)
	raw.send(protocol.EncryptionKey{Key: string(testKey), CreatorName: "alice"})

	chacha, err := codec.New(codec.CipherChaCha20Poly1305)
	require.NoError(t, err)
	k, err := testKey.Bytes()
	require.NoError(t, err)
	env, err := chacha.Encode(k, "hello")
	require.NoError(t, err)
	raw.send(protocol.ChatMessage{Message: env, DisplayName: "alice", Timestamp: time.Now().UnixMilli()})

	err = recv(t, sink.closed)
	assert.ErrorIs(t, err, ErrKeyExchange)
	assert.ErrorIs(t, err, codec.ErrDecode)
	assert.Contains(t, err.Error(), codec.CipherAESGCM)
	assert.Equal(t, StateClosed, joiner.State())
}
