package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/Warpchat/internal/participant"
	"github.com/BioHazard786/Warpchat/internal/session"
	"github.com/BioHazard786/Warpchat/internal/transfer"
)

type fakeActions struct {
	mu      sync.Mutex
	sent    []string
	files   []string
	left    bool
	sendErr error
	roster  []participant.Record
}

func (f *fakeActions) SendMessage(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeActions) SendFile(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, path)
	return nil
}

func (f *fakeActions) Participants() []participant.Record { return f.roster }

func (f *fakeActions) Leave() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = true
	return nil
}

func newTestModel(t *testing.T) (*ChatModel, *fakeActions) {
	t.Helper()
	actions := &fakeActions{}
	events := make(chan tea.Msg)
	m := NewChatModel(actions, events, ChatOptions{
		DisplayName: "alice",
		DownloadDir: t.TempDir(),
		State:       session.StateActive,
	})
	return m, actions
}

func typeLine(m *ChatModel, line string) tea.Cmd {
	m.input.SetValue(line)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func transcript(m *ChatModel) string {
	return strings.Join(m.lines, "\n")
}

func TestSubmitSendsMessage(t *testing.T) {
	m, actions := newTestModel(t)

	cmd := typeLine(m, "  hello there ")
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	m.Update(cmd())
	assert.Equal(t, []string{"hello there"}, actions.sent)
	assert.Contains(t, transcript(m), "alice:")
	assert.Contains(t, transcript(m), "hello there")
}

func TestSubmitReportsSendError(t *testing.T) {
	m, actions := newTestModel(t)
	actions.sendErr = errors.New("not connected")

	m.Update(typeLine(m, "hi")())
	assert.Contains(t, transcript(m), "message not sent: not connected")
}

func TestMessagesSendInOrder(t *testing.T) {
	m, actions := newTestModel(t)

	first := typeLine(m, "one")
	require.NotNil(t, first)
	assert.Nil(t, typeLine(m, "two"), "second line waits for the first")
	assert.Nil(t, typeLine(m, "three"))

	_, next := m.Update(first())
	require.NotNil(t, next)
	_, next = m.Update(next())
	require.NotNil(t, next)
	_, next = m.Update(next())
	assert.Nil(t, next)

	assert.Equal(t, []string{"one", "two", "three"}, actions.sent)
}

func TestEmptyLineDoesNothing(t *testing.T) {
	m, _ := newTestModel(t)
	assert.Nil(t, typeLine(m, "   "))
	assert.Empty(t, m.lines)
}

func TestWhoRendersRoster(t *testing.T) {
	m, actions := newTestModel(t)
	actions.roster = []participant.Record{
		{PeerID: "local", DisplayName: "alice", IsOwner: true, IsLocal: true},
		{PeerID: "remote", DisplayName: "bob"},
	}

	m.Update(typeLine(m, "/who")())
	out := transcript(m)
	assert.Contains(t, out, "alice (you)")
	assert.Contains(t, out, "owner")
	assert.Contains(t, out, "bob")
}

func TestFileCommand(t *testing.T) {
	m, actions := newTestModel(t)

	assert.Nil(t, typeLine(m, "/file"))
	assert.Contains(t, transcript(m), "usage: /file <path>")

	cmd := typeLine(m, `/file "/tmp/notes.txt"`)
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.Equal(t, []string{"/tmp/notes.txt"}, actions.files)
	assert.Contains(t, transcript(m), "Sent notes.txt")
}

func TestUnknownCommand(t *testing.T) {
	m, actions := newTestModel(t)
	assert.Nil(t, typeLine(m, "/dance"))
	assert.Contains(t, transcript(m), "unknown command /dance")
	assert.Empty(t, actions.sent)
}

func TestQuitLeavesSession(t *testing.T) {
	m, actions := newTestModel(t)

	cmd := typeLine(m, "/quit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, actions.left)
	assert.Empty(t, m.View())
}

func TestIncomingMessage(t *testing.T) {
	m, _ := newTestModel(t)
	sent := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)

	m.Update(chatMsg(session.Message{From: "bob", Text: "hey", Sent: sent}))
	out := transcript(m)
	assert.Contains(t, out, "[09:30]")
	assert.Contains(t, out, "bob:")
	assert.Contains(t, out, "hey")
}

func TestClosedWithErrorQuits(t *testing.T) {
	m, _ := newTestModel(t)
	lost := errors.New("connection lost")

	_, cmd := m.Update(closedMsg{err: lost})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, m.Err(), lost)
	assert.Error(t, m.ctx.Err(), "pending file sends are cancelled")
}

func TestProgressBars(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(progressMsg(session.Progress{Name: "a.bin", Received: 1, Total: 4}))
	m.Update(progressMsg(session.Progress{Name: "a.bin", Received: 2, Total: 4}))
	m.Update(progressMsg(session.Progress{Name: "b.bin", Received: 1, Total: 2, Outgoing: true}))
	require.Len(t, m.transfers, 2)
	assert.Equal(t, 2, m.transfers[0].received)
	assert.Contains(t, m.View(), "50.0%")

	m.Update(transferFailedMsg{name: "a.bin", err: transfer.ErrTotalMismatch})
	require.Len(t, m.transfers, 1)
	assert.Contains(t, transcript(m), "transfer of a.bin failed")

	m.Update(fileSentMsg{name: "b.bin"})
	assert.Empty(t, m.transfers)
}

func TestReceivedFileIsSaved(t *testing.T) {
	m, _ := newTestModel(t)
	dataURL := transfer.EncodeDataURL("text/plain", []byte("payload"))

	_, cmd := m.Update(fileMsg(session.ReceivedFile{Name: "../note.txt", Type: "text/plain", DataURL: dataURL, From: "bob"}))
	require.NotNil(t, cmd)

	var saved savedMsg
	for _, msg := range runBatch(cmd) {
		if s, ok := msg.(savedMsg); ok {
			saved = s
		}
	}
	require.NoError(t, saved.err)
	assert.Equal(t, filepath.Join(m.opts.DownloadDir, "note.txt"), saved.path)

	data, err := os.ReadFile(saved.path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	m.Update(saved)
	assert.Contains(t, transcript(m), "Saved ../note.txt from bob")
}

// runBatch executes the commands of a batch, skipping the ones that wait on
// the session event channel.
func runBatch(cmd tea.Cmd) []tea.Msg {
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		if c == nil {
			continue
		}
		done := make(chan tea.Msg, 1)
		go func() { done <- c() }()
		select {
		case m := <-done:
			out = append(out, m)
		case <-time.After(100 * time.Millisecond):
		}
	}
	return out
}

func TestSinkDropsIntermediateProgress(t *testing.T) {
	s := NewSink()
	for range cap(s.events) {
		s.StateChanged(session.StateActive)
	}

	done := make(chan struct{})
	go func() {
		s.FileProgress(session.Progress{Name: "x", Received: 1, Total: 3})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("intermediate progress blocked on a full queue")
	}

	s.Stop()
	s.Closed(nil)
	s.FileProgress(session.Progress{Name: "x", Received: 3, Total: 3})
	assert.Len(t, s.events, cap(s.events))
}

func TestSinkForwardsInOrder(t *testing.T) {
	s := NewSink()
	s.RoomReady("AAAA")
	s.ParticipantJoined(participant.Record{DisplayName: "bob"})
	s.MessageReceived(session.Message{Text: "hi"})

	assert.Equal(t, roomReadyMsg("AAAA"), <-s.Events())
	assert.Equal(t, joinedMsg(participant.Record{DisplayName: "bob"}), <-s.Events())
	assert.Equal(t, chatMsg(session.Message{Text: "hi"}), <-s.Events())
}
