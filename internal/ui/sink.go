package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Warpchat/internal/participant"
	"github.com/BioHazard786/Warpchat/internal/room"
	"github.com/BioHazard786/Warpchat/internal/session"
)

// Messages delivered from the session to the chat model.
type (
	stateMsg          session.State
	roomReadyMsg      room.ID
	joinedMsg         participant.Record
	leftMsg           string
	chatMsg           session.Message
	progressMsg       session.Progress
	fileMsg           session.ReceivedFile
	transferFailedMsg struct {
		name string
		err  error
	}
	closedMsg struct{ err error }
)

// Sink turns session notifications into tea messages. Callbacks run under the
// controller lock: they block on a full queue only until Stop, and
// intermediate progress updates are dropped instead of queued.
type Sink struct {
	events   chan tea.Msg
	stop     chan struct{}
	stopOnce sync.Once
}

var _ session.Sink = (*Sink)(nil)

func NewSink() *Sink {
	return &Sink{
		events: make(chan tea.Msg, 256),
		stop:   make(chan struct{}),
	}
}

// Events is consumed by the chat model.
func (s *Sink) Events() <-chan tea.Msg {
	return s.events
}

// Stop releases any callback blocked on a full queue.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Sink) push(msg tea.Msg) {
	select {
	case s.events <- msg:
	case <-s.stop:
	}
}

func (s *Sink) StateChanged(st session.State)          { s.push(stateMsg(st)) }
func (s *Sink) RoomReady(id room.ID)                   { s.push(roomReadyMsg(id)) }
func (s *Sink) ParticipantJoined(p participant.Record) { s.push(joinedMsg(p)) }
func (s *Sink) ParticipantLeft(name string)            { s.push(leftMsg(name)) }
func (s *Sink) MessageReceived(m session.Message)      { s.push(chatMsg(m)) }
func (s *Sink) FileReceived(f session.ReceivedFile)    { s.push(fileMsg(f)) }
func (s *Sink) Closed(err error)                       { s.push(closedMsg{err: err}) }

func (s *Sink) TransferFailed(name string, err error) {
	s.push(transferFailedMsg{name: name, err: err})
}

func (s *Sink) FileProgress(p session.Progress) {
	// The final chunk always gets through so completed bars are cleared.
	if p.Received >= p.Total {
		s.push(progressMsg(p))
		return
	}
	select {
	case s.events <- progressMsg(p):
	default:
	}
}
