package session

import (
	"time"

	"github.com/BioHazard786/Warpchat/internal/participant"
	"github.com/BioHazard786/Warpchat/internal/room"
)

// Message is a decrypted chat message from the partner.
type Message struct {
	PeerID string
	From   string
	Text   string
	Sent   time.Time
}

// Progress reports one chunk of a file moving in either direction.
type Progress struct {
	Name     string
	Received int
	Total    int
	Outgoing bool
}

// ReceivedFile is a fully reassembled incoming file, still as a data URL.
type ReceivedFile struct {
	Name    string
	Type    string
	DataURL string
	From    string
}

// Sink receives controller notifications. Methods are called with the
// controller locked: implementations must return quickly and must not call
// back into the Controller.
type Sink interface {
	StateChanged(State)
	RoomReady(room.ID)
	ParticipantJoined(participant.Record)
	ParticipantLeft(name string)
	MessageReceived(Message)
	FileProgress(Progress)
	FileReceived(ReceivedFile)
	TransferFailed(name string, err error)

	// Closed fires once. err is nil after Leave.
	Closed(err error)
}

// NopSink ignores every notification. Embed it to implement part of Sink.
type NopSink struct{}

func (NopSink) StateChanged(State)                   {}
func (NopSink) RoomReady(room.ID)                    {}
func (NopSink) ParticipantJoined(participant.Record) {}
func (NopSink) ParticipantLeft(string)               {}
func (NopSink) MessageReceived(Message)              {}
func (NopSink) FileProgress(Progress)                {}
func (NopSink) FileReceived(ReceivedFile)            {}
func (NopSink) TransferFailed(string, error)         {}
func (NopSink) Closed(error)                         {}
