package protocol

import (
	"github.com/BioHazard786/Warpchat/internal/codec"
)

// Data channel message types.
const (
	TypeEncryptionKey     = "encryption-key"
	TypeParticipantJoined = "participant-joined"
	TypeMessage           = "message"
	TypeFileChunk         = "file-chunk"
	TypeOwnerLeft         = "owner-left"
)

// Message is implemented by every data channel message.
type Message interface {
	MessageType() string
}

// header is decoded first to route the rest of the frame.
type header struct {
	Type string `json:"type" msgpack:"type"`
}

// EncryptionKey is sent by the owner once, as the first message on a new channel.
type EncryptionKey struct {
	Type        string `json:"type" msgpack:"type"`
	Key         string `json:"key" msgpack:"key"`
	CreatorName string `json:"creatorName" msgpack:"creatorName"`
}

// ParticipantJoined announces a peer's identity to the other side.
type ParticipantJoined struct {
	Type        string `json:"type" msgpack:"type"`
	DisplayName string `json:"displayName" msgpack:"displayName"`
	PeerID      string `json:"peerId" msgpack:"peerId"`
	IsRoomOwner bool   `json:"isRoomOwner" msgpack:"isRoomOwner"`
}

// ChatMessage carries one encrypted chat message. Timestamp is unix milliseconds.
type ChatMessage struct {
	Type        string         `json:"type" msgpack:"type"`
	Message     codec.Envelope `json:"message" msgpack:"message"`
	DisplayName string         `json:"displayName" msgpack:"displayName"`
	Timestamp   int64          `json:"timestamp" msgpack:"timestamp"`
}

// FileChunk is one slice of a data-URL file payload.
type FileChunk struct {
	Type     string `json:"type" msgpack:"type"`
	FileType string `json:"fileType" msgpack:"fileType"`
	Name     string `json:"name" msgpack:"name"`
	Chunk    string `json:"chunk" msgpack:"chunk"`
	Index    int    `json:"index" msgpack:"index"`
	Total    int    `json:"total" msgpack:"total"`
}

// OwnerLeft is the owner's advisory teardown notice.
type OwnerLeft struct {
	Type string `json:"type" msgpack:"type"`
}

func (EncryptionKey) MessageType() string     { return TypeEncryptionKey }
func (ParticipantJoined) MessageType() string { return TypeParticipantJoined }
func (ChatMessage) MessageType() string       { return TypeMessage }
func (FileChunk) MessageType() string         { return TypeFileChunk }
func (OwnerLeft) MessageType() string         { return TypeOwnerLeft }
