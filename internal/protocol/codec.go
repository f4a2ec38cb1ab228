package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnknownType = errors.New("protocol: unknown message type")
	ErrMalformed   = errors.New("protocol: malformed message")
)

// Client types reported through signaling.
const (
	ClientCLI = "cli"
	ClientWeb = "web"
)

// Codec frames messages for the data channel.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

var (
	// JSON is understood by every client, browsers included.
	JSON Codec = jsonCodec{}

	// Msgpack is the compact framing used between two CLI peers.
	Msgpack Codec = msgpackCodec{}
)

// SelectCodec picks the framing for a channel from both ends' client types.
// Anything other than a CLI on both sides falls back to JSON.
func SelectCodec(localType, remoteType string) Codec {
	if localType == ClientCLI && remoteType == ClientCLI {
		return Msgpack
	}
	return JSON
}

// Encode stamps the message type and marshals it.
func Encode(c Codec, msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case EncryptionKey:
		m.Type = TypeEncryptionKey
		msg = m
	case ParticipantJoined:
		m.Type = TypeParticipantJoined
		msg = m
	case ChatMessage:
		m.Type = TypeMessage
		msg = m
	case FileChunk:
		m.Type = TypeFileChunk
		msg = m
	case OwnerLeft:
		m.Type = TypeOwnerLeft
		msg = m
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}

	data, err := c.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.MessageType(), err)
	}
	return data, nil
}

// Decode parses a frame into one of the concrete message structs.
func Decode(c Codec, data []byte) (Message, error) {
	var h header
	if err := c.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		msg Message
		err error
	)
	switch h.Type {
	case TypeEncryptionKey:
		var m EncryptionKey
		err = c.Unmarshal(data, &m)
		msg = m
	case TypeParticipantJoined:
		var m ParticipantJoined
		err = c.Unmarshal(data, &m)
		msg = m
	case TypeMessage:
		var m ChatMessage
		err = c.Unmarshal(data, &m)
		msg = m
	case TypeFileChunk:
		var m FileChunk
		err = c.Unmarshal(data, &m)
		msg = m
	case TypeOwnerLeft:
		msg = OwnerLeft{Type: TypeOwnerLeft}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, h.Type, err)
	}
	return msg, nil
}
