package signaling

import "encoding/json"

// Message is the envelope for every websocket frame between peers and the
// broker.
type Message struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	From       string          `json:"from,omitempty"`
	To         string          `json:"to,omitempty"`
	ClientType string          `json:"client_type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	MessageTypeOpen   = "open"
	MessageTypeSignal = "signal"

	MessageTypeOpened   = "opened"
	MessageTypePeerLeft = "peer_left"
	MessageTypeError    = "error"
)

// Error texts sent by the broker.
const (
	ErrorIDTaken      = "ID is taken"
	ErrorPeerNotFound = "Peer not found"
	ErrorNotOpen      = "Open an ID first"
	ErrorAlreadyOpen  = "ID already open"
	ErrorBadMessage   = "Malformed message"
)

// Signal kinds carried in SignalPayload.Type.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

// SignalPayload represents the WebRTC signaling data (SDP offer/answer or ICE candidate).
type SignalPayload struct {
	Type         string          `json:"type,omitempty"`
	SDP          string          `json:"sdp,omitempty"`
	ICECandidate json.RawMessage `json:"ice_candidate,omitempty"`
}

// ErrorPayload represents error messages from server.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewSignal addresses a signaling payload to peer to.
func NewSignal(to string, payload SignalPayload) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: MessageTypeSignal, To: to, Payload: data}, nil
}

// NewError builds a broker error frame. id names the peer the error is
// about, if any.
func NewError(id, text string) *Message {
	data, _ := json.Marshal(ErrorPayload{Error: text})
	return &Message{Type: MessageTypeError, ID: id, Payload: data}
}

// ErrorText extracts the error string from an error frame.
func (m *Message) ErrorText() string {
	var p ErrorPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil || p.Error == "" {
		return "Unknown error from server"
	}
	return p.Error
}
