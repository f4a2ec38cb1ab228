package session

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity rejects a join while the room already has a partner.
	ErrCapacity = errors.New("session: room is full")

	// ErrKeyExchange means the first chat message could not be decrypted,
	// so the two sides hold different keys.
	ErrKeyExchange = errors.New("session: key exchange failed")

	// ErrTransport marks failures of the underlying peer transport.
	ErrTransport = errors.New("session: transport error")

	ErrConnectionLost = fmt.Errorf("%w: connection lost", ErrTransport)
	ErrOwnerLeft      = errors.New("session: room owner left")
	ErrSessionActive  = errors.New("session: already in a room")
	ErrSessionClosed  = errors.New("session: closed")
	ErrNotConnected   = errors.New("session: not connected")
	ErrNoPartner      = errors.New("session: no one has joined yet")
)

// Error records the controller operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transportError(op string, err error) *Error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
}

func keyExchangeError(err error) *Error {
	return &Error{Op: "key exchange", Err: fmt.Errorf("%w: %w", ErrKeyExchange, err)}
}
