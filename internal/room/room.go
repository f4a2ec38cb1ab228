package room

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

const (
	// IDLength is the number of characters in a room ID.
	IDLength = 24

	// KeySize is the session key length in bytes (64 hex characters).
	KeySize = 32

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrInvalidID  = errors.New("room: invalid room ID")
	ErrInvalidKey = errors.New("room: invalid session key")
)

// ID addresses a room. It doubles as the owner's transport ID.
type ID string

func (id ID) String() string {
	return string(id)
}

// Key is the hex-encoded symmetric session key shared by both peers.
type Key string

// Bytes decodes the key into its raw 32 bytes.
func (k Key) Bytes() ([]byte, error) {
	raw, err := hex.DecodeString(string(k))
	if err != nil || len(raw) != KeySize {
		return nil, ErrInvalidKey
	}
	return raw, nil
}

// IdentityError reports a malformed room ID.
type IdentityError struct {
	Input  string
	Reason string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%v %q: %s", ErrInvalidID, e.Input, e.Reason)
}

func (e *IdentityError) Unwrap() error {
	return ErrInvalidID
}

// GenerateID returns a fresh room ID of IDLength characters drawn uniformly
// from [A-Za-z0-9].
func GenerateID() (ID, error) {
	var b strings.Builder
	b.Grow(IDLength)
	for range IDLength {
		i, err := randomIndex(len(alphabet))
		if err != nil {
			return "", fmt.Errorf("generate room ID: %w", err)
		}
		b.WriteByte(alphabet[i])
	}
	return ID(b.String()), nil
}

// GenerateKey returns a new session key read from crypto/rand.
func GenerateKey() (Key, error) {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	return Key(hex.EncodeToString(raw)), nil
}

// ParseKey validates a hex session key received from the wire.
func ParseKey(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	if _, err := k.Bytes(); err != nil {
		return "", err
	}
	return k, nil
}

// ValidateID checks length and alphabet of a room ID.
func ValidateID(s string) error {
	if len(s) != IDLength {
		return &IdentityError{Input: s, Reason: fmt.Sprintf("must be %d characters, got %d", IDLength, len(s))}
	}
	for i := 0; i < len(s); i++ {
		if !isAlphanumeric(s[i]) {
			return &IdentityError{Input: s, Reason: fmt.Sprintf("invalid character %q at position %d", s[i], i)}
		}
	}
	return nil
}

// FromInput accepts either a bare room ID or a room link of the form
// https://<domain>/r/<id> and returns the validated ID.
func FromInput(input string) (ID, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", &IdentityError{Input: input, Reason: "room ID cannot be empty"}
	}

	candidate := input
	if strings.Contains(input, "://") || strings.Contains(input, "/") {
		extracted, err := extractFromLink(input)
		if err != nil {
			return "", err
		}
		candidate = extracted
	}

	if err := ValidateID(candidate); err != nil {
		return "", err
	}
	return ID(candidate), nil
}

func extractFromLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", &IdentityError{Input: link, Reason: "unparseable link"}
	}

	parts := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", &IdentityError{Input: link, Reason: "link has no /r/<id> segment"}
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
