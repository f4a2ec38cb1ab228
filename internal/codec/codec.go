// Package codec seals chat payloads into hex envelopes with an AEAD cipher
// keyed by the room's session key.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the required session key length in bytes.
	KeySize = 32

	// NonceSize is the IV length carried in every envelope.
	NonceSize = 12

	CipherAESGCM           = "aes-gcm"
	CipherChaCha20Poly1305 = "chacha20-poly1305"
)

var (
	// ErrDecode covers every way an envelope can fail to open: malformed hex,
	// wrong nonce length, wrong key or tampered ciphertext.
	ErrDecode = errors.New("codec: decode failed")

	ErrInvalidKey    = errors.New("codec: invalid key length")
	ErrUnknownCipher = errors.New("codec: unknown cipher")
)

// Envelope is the transport-safe form of one encrypted message.
type Envelope struct {
	IV         string `json:"iv" msgpack:"iv"`
	Ciphertext string `json:"ciphertext" msgpack:"ciphertext"`
}

type aeadFactory func(key []byte) (cipher.AEAD, error)

// Codec encrypts and decrypts envelopes with one AEAD construction.
type Codec struct {
	name    string
	newAEAD aeadFactory
	rand    io.Reader
}

var defaultCodec = &Codec{name: CipherAESGCM, newAEAD: newAESGCM, rand: rand.Reader}

// New returns a codec for the named cipher. An empty name selects AES-256-GCM.
func New(name string) (*Codec, error) {
	switch name {
	case "", CipherAESGCM:
		return &Codec{name: CipherAESGCM, newAEAD: newAESGCM, rand: rand.Reader}, nil
	case CipherChaCha20Poly1305:
		return &Codec{name: CipherChaCha20Poly1305, newAEAD: chacha20poly1305.New, rand: rand.Reader}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
}

// Default returns the AES-256-GCM codec.
func Default() *Codec {
	return defaultCodec
}

func (c *Codec) Name() string {
	return c.name
}

// Encode seals plaintext under key with a fresh random nonce.
func (c *Codec) Encode(key []byte, plaintext string) (Envelope, error) {
	aead, err := c.aead(key)
	if err != nil {
		return Envelope{}, err
	}

	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return Envelope{}, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, iv, []byte(plaintext), nil)
	return Envelope{
		IV:         hex.EncodeToString(iv),
		Ciphertext: hex.EncodeToString(ciphertext),
	}, nil
}

// Decode opens an envelope. Any failure wraps ErrDecode and no partial
// plaintext is ever returned.
func (c *Codec) Decode(key []byte, env Envelope) (string, error) {
	aead, err := c.aead(key)
	if err != nil {
		return "", err
	}

	iv, err := hex.DecodeString(env.IV)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrDecode, err)
	}
	if len(iv) != aead.NonceSize() {
		return "", fmt.Errorf("%w: invalid nonce length: got %d want %d", ErrDecode, len(iv), aead.NonceSize())
	}

	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrDecode, err)
	}
	if len(ciphertext) < aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecode)
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(plaintext), nil
}

func (c *Codec) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d want %d", ErrInvalidKey, len(key), KeySize)
	}
	aead, err := c.newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", c.name, err)
	}
	return aead, nil
}

// Encode seals plaintext with the default cipher.
func Encode(key []byte, plaintext string) (Envelope, error) {
	return defaultCodec.Encode(key, plaintext)
}

// Decode opens an envelope with the default cipher.
func Decode(key []byte, env Envelope) (string, error) {
	return defaultCodec.Decode(key, env)
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
