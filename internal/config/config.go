package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BioHazard786/Warpchat/internal/codec"
	"github.com/BioHazard786/Warpchat/internal/transfer"
)

// Default configuration values (production)
const (
	DefaultDomain = "warpchat.qzz.io"
	DefaultSTUN   = "stun:stun.l.google.com:19302"

	// MaxChunkSize keeps a framed file-chunk under the SCTP message limit.
	MaxChunkSize = 32 * 1024
	MinChunkSize = transfer.MinChunkSize
)

var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds application configuration
type Config struct {
	// Domain is the broker domain, also used for room links
	Domain string

	// WebSocketURL is the broker endpoint, built from Domain unless
	// overridden by LAN discovery
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	DisplayName string
	Cipher      string
	DownloadDir string
	ChunkSize   int
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain      string
	BrokerURL   string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
	DisplayName string
	Cipher      string
	DownloadDir string
	ChunkSize   int
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Domain:      pick(opts.Domain, "DOMAIN", DefaultDomain),
		STUNServer:  pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer:  pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:    pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:    pick(opts.TURNPass, "TURN_PASSWORD", ""),
		DisplayName: pick(opts.DisplayName, "WARPCHAT_NAME", os.Getenv("USER")),
		Cipher:      pick(opts.Cipher, "WARPCHAT_CIPHER", codec.CipherAESGCM),
		DownloadDir: pick(opts.DownloadDir, "WARPCHAT_DOWNLOAD_DIR", "."),
		ForceRelay:  opts.ForceRelay,
		ChunkSize:   opts.ChunkSize,
	}

	if !cfg.ForceRelay {
		if v, ok := os.LookupEnv("FORCE_RELAY"); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%w: FORCE_RELAY=%q", ErrInvalidConfig, v)
			}
			cfg.ForceRelay = b
		}
	}

	if cfg.ChunkSize == 0 {
		if v := os.Getenv("WARPCHAT_CHUNK_SIZE"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%w: WARPCHAT_CHUNK_SIZE=%q", ErrInvalidConfig, v)
			}
			cfg.ChunkSize = n
		} else {
			cfg.ChunkSize = transfer.DefaultChunkSize
		}
	}

	if opts.BrokerURL != "" {
		cfg.WebSocketURL = opts.BrokerURL
	} else {
		cfg.WebSocketURL = fmt.Sprintf("%s://%s/ws", wsScheme(cfg.Domain), cfg.Domain)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func pick(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// wsScheme uses plain ws for local brokers: localhost or any host:port.
func wsScheme(domain string) string {
	if domain == "localhost" || strings.HasPrefix(domain, "localhost:") {
		return "ws"
	}
	if _, _, err := net.SplitHostPort(domain); err == nil {
		return "ws"
	}
	return "wss"
}

// Validate rejects configurations that would fail later at runtime.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("%w: empty domain", ErrInvalidConfig)
	}
	if _, err := codec.New(c.Cipher); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk size %d outside [%d, %d]", ErrInvalidConfig, c.ChunkSize, MinChunkSize, MaxChunkSize)
	}
	if c.ForceRelay && c.TURNServer == "" {
		return fmt.Errorf("%w: relay forced but no TURN server configured", ErrInvalidConfig)
	}
	return nil
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/r/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured. A bare host expands
// to UDP, TCP and TLS variants.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?") || strings.Count(c.TURNServer, ":") > 1 {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
