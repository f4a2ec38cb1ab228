package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Warpchat/internal/codec"
	"github.com/BioHazard786/Warpchat/internal/config"
	"github.com/BioHazard786/Warpchat/internal/discovery"
	"github.com/BioHazard786/Warpchat/internal/session"
	"github.com/BioHazard786/Warpchat/internal/signaling"
	"github.com/BioHazard786/Warpchat/internal/ui"
	"github.com/BioHazard786/Warpchat/internal/webrtc"
)

// ChatContext bundles everything a create or join run needs.
type ChatContext struct {
	Config     *config.Config
	Transport  *webrtc.Transport
	Sink       *ui.Sink
	Controller *session.Controller
}

// LoadConfig merges flags, environment and defaults. With --lan the broker
// address comes from mDNS instead of the domain.
func LoadConfig(ctx context.Context) (*config.Config, error) {
	opts := config.Options{
		Domain:      flagDomain,
		STUNServer:  flagSTUN,
		TURNServer:  flagTURN,
		TURNUser:    flagTURNUser,
		TURNPass:    flagTURNPass,
		ForceRelay:  flagRelay,
		DisplayName: flagName,
		Cipher:      flagCipher,
		DownloadDir: flagDownloadDir,
	}

	if flagLAN {
		stopSpinner := ui.RunSpinner("Looking for a broker on the local network...")
		brokerURL, err := discovery.Browse(ctx, discovery.BrowseTimeout)
		stopSpinner()
		if err != nil {
			return nil, err
		}
		ui.PrintInfo("Using LAN broker " + brokerURL)
		opts.BrokerURL = brokerURL
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// NewChatContext connects to the broker and builds an idle controller.
func NewChatContext(ctx context.Context, cfg *config.Config) (*ChatContext, error) {
	cipher, err := codec.New(cfg.Cipher)
	if err != nil {
		return nil, err
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to server...")
	defer stopSpinner()

	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	transport := webrtc.NewTransport(cfg, client, handler)
	sink := ui.NewSink()
	controller := session.New(transport, sink, session.Options{
		Cipher:    cipher,
		ChunkSize: cfg.ChunkSize,
	})

	return &ChatContext{
		Config:     cfg,
		Transport:  transport,
		Sink:       sink,
		Controller: controller,
	}, nil
}

// Close leaves the session, which also closes the transport.
func (c *ChatContext) Close() {
	c.Sink.Stop()
	c.Controller.Leave()
	c.Transport.Close()
}

// RunChat runs the chat UI until the user quits or the session ends.
func RunChat(c *ChatContext) error {
	var roomID string
	if sess, ok := c.Controller.Session(); ok {
		roomID = sess.RoomID.String()
	}

	model := ui.NewChatModel(c.Controller, c.Sink.Events(), ui.ChatOptions{
		DisplayName: c.Config.DisplayName,
		DownloadDir: c.Config.DownloadDir,
		RoomID:      roomID,
		State:       c.Controller.State(),
	})

	// Inline mode keeps the room info box visible above the chat.
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("chat UI: %w", err)
	}
	return model.Err()
}
