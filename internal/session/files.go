package session

import (
	"context"

	"github.com/BioHazard786/Warpchat/internal/peer"
	"github.com/BioHazard786/Warpchat/internal/protocol"
	"github.com/BioHazard786/Warpchat/internal/transfer"
)

// SendFile reads path and streams it to the partner as file-chunk messages.
func (c *Controller) SendFile(ctx context.Context, path string) error {
	if _, err := c.activeChannel("send file"); err != nil {
		return err
	}

	f, err := transfer.LoadFile(path)
	if err != nil {
		return err
	}
	return c.sendPayload(ctx, f.Name, f.Type, f.DataURL)
}

// SendFileData streams an in-memory file.
func (c *Controller) SendFileData(ctx context.Context, name, mimeType string, data []byte) error {
	if _, err := c.activeChannel("send file"); err != nil {
		return err
	}
	if len(data) == 0 {
		return transfer.NewFileError("send", name, transfer.ErrInvalidFile)
	}
	if len(data) > transfer.MaxFileSize {
		return transfer.NewFileError("send", name, transfer.ErrFileTooLarge)
	}
	return c.sendPayload(ctx, name, mimeType, transfer.EncodeDataURL(mimeType, data))
}

func (c *Controller) activeChannel(op string) (peer.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.channel == nil {
		return nil, &Error{Op: op, Err: ErrNotConnected}
	}
	return c.channel, nil
}

// sendPayload sends one chunk at a time without holding the lock, checking
// between chunks that ctx is live and the channel unchanged.
func (c *Controller) sendPayload(ctx context.Context, name, mimeType, payload string) error {
	ch, err := c.activeChannel("send file")
	if err != nil {
		return err
	}

	c.mu.Lock()
	wire := c.wire
	c.mu.Unlock()

	for chunk := range transfer.Split(name, mimeType, payload, c.opts.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return &Error{Op: "send file", Err: err}
		}
		if cur, err := c.activeChannel("send file"); err != nil || cur != ch {
			return &Error{Op: "send file", Err: ErrNotConnected}
		}

		data, err := protocol.Encode(wire, chunk)
		if err != nil {
			return &Error{Op: "send file", Err: err}
		}
		if err := ch.Send(data); err != nil {
			return transportError("send file", err)
		}

		c.mu.Lock()
		if c.state == StateActive {
			c.sink.FileProgress(Progress{
				Name:     name,
				Received: chunk.Index + 1,
				Total:    chunk.Total,
				Outgoing: true,
			})
		}
		c.mu.Unlock()
	}
	return nil
}
