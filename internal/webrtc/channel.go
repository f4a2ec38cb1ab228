package webrtc

import (
	"log/slog"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpchat/internal/peer"
	"github.com/BioHazard786/Warpchat/internal/utils"
)

// Channel is one data channel to a remote peer, implementing peer.Channel.
type Channel struct {
	peerID string
	pc     *pion.PeerConnection
	queue  *peer.Queue
	forget func()

	mu         sync.Mutex
	clientType string
	dc         *pion.DataChannel
	closed     bool
	done       chan struct{}
	lowWater   chan struct{}
	once       sync.Once
}

var _ peer.Channel = (*Channel)(nil)

func newChannel(peerID, clientType string, pc *pion.PeerConnection, forget func()) *Channel {
	c := &Channel{
		peerID:     peerID,
		clientType: clientType,
		pc:         pc,
		queue:      peer.NewQueue(),
		forget:     forget,
		done:       make(chan struct{}),
		lowWater:   make(chan struct{}, 1),
	}

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("peer connection state", "peer", peerID, "state", state.String())
		switch state {
		case pion.PeerConnectionStateFailed:
			c.shutdown(ErrConnectionFailed, true)
		case pion.PeerConnectionStateClosed:
			c.shutdown(nil, true)
		}
	})
	return c
}

// attach wires a pion data channel into the event queue.
func (c *Channel) attach(dc *pion.DataChannel) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()

	dc.SetBufferedAmountLowThreshold(uint64(utils.LowWaterMark))
	dc.OnBufferedAmountLow(func() {
		select {
		case c.lowWater <- struct{}{}:
		default:
		}
	})
	dc.OnOpen(func() {
		slog.Debug("data channel open", "peer", c.peerID)
		c.queue.Push(peer.Event{Kind: peer.EventOpen})
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		c.queue.Push(peer.Event{Kind: peer.EventData, Data: msg.Data})
	})
	dc.OnClose(func() {
		c.shutdown(nil, true)
	})
}

func (c *Channel) PeerID() string { return c.peerID }

func (c *Channel) ClientType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientType
}

func (c *Channel) setClientType(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t != "" {
		c.clientType = t
	}
}

func (c *Channel) Events() <-chan peer.Event {
	return c.queue.Events()
}

// Send writes one message, first waiting for the buffer to drain below the
// low-water mark when it is above the high-water mark.
func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	dc, closed := c.dc, c.closed
	c.mu.Unlock()

	if closed || dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return peer.ErrChannelClosed
	}
	if err := c.waitForWindow(dc); err != nil {
		return err
	}
	return dc.Send(data)
}

func (c *Channel) waitForWindow(dc *pion.DataChannel) error {
	buffered := dc.BufferedAmount()
	if buffered < uint64(utils.HighWaterMark) {
		return nil
	}

	select {
	case <-c.lowWater:
		return nil
	case <-c.done:
		return peer.ErrChannelClosed
	case <-time.After(utils.SendTimeout):
		if dc.BufferedAmount() < buffered {
			return nil
		}
		return ErrBufferTimeout
	}
}

// Close tears down the data channel and its peer connection.
func (c *Channel) Close() error {
	c.shutdown(nil, false)
	return nil
}

// shutdown runs once. From inside pion callbacks the pion objects are closed
// asynchronously.
func (c *Channel) shutdown(cause error, async bool) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		dc := c.dc
		close(c.done)
		c.mu.Unlock()

		c.queue.Finish(cause)
		if c.forget != nil {
			c.forget()
		}

		release := func() {
			if dc != nil {
				dc.Close()
			}
			if err := c.pc.Close(); err != nil {
				slog.Debug("closing peer connection", "peer", c.peerID, "error", err)
			}
		}
		if async {
			go release()
		} else {
			release()
		}
	})
}
