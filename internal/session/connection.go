// Package session establishes and tears down peer connections: the host
// listens for incoming peer offers via the rendezvous, a client holds
// exactly one connection to the host.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/1ureka/factorysync/internal/protocol"
	"github.com/1ureka/factorysync/internal/roster"
	"github.com/1ureka/factorysync/internal/transfer"
	"github.com/1ureka/factorysync/internal/util"
)

// ErrRemoteClosed reports that the remote peer closed the channel. For a
// client this is terminal: there is no automatic reconnection.
var ErrRemoteClosed = errors.New("remote peer closed the connection")

// Link is the byte-stream endpoint a Connection runs on. transport.Transport
// implements it; tests substitute an in-process pair. Implementations must
// retain packets received before OnPacket is registered and deliver them on
// registration, in arrival order: the remote side may transmit before this
// side's receive path is wired.
type Link interface {
	Send(*protocol.Packet) error
	OnPacket(fn func(*protocol.Packet, error))
	Done() <-chan struct{}
	Close() error
}

// Handler processes one inbound non-ack packet. It runs on the connection's
// receive path, which is single-threaded per connection.
type Handler func(*Connection, *protocol.Packet)

// Connection is one live peer link plus its outbound queue, bulk-transfer
// reassembly state, and the user presence record bound to it.
type Connection struct {
	PeerID string

	link  Link
	queue *transfer.Queue
	reasm *transfer.Reassembler

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once

	mu       sync.Mutex
	user     *roster.User
	handler  Handler
	onClosed func(*Connection, error)
}

// NewConnection wraps a ready link. The caller must set a handler (and
// optionally an OnClosed callback) before calling Start.
func NewConnection(parent context.Context, peerID string, link Link) *Connection {
	ctx, cancel := context.WithCancel(parent)
	c := &Connection{
		PeerID: peerID,
		link:   link,
		reasm:  transfer.NewReassembler(),
		ctx:    ctx,
		cancel: cancel,
	}
	c.queue = transfer.NewQueue(link.Send, func(err error) {
		c.closeWith(err)
	})
	return c
}

// SetHandler registers the inbound packet handler.
func (c *Connection) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// OnClosed registers a callback fired exactly once when the connection is
// torn down, with the cause (nil for a local Close).
func (c *Connection) OnClosed(fn func(*Connection, error)) {
	c.mu.Lock()
	c.onClosed = fn
	c.mu.Unlock()
}

// Start wires the receive path and the remote-close watch. Inbound packets
// are acked immediately and passed to the handler; inbound acks advance the
// outbound queue.
func (c *Connection) Start() {
	c.link.OnPacket(func(pkt *protocol.Packet, err error) {
		if err != nil {
			// Protocol desync on a single packet: drop it, keep the session.
			util.LogDebug("[%s] dropping malformed packet: %v", c.PeerID, err)
			return
		}

		if pkt.IsAck() {
			c.queue.HandleAck()
			return
		}

		// Every received non-ack packet is acked immediately; ordering
		// relative to local processing does not matter since the ack
		// carries no payload.
		if err := c.link.Send(protocol.NewFlag(protocol.FlagAck)); err != nil {
			c.closeWith(err)
			return
		}

		c.mu.Lock()
		h := c.handler
		c.mu.Unlock()
		if h != nil {
			h(c, pkt)
		}
	})

	go func() {
		select {
		case <-c.link.Done():
			c.closeWith(ErrRemoteClosed)
		case <-c.ctx.Done():
		}
	}()
}

// Send enqueues a packet on the ack-gated queue.
func (c *Connection) Send(pkt *protocol.Packet) {
	c.queue.Send(pkt)
}

// SendBestEffort enqueues presence-style traffic that may be coalesced or
// dropped under load.
func (c *Connection) SendBestEffort(pkt *protocol.Packet) {
	c.queue.SendBestEffort(pkt)
}

// Reassembler returns the connection's bulk-transfer reassembly state.
func (c *Connection) Reassembler() *transfer.Reassembler {
	return c.reasm
}

// User returns the presence record bound to this connection, or nil before
// the peer announced itself.
func (c *Connection) User() *roster.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// SetUser binds a presence record to this connection.
func (c *Connection) SetUser(u *roster.User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

// Done returns a channel closed when the connection is torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close tears the connection down locally.
func (c *Connection) Close() {
	c.closeWith(nil)
}

// closeWith consolidates teardown behind sync.Once: cancel the context, stop
// the queue, close the link — all before the onClosed callback fires, so no
// callback observes a half-dead connection.
func (c *Connection) closeWith(err error) {
	c.closeOnce.Do(func() {
		c.cancel()
		c.queue.Close()

		c.mu.Lock()
		onClosed := c.onClosed
		c.mu.Unlock()

		c.link.Close()

		if err != nil {
			util.LogWarning("[%s] connection closed: %v", c.PeerID, err)
		} else {
			util.LogDebug("[%s] connection closed", c.PeerID)
		}
		if onClosed != nil {
			onClosed(c, err)
		}
	})
}
