package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/1ureka/factorysync/internal/signaling"
	"github.com/1ureka/factorysync/internal/transport"
	"github.com/1ureka/factorysync/internal/util"
)

// handshakeTimeout bounds one peer's transport handshake. Exhaustion removes
// that peer's pending sub-state without affecting other peers.
const handshakeTimeout = 45 * time.Second

// pendingBufferSize is the per-handshake signaling inbox capacity.
const pendingBufferSize = 16

// HostConfig parameterizes a hosted session.
type HostConfig struct {
	RendezvousURL string
	SessionID     string

	// OnConnection receives every successfully handshaken peer connection.
	// It must set the connection's handler; Start is called afterwards.
	OnConnection func(*Connection)
}

// RunHost registers the session with the rendezvous and accepts peer
// handshakes until ctx is cancelled or the rendezvous link fails. Each
// inbound offer runs as an independent handshake; a failure there never
// affects established connections.
//
// The session id is displayed for out-of-band sharing.
func RunHost(ctx context.Context, cfg HostConfig) error {
	rz, err := signaling.Dial(ctx, cfg.RendezvousURL, cfg.SessionID)
	if err != nil {
		return fmt.Errorf("rendezvous: %w", err)
	}
	defer rz.Close()

	if err := rz.CreateSession(cfg.SessionID); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	util.LogInfo("session %q registered — share this id with joining players", cfg.SessionID)

	// Close the websocket when ctx ends so Read unblocks.
	go func() {
		<-ctx.Done()
		rz.Close()
	}()

	var mu sync.Mutex
	pending := make(map[string]chan signaling.Message)

	for {
		msg, err := rz.Read()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("rendezvous lost: %w", err)
			}
		}

		switch msg.Type {
		case signaling.MsgJoin:
			peerID := msg.Peer
			mu.Lock()
			if _, dup := pending[peerID]; dup {
				mu.Unlock()
				util.LogWarning("duplicate join for peer %s ignored", peerID)
				continue
			}
			inbox := make(chan signaling.Message, pendingBufferSize)
			pending[peerID] = inbox
			mu.Unlock()
			util.LogInfo("peer %s connecting", peerID)

			go func() {
				handleJoin(ctx, rz, peerID, inbox, cfg.OnConnection)
				// Handshake over either way; later signaling from this
				// peer is stale.
				mu.Lock()
				delete(pending, peerID)
				mu.Unlock()
			}()

		default:
			// answer / candidate — route to the peer's handshake.
			mu.Lock()
			inbox, ok := pending[msg.Peer]
			mu.Unlock()
			if !ok {
				util.LogDebug("signaling for unknown peer %s dropped", msg.Peer)
				continue
			}
			select {
			case inbox <- msg:
			default:
				util.LogDebug("signaling inbox full for peer %s, dropping %s", msg.Peer, msg.Type)
			}
		}
	}
}

// handleJoin performs one peer's transport handshake and hands the ready
// connection to the session owner.
func handleJoin(
	ctx context.Context,
	rz *signaling.Rendezvous,
	peerID string,
	inbox <-chan signaling.Message,
	onConnection func(*Connection),
) {
	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	tr, err := transport.NewTransport(ctx)
	if err != nil {
		util.LogError("peer %s: transport: %v", peerID, err)
		return
	}

	send := func(msg signaling.Message) error {
		msg.Peer = peerID
		return rz.Send(msg)
	}

	if err := signaling.ExchangeAsHost(hsCtx, tr, send, inbox); err != nil {
		tr.Close()
		util.LogWarning("peer %s: handshake failed: %v", peerID, err)
		return
	}

	util.LogInfo("peer %s connected", peerID)
	util.Stats.AddPeer()

	conn := NewConnection(ctx, peerID, tr)
	onConnection(conn)
	conn.Start()
}
