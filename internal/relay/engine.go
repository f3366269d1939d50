// Package relay implements the fan-out of inbound mutations to all other
// connections and the conflict-resolution policy that converges every peer
// to the host's authoritative state.
package relay

import (
	"sync"

	"github.com/1ureka/factorysync/internal/ledger"
	"github.com/1ureka/factorysync/internal/protocol"
	"github.com/1ureka/factorysync/internal/roster"
	"github.com/1ureka/factorysync/internal/save"
	"github.com/1ureka/factorysync/internal/session"
	"github.com/1ureka/factorysync/internal/sim"
	"github.com/1ureka/factorysync/internal/util"
)

// Options wires the engine's collaborators. Catalog is injected explicitly;
// there is no process-wide building registry.
type Options struct {
	IsHost bool

	Sim     sim.Engine
	Persist sim.Persistence
	Catalog sim.BuildingCatalog

	Self   *roster.User
	Roster *roster.Roster
	UI     session.UI

	// Mods is the host's active mod list, shipped in the initial snapshot.
	Mods []string

	// Store, when set on the host, persists the latest snapshot per session.
	Store     *save.Store
	SessionID string
}

// Engine is the relay & reconciliation engine. The host instance owns the
// routing table of all peer connections; a client instance routes through
// its single connection to the host.
type Engine struct {
	opts   Options
	ledger *ledger.Ledger

	mu     sync.Mutex
	router map[string]*session.Connection
	joined bool // client: true once the initial snapshot restored

	unsub []func()
}

// New creates an engine. Call Start to subscribe the simulation listeners
// and Attach for every established connection.
func New(opts Options) *Engine {
	e := &Engine{
		opts:   opts,
		ledger: ledger.New(),
		router: make(map[string]*session.Connection),
		joined: opts.IsHost, // the host is its own authority from the start
	}
	opts.Roster.Upsert(*opts.Self)
	return e
}

// Ledger exposes the echo-suppression ledger for callers that apply local
// mutations on behalf of the engine.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Joined reports whether this instance participates in the session: hosts
// always, clients only after the initial snapshot reconstructed the world.
func (e *Engine) Joined() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.joined
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// Attach wires a ready connection into the engine: inbound packets flow to
// the reconciliation handler, teardown flows back into the roster. On the
// host this also streams the initial world snapshot to the new peer.
func (e *Engine) Attach(conn *session.Connection) {
	conn.SetHandler(e.HandlePacket)
	conn.OnClosed(e.detach)

	e.mu.Lock()
	e.router[conn.PeerID] = conn
	e.mu.Unlock()

	if e.opts.IsHost {
		if err := e.streamSnapshot(conn); err != nil {
			util.LogError("[%s] initial sync failed: %v", conn.PeerID, err)
			conn.Close()
		}
	}
}

// detach removes the connection from the routing table and purges its user
// from the roster, emitting the leave notification exactly once.
func (e *Engine) detach(conn *session.Connection, cause error) {
	e.mu.Lock()
	delete(e.router, conn.PeerID)
	e.mu.Unlock()

	if u := conn.User(); u != nil {
		if left, ok := e.opts.Roster.Remove(u.ID); ok {
			util.Stats.RemovePeer()
			e.opts.UI.ShowNotification(left.Username+" left the game", session.SeverityInfo)
			if e.opts.IsHost {
				e.broadcastLeave(left)
			}
		}
	}

	if !e.opts.IsHost {
		// The single connection to the host is gone — terminal for this
		// session, surfaced as a recoverable navigation, never a retry.
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		e.opts.UI.NavigateToEntry(msg)
	}
}

// Shutdown closes every connection and unsubscribes the simulation
// listeners.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	conns := make([]*session.Connection, 0, len(e.router))
	for _, c := range e.router {
		conns = append(conns, c)
	}
	e.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	e.Stop()
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

// connections snapshots the routing table.
func (e *Engine) connections() []*session.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*session.Connection, 0, len(e.router))
	for _, c := range e.router {
		out = append(out, c)
	}
	return out
}

// Broadcast sends a packet to every connection.
func (e *Engine) Broadcast(pkt *protocol.Packet) {
	for _, c := range e.connections() {
		c.Send(pkt)
	}
}

// BroadcastExcept sends a packet to every connection except the origin.
func (e *Engine) BroadcastExcept(originID string, pkt *protocol.Packet) {
	for _, c := range e.connections() {
		if c.PeerID != originID {
			c.Send(pkt)
		}
	}
}

// broadcastBestEffortExcept is BroadcastExcept on the best-effort lane.
func (e *Engine) broadcastBestEffortExcept(originID string, pkt *protocol.Packet) {
	for _, c := range e.connections() {
		if c.PeerID != originID {
			c.SendBestEffort(pkt)
		}
	}
}
