package relay

import (
	"encoding/json"

	"github.com/1ureka/factorysync/internal/ledger"
	"github.com/1ureka/factorysync/internal/protocol"
	"github.com/1ureka/factorysync/internal/roster"
	"github.com/1ureka/factorysync/internal/session"
	"github.com/1ureka/factorysync/internal/sim"
	"github.com/1ureka/factorysync/internal/util"
)

// HandlePacket is the per-connection receive entry point. It runs on the
// connection's receive path; shared state below is guarded by the engine
// and collaborator locks.
func (e *Engine) HandlePacket(conn *session.Connection, pkt *protocol.Packet) {
	switch pkt.Type {
	case protocol.TypeSignal:
		e.handleSignal(conn, pkt)

	case protocol.TypeText:
		e.handleText(conn, pkt)

	case protocol.TypeData:
		if err := conn.Reassembler().AddFragment(pkt.Seq, pkt.Total, pkt.Payload); err != nil {
			e.fatal(conn, err)
		}

	case protocol.TypeFlag:
		switch pkt.Flag {
		case protocol.FlagStartBulk:
			if err := conn.Reassembler().Start(); err != nil {
				e.fatal(conn, err)
			}
		case protocol.FlagEndBulk:
			payload, err := conn.Reassembler().Finish()
			if err != nil {
				e.fatal(conn, err)
				return
			}
			e.completeInitialSync(conn, payload)
		}
	}
}

// fatal tears the connection down on a fatal session error (bulk-transfer
// violation). No partial-state recovery is attempted.
func (e *Engine) fatal(conn *session.Connection, err error) {
	util.LogError("[%s] fatal session error: %v", conn.PeerID, err)
	conn.Close()
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// handleSignal relays and applies one domain mutation. On the host, every
// accepted inbound signal is forwarded verbatim to all other connections
// before local application (star topology — clients never talk to each
// other).
func (e *Engine) handleSignal(conn *session.Connection, pkt *protocol.Packet) {
	if pkt.Signal == protocol.SignalSetTile && e.opts.IsHost {
		// Only the host has corrective authority; a client-issued setTile
		// is a protocol anomaly.
		util.LogDebug("[%s] dropping setTile from client", conn.PeerID)
		return
	}

	if e.opts.IsHost {
		e.BroadcastExcept(conn.PeerID, pkt)
	}

	switch pkt.Signal {
	case protocol.SignalPlaceBuilding:
		e.applyPlacement(conn, pkt)
	case protocol.SignalRemoveBuilding:
		e.applyRemoval(conn, pkt)
	case protocol.SignalComponentChanged:
		e.applyComponentChange(conn, pkt)
	case protocol.SignalUpgradeUnlocked:
		e.applyUpgradeUnlock(conn, pkt)
	case protocol.SignalSetTile:
		e.applySetTile(conn, pkt)
	}
}

// applyPlacement places a remote building. The ledger entry is pushed
// before the apply (the engine re-fires EntityAdded synchronously) and
// taken back if nothing was applied, so no stale marker can suppress a
// later genuine placement at the same cell.
func (e *Engine) applyPlacement(conn *session.Connection, pkt *protocol.Packet) {
	var se protocol.SerializedEntity
	if err := pkt.Arg(0, &se); err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}
	origin := se.Origin()
	key := origin.Key()

	e.ledger.Push(ledger.KindPlacement, key)
	if _, err := e.opts.Sim.PlaceBuilding(se.Desc()); err != nil {
		e.ledger.Consume(ledger.KindPlacement, key)
		if e.opts.IsHost {
			// Authority conflict, not an error: converge the originating
			// peer to host truth for this cell.
			util.LogDebug("[%s] placement at %s rejected: %v", conn.PeerID, key, err)
			e.sendCorrection(conn, origin)
		} else {
			// No corrective authority on a client — drop.
			util.LogDebug("[%s] placement at %s not applicable: %v", conn.PeerID, key, err)
		}
	}
}

// applyRemoval deletes the building at the signalled origin. An absent
// entity means the peer acted on stale state; the host answers with the
// authoritative cell content (possibly empty) so the peer converges.
func (e *Engine) applyRemoval(conn *session.Connection, pkt *protocol.Packet) {
	var key string
	if err := pkt.Arg(0, &key); err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}
	origin, err := sim.ParseOriginKey(key)
	if err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}

	ent, ok := e.opts.Sim.EntityAt(origin)
	if !ok {
		if e.opts.IsHost {
			e.sendCorrection(conn, origin)
		}
		return
	}

	e.ledger.Push(ledger.KindRemoval, key)
	if !e.opts.Sim.DeleteBuilding(ent) {
		e.ledger.Consume(ledger.KindRemoval, key)
		if e.opts.IsHost {
			e.sendCorrection(conn, origin)
		}
	}
}

// applyComponentChange copies the signalled state into the matching
// component. Unresolvable entity or component is a silent drop: the relay
// keeps delivering subsequent valid mutations.
func (e *Engine) applyComponentChange(conn *session.Connection, pkt *protocol.Packet) {
	var key, name string
	var state json.RawMessage
	if err := pkt.Arg(0, &key); err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}
	if err := pkt.Arg(1, &name); err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}
	if err := pkt.Arg(2, &state); err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}
	origin, err := sim.ParseOriginKey(key)
	if err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}

	ent, ok := e.opts.Sim.EntityAt(origin)
	if !ok {
		util.LogDebug("[%s] component change for missing entity at %s", conn.PeerID, key)
		return
	}
	comp, ok := ent.Component(name)
	if !ok {
		util.LogDebug("[%s] entity at %s has no component %s", conn.PeerID, key, name)
		return
	}

	lkey := componentKey(key, name)
	e.ledger.Push(ledger.KindComponent, lkey)
	changed, err := comp.SetState(state)
	if err != nil || !changed {
		// Idempotent re-apply or malformed state: no notification fired,
		// take the marker back.
		e.ledger.Consume(ledger.KindComponent, lkey)
		if err != nil {
			util.LogDebug("[%s] component state at %s: %v", conn.PeerID, key, err)
		}
	}
}

// applyUpgradeUnlock applies an upgrade unlock; the collaborator is
// idempotent, so an already-unlocked upgrade needs only the marker taken
// back.
func (e *Engine) applyUpgradeUnlock(conn *session.Connection, pkt *protocol.Packet) {
	var id string
	if err := pkt.Arg(0, &id); err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}

	e.ledger.Push(ledger.KindUpgrade, id)
	if !e.opts.Sim.UnlockUpgrade(id) {
		e.ledger.Consume(ledger.KindUpgrade, id)
	}
}

// applySetTile converges the local cell to the host's authoritative content
// (client side of an authority conflict).
func (e *Engine) applySetTile(conn *session.Connection, pkt *protocol.Packet) {
	var key string
	if err := pkt.Arg(0, &key); err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}
	var content *protocol.SerializedEntity
	if err := pkt.Arg(1, &content); err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}
	origin, err := sim.ParseOriginKey(key)
	if err != nil {
		util.LogDebug("[%s] %v", conn.PeerID, err)
		return
	}

	if current, ok := e.opts.Sim.EntityAt(origin); ok {
		e.ledger.Push(ledger.KindRemoval, key)
		if !e.opts.Sim.DeleteBuilding(current) {
			e.ledger.Consume(ledger.KindRemoval, key)
		}
	}
	if content != nil {
		e.ledger.Push(ledger.KindPlacement, key)
		if _, err := e.opts.Sim.PlaceBuilding(content.Desc()); err != nil {
			e.ledger.Consume(ledger.KindPlacement, key)
			util.LogDebug("[%s] corrective placement at %s failed: %v", conn.PeerID, key, err)
		}
	}
}

// sendCorrection sends the host's authoritative content for a cell back to
// the originating peer, which may be "empty" (JSON null).
func (e *Engine) sendCorrection(conn *session.Connection, origin sim.Origin) {
	var content *protocol.SerializedEntity
	if ent, ok := e.opts.Sim.EntityAt(origin); ok {
		se, err := protocol.SerializeEntity(ent)
		if err != nil {
			util.LogError("serialize correction at %s: %v", origin.Key(), err)
			return
		}
		content = se
	}
	pkt, err := protocol.NewSignal(protocol.SignalSetTile, origin.Key(), content)
	if err != nil {
		util.LogError("encode correction at %s: %v", origin.Key(), err)
		return
	}
	conn.Send(pkt)
}

// ---------------------------------------------------------------------------
// Presence / roster
// ---------------------------------------------------------------------------

// handleText upserts presence records and, on the host, fans the text out.
func (e *Engine) handleText(conn *session.Connection, pkt *protocol.Packet) {
	switch pkt.TextType {
	case protocol.TextJoin:
		var u roster.User
		if err := json.Unmarshal([]byte(pkt.Text), &u); err != nil {
			util.LogDebug("[%s] malformed join: %v", conn.PeerID, err)
			return
		}
		if conn.User() == nil {
			conn.SetUser(&u)
		}
		if e.opts.Roster.Upsert(u) {
			e.opts.UI.ShowNotification(u.Username+" joined the game", session.SeverityInfo)
		}
		if e.opts.IsHost {
			e.BroadcastExcept(conn.PeerID, pkt)
			// The new joiner learns the host's presence directly.
			data, err := json.Marshal(e.opts.Self)
			if err == nil {
				conn.Send(protocol.NewText(protocol.TextJoin, string(data)))
			}
		}

	case protocol.TextLeave:
		var u roster.User
		if err := json.Unmarshal([]byte(pkt.Text), &u); err != nil {
			util.LogDebug("[%s] malformed leave: %v", conn.PeerID, err)
			return
		}
		if left, ok := e.opts.Roster.Remove(u.ID); ok {
			e.opts.UI.ShowNotification(left.Username+" left the game", session.SeverityInfo)
		}
		if e.opts.IsHost {
			e.BroadcastExcept(conn.PeerID, pkt)
		}

	case protocol.TextUpdate:
		var u roster.User
		if err := json.Unmarshal([]byte(pkt.Text), &u); err != nil {
			util.LogDebug("[%s] malformed update: %v", conn.PeerID, err)
			return
		}
		// An update for an unknown id is an implicit join.
		e.opts.Roster.Upsert(u)
		if conn.User() == nil {
			conn.SetUser(&u)
		}
		if e.opts.IsHost {
			e.broadcastBestEffortExcept(conn.PeerID, pkt)
		}

	case protocol.TextMessage:
		name := conn.PeerID
		if u := conn.User(); u != nil {
			name = u.Username
		}
		e.opts.UI.ShowNotification(name+": "+pkt.Text, session.SeverityInfo)
		if e.opts.IsHost {
			e.BroadcastExcept(conn.PeerID, pkt)
		}
	}
}
