package relay

import (
	"encoding/json"

	"github.com/1ureka/factorysync/internal/ledger"
	"github.com/1ureka/factorysync/internal/protocol"
	"github.com/1ureka/factorysync/internal/roster"
	"github.com/1ureka/factorysync/internal/sim"
	"github.com/1ureka/factorysync/internal/util"
)

// Start subscribes the simulation change listeners that turn genuine local
// mutations into outbound signals. Every listener first consults the
// echo-suppression ledger: a consumed entry means the notification is the
// echo of a remote mutation this engine just applied, and nothing is sent —
// remote peers already received it through the relay.
//
// Stop must be called on session end so no listener leaks into the next
// session.
func (e *Engine) Start() {
	ev := e.opts.Sim.Events()

	e.unsub = append(e.unsub,
		ev.EntityAdded.Listen(func(ent *sim.Entity) {
			key := ent.Origin.Key()
			if e.ledger.Consume(ledger.KindPlacement, key) {
				return
			}
			se, err := protocol.SerializeEntity(ent)
			if err != nil {
				util.LogError("serialize entity at %s: %v", key, err)
				return
			}
			pkt, err := protocol.NewSignal(protocol.SignalPlaceBuilding, se)
			if err != nil {
				util.LogError("encode placement at %s: %v", key, err)
				return
			}
			e.Broadcast(pkt)
		}),

		ev.EntityRemoved.Listen(func(ent *sim.Entity) {
			key := ent.Origin.Key()
			if e.ledger.Consume(ledger.KindRemoval, key) {
				return
			}
			pkt, err := protocol.NewSignal(protocol.SignalRemoveBuilding, key)
			if err != nil {
				util.LogError("encode removal at %s: %v", key, err)
				return
			}
			e.Broadcast(pkt)
		}),

		ev.ComponentChanged.Listen(func(ch sim.ComponentChange) {
			key := ch.Entity.Origin.Key()
			if e.ledger.Consume(ledger.KindComponent, componentKey(key, ch.Component.Name())) {
				return
			}
			state, err := ch.Component.State()
			if err != nil {
				util.LogError("serialize component %s at %s: %v", ch.Component.Name(), key, err)
				return
			}
			pkt, err := protocol.NewSignal(protocol.SignalComponentChanged, key, ch.Component.Name(), state)
			if err != nil {
				util.LogError("encode component change at %s: %v", key, err)
				return
			}
			e.Broadcast(pkt)
		}),

		ev.UpgradeUnlocked.Listen(func(id string) {
			if e.ledger.Consume(ledger.KindUpgrade, id) {
				return
			}
			pkt, err := protocol.NewSignal(protocol.SignalUpgradeUnlocked, id)
			if err != nil {
				util.LogError("encode upgrade unlock %s: %v", id, err)
				return
			}
			e.Broadcast(pkt)
		}),

		ev.SelectionChanged.Listen(func(sel sim.Selection) {
			// Build-tool selection only mutates the local presence record;
			// it travels as a best-effort update, not a mutation signal.
			e.opts.Self.Live.SelectedBuildingCode = sel.Code
			e.opts.Self.Live.SelectedVariant = sel.Variant
			e.opts.Self.Live.Rotation = sel.Rotation
			e.opts.Roster.Upsert(*e.opts.Self)
			e.BroadcastPresence()
		}),
	)
}

// Stop unsubscribes all simulation listeners registered by Start.
func (e *Engine) Stop() {
	for _, cancel := range e.unsub {
		cancel()
	}
	e.unsub = nil
}

// BroadcastPresence sends the self presence record to all peers on the
// best-effort lane. Called on live-state change only, never periodically.
func (e *Engine) BroadcastPresence() {
	data, err := json.Marshal(e.opts.Self)
	if err != nil {
		util.LogError("encode presence: %v", err)
		return
	}
	pkt := protocol.NewText(protocol.TextUpdate, string(data))
	for _, c := range e.connections() {
		c.SendBestEffort(pkt)
	}
}

// AnnounceJoin sends the self presence as an explicit join to all current
// connections. Clients call this once the initial snapshot restored.
func (e *Engine) AnnounceJoin() {
	data, err := json.Marshal(e.opts.Self)
	if err != nil {
		util.LogError("encode join: %v", err)
		return
	}
	e.Broadcast(protocol.NewText(protocol.TextJoin, string(data)))
}

// AnnounceLeave tells all peers this user is leaving. Best effort: the
// connection may already be gone.
func (e *Engine) AnnounceLeave() {
	data, err := json.Marshal(e.opts.Self)
	if err != nil {
		return
	}
	e.Broadcast(protocol.NewText(protocol.TextLeave, string(data)))
}

// SendChat broadcasts a freeform message.
func (e *Engine) SendChat(text string) {
	e.Broadcast(protocol.NewText(protocol.TextMessage, text))
}

// broadcastLeave forwards a leave for the given user to every remaining
// connection (host only, on peer disconnect).
func (e *Engine) broadcastLeave(u roster.User) {
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	e.Broadcast(protocol.NewText(protocol.TextLeave, string(data)))
}

func componentKey(originKey, componentName string) string {
	return originKey + "/" + componentName
}
