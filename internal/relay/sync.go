package relay

import (
	"fmt"
	"slices"

	"github.com/1ureka/factorysync/internal/save"
	"github.com/1ureka/factorysync/internal/session"
	"github.com/1ureka/factorysync/internal/transfer"
	"github.com/1ureka/factorysync/internal/util"
)

// streamSnapshot packages the current world and queues it to the new peer as
// a chunked bulk transfer. The ack-gated queue keeps the transfer strictly
// ordered, and any signal broadcast after this call is queued behind the
// final end-of-bulk flag, so the joiner observes snapshot-then-deltas.
func (e *Engine) streamSnapshot(conn *session.Connection) error {
	snap, err := save.Package(e.opts.Persist, e.opts.Mods)
	if err != nil {
		return err
	}
	payload, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if e.opts.Store != nil {
		if err := e.opts.Store.Put(e.opts.SessionID, snap); err != nil {
			// Local persistence is a convenience; the live sync proceeds.
			util.LogWarning("persist snapshot: %v", err)
		}
	}

	for _, pkt := range transfer.Chunk(payload, transfer.FragmentSize) {
		conn.Send(pkt)
	}
	util.LogInfo("[%s] snapshot queued (%d bytes)", conn.PeerID, len(payload))
	return nil
}

// completeInitialSync restores a reassembled snapshot and announces this
// user to the session. Until this succeeds the client has no world to
// mutate, so a restore failure is terminal for the connection.
func (e *Engine) completeInitialSync(conn *session.Connection, payload []byte) {
	if e.opts.IsHost {
		// The host never receives a bulk payload; a client pushing one is
		// misbehaving.
		e.fatal(conn, fmt.Errorf("unexpected bulk payload from peer"))
		return
	}

	snap, err := save.DecodeSnapshot(payload)
	if err != nil {
		e.fatal(conn, err)
		return
	}
	if !slices.Equal(snap.Mods, e.opts.Mods) {
		// Divergent mod sets break the shared catalog assumption; warn, do
		// not refuse — the schema gate below catches hard incompatibility.
		e.opts.UI.ShowDialog("Mod mismatch",
			"The host runs a different mod set than you. Buildings unknown on either side will not sync.",
			"Continue")
	}
	if err := snap.Restore(e.opts.Persist); err != nil {
		e.fatal(conn, err)
		return
	}

	e.mu.Lock()
	e.joined = true
	e.mu.Unlock()

	util.LogInfo("world restored from host snapshot (%d bytes)", len(payload))
	e.AnnounceJoin()
	e.opts.UI.ShowNotification("joined the game", session.SeverityInfo)
}
