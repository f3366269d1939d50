// Package save packages the host's simulation state for initial sync and
// keeps a local copy of the latest snapshot per session.
package save

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/1ureka/factorysync/internal/sim"
)

// Snapshot is the bulk-transfer payload a joining client reconstructs its
// simulation from.
type Snapshot struct {
	Mods       []string         `json:"mods"`
	Version    string           `json:"version"`
	World      json.RawMessage  `json:"world"`
	Stats      map[string]int64 `json:"stats"`
	LastUpdate time.Time        `json:"lastUpdate"`
}

// Package captures the current simulation state from the persistence
// collaborator.
func Package(p sim.Persistence, mods []string) (*Snapshot, error) {
	world, err := p.SerializeWorld()
	if err != nil {
		return nil, fmt.Errorf("serialize world: %w", err)
	}
	return &Snapshot{
		Mods:       mods,
		Version:    p.SchemaVersion(),
		World:      world,
		Stats:      p.Statistics(),
		LastUpdate: p.LastUpdate(),
	}, nil
}

// Encode serializes the snapshot for chunked transfer.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a reassembled bulk payload.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Restore applies the snapshot to the local simulation. A schema version
// mismatch is rejected before any state is touched.
func (s *Snapshot) Restore(p sim.Persistence) error {
	if s.Version != p.SchemaVersion() {
		return fmt.Errorf("snapshot schema %q does not match local schema %q", s.Version, p.SchemaVersion())
	}
	return p.RestoreWorld(s.World)
}
