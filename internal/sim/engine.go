package sim

import "time"

// Engine is the authoritative (host) or mirrored (client) simulation the
// sync layer drives. All operations are synchronous; change notifications
// fire before the operation returns.
type Engine interface {
	Events() *Events

	// EntityAt resolves an entity by its placement cell.
	EntityAt(o Origin) (*Entity, bool)

	// PlaceBuilding validates and places a building. On failure (occupied
	// cell, unknown code) it returns an error and leaves state untouched.
	PlaceBuilding(desc PlacementDesc) (*Entity, error)

	// DeleteBuilding removes an entity. Returns false if it was not present.
	DeleteBuilding(e *Entity) bool

	// UnlockUpgrade is idempotent. Returns true only when the upgrade was
	// newly unlocked.
	UnlockUpgrade(id string) bool
}

// Persistence is the savegame collaborator consumed for initial sync.
type Persistence interface {
	SerializeWorld() ([]byte, error)
	RestoreWorld(data []byte) error
	SchemaVersion() string
	Statistics() map[string]int64
	LastUpdate() time.Time
}
