package world

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/1ureka/factorysync/internal/sim"
)

// SchemaVersion is the savegame schema this implementation reads and writes.
const SchemaVersion = "1.0"

// World is an in-memory grid simulation implementing sim.Engine and
// sim.Persistence. All mutations are guarded by one mutex; change
// notifications fire synchronously after the mutation, outside the lock, so
// listeners may call back into the world.
type World struct {
	mu       sync.Mutex
	grid     map[sim.Origin]*sim.Entity
	upgrades map[string]bool

	catalog sim.BuildingCatalog
	events  sim.Events

	placed     int64
	removed    int64
	lastUpdate time.Time
}

// New creates an empty world with the given building catalog.
func New(catalog sim.BuildingCatalog) *World {
	return &World{
		grid:       make(map[sim.Origin]*sim.Entity),
		upgrades:   make(map[string]bool),
		catalog:    catalog,
		lastUpdate: time.Now(),
	}
}

// Events returns the world's change-notification bundle.
func (w *World) Events() *sim.Events { return &w.events }

// Catalog returns the injected building catalog.
func (w *World) Catalog() sim.BuildingCatalog { return w.catalog }

// EntityAt resolves an entity by its placement cell.
func (w *World) EntityAt(o sim.Origin) (*sim.Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.grid[o]
	return e, ok
}

// PlaceBuilding validates and places a building, firing EntityAdded on
// success. Occupied cells and unknown building codes are rejected.
func (w *World) PlaceBuilding(desc sim.PlacementDesc) (*sim.Entity, error) {
	w.mu.Lock()
	spec, known := w.catalog.Building(desc.Code)
	if !known {
		w.mu.Unlock()
		return nil, fmt.Errorf("unknown building code %q", desc.Code)
	}
	if _, occupied := w.grid[desc.Origin]; occupied {
		w.mu.Unlock()
		return nil, fmt.Errorf("cell %s is occupied", desc.Origin.Key())
	}

	e := &sim.Entity{
		Origin:   desc.Origin,
		Code:     desc.Code,
		Variant:  desc.Variant,
		Rotation: desc.Rotation,
	}
	if spec.HasSignalValue {
		w.attachSignalValue(e, desc.Components[sim.SignalValueName])
	}
	w.grid[desc.Origin] = e
	w.placed++
	w.lastUpdate = time.Now()
	w.mu.Unlock()

	w.events.EntityAdded.Notify(e)
	return e, nil
}

// DeleteBuilding removes an entity, firing EntityRemoved if it was present.
func (w *World) DeleteBuilding(e *sim.Entity) bool {
	w.mu.Lock()
	current, ok := w.grid[e.Origin]
	if !ok || current != e {
		w.mu.Unlock()
		return false
	}
	delete(w.grid, e.Origin)
	w.removed++
	w.lastUpdate = time.Now()
	w.mu.Unlock()

	w.events.EntityRemoved.Notify(e)
	return true
}

// UnlockUpgrade is idempotent: unlocking an already-unlocked upgrade is a
// no-op and fires nothing.
func (w *World) UnlockUpgrade(id string) bool {
	w.mu.Lock()
	if w.upgrades[id] {
		w.mu.Unlock()
		return false
	}
	w.upgrades[id] = true
	w.lastUpdate = time.Now()
	w.mu.Unlock()

	w.events.UpgradeUnlocked.Notify(id)
	return true
}

// SelectBuilding records the local build-tool selection and fires
// SelectionChanged.
func (w *World) SelectBuilding(sel sim.Selection) {
	w.events.SelectionChanged.Notify(sel)
}

// attachSignalValue wires a signal component whose explicit setter emits
// ComponentChanged for this entity. Called with w.mu held.
func (w *World) attachSignalValue(e *sim.Entity, initial json.RawMessage) {
	var comp *sim.SignalValueComponent
	comp = sim.NewSignalValueComponent(func() {
		w.events.ComponentChanged.Notify(sim.ComponentChange{Entity: e, Component: comp})
	})
	if len(initial) > 0 {
		// Seed without firing: the placement itself announces the state.
		var st struct {
			Value string `json:"value"`
		}
		if json.Unmarshal(initial, &st) == nil {
			comp.SeedValue(st.Value)
		}
	}
	if e.Components == nil {
		e.Components = make(map[string]sim.Component, 1)
	}
	e.Components[sim.SignalValueName] = comp
}

// ---------------------------------------------------------------------------
// Persistence collaborator
// ---------------------------------------------------------------------------

type savedEntity struct {
	X          int                        `json:"x"`
	Y          int                        `json:"y"`
	Code       string                     `json:"code"`
	Variant    string                     `json:"variant,omitempty"`
	Rotation   int                        `json:"rotation,omitempty"`
	Components map[string]json.RawMessage `json:"components,omitempty"`
}

type savedWorld struct {
	Entities []savedEntity `json:"entities"`
	Upgrades []string      `json:"upgrades"`
}

// SerializeWorld encodes the full world state.
func (w *World) SerializeWorld() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sw := savedWorld{
		Entities: make([]savedEntity, 0, len(w.grid)),
		Upgrades: make([]string, 0, len(w.upgrades)),
	}
	for _, e := range w.grid {
		se := savedEntity{
			X:        e.Origin.X,
			Y:        e.Origin.Y,
			Code:     e.Code,
			Variant:  e.Variant,
			Rotation: e.Rotation,
		}
		for name, c := range e.Components {
			state, err := c.State()
			if err != nil {
				return nil, fmt.Errorf("serialize component %s at %s: %w", name, e.Origin.Key(), err)
			}
			if se.Components == nil {
				se.Components = make(map[string]json.RawMessage)
			}
			se.Components[name] = state
		}
		sw.Entities = append(sw.Entities, se)
	}
	for id := range w.upgrades {
		sw.Upgrades = append(sw.Upgrades, id)
	}
	sort.Slice(sw.Entities, func(i, j int) bool {
		if sw.Entities[i].Y != sw.Entities[j].Y {
			return sw.Entities[i].Y < sw.Entities[j].Y
		}
		return sw.Entities[i].X < sw.Entities[j].X
	})
	sort.Strings(sw.Upgrades)

	return json.Marshal(sw)
}

// RestoreWorld replaces the world state with a serialized snapshot without
// firing change notifications — a restore mirrors remote truth, it is not a
// local mutation stream.
func (w *World) RestoreWorld(data []byte) error {
	var sw savedWorld
	if err := json.Unmarshal(data, &sw); err != nil {
		return fmt.Errorf("restore world: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.grid = make(map[sim.Origin]*sim.Entity, len(sw.Entities))
	for _, se := range sw.Entities {
		e := &sim.Entity{
			Origin:   sim.Origin{X: se.X, Y: se.Y},
			Code:     se.Code,
			Variant:  se.Variant,
			Rotation: se.Rotation,
		}
		if spec, ok := w.catalog.Building(se.Code); ok && spec.HasSignalValue {
			w.attachSignalValue(e, se.Components[sim.SignalValueName])
		}
		w.grid[e.Origin] = e
	}
	w.upgrades = make(map[string]bool, len(sw.Upgrades))
	for _, id := range sw.Upgrades {
		w.upgrades[id] = true
	}
	w.lastUpdate = time.Now()
	return nil
}

// SchemaVersion returns the savegame schema version.
func (w *World) SchemaVersion() string { return SchemaVersion }

// Statistics returns cumulative world counters.
func (w *World) Statistics() map[string]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return map[string]int64{
		"entities": int64(len(w.grid)),
		"placed":   w.placed,
		"removed":  w.removed,
		"upgrades": int64(len(w.upgrades)),
	}
}

// LastUpdate returns the time of the last world mutation.
func (w *World) LastUpdate() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUpdate
}

// UpgradeUnlocked reports whether an upgrade id is unlocked.
func (w *World) UpgradeUnlocked(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.upgrades[id]
}

// EntityCount returns the number of placed buildings.
func (w *World) EntityCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.grid)
}
