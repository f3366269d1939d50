package sim

import "encoding/json"

// Entity is a building placed on the grid. Components are keyed by their
// Name(); most buildings have none.
type Entity struct {
	Origin   Origin
	Code     string
	Variant  string
	Rotation int

	Components map[string]Component
}

// Component lookup by name. Returns false if the entity has no such component.
func (e *Entity) Component(name string) (Component, bool) {
	c, ok := e.Components[name]
	return c, ok
}

// PlacementDesc describes a building to be placed, in primitive fields only.
// Component states are raw JSON so the sync layer never has to know the
// concrete component set.
type PlacementDesc struct {
	Origin     Origin
	Code       string
	Variant    string
	Rotation   int
	Components map[string]json.RawMessage
}

// BuildingSpec is a catalog entry describing a placeable building kind.
type BuildingSpec struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Variants []string `json:"variants,omitempty"`

	// HasSignalValue marks buildings that carry a settable signal component.
	HasSignalValue bool `json:"hasSignalValue,omitempty"`
}

// BuildingCatalog resolves building metadata by code. It is injected into
// the reconciliation engine at construction instead of living in a
// process-wide registry.
type BuildingCatalog interface {
	Building(code string) (BuildingSpec, bool)
}
