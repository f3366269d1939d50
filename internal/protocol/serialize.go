package protocol

import (
	"encoding/json"

	"github.com/1ureka/factorysync/internal/sim"
)

// SerializedEntity is the transport-safe form of a placed building: primitive
// fields only, identified by its placement cell rather than object identity.
type SerializedEntity struct {
	X          int                        `json:"x"`
	Y          int                        `json:"y"`
	Code       string                     `json:"code"`
	Variant    string                     `json:"variant,omitempty"`
	Rotation   int                        `json:"rotation,omitempty"`
	Components map[string]json.RawMessage `json:"components,omitempty"`
}

// Origin returns the entity's placement cell.
func (se *SerializedEntity) Origin() sim.Origin {
	return sim.Origin{X: se.X, Y: se.Y}
}

// Desc converts the serialized form into a placement description.
func (se *SerializedEntity) Desc() sim.PlacementDesc {
	return sim.PlacementDesc{
		Origin:     se.Origin(),
		Code:       se.Code,
		Variant:    se.Variant,
		Rotation:   se.Rotation,
		Components: se.Components,
	}
}

// SerializeEntity converts a live entity into its wire form.
func SerializeEntity(e *sim.Entity) (*SerializedEntity, error) {
	se := &SerializedEntity{
		X:        e.Origin.X,
		Y:        e.Origin.Y,
		Code:     e.Code,
		Variant:  e.Variant,
		Rotation: e.Rotation,
	}
	if len(e.Components) > 0 {
		se.Components = make(map[string]json.RawMessage, len(e.Components))
		for name, c := range e.Components {
			state, err := c.State()
			if err != nil {
				return nil, err
			}
			se.Components[name] = state
		}
	}
	return se, nil
}
