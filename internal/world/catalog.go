// Package world provides the in-memory reference simulation engine the sync
// layer drives: a grid of placed buildings, an upgrade set, and the change
// signals peers mirror. It also implements the persistence collaborator used
// for initial sync.
package world

import "github.com/1ureka/factorysync/internal/sim"

// Catalog is a fixed building catalog backed by a map.
type Catalog struct {
	byCode map[string]sim.BuildingSpec
}

// NewCatalog builds a catalog from the given specs.
func NewCatalog(specs []sim.BuildingSpec) *Catalog {
	byCode := make(map[string]sim.BuildingSpec, len(specs))
	for _, s := range specs {
		byCode[s.Code] = s
	}
	return &Catalog{byCode: byCode}
}

// Building resolves a spec by code.
func (c *Catalog) Building(code string) (sim.BuildingSpec, bool) {
	s, ok := c.byCode[code]
	return s, ok
}

// DefaultCatalog returns the stock building set.
func DefaultCatalog() *Catalog {
	return NewCatalog([]sim.BuildingSpec{
		{Code: "belt", Name: "Conveyor Belt", Variants: []string{"default", "left", "right"}},
		{Code: "miner", Name: "Extractor", Variants: []string{"default", "chainable"}},
		{Code: "cutter", Name: "Cutter", Variants: []string{"default", "quad"}},
		{Code: "rotater", Name: "Rotator", Variants: []string{"default", "ccw"}},
		{Code: "stacker", Name: "Stacker"},
		{Code: "mixer", Name: "Color Mixer"},
		{Code: "trash", Name: "Trash"},
		{Code: "constant_signal", Name: "Constant Signal", HasSignalValue: true},
	})
}
