// Package sim defines the seam between the synchronization layer and the
// simulation engine: spatial identity, entities, components, change signals,
// and the collaborator interfaces the sync layer consumes.
package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// Origin is the placement cell of an entity. It is the cross-peer identity
// for every mutation: numeric entity ids are not stable across host and
// client, so peers agree on "the same" object by spatial coordinate only.
type Origin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key returns the canonical string form used as a ledger/lookup key.
func (o Origin) Key() string {
	return strconv.Itoa(o.X) + "|" + strconv.Itoa(o.Y)
}

// ParseOriginKey parses the canonical "x|y" form back into an Origin.
func ParseOriginKey(key string) (Origin, error) {
	left, right, ok := strings.Cut(key, "|")
	if !ok {
		return Origin{}, fmt.Errorf("malformed origin key: %q", key)
	}
	x, err := strconv.Atoi(left)
	if err != nil {
		return Origin{}, fmt.Errorf("malformed origin key: %q", key)
	}
	y, err := strconv.Atoi(right)
	if err != nil {
		return Origin{}, fmt.Errorf("malformed origin key: %q", key)
	}
	return Origin{X: x, Y: y}, nil
}
