// Package roster holds the lightweight user-presence records shared across
// peers.
package roster

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// LiveState is the volatile part of a presence record: what the user is
// currently pointing at or about to place. Never persisted.
type LiveState struct {
	SelectedBuildingCode string      `json:"selectedBuildingCode,omitempty"`
	SelectedVariant      string      `json:"selectedVariant,omitempty"`
	Rotation             int         `json:"rotation,omitempty"`
	CursorWorld          *[2]float64 `json:"cursorWorldPosition,omitempty"`
	CursorCell           *[2]int     `json:"cursorCellPosition,omitempty"`
}

// User is one presence record. The id is stable for the session lifetime;
// the username is client-asserted.
type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Live     LiveState `json:"liveState"`
}

// NewUser mints a user with a fresh session-lifetime id.
func NewUser(username string) *User {
	return &User{ID: uuid.NewString(), Username: username}
}

// Roster is the set of known users, keyed by id. All peers, the host
// included, hold one plus a self-User.
type Roster struct {
	mu    sync.RWMutex
	users map[string]User
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{users: make(map[string]User)}
}

// Upsert inserts or replaces a user record. Returns true when the id was
// previously unknown — an update for an unknown id is an implicit join.
func (r *Roster) Upsert(u User) (joined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, known := r.users[u.ID]
	r.users[u.ID] = u
	return !known
}

// Remove deletes a user by id, returning the removed record. The second
// return is false if the id was not present, so a double leave removes at
// most once.
func (r *Roster) Remove(id string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if ok {
		delete(r.users, id)
	}
	return u, ok
}

// Get looks up a user by id.
func (r *Roster) Get(id string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	return u, ok
}

// Len returns the number of known users.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// List returns all users sorted by id. Insertion order is irrelevant; the
// sort only makes output deterministic.
func (r *Roster) List() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
