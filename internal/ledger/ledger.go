// Package ledger implements the echo-suppression bookkeeping that
// distinguishes "change I caused locally, about to be echoed back to me"
// from "genuine change to apply".
//
// An entry is pushed immediately before an operation that will synchronously
// re-fire the corresponding change notification against the local instance.
// The notification listener consumes exactly one matching entry and
// short-circuits; without a match the notification is genuine and gets
// forwarded. Without this, the local apply-and-notify path and the network
// broadcast path sharing one event bus would relay every remote-applied
// mutation right back out, looping forever.
package ledger

import "sync"

// Kind is the mutation category a pending entry belongs to.
type Kind string

const (
	KindPlacement Kind = "placement"
	KindRemoval   Kind = "removal"
	KindComponent Kind = "component"
	KindUpgrade   Kind = "upgrade"
)

type entry struct {
	kind Kind
	key  string
}

// Ledger is a multiset of pending (kind, identity key) markers. Push and
// Consume are O(1) expected; consuming removes exactly one matching entry,
// never all matches.
type Ledger struct {
	mu      sync.Mutex
	pending map[entry]int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{pending: make(map[entry]int)}
}

// Push registers a pending locally-originated mutation.
func (l *Ledger) Push(kind Kind, key string) {
	l.mu.Lock()
	l.pending[entry{kind, key}]++
	l.mu.Unlock()
}

// Consume removes one matching entry if present and reports whether it did.
// A true return means the notification is an echo and must be suppressed.
func (l *Ledger) Consume(kind Kind, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := entry{kind, key}
	n, ok := l.pending[e]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(l.pending, e)
	} else {
		l.pending[e] = n - 1
	}
	return true
}

// Len returns the total number of pending entries across all kinds.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, n := range l.pending {
		total += n
	}
	return total
}
