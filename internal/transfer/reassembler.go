package transfer

import (
	"errors"
	"fmt"
)

// ErrBulkViolation marks any deviation from the bulk-transfer bracket
// protocol: fragments outside a transfer, duplicated or out-of-range
// sequence indices, mismatched totals, or a close with missing fragments.
// The single-in-flight design makes all of these equivalent to a dead
// channel — the whole connection is torn down, no partial-state recovery.
var ErrBulkViolation = errors.New("bulk transfer violation")

// Reassembler buffers data fragments of one bulk transfer, keyed by
// sequence index, and reconstructs the payload only once the trailing
// end-of-bulk-transfer flag arrives. It is connection-local and needs no
// locking: the receive path of a connection is single-threaded.
type Reassembler struct {
	active bool
	total  int
	frags  map[int][]byte
}

// NewReassembler creates an idle reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Active reports whether a bulk transfer is in progress.
func (r *Reassembler) Active() bool { return r.active }

// Start begins a bulk transfer on receipt of the start flag.
func (r *Reassembler) Start() error {
	if r.active {
		return fmt.Errorf("%w: start inside an open transfer", ErrBulkViolation)
	}
	r.active = true
	r.total = 0
	r.frags = make(map[int][]byte)
	return nil
}

// AddFragment buffers one data fragment. No partial decode is attempted.
func (r *Reassembler) AddFragment(seq, total int, payload []byte) error {
	if !r.active {
		return fmt.Errorf("%w: fragment outside a transfer", ErrBulkViolation)
	}
	if r.total == 0 {
		if total < 1 {
			return fmt.Errorf("%w: fragment total %d", ErrBulkViolation, total)
		}
		r.total = total
	} else if total != r.total {
		return fmt.Errorf("%w: fragment total changed from %d to %d", ErrBulkViolation, r.total, total)
	}
	if seq < 0 || seq >= r.total {
		return fmt.Errorf("%w: fragment seq %d out of range [0,%d)", ErrBulkViolation, seq, r.total)
	}
	if _, dup := r.frags[seq]; dup {
		return fmt.Errorf("%w: duplicate fragment seq %d", ErrBulkViolation, seq)
	}
	r.frags[seq] = payload
	return nil
}

// Finish closes the transfer on receipt of the end flag and returns the
// payload reassembled by concatenation in index order.
func (r *Reassembler) Finish() ([]byte, error) {
	if !r.active {
		return nil, fmt.Errorf("%w: end flag outside a transfer", ErrBulkViolation)
	}
	defer r.reset()

	if len(r.frags) != r.total {
		return nil, fmt.Errorf("%w: %d of %d fragments received", ErrBulkViolation, len(r.frags), r.total)
	}

	size := 0
	for _, f := range r.frags {
		size += len(f)
	}
	payload := make([]byte, 0, size)
	for seq := 0; seq < r.total; seq++ {
		payload = append(payload, r.frags[seq]...)
	}
	return payload, nil
}

func (r *Reassembler) reset() {
	r.active = false
	r.total = 0
	r.frags = nil
}
