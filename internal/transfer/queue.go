// Package transfer implements the per-connection outbound queue with
// single-in-flight, acknowledgement-gated delivery, plus chunked transfer of
// oversized payloads.
package transfer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/1ureka/factorysync/internal/protocol"
)

// Tuning constants.
const (
	// AckTimeout bounds the wait for an acknowledgement. Expiry is a
	// connection failure, never a silent stall.
	AckTimeout = 10 * time.Second

	// bestEffortDepth is the queue depth beyond which best-effort packets
	// are coalesced or dropped instead of appended.
	bestEffortDepth = 8
)

// ErrAckTimeout is reported through the failure callback when the peer does
// not acknowledge the in-flight packet in time.
var ErrAckTimeout = errors.New("ack timeout")

// Queue is one connection's ordered outbound packet queue. At most one
// non-ack packet is unacknowledged in flight at any time; every received
// ack (delivered via HandleAck) pops the head and transmits the next packet.
//
// Acks themselves never pass through a Queue — the session layer writes
// them directly to the transport.
type Queue struct {
	mu       sync.Mutex
	queue    []*protocol.Packet
	inFlight bool
	timer    *time.Timer
	closed   bool

	ackTimeout time.Duration
	transmit   func(*protocol.Packet) error
	onFailure  func(error)
	failOnce   sync.Once
}

// NewQueue creates a queue that writes packets with transmit and reports
// fatal delivery failures (transmit error, ack timeout) through onFailure.
// onFailure is invoked at most once, from its own goroutine context.
func NewQueue(transmit func(*protocol.Packet) error, onFailure func(error)) *Queue {
	return &Queue{
		ackTimeout: AckTimeout,
		transmit:   transmit,
		onFailure:  onFailure,
	}
}

// Send appends a packet; if nothing is in flight it is transmitted
// immediately. Sends are fire-and-forget: delivery failures surface through
// the failure callback, not the caller.
func (q *Queue) Send(pkt *protocol.Packet) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.queue = append(q.queue, pkt)
	var head *protocol.Packet
	if !q.inFlight {
		head = q.armLocked()
	}
	q.mu.Unlock()

	if head != nil {
		q.transmitNow(head)
	}
}

// SendBestEffort enqueues presence-style traffic that must never back up the
// mutation stream. While the queue is shallow it behaves like Send; beyond
// bestEffortDepth a queued packet of the same text subtype is replaced in
// place (newest wins), or the packet is dropped.
func (q *Queue) SendBestEffort(pkt *protocol.Packet) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.queue) > bestEffortDepth {
		// Never touch index 0: the head may already be in flight.
		for i := len(q.queue) - 1; i >= 1; i-- {
			old := q.queue[i]
			if old.Type == pkt.Type && old.TextType == pkt.TextType {
				q.queue[i] = pkt
				break
			}
		}
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()
	q.Send(pkt)
}

// HandleAck processes one acknowledgement from the peer: pop the packet just
// acknowledged and transmit the new head if any. A stray ack with nothing in
// flight is ignored.
func (q *Queue) HandleAck() {
	q.mu.Lock()
	if q.closed || !q.inFlight {
		q.mu.Unlock()
		return
	}
	q.timer.Stop()
	q.queue = q.queue[1:]
	q.inFlight = false

	var head *protocol.Packet
	if len(q.queue) > 0 {
		head = q.armLocked()
	}
	q.mu.Unlock()

	if head != nil {
		q.transmitNow(head)
	}
}

// Len returns the number of queued packets, the in-flight head included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Close stops the queue synchronously: no further packets are transmitted
// after Close returns. Pending packets are discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if q.timer != nil {
		q.timer.Stop()
	}
	q.queue = nil
	q.inFlight = false
}

// armLocked marks the head in flight and arms the ack timer.
func (q *Queue) armLocked() *protocol.Packet {
	q.inFlight = true
	q.timer = time.AfterFunc(q.ackTimeout, func() {
		q.fail(ErrAckTimeout)
	})
	return q.queue[0]
}

// transmitNow writes a packet outside the lock.
func (q *Queue) transmitNow(pkt *protocol.Packet) {
	if err := q.transmit(pkt); err != nil {
		q.fail(fmt.Errorf("transmit: %w", err))
	}
}

func (q *Queue) fail(err error) {
	q.failOnce.Do(func() {
		q.Close()
		if q.onFailure != nil {
			q.onFailure(err)
		}
	})
}
