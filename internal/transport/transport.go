// Package transport wraps a PeerConnection + DataChannel pair behind a
// packet-level API: signaling exchange, packet send, packet receive, and a
// lifecycle driven by the DataChannel state.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/factorysync/internal/protocol"
	"github.com/1ureka/factorysync/internal/util"
)

// Transport is one peer link. It is considered alive as long as the
// DataChannel is open and the construction context has not been cancelled.
// The PeerConnection state is recorded but does not drive open/close
// decisions.
type Transport struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
	handler func(*protocol.Packet, error)
	pending [][]byte

	// deliverMu serializes packet delivery so a flush of pre-handler
	// messages cannot interleave with fresh arrivals.
	deliverMu sync.Mutex
}

// NewTransport creates a Transport backed by a new PeerConnection and a
// pre-negotiated DataChannel. The caller performs signaling via the exposed
// methods (CreateOffer / CreateAnswer / …) and then uses Send / OnPacket.
func NewTransport(ctx context.Context) (*Transport, error) {
	pc, err := newPeerConnection()
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	tCtx, tCancel := context.WithCancel(ctx)

	t := &Transport{
		pc:         pc,
		dc:         dc,
		openSignal: make(chan struct{}),
		ctx:        tCtx,
		cancel:     tCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	// DC open gate.
	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(t.openSignal) })
	})

	// DC close → cancel transport context.
	dc.OnClose(func() {
		util.LogDebug("DataChannel closed")
		tCancel()
	})

	// Record PC state (informational only).
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("PeerConnection state: %s", state.String())
		t.mu.Lock()
		t.pcState = state
		t.mu.Unlock()
	})

	// The message callback is installed at construction, before any
	// signaling happens. pion does not buffer DataChannel messages that
	// arrive before OnMessage is set, so registering it later (when the
	// session wires its receive path) would silently drop whatever the
	// remote sent in between — the remote may start transmitting the
	// moment its own handshake completes.
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.receive(msg.Data)
	})

	return t, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed when the DataChannel is open.
func (t *Transport) Ready() <-chan struct{} {
	return t.openSignal
}

// Done returns a channel that is closed when the Transport is shut down
// (DataChannel closed or parent context cancelled).
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection.
func (t *Transport) Close() error {
	t.cancel()
	return errors.Join(t.dc.Close(), t.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (t *Transport) ConnectionState() webrtc.PeerConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (t *Transport) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	t.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Send encodes and writes a single packet. Serialization of writes is the
// caller's concern: the ack-gated queue admits one packet at a time, and
// direct writes (acks, presence) are small enough to never hit the
// DataChannel buffer limit.
func (t *Transport) Send(pkt *protocol.Packet) error {
	data := protocol.Encode(pkt)
	if err := t.dc.Send(data); err != nil {
		return err
	}
	util.Stats.AddSent(len(data))
	return nil
}

// OnPacket registers a callback invoked for every inbound DataChannel
// message. The callback receives the decoded packet and any decoding error.
// Messages that arrived before registration are delivered first, in arrival
// order.
func (t *Transport) OnPacket(fn func(*protocol.Packet, error)) {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	t.handler = fn
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, data := range pending {
		dispatch(fn, data)
	}
}

// receive is the raw inbound path: buffer while no handler is attached,
// deliver otherwise.
func (t *Transport) receive(data []byte) {
	t.mu.Lock()
	fn := t.handler
	if fn == nil {
		t.pending = append(t.pending, data)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()
	dispatch(fn, data)
}

func dispatch(fn func(*protocol.Packet, error), data []byte) {
	util.Stats.AddRecv(len(data))
	pkt, err := protocol.Decode(data)
	fn(pkt, err)
}
