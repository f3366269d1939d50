package signaling

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/factorysync/internal/transport"
	"github.com/1ureka/factorysync/internal/util"
)

// ExchangeAsHost performs the SDP/ICE exchange for one joining peer:
//   - Create an Offer and send it via the rendezvous
//   - Receive the Answer and ICE candidates from incoming
//   - Block until the DataChannel opens or an error occurs
//
// send must already address the target peer; incoming must be demultiplexed
// to this peer's messages (the host's rendezvous socket carries every peer).
func ExchangeAsHost(
	ctx context.Context,
	tr *transport.Transport,
	send func(Message) error,
	incoming <-chan Message,
) error {
	trickleICE(tr, send)

	offer, err := tr.CreateOffer()
	if err != nil {
		return fmt.Errorf("CreateOffer: %w", err)
	}
	if err := tr.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("SetLocalDescription: %w", err)
	}
	if err := send(Message{Type: MsgOffer, SDP: offer.SDP}); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	for {
		select {
		case msg, ok := <-incoming:
			if !ok {
				return fmt.Errorf("signaling channel closed before DataChannel opened")
			}
			switch msg.Type {
			case MsgAnswer:
				if err := tr.SetRemoteDescription(webrtc.SessionDescription{
					Type: webrtc.SDPTypeAnswer, SDP: msg.SDP,
				}); err != nil {
					util.LogWarning("SetRemoteDescription failed: %v", err)
				}
			case MsgCandidate:
				addCandidate(tr, msg.Candidate)
			}

		case <-tr.Ready():
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ExchangeAsClient performs the SDP/ICE exchange on the joining side:
//   - Receive the Offer
//   - Create an Answer and send it via the rendezvous
//   - Exchange ICE candidates
//   - Block until the DataChannel opens or an error occurs
func ExchangeAsClient(
	ctx context.Context,
	tr *transport.Transport,
	send func(Message) error,
	incoming <-chan Message,
) error {
	trickleICE(tr, send)

	for {
		select {
		case msg, ok := <-incoming:
			if !ok {
				return fmt.Errorf("signaling channel closed before DataChannel opened")
			}
			switch msg.Type {
			case MsgOffer:
				if err := tr.SetRemoteDescription(webrtc.SessionDescription{
					Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
				}); err != nil {
					util.LogWarning("SetRemoteDescription failed: %v", err)
					continue
				}
				answer, err := tr.CreateAnswer()
				if err != nil {
					util.LogWarning("CreateAnswer failed: %v", err)
					continue
				}
				if err := tr.SetLocalDescription(answer); err != nil {
					util.LogWarning("SetLocalDescription failed: %v", err)
					continue
				}
				if err := send(Message{Type: MsgAnswer, SDP: answer.SDP}); err != nil {
					return fmt.Errorf("send answer: %w", err)
				}

			case MsgCandidate:
				addCandidate(tr, msg.Candidate)
			}

		case <-tr.Ready():
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// trickleICE forwards locally gathered candidates through send. Errors are
// intentionally ignored: candidate delivery is best-effort, and the exchange
// fails on its own if connectivity never establishes.
func trickleICE(tr *transport.Transport, send func(Message) error) {
	tr.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, _ := json.Marshal(c.ToJSON())
		send(Message{Type: MsgCandidate, Candidate: string(data)})
	})
}

func addCandidate(tr *transport.Transport, candidate string) {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidate), &init); err != nil {
		util.LogWarning("malformed ICE candidate: %v", err)
		return
	}
	if err := tr.AddICECandidate(init); err != nil {
		util.LogWarning("AddICECandidate failed: %v", err)
	}
}
