// Package signaling implements the rendezvous protocol: session creation,
// join notification, and SDP/ICE forwarding between the host and each
// joining peer. The rendezvous is a thin pass-through; once a DataChannel
// opens, it is no longer involved for that peer.
package signaling

// MsgType identifies the kind of rendezvous message.
type MsgType string

const (
	MsgCreate    MsgType = "create"    // host → server: register the session id
	MsgJoin      MsgType = "join"      // client → server, server → host: a peer wants in
	MsgOffer     MsgType = "offer"     // host ↔ peer, forwarded by the server
	MsgAnswer    MsgType = "answer"    // host ↔ peer, forwarded by the server
	MsgCandidate MsgType = "candidate" // host ↔ peer, forwarded by the server
	MsgError     MsgType = "error"     // server → either side
)

// Message is the JSON structure exchanged with the rendezvous.
//
// Peer addresses the target on host→server messages and carries the sender
// on server→host messages; a joining peer only ever talks to the host, so
// its messages need no address.
type Message struct {
	Type      MsgType `json:"type"`
	Session   string  `json:"session,omitempty"`
	Peer      string  `json:"peer,omitempty"`
	SDP       string  `json:"sdp,omitempty"`
	Candidate string  `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
	Error     string  `json:"error,omitempty"`
}
