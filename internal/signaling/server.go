package signaling

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/1ureka/factorysync/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the rendezvous service: one room per session id, forwarding
// offer/answer/candidate messages between the host and each joining peer.
// It never inspects SDP payloads.
type Server struct {
	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	host  *wsPeer
	peers map[string]*wsPeer
}

// wsPeer serializes writes to one websocket.
type wsPeer struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *wsPeer) send(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(msg)
}

// NewServer creates an empty rendezvous server.
func NewServer() *Server {
	return &Server{rooms: make(map[string]*room)}
}

// Handler returns the HTTP handler serving the session websocket route.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/session/{id}/ws", s.handleWS)
	return r
}

// handleWS upgrades the connection and runs the per-socket loop. The first
// message decides the role: create (host) or join (client).
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var first Message
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return
	}

	switch first.Type {
	case MsgCreate:
		s.runHost(sessionID, conn)
	case MsgJoin:
		s.runPeer(sessionID, conn)
	default:
		peer := &wsPeer{conn: conn}
		peer.send(Message{Type: MsgError, Error: "expected create or join"})
		conn.Close()
	}
}

// runHost registers the session and forwards host messages to the addressed
// peer until the host disconnects, which ends the session.
func (s *Server) runHost(sessionID string, conn *websocket.Conn) {
	host := &wsPeer{conn: conn}

	s.mu.Lock()
	if _, exists := s.rooms[sessionID]; exists {
		s.mu.Unlock()
		host.send(Message{Type: MsgError, Error: "session id already in use"})
		conn.Close()
		return
	}
	rm := &room{host: host, peers: make(map[string]*wsPeer)}
	s.rooms[sessionID] = rm
	s.mu.Unlock()

	util.LogInfo("session %q created", sessionID)

	defer func() {
		s.mu.Lock()
		delete(s.rooms, sessionID)
		s.mu.Unlock()
		for _, p := range s.roomPeers(rm) {
			p.send(Message{Type: MsgError, Error: "session closed"})
			p.conn.Close()
		}
		conn.Close()
		util.LogInfo("session %q closed", sessionID)
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		s.mu.Lock()
		target := rm.peers[msg.Peer]
		s.mu.Unlock()
		if target == nil {
			util.LogDebug("session %q: host message for unknown peer %q", sessionID, msg.Peer)
			continue
		}
		// Strip the address before forwarding; the peer knows its own id.
		msg.Peer = ""
		if err := target.send(msg); err != nil {
			util.LogDebug("session %q: forward to peer failed: %v", sessionID, err)
		}
	}
}

// runPeer attaches a joining peer to its room, notifies the host, and
// forwards peer messages to the host tagged with the peer's id.
func (s *Server) runPeer(sessionID string, conn *websocket.Conn) {
	peer := &wsPeer{id: uuid.NewString(), conn: conn}

	s.mu.Lock()
	rm, ok := s.rooms[sessionID]
	if ok {
		rm.peers[peer.id] = peer
	}
	s.mu.Unlock()

	if !ok {
		peer.send(Message{Type: MsgError, Error: "no such session"})
		conn.Close()
		return
	}

	util.LogDebug("session %q: peer %s joining", sessionID, peer.id)
	rm.host.send(Message{Type: MsgJoin, Peer: peer.id})

	defer func() {
		s.mu.Lock()
		delete(rm.peers, peer.id)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		msg.Peer = peer.id
		if err := rm.host.send(msg); err != nil {
			return
		}
	}
}

func (s *Server) roomPeers(rm *room) []*wsPeer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*wsPeer, 0, len(rm.peers))
	for _, p := range rm.peers {
		out = append(out, p)
	}
	return out
}
