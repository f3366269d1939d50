package signaling

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Rendezvous is one side's connection to the rendezvous service. Writes are
// serialized by a mutex; reads belong to a single reader goroutine.
type Rendezvous struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to the rendezvous service for the given session id. baseURL
// is the service root, e.g. wss://example.devtunnels.ms.
func Dial(ctx context.Context, baseURL, sessionID string) (*Rendezvous, error) {
	u, err := sessionURL(baseURL, sessionID)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rendezvous: %w", err)
	}
	return &Rendezvous{conn: conn}, nil
}

// CreateSession registers the session id with the rendezvous (host side).
func (r *Rendezvous) CreateSession(sessionID string) error {
	return r.Send(Message{Type: MsgCreate, Session: sessionID})
}

// Join announces this peer to the session's host (client side).
func (r *Rendezvous) Join(sessionID string) error {
	return r.Send(Message{Type: MsgJoin, Session: sessionID})
}

// Send writes a rendezvous message, guarded by a mutex.
func (r *Rendezvous) Send(msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn.WriteJSON(msg)
}

// Read blocks for the next rendezvous message. Only one goroutine may read.
func (r *Rendezvous) Read() (Message, error) {
	var msg Message
	if err := r.conn.ReadJSON(&msg); err != nil {
		return Message{}, fmt.Errorf("read rendezvous message: %w", err)
	}
	if msg.Type == MsgError {
		return msg, fmt.Errorf("rendezvous: %s", msg.Error)
	}
	return msg, nil
}

// Close closes the websocket.
func (r *Rendezvous) Close() error {
	return r.conn.Close()
}

// sessionURL validates the base URL and appends the session route.
func sessionURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid rendezvous URL: %s", baseURL)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	return fmt.Sprintf("%s://%s/session/%s/ws", scheme, u.Host, url.PathEscape(sessionID)), nil
}
