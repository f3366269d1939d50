package signaling

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// startServer runs the rendezvous on an ephemeral port and returns its
// ws:// base URL.
func startServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(NewServer().Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, baseURL, sessionID string) *Rendezvous {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rz, err := Dial(ctx, baseURL, sessionID)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { rz.Close() })
	return rz
}

// TestSessionForwarding runs the whole rendezvous flow: create, join, and
// bidirectional offer/answer forwarding with peer addressing.
func TestSessionForwarding(t *testing.T) {
	base := startServer(t)

	host := dial(t, base, "room-42")
	if err := host.CreateSession("room-42"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	peer := dial(t, base, "room-42")
	if err := peer.Join("room-42"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	// The host learns the peer's server-minted id from the join notice.
	join, err := host.Read()
	if err != nil {
		t.Fatalf("host read: %v", err)
	}
	if join.Type != MsgJoin || join.Peer == "" {
		t.Fatalf("join notice = %+v", join)
	}

	// Host → peer: the address is stripped before delivery.
	if err := host.Send(Message{Type: MsgOffer, Peer: join.Peer, SDP: "host-offer"}); err != nil {
		t.Fatalf("host send: %v", err)
	}
	offer, err := peer.Read()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if offer.Type != MsgOffer || offer.SDP != "host-offer" || offer.Peer != "" {
		t.Fatalf("peer got %+v", offer)
	}

	// Peer → host: the sender id is stamped on.
	if err := peer.Send(Message{Type: MsgAnswer, SDP: "peer-answer"}); err != nil {
		t.Fatalf("peer send: %v", err)
	}
	answer, err := host.Read()
	if err != nil {
		t.Fatalf("host read: %v", err)
	}
	if answer.Type != MsgAnswer || answer.SDP != "peer-answer" || answer.Peer != join.Peer {
		t.Fatalf("host got %+v", answer)
	}
}

// TestDuplicateSessionRejected verifies that a second host for the same id is
// turned away.
func TestDuplicateSessionRejected(t *testing.T) {
	base := startServer(t)

	first := dial(t, base, "room-1")
	if err := first.CreateSession("room-1"); err != nil {
		t.Fatal(err)
	}
	// Let the server register the room before racing it with the duplicate.
	time.Sleep(50 * time.Millisecond)

	second := dial(t, base, "room-1")
	if err := second.CreateSession("room-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := second.Read(); err == nil || !strings.Contains(err.Error(), "already in use") {
		t.Fatalf("duplicate create: err = %v, want already-in-use", err)
	}
}

// TestJoinUnknownSession verifies the error surface for a bad session id.
func TestJoinUnknownSession(t *testing.T) {
	base := startServer(t)

	peer := dial(t, base, "nope")
	if err := peer.Join("nope"); err != nil {
		t.Fatal(err)
	}
	if _, err := peer.Read(); err == nil || !strings.Contains(err.Error(), "no such session") {
		t.Fatalf("join unknown: err = %v, want no-such-session", err)
	}
}

// TestHostDepartureClosesSession verifies that peers are told when the host
// goes away and that the session id becomes reusable.
func TestHostDepartureClosesSession(t *testing.T) {
	base := startServer(t)

	host := dial(t, base, "room-9")
	if err := host.CreateSession("room-9"); err != nil {
		t.Fatal(err)
	}
	peer := dial(t, base, "room-9")
	if err := peer.Join("room-9"); err != nil {
		t.Fatal(err)
	}
	if _, err := host.Read(); err != nil { // join notice
		t.Fatal(err)
	}

	host.Close()

	if _, err := peer.Read(); err == nil || !strings.Contains(err.Error(), "session closed") {
		t.Fatalf("peer read after host left: err = %v, want session-closed", err)
	}

	// The id is free again once the room is gone: a new host can register it
	// and accept a join.
	time.Sleep(100 * time.Millisecond)
	again := dial(t, base, "room-9")
	if err := again.CreateSession("room-9"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	rejoin := dial(t, base, "room-9")
	if err := rejoin.Join("room-9"); err != nil {
		t.Fatal(err)
	}
	notice, err := again.Read()
	if err != nil || notice.Type != MsgJoin {
		t.Fatalf("rejoin after reuse: %+v, %v", notice, err)
	}
}

// TestSessionURL verifies base-URL normalization.
func TestSessionURL(t *testing.T) {
	testCases := []struct {
		in, session, want string
		wantErr           bool
	}{
		{"ws://localhost:8090", "abc", "ws://localhost:8090/session/abc/ws", false},
		{"wss://relay.example.com", "room 1", "wss://relay.example.com/session/room%201/ws", false},
		{"https://relay.example.com", "abc", "wss://relay.example.com/session/abc/ws", false},
		{"", "abc", "", true},
		{"not a url", "abc", "", true},
	}
	for _, tc := range testCases {
		got, err := sessionURL(tc.in, tc.session)
		if tc.wantErr {
			if err == nil {
				t.Errorf("sessionURL(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("sessionURL(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("sessionURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
