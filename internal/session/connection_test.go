package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/1ureka/factorysync/internal/protocol"
)

// Compile-time interface check.
var _ Link = (*mockLink)(nil)

// mockLink implements Link for in-process testing: outbound packets are
// captured, inbound packets are injected by the test through deliver.
type mockLink struct {
	mu      sync.Mutex
	handler func(*protocol.Packet, error)
	sent    []*protocol.Packet
	sendErr error

	done chan struct{}
	once sync.Once
}

func newMockLink() *mockLink {
	return &mockLink{done: make(chan struct{})}
}

func (m *mockLink) Send(pkt *protocol.Packet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, pkt)
	return nil
}

func (m *mockLink) OnPacket(fn func(*protocol.Packet, error)) {
	m.mu.Lock()
	m.handler = fn
	m.mu.Unlock()
}

func (m *mockLink) Done() <-chan struct{} { return m.done }

func (m *mockLink) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

// deliver invokes the receive path as the transport would.
func (m *mockLink) deliver(pkt *protocol.Packet, err error) {
	m.mu.Lock()
	fn := m.handler
	m.mu.Unlock()
	if fn != nil {
		fn(pkt, err)
	}
}

func (m *mockLink) sentPackets() []*protocol.Packet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*protocol.Packet(nil), m.sent...)
}

// TestConnectionAcksAndDispatches verifies that every inbound non-ack packet
// is acknowledged on the wire and handed to the handler.
func TestConnectionAcksAndDispatches(t *testing.T) {
	link := newMockLink()
	conn := NewConnection(context.Background(), "peer-1", link)
	defer conn.Close()

	var handled []*protocol.Packet
	conn.SetHandler(func(_ *Connection, pkt *protocol.Packet) {
		handled = append(handled, pkt)
	})
	conn.Start()

	link.deliver(protocol.NewText(protocol.TextMessage, "hello"), nil)

	if len(handled) != 1 || handled[0].Text != "hello" {
		t.Fatalf("handler saw %v", handled)
	}
	sent := link.sentPackets()
	if len(sent) != 1 || !sent[0].IsAck() {
		t.Fatalf("wire got %v, want exactly one ack", sent)
	}
}

// TestConnectionDropsMalformed verifies that a single undecodable packet is
// dropped without an ack and without killing the connection.
func TestConnectionDropsMalformed(t *testing.T) {
	link := newMockLink()
	conn := NewConnection(context.Background(), "peer-1", link)
	defer conn.Close()

	handled := 0
	conn.SetHandler(func(*Connection, *protocol.Packet) { handled++ })
	conn.Start()

	link.deliver(nil, errors.New("malformed packet"))

	if handled != 0 {
		t.Fatal("handler called for a malformed packet")
	}
	if len(link.sentPackets()) != 0 {
		t.Fatal("malformed packet was acked")
	}
	select {
	case <-conn.Done():
		t.Fatal("connection died on a single malformed packet")
	default:
	}
}

// TestConnectionAckAdvancesQueue verifies the single-in-flight gate across
// the connection boundary: the second packet only leaves after an ack.
func TestConnectionAckAdvancesQueue(t *testing.T) {
	link := newMockLink()
	conn := NewConnection(context.Background(), "peer-1", link)
	defer conn.Close()
	conn.SetHandler(func(*Connection, *protocol.Packet) {})
	conn.Start()

	conn.Send(protocol.NewText(protocol.TextMessage, "first"))
	conn.Send(protocol.NewText(protocol.TextMessage, "second"))

	if sent := link.sentPackets(); len(sent) != 1 {
		t.Fatalf("wire got %d packets before ack, want 1", len(sent))
	}

	link.deliver(protocol.NewFlag(protocol.FlagAck), nil)

	sent := link.sentPackets()
	if len(sent) != 2 || sent[1].Text != "second" {
		t.Fatalf("wire after ack = %v", sent)
	}
}

// TestRemoteCloseSurfacesCause verifies that a dead link tears the connection
// down with ErrRemoteClosed, exactly once.
func TestRemoteCloseSurfacesCause(t *testing.T) {
	link := newMockLink()
	conn := NewConnection(context.Background(), "peer-1", link)
	conn.SetHandler(func(*Connection, *protocol.Packet) {})

	causes := make(chan error, 2)
	conn.OnClosed(func(_ *Connection, err error) { causes <- err })
	conn.Start()

	link.Close()

	select {
	case err := <-causes:
		if !errors.Is(err, ErrRemoteClosed) {
			t.Fatalf("cause = %v, want ErrRemoteClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnClosed never fired")
	}

	// A later local Close must not fire the callback again.
	conn.Close()
	select {
	case err := <-causes:
		t.Fatalf("OnClosed fired twice, second cause %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestLocalCloseIdempotent verifies that Close tears the link down before
// OnClosed fires and that a second Close is a no-op.
func TestLocalCloseIdempotent(t *testing.T) {
	link := newMockLink()
	conn := NewConnection(context.Background(), "peer-1", link)
	conn.SetHandler(func(*Connection, *protocol.Packet) {})

	closed := 0
	conn.OnClosed(func(_ *Connection, err error) {
		if err != nil {
			t.Errorf("local close reported cause %v", err)
		}
		select {
		case <-link.Done():
		default:
			t.Error("link still open when OnClosed fired")
		}
		closed++
	})
	conn.Start()

	conn.Close()
	conn.Close()

	if closed != 1 {
		t.Fatalf("OnClosed fired %d times, want 1", closed)
	}
}
