package transport

import (
	"context"
	"testing"

	"github.com/1ureka/factorysync/internal/protocol"
	"github.com/1ureka/factorysync/internal/transfer"
)

// TestEarlyMessagesBufferedUntilHandler verifies that DataChannel messages
// arriving before OnPacket is registered are buffered and delivered on
// registration, in arrival order. The remote may start transmitting the
// moment its own handshake completes — on the host side the first snapshot
// packet leaves before the joining side has wired its receive path, and a
// dropped start-of-bulk flag would turn the following fragment into a fatal
// bulk violation.
func TestEarlyMessagesBufferedUntilHandler(t *testing.T) {
	tr, err := NewTransport(context.Background())
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	defer tr.Close()

	// A small chunked payload arrives in full before anyone listens.
	stream := transfer.Chunk([]byte("early world snapshot"), 8)
	for _, pkt := range stream {
		tr.receive(protocol.Encode(pkt))
	}

	var got []*protocol.Packet
	tr.OnPacket(func(pkt *protocol.Packet, err error) {
		if err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		got = append(got, pkt)
	})

	if len(got) != len(stream) {
		t.Fatalf("delivered %d of %d buffered packets", len(got), len(stream))
	}
	if got[0].Flag != protocol.FlagStartBulk {
		t.Fatalf("first delivered packet is %+v, want startBulk", got[0])
	}
	if got[len(got)-1].Flag != protocol.FlagEndBulk {
		t.Fatalf("last delivered packet is %+v, want endBulk", got[len(got)-1])
	}
	for i, pkt := range got[1 : len(got)-1] {
		if pkt.Type != protocol.TypeData || pkt.Seq != i {
			t.Fatalf("fragment %d delivered out of order: %+v", i, pkt)
		}
	}

	// After registration, delivery is direct.
	tr.receive(protocol.Encode(protocol.NewFlag(protocol.FlagAck)))
	if len(got) != len(stream)+1 || !got[len(got)-1].IsAck() {
		t.Fatalf("post-registration message not delivered: %d packets", len(got))
	}
}

// TestHandlerSeesDecodeErrors verifies the receive path reports malformed
// wire data to the handler instead of swallowing it.
func TestHandlerSeesDecodeErrors(t *testing.T) {
	tr, err := NewTransport(context.Background())
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	defer tr.Close()

	tr.receive([]byte("not a packet"))

	var sawErr bool
	tr.OnPacket(func(pkt *protocol.Packet, err error) {
		if err != nil && pkt == nil {
			sawErr = true
		}
	})
	if !sawErr {
		t.Fatal("malformed buffered message not surfaced as an error")
	}
}
