package transfer

import "github.com/1ureka/factorysync/internal/protocol"

// FragmentSize is the fixed fragment size for bulk payloads.
const FragmentSize = 16 * 1024

// Chunk splits a bulk payload into fixed-size data fragments bracketed by a
// leading start-of-bulk-transfer and a trailing end-of-bulk-transfer flag.
// Every returned packet goes through the ack-gated queue like any other, so
// a bulk transfer is strictly ordered end to end.
func Chunk(payload []byte, fragmentSize int) []*protocol.Packet {
	if fragmentSize <= 0 {
		fragmentSize = FragmentSize
	}

	total := (len(payload) + fragmentSize - 1) / fragmentSize
	if total == 0 {
		total = 1 // an empty payload still travels as one empty fragment
	}

	packets := make([]*protocol.Packet, 0, total+2)
	packets = append(packets, protocol.NewFlag(protocol.FlagStartBulk))

	for seq := 0; seq < total; seq++ {
		lo := seq * fragmentSize
		hi := min(lo+fragmentSize, len(payload))
		frag := make([]byte, hi-lo)
		copy(frag, payload[lo:hi])
		packets = append(packets, protocol.NewData(seq, total, frag))
	}

	packets = append(packets, protocol.NewFlag(protocol.FlagEndBulk))
	return packets
}
