package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a Packet for DataChannel transmission.
func Encode(pkt *Packet) []byte {
	data, err := json.Marshal(pkt)
	if err != nil {
		// A Packet holds only marshalable fields; this cannot fire for
		// packets built through the constructors.
		panic(fmt.Sprintf("protocol: encode: %v", err))
	}
	return data
}

// Decode deserializes and validates a wire packet. A decode error means the
// single packet is malformed; the session is expected to drop it and
// continue.
func Decode(data []byte) (*Packet, error) {
	var pkt Packet
	if err := json.Unmarshal(data, &pkt); err != nil {
		return nil, fmt.Errorf("malformed packet: %w", err)
	}

	switch pkt.Type {
	case TypeSignal:
		switch pkt.Signal {
		case SignalPlaceBuilding, SignalRemoveBuilding, SignalComponentChanged,
			SignalUpgradeUnlocked, SignalSetTile:
		default:
			return nil, fmt.Errorf("unknown signal kind: %q", pkt.Signal)
		}
	case TypeText:
		switch pkt.TextType {
		case TextJoin, TextLeave, TextUpdate, TextMessage:
		default:
			return nil, fmt.Errorf("unknown text kind: %q", pkt.TextType)
		}
	case TypeData:
		if pkt.Total < 1 || pkt.Seq < 0 || pkt.Seq >= pkt.Total {
			return nil, fmt.Errorf("data fragment out of range: seq=%d total=%d", pkt.Seq, pkt.Total)
		}
	case TypeFlag:
		switch pkt.Flag {
		case FlagStartBulk, FlagEndBulk, FlagAck:
		default:
			return nil, fmt.Errorf("unknown flag kind: %q", pkt.Flag)
		}
	default:
		return nil, fmt.Errorf("unknown packet type: %q", pkt.Type)
	}

	return &pkt, nil
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewSignal builds a signal packet, marshaling each argument in order.
func NewSignal(kind SignalKind, args ...any) (*Packet, error) {
	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal signal arg %d: %w", i, err)
		}
		raw[i] = data
	}
	return &Packet{Type: TypeSignal, Signal: kind, Args: raw}, nil
}

// NewText builds a text packet.
func NewText(kind TextKind, text string) *Packet {
	return &Packet{Type: TypeText, TextType: kind, Text: text}
}

// NewData builds one bulk-transfer fragment.
func NewData(seq, total int, payload []byte) *Packet {
	return &Packet{Type: TypeData, Seq: seq, Total: total, Payload: payload}
}

// NewFlag builds a control packet.
func NewFlag(kind FlagKind) *Packet {
	return &Packet{Type: TypeFlag, Flag: kind}
}

// Arg unmarshals the i-th signal argument into v.
func (p *Packet) Arg(i int, v any) error {
	if i < 0 || i >= len(p.Args) {
		return fmt.Errorf("signal %q: missing arg %d", p.Signal, i)
	}
	if err := json.Unmarshal(p.Args[i], v); err != nil {
		return fmt.Errorf("signal %q: arg %d: %w", p.Signal, i, err)
	}
	return nil
}
