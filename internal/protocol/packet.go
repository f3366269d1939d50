// Package protocol defines the packet envelope and wire format for the
// sync session.
package protocol

import "encoding/json"

// Type is the packet envelope discriminator.
type Type string

// Packet type constants.
const (
	TypeSignal Type = "signal" // a domain mutation: kind tag + ordered args
	TypeText   Type = "text"   // presence / roster / chat
	TypeData   Type = "data"   // one fragment of a bulk payload
	TypeFlag   Type = "flag"   // zero-payload control signal
)

// SignalKind identifies the domain mutation carried by a signal packet.
type SignalKind string

const (
	SignalPlaceBuilding    SignalKind = "placeBuilding"    // args: [SerializedEntity]
	SignalRemoveBuilding   SignalKind = "removeBuilding"   // args: [origin key]
	SignalComponentChanged SignalKind = "componentChanged" // args: [origin key, component name, state]
	SignalUpgradeUnlocked  SignalKind = "upgradeUnlocked"  // args: [upgrade id]
	SignalSetTile          SignalKind = "setTile"          // args: [origin key, SerializedEntity or null]
)

// TextKind identifies the subtype of a text packet.
type TextKind string

const (
	TextJoin    TextKind = "join"
	TextLeave   TextKind = "leave"
	TextUpdate  TextKind = "update"
	TextMessage TextKind = "message"
)

// FlagKind identifies a zero-payload control signal.
type FlagKind string

const (
	FlagStartBulk FlagKind = "startBulk"
	FlagEndBulk   FlagKind = "endBulk"
	FlagAck       FlagKind = "ack"
)

// Packet is the unit of wire transfer. Packets are immutable once
// constructed and are never partially applied. Only the fields of the
// packet's Type are populated.
type Packet struct {
	Type Type `json:"type"`

	// TypeSignal
	Signal SignalKind        `json:"signal,omitempty"`
	Args   []json.RawMessage `json:"args,omitempty"`

	// TypeText
	TextType TextKind `json:"textType,omitempty"`
	Text     string   `json:"text,omitempty"`

	// TypeData
	Seq     int    `json:"seq,omitempty"`
	Total   int    `json:"total,omitempty"`
	Payload []byte `json:"payload,omitempty"`

	// TypeFlag
	Flag FlagKind `json:"flag,omitempty"`
}

// IsAck reports whether the packet is the acknowledgement control signal.
// Acks are the only packets exempt from the one-in-flight rule.
func (p *Packet) IsAck() bool {
	return p.Type == TypeFlag && p.Flag == FlagAck
}
