// Package config holds the CLI configuration types.
package config

// Role represents the user's chosen role (host or client).
type Role string

const (
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Config stores all parameters gathered from flags or the interactive CLI prompts.
type Config struct {
	Role          Role
	Username      string // presence name asserted to peers
	SessionID     string // session id registered at / looked up from the rendezvous
	RendezvousURL string // base URL of the rendezvous service (ws:// or wss://)
	SnapshotPath  string // host: optional bbolt file for snapshot persistence
}
