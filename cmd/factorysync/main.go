// Factorysync — CLI entry point.
//
// This tool synchronizes a grid-based factory world between one host and any
// number of clients over WebRTC DataChannels. Peers find each other through a
// rendezvous service (see cmd/rendezvous); after the handshake all game
// traffic is peer-to-peer.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -name, -session, -rendezvous, -snapshot).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	"github.com/1ureka/factorysync/internal/config"
	"github.com/1ureka/factorysync/internal/relay"
	"github.com/1ureka/factorysync/internal/roster"
	"github.com/1ureka/factorysync/internal/save"
	"github.com/1ureka/factorysync/internal/session"
	"github.com/1ureka/factorysync/internal/util"
	"github.com/1ureka/factorysync/internal/world"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	role := flag.String("role", "", "Role: host or client")
	name := flag.String("name", "", "Display name shown to other players")
	sessionID := flag.String("session", "", "Session id (host: generated if empty; client: required)")
	rendezvous := flag.String("rendezvous", "", "Rendezvous service URL (ws:// or wss://)")
	snapshot := flag.String("snapshot", "", "Snapshot database path (host only, optional)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Factorysync — v%s", version))
	pterm.Println()

	cfg := config.Config{
		Role:          config.Role(*role),
		Username:      *name,
		SessionID:     *sessionID,
		RendezvousURL: *rendezvous,
		SnapshotPath:  *snapshot,
	}

	switch cfg.Role {
	case "":
		// No -role flag → interactive mode.
		runInteractive(ctx, cfg)

	case config.RoleHost:
		if err := validate(&cfg, true); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		runHost(ctx, cfg)

	case config.RoleClient:
		if err := validate(&cfg, false); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		runClient(ctx, cfg)

	default:
		util.LogError("invalid -role: must be 'host' or 'client'")
		os.Exit(1)
	}

	util.LogInfo("session closed")
}

// validate fills defaults and rejects unusable configurations.
func validate(cfg *config.Config, host bool) error {
	if cfg.Username == "" {
		return fmt.Errorf("missing -name")
	}
	rz, err := normalizeRendezvousURL(cfg.RendezvousURL)
	if err != nil {
		return err
	}
	cfg.RendezvousURL = rz

	if host {
		if cfg.SessionID == "" {
			cfg.SessionID = uuid.NewString()[:8]
		}
	} else if cfg.SessionID == "" {
		return fmt.Errorf("missing -session for client role")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive falls back to interactive prompts for anything the flags
// left blank.
func runInteractive(ctx context.Context, cfg config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host  — Start a game others can join", "Client — Join someone's game"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if cfg.Username == "" {
		cfg.Username = askText("Display name")
	}
	if cfg.RendezvousURL == "" {
		cfg.RendezvousURL = askURL()
	}

	if strings.HasPrefix(role, "Host") {
		if cfg.SessionID == "" {
			cfg.SessionID = uuid.NewString()[:8]
		}
		runHost(ctx, cfg)
	} else {
		if cfg.SessionID == "" {
			cfg.SessionID = askText("Session id")
		}
		runClient(ctx, cfg)
	}
}

// runHost builds the authoritative world and accepts joining peers until
// interrupted.
func runHost(ctx context.Context, cfg config.Config) {
	w := world.New(world.DefaultCatalog())

	var store *save.Store
	if cfg.SnapshotPath != "" {
		s, err := save.Open(cfg.SnapshotPath)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s

		// Pick up the previous world for this session id, if any.
		if snap, ok, err := s.Get(cfg.SessionID); err != nil {
			util.LogWarning("read stored snapshot: %v", err)
		} else if ok {
			if err := snap.Restore(w); err != nil {
				util.LogError("restore stored snapshot: %v", err)
				os.Exit(1)
			}
			util.LogInfo("restored previous world (%d buildings)", w.EntityCount())
		}
	}

	engine := relay.New(relay.Options{
		IsHost:    true,
		Sim:       w,
		Persist:   w,
		Catalog:   w.Catalog(),
		Self:      roster.NewUser(cfg.Username),
		Roster:    roster.New(),
		UI:        &consoleUI{},
		Store:     store,
		SessionID: cfg.SessionID,
	})
	engine.Start()
	defer engine.Shutdown()

	util.StartStatsReporter(ctx)
	go chatLoop(ctx, engine)

	err := session.RunHost(ctx, session.HostConfig{
		RendezvousURL: cfg.RendezvousURL,
		SessionID:     cfg.SessionID,
		OnConnection:  engine.Attach,
	})
	if err != nil {
		util.LogError("hosting failed: %v", err)
		os.Exit(1)
	}
}

// runClient connects to a hosted session and stays until interrupted or the
// host goes away.
func runClient(ctx context.Context, cfg config.Config) {
	w := world.New(world.DefaultCatalog())

	done := make(chan struct{})
	engine := relay.New(relay.Options{
		IsHost:  false,
		Sim:     w,
		Persist: w,
		Catalog: w.Catalog(),
		Self:    roster.NewUser(cfg.Username),
		Roster:  roster.New(),
		UI:      &consoleUI{onExit: func() { close(done) }},
	})
	engine.Start()
	defer engine.Shutdown()

	conn, err := session.Connect(ctx, session.ClientConfig{
		RendezvousURL: cfg.RendezvousURL,
		SessionID:     cfg.SessionID,
	})
	if err != nil {
		util.LogError("failed to join session: %v", err)
		os.Exit(1)
	}

	engine.Attach(conn)
	conn.Start()

	util.StartStatsReporter(ctx)
	go chatLoop(ctx, engine)

	select {
	case <-ctx.Done():
	case <-done:
	case <-conn.Done():
	}
}

// chatLoop forwards console lines to the session as chat messages. Blank
// lines are skipped.
func chatLoop(ctx context.Context, engine *relay.Engine) {
	for ctx.Err() == nil {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("chat").
			Show()

		if text := strings.TrimSpace(raw); text != "" {
			engine.SendChat(text)
		}
	}
}

// ---------------------------------------------------------------------------
// Console UI
// ---------------------------------------------------------------------------

// consoleUI renders session surfaces onto the terminal.
type consoleUI struct {
	onExit func()
}

func (u *consoleUI) ShowDialog(title, content string, buttons ...string) {
	pterm.DefaultBox.WithTitle(title).Println(content)
}

func (u *consoleUI) ShowNotification(text string, severity session.Severity) {
	switch severity {
	case session.SeverityError:
		util.LogError("%s", text)
	case session.SeverityWarning:
		util.LogWarning("%s", text)
	default:
		util.LogInfo("%s", text)
	}
}

func (u *consoleUI) NavigateToEntry(errMsg string) {
	if errMsg != "" {
		util.LogWarning("disconnected: %s", errMsg)
	}
	if u.onExit != nil {
		u.onExit()
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeRendezvousURL validates and normalizes a raw rendezvous URL. Only
// the scheme and host are kept; the session path is derived elsewhere.
func normalizeRendezvousURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid rendezvous URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host), nil
}

// askText prompts until a non-empty value is entered.
func askText(prompt string) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		if v := strings.TrimSpace(raw); v != "" {
			pterm.Println()
			return v
		}

		util.LogWarning("a value is required")
		pterm.Println()
	}
}

// askURL prompts for a valid rendezvous URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Rendezvous URL (e.g. wss://***.asse.devtunnels.ms)").
			Show()

		u, err := normalizeRendezvousURL(raw)
		if err == nil {
			pterm.Println()
			return u
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
