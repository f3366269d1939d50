package session

import (
	"context"
	"fmt"

	"github.com/1ureka/factorysync/internal/signaling"
	"github.com/1ureka/factorysync/internal/transport"
	"github.com/1ureka/factorysync/internal/util"
)

// ClientConfig parameterizes joining a hosted session.
type ClientConfig struct {
	RendezvousURL string
	SessionID     string
}

// Connect joins a session as a client and returns the single ready
// connection to the host. A failure here is recoverable by the caller
// (surface it, go back to the entry screen); there is no automatic retry.
//
// The caller must set the connection's handler and then call Start.
func Connect(ctx context.Context, cfg ClientConfig) (*Connection, error) {
	rz, err := signaling.Dial(ctx, cfg.RendezvousURL, cfg.SessionID)
	if err != nil {
		return nil, err
	}
	defer rz.Close()

	if err := rz.Join(cfg.SessionID); err != nil {
		return nil, fmt.Errorf("join session: %w", err)
	}

	tr, err := transport.NewTransport(ctx)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	// Pump rendezvous messages into the exchange. The goroutine exits when
	// rz is closed (deferred above).
	incoming := make(chan signaling.Message, pendingBufferSize)
	go func() {
		defer close(incoming)
		for {
			msg, err := rz.Read()
			if err != nil {
				return
			}
			select {
			case incoming <- msg:
			default:
				util.LogDebug("signaling inbox full, dropping %s", msg.Type)
			}
		}
	}()

	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	if err := signaling.ExchangeAsClient(hsCtx, tr, rz.Send, incoming); err != nil {
		tr.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	util.LogInfo("connected to host of session %q", cfg.SessionID)
	return NewConnection(ctx, "host", tr), nil
}
