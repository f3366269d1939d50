package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide session counter.
var Stats = &stats{}

type stats struct {
	PeersJoined atomic.Int64 // cumulative count of peers joined since process start
	PeersLeft   atomic.Int64 // cumulative count of peers left since process start
	PacketsSent atomic.Int64 // cumulative packets written to DataChannels
	PacketsRecv atomic.Int64 // cumulative packets read  from DataChannels
	BytesSent   atomic.Int64 // cumulative bytes written to DataChannels
	BytesRecv   atomic.Int64 // cumulative bytes read  from DataChannels
}

func (s *stats) AddPeer()    { s.PeersJoined.Add(1) }
func (s *stats) RemovePeer() { s.PeersLeft.Add(1) }

func (s *stats) AddSent(n int) {
	s.PacketsSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddRecv(n int) {
	s.PacketsRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs session statistics
// every 10 seconds. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevJoined, prevLeft int64
		for {
			select {
			case <-ticker.C:
				joined := Stats.PeersJoined.Load()
				left := Stats.PeersLeft.Load()
				sent := Stats.PacketsSent.Load()
				recv := Stats.PacketsRecv.Load()

				outP := sent - prevSent
				inP := recv - prevRecv
				inPeers := joined - prevJoined
				outPeers := left - prevLeft

				if inP > 0 || outP > 0 || inPeers > 0 || outPeers > 0 {
					pterm.DefaultLogger.Info(formatStats(outP, inP, inPeers, outPeers))
				}

				prevSent = sent
				prevRecv = recv
				prevJoined = joined
				prevLeft = left

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(outP, inP, inPeers, outPeers int64) string {
	return fmt.Sprintf("Out: %4d pkt/10s | In: %4d pkt/10s | Peers: %2d↑ %2d↓",
		outP, inP, inPeers, outPeers)
}
