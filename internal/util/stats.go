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

// Stats is the process-wide PONK traffic counter.
var Stats = &stats{}

type stats struct {
	FramesSent      atomic.Int64 // frames handed to the transport
	FramesRecv      atomic.Int64 // frames reassembled, verified and decoded
	FramesDiscarded atomic.Int64 // complete or superseded frames thrown away
	ChunksSent      atomic.Int64
	ChunksRecv      atomic.Int64
	ChunksDropped   atomic.Int64 // datagrams rejected before reassembly
	BytesSent       atomic.Int64 // datagram bytes written to the transport
	BytesRecv       atomic.Int64 // datagram bytes read from the transport
}

func (s *stats) AddSentChunk(n int) {
	s.ChunksSent.Add(1)
	s.BytesSent.Add(int64(n))
}

func (s *stats) AddRecvChunk(n int) {
	s.ChunksRecv.Add(1)
	s.BytesRecv.Add(int64(n))
}

func (s *stats) AddSentFrame()      { s.FramesSent.Add(1) }
func (s *stats) AddRecvFrame()      { s.FramesRecv.Add(1) }
func (s *stats) AddDiscardedFrame() { s.FramesDiscarded.Add(1) }
func (s *stats) AddDroppedChunk()   { s.ChunksDropped.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

const reportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs traffic statistics
// every 10 seconds while there is traffic. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()

		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := takeSnapshot()
				if line, ok := formatStats(cur, prev, reportInterval.Seconds()); ok {
					pterm.DefaultLogger.Info(line)
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

type snapshot struct {
	framesSent, framesRecv, framesDiscarded int64
	chunksDropped                           int64
	bytesSent, bytesRecv                    int64
}

func takeSnapshot() snapshot {
	return snapshot{
		framesSent:      Stats.FramesSent.Load(),
		framesRecv:      Stats.FramesRecv.Load(),
		framesDiscarded: Stats.FramesDiscarded.Load(),
		chunksDropped:   Stats.ChunksDropped.Load(),
		bytesSent:       Stats.BytesSent.Load(),
		bytesRecv:       Stats.BytesRecv.Load(),
	}
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats renders the delta between two snapshots. It reports false
// when nothing happened during the interval.
func formatStats(cur, prev snapshot, seconds float64) (string, bool) {
	d := snapshot{
		framesSent:      cur.framesSent - prev.framesSent,
		framesRecv:      cur.framesRecv - prev.framesRecv,
		framesDiscarded: cur.framesDiscarded - prev.framesDiscarded,
		chunksDropped:   cur.chunksDropped - prev.chunksDropped,
		bytesSent:       cur.bytesSent - prev.bytesSent,
		bytesRecv:       cur.bytesRecv - prev.bytesRecv,
	}
	if d == (snapshot{}) {
		return "", false
	}

	return fmt.Sprintf("Out: %s/s %5.1f fps | In: %s/s %5.1f fps | Lost: %d frames, %d chunks",
		formatBytes(float64(d.bytesSent)/seconds),
		float64(d.framesSent)/seconds,
		formatBytes(float64(d.bytesRecv)/seconds),
		float64(d.framesRecv)/seconds,
		d.framesDiscarded,
		d.chunksDropped,
	), true
}
