// Package receiver turns PONK datagrams back into frames. It validates
// headers, reassembles chunks per sender, verifies the frame checksum and
// decodes the paths. Every failure is local: the loop logs it and keeps
// reading.
package receiver

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/madmappersoftware/Ponk/internal/protocol"
	"github.com/madmappersoftware/Ponk/internal/transport"
	"github.com/madmappersoftware/Ponk/internal/util"
)

// Tuning constants.
const (
	defaultPollInterval = time.Millisecond
	sweepInterval       = time.Second
)

// Frame is one fully reassembled, verified and decoded frame.
type Frame struct {
	SenderID    uint32
	SenderName  string
	FrameNumber uint8
	Source      net.Addr
	Paths       []protocol.Path
}

// SenderInfo describes a sender seen on the network. Senders are keyed by
// identifier; the name is display-only and follows renames.
type SenderInfo struct {
	ID       uint32
	Name     string
	Source   net.Addr
	Version  uint8
	LastSeen time.Time
	Frames   int64
}

// Options configures a Receiver. All callbacks are invoked on the goroutine
// calling Poll or Run.
type Options struct {
	// PollInterval is how long Run sleeps when no datagram is waiting.
	PollInterval time.Duration

	// StaleAfter drops partial frames from a stalled sender. Zero disables.
	StaleAfter time.Duration

	// OnFrame receives every delivered frame.
	OnFrame func(Frame)

	// OnIncompatible is called once per sender identifier and version when
	// a sender speaks an unsupported protocol version.
	OnIncompatible func(info SenderInfo)

	// OnError receives every recoverable error.
	OnError func(error)
}

// Receiver runs the single-threaded receive loop over one transport.
type Receiver struct {
	conn  transport.Conn
	opts  Options
	reasm *Reassembler
	buf   []byte

	now       func() time.Time
	lastSweep time.Time

	mu           sync.Mutex
	senders      map[uint32]*SenderInfo
	incompatible map[uint32]uint8 // last version reported per sender
}

// New creates a Receiver reading from conn.
func New(conn transport.Conn, opts Options) *Receiver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	reasm := NewReassembler()
	reasm.StaleAfter = opts.StaleAfter

	return &Receiver{
		conn:         conn,
		opts:         opts,
		reasm:        reasm,
		buf:          make([]byte, transport.MaxDatagramSize),
		now:          time.Now,
		senders:      make(map[uint32]*SenderInfo),
		incompatible: make(map[uint32]uint8),
	}
}

// Run polls until ctx is cancelled or the transport fails. Nothing a
// sender does can stop it.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		got, err := r.Poll()
		if err != nil {
			return err
		}
		if !got {
			select {
			case <-time.After(r.opts.PollInterval):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Poll handles at most one waiting datagram. It reports whether one was
// read; the error is non-nil only when the transport itself failed.
func (r *Receiver) Poll() (bool, error) {
	r.maybeSweep()

	n, src, err := r.conn.Receive(r.buf)
	if errors.Is(err, transport.ErrNoData) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	r.HandleDatagram(src, r.buf[:n])
	return true, nil
}

// HandleDatagram processes one raw datagram from src. Transports that push
// datagrams instead of being polled can call it directly.
func (r *Receiver) HandleDatagram(src net.Addr, data []byte) {
	util.Stats.AddRecvChunk(len(data))

	chunk, err := protocol.DecodeChunk(data)
	if err != nil {
		util.Stats.AddDroppedChunk()
		r.report(err)
		return
	}
	h := chunk.Header
	r.touchSender(h, src)

	if h.Version != protocol.Version {
		util.Stats.AddDroppedChunk()
		r.incompatibleSender(h)
		return
	}

	body, err := r.reasm.Feed(chunk, r.now())
	if err != nil {
		r.account(err)
		r.report(err)
	}
	if body == nil {
		return
	}

	paths, err := protocol.DecodePaths(body)
	if err != nil {
		util.Stats.AddDiscardedFrame()
		r.report(&SenderError{SenderID: h.SenderID, FrameNumber: h.FrameNumber, Err: err})
		return
	}

	util.Stats.AddRecvFrame()
	r.mu.Lock()
	r.senders[h.SenderID].Frames++
	r.mu.Unlock()

	if r.opts.OnFrame != nil {
		r.opts.OnFrame(Frame{
			SenderID:    h.SenderID,
			SenderName:  h.SenderName,
			FrameNumber: h.FrameNumber,
			Source:      src,
			Paths:       paths,
		})
	}
}

// Senders lists every sender seen so far, ordered by identifier.
func (r *Receiver) Senders() []SenderInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SenderInfo, 0, len(r.senders))
	for _, info := range r.senders {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// State returns the reassembly progress of one sender.
func (r *Receiver) State(senderID uint32) (State, bool) {
	return r.reasm.State(senderID)
}

func (r *Receiver) touchSender(h protocol.Header, src net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.senders[h.SenderID]
	if !ok {
		info = &SenderInfo{ID: h.SenderID}
		r.senders[h.SenderID] = info
		util.LogInfo("[%08x] new sender %q from %s", h.SenderID, h.SenderName, src)
	} else if info.Name != h.SenderName {
		util.LogInfo("[%08x] sender renamed %q -> %q", h.SenderID, info.Name, h.SenderName)
	}
	info.Name = h.SenderName
	info.Source = src
	info.Version = h.Version
	info.LastSeen = r.now()
}

// incompatibleSender reports an unsupported version once per sender and
// version, so a misconfigured sender does not flood the log.
func (r *Receiver) incompatibleSender(h protocol.Header) {
	r.mu.Lock()
	last, seen := r.incompatible[h.SenderID]
	r.incompatible[h.SenderID] = h.Version
	info := *r.senders[h.SenderID]
	r.mu.Unlock()

	if seen && last == h.Version {
		return
	}

	util.LogWarning("[%08x] sender %q uses protocol version %d, only version %d is supported",
		h.SenderID, h.SenderName, h.Version, protocol.Version)
	r.report(&SenderError{SenderID: h.SenderID, FrameNumber: h.FrameNumber, Err: protocol.ErrUnsupportedVersion})
	if r.opts.OnIncompatible != nil {
		r.opts.OnIncompatible(info)
	}
}

// account updates the drop counters for a reassembly error.
func (r *Receiver) account(err error) {
	if errors.Is(err, ErrZeroChunkCount) || errors.Is(err, ErrChunkOutOfRange) {
		util.Stats.AddDroppedChunk()
	}
	if errors.Is(err, ErrFrameSuperseded) || errors.Is(err, ErrFrameStale) || errors.Is(err, ErrChecksumMismatch) {
		util.Stats.AddDiscardedFrame()
	}
}

func (r *Receiver) report(err error) {
	switch {
	case errors.Is(err, ErrFrameSuperseded), errors.Is(err, ErrFrameStale):
		util.LogDebug("%v", err)
	default:
		util.LogWarning("%v", err)
	}
	if r.opts.OnError != nil {
		r.opts.OnError(err)
	}
}

func (r *Receiver) maybeSweep() {
	if r.opts.StaleAfter <= 0 {
		return
	}
	now := r.now()
	if now.Sub(r.lastSweep) < sweepInterval {
		return
	}
	r.lastSweep = now
	for _, id := range r.reasm.Sweep(now) {
		util.Stats.AddDiscardedFrame()
		util.LogDebug("[%08x] dropped stalled partial frame", id)
	}
}
