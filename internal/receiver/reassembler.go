package receiver

import (
	"errors"
	"sync"
	"time"

	"github.com/madmappersoftware/Ponk/internal/protocol"
)

// Reassembler collects chunks into frames, one independent state machine
// per sender identifier. A sender is either idle or accumulating exactly
// one frame; a chunk with a different frame number discards the partial
// frame and starts over.
//
// The receive loop is the only caller in practice, but Feed and Sweep are
// guarded by a mutex so a Reassembler may be shared between sockets.
type Reassembler struct {
	// StaleAfter drops a partial frame that has not seen a chunk for this
	// long. Zero keeps partial frames until superseded.
	StaleAfter time.Duration

	mu      sync.Mutex
	senders map[uint32]*assembly
}

// assembly is the state of one sender. Chunk storage is sized to the
// current frame's chunk count and allocated fresh for every frame.
type assembly struct {
	active      bool
	frameNumber uint8
	chunkCount  uint8
	checksum    uint32
	chunks      [][]byte // nil entry = not received
	missing     int
	updated     time.Time
}

// State is a snapshot of one sender's reassembly progress.
type State struct {
	Active      bool
	FrameNumber uint8
	ChunkCount  uint8
	Checksum    uint32
	Received    int
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{senders: make(map[uint32]*assembly)}
}

// Feed processes one chunk received at now.
//
// It returns the verified frame body once the last missing chunk arrives.
// A non-nil error describes what went wrong with this chunk or frame; it
// may accompany a completed body when the anomaly was worked around (for
// example a duplicate chunk that completed the frame).
func (r *Reassembler) Feed(c protocol.Chunk, now time.Time) ([]byte, error) {
	h := c.Header
	fail := func(errs ...error) error {
		if err := errors.Join(errs...); err != nil {
			return &SenderError{SenderID: h.SenderID, FrameNumber: h.FrameNumber, Err: err}
		}
		return nil
	}

	// Malformed chunks are dropped before they can touch any state.
	if h.ChunkCount == 0 {
		return nil, fail(ErrZeroChunkCount)
	}
	if h.ChunkNumber >= h.ChunkCount {
		return nil, fail(ErrChunkOutOfRange)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.senders[h.SenderID]
	if !ok {
		a = &assembly{}
		r.senders[h.SenderID] = a
	}

	var anomalies []error

	if a.active && r.StaleAfter > 0 && now.Sub(a.updated) > r.StaleAfter {
		a.reset()
		anomalies = append(anomalies, ErrFrameStale)
	}

	switch {
	case !a.active || a.frameNumber != h.FrameNumber:
		if a.active {
			anomalies = append(anomalies, ErrFrameSuperseded)
		}
		a.start(h)

	case a.chunkCount != h.ChunkCount || a.checksum != h.Checksum:
		// First chunk wins: keep the recorded count and checksum.
		anomalies = append(anomalies, ErrInconsistent)
		if h.ChunkNumber >= a.chunkCount {
			anomalies = append(anomalies, ErrChunkOutOfRange)
			return nil, fail(anomalies...)
		}
	}

	if a.chunks[h.ChunkNumber] != nil {
		anomalies = append(anomalies, ErrDuplicateChunk)
	} else {
		a.missing--
	}
	// Last write wins. A non-nil empty slice still marks the chunk received.
	a.chunks[h.ChunkNumber] = append(make([]byte, 0, len(c.Payload)), c.Payload...)
	a.updated = now

	if a.missing > 0 {
		return nil, fail(anomalies...)
	}

	body := a.concat()
	checksum := a.checksum
	a.reset()

	if protocol.Checksum(body) != checksum {
		anomalies = append(anomalies, ErrChecksumMismatch)
		return nil, fail(anomalies...)
	}
	return body, fail(anomalies...)
}

// Sweep drops partial frames idle for longer than StaleAfter and returns
// the affected sender identifiers.
func (r *Reassembler) Sweep(now time.Time) []uint32 {
	if r.StaleAfter <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []uint32
	for id, a := range r.senders {
		if a.active && now.Sub(a.updated) > r.StaleAfter {
			a.reset()
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// Forget removes all state for a sender.
func (r *Reassembler) Forget(senderID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.senders, senderID)
}

// State returns the progress of one sender.
func (r *Reassembler) State(senderID uint32) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.senders[senderID]
	if !ok {
		return State{}, false
	}
	return State{
		Active:      a.active,
		FrameNumber: a.frameNumber,
		ChunkCount:  a.chunkCount,
		Checksum:    a.checksum,
		Received:    int(a.chunkCount) - a.missing,
	}, true
}

func (a *assembly) start(h protocol.Header) {
	a.active = true
	a.frameNumber = h.FrameNumber
	a.chunkCount = h.ChunkCount
	a.checksum = h.Checksum
	a.chunks = make([][]byte, h.ChunkCount)
	a.missing = int(h.ChunkCount)
}

func (a *assembly) reset() {
	*a = assembly{}
}

// concat joins the chunk payloads in index order.
func (a *assembly) concat() []byte {
	size := 0
	for _, c := range a.chunks {
		size += len(c)
	}
	body := make([]byte, 0, size)
	for _, c := range a.chunks {
		body = append(body, c...)
	}
	return body
}
