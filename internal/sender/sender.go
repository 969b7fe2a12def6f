package sender

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/madmappersoftware/Ponk/internal/protocol"
	"github.com/madmappersoftware/Ponk/internal/transport"
	"github.com/madmappersoftware/Ponk/internal/util"
)

// Sender is one PONK stream. It owns the frame counter for its sender
// identifier, so frames from one Sender are numbered monotonically
// (mod 256) even when Send is called from several goroutines.
type Sender struct {
	conn       transport.Conn
	dest       net.Addr
	id         uint32
	maxPayload int

	mu          sync.Mutex
	name        string
	frameNumber uint8
}

// Options configures a Sender.
type Options struct {
	SenderID   uint32
	SenderName string
	MaxPayload int      // bytes of body per datagram; 0 = protocol.MaxChunkPayload
	Dest       net.Addr // nil = the transport's default destination
}

// New creates a Sender writing to conn.
func New(conn transport.Conn, opts Options) *Sender {
	return &Sender{
		conn:       conn,
		dest:       opts.Dest,
		id:         opts.SenderID,
		maxPayload: opts.MaxPayload,
		name:       protocol.TruncateName(opts.SenderName),
	}
}

// ID returns the sender identifier.
func (s *Sender) ID() uint32 { return s.id }

// Rename changes the display name. Receivers keep tracking the stream by
// its identifier.
func (s *Sender) Rename(name string) {
	s.mu.Lock()
	s.name = protocol.TruncateName(name)
	s.mu.Unlock()
}

// Send encodes paths as the next frame and writes every chunk. The frame
// number advances even if the frame cannot be encoded or some chunks are
// lost, so receivers never confuse two different frames.
//
// A congested transport drops chunks silently (the receiver discards the
// partial frame); any other transport error is returned.
func (s *Sender) Send(paths []protocol.Path) (uint8, error) {
	s.mu.Lock()
	frameNumber := s.frameNumber
	s.frameNumber++
	name := s.name
	s.mu.Unlock()

	chunks, err := EncodeFrame(s.id, name, frameNumber, paths, s.maxPayload)
	if err != nil {
		return frameNumber, err
	}

	for _, c := range chunks {
		data := protocol.EncodeChunk(c)
		err := s.conn.Send(s.dest, data)
		if errors.Is(err, transport.ErrCongested) {
			util.LogDebug("[%08x] frame %d chunk %d/%d dropped: %v",
				s.id, frameNumber, c.Header.ChunkNumber+1, c.Header.ChunkCount, err)
			continue
		}
		if err != nil {
			return frameNumber, fmt.Errorf("send frame %d chunk %d: %w", frameNumber, c.Header.ChunkNumber, err)
		}
		util.Stats.AddSentChunk(len(data))
	}

	util.Stats.AddSentFrame()
	return frameNumber, nil
}
