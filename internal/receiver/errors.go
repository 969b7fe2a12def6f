package receiver

import (
	"errors"
	"fmt"
)

// Chunk and frame anomalies. None of them is fatal: the receive loop logs
// them and moves on to the next datagram.
var (
	ErrZeroChunkCount   = errors.New("receiver: chunk count is zero")
	ErrChunkOutOfRange  = errors.New("receiver: chunk number beyond chunk count")
	ErrInconsistent     = errors.New("receiver: chunk count or checksum changed mid-frame")
	ErrDuplicateChunk   = errors.New("receiver: chunk received twice")
	ErrChecksumMismatch = errors.New("receiver: frame checksum mismatch")
	ErrFrameSuperseded  = errors.New("receiver: incomplete frame superseded")
	ErrFrameStale       = errors.New("receiver: incomplete frame timed out")
)

// SenderError attaches the sender and frame a problem was seen on.
type SenderError struct {
	SenderID    uint32
	FrameNumber uint8
	Err         error
}

func (e *SenderError) Error() string {
	return fmt.Sprintf("[%08x] frame %d: %v", e.SenderID, e.FrameNumber, e.Err)
}

func (e *SenderError) Unwrap() error { return e.Err }
