// Package sender turns path lists into PONK datagrams: it serializes a
// frame, checksums it and cuts it into numbered chunks.
package sender

import (
	"errors"
	"fmt"

	"github.com/madmappersoftware/Ponk/internal/protocol"
)

// ErrProtocolLimit is returned when a frame would need more than
// protocol.MaxChunks chunks. The caller has to send fewer points.
var ErrProtocolLimit = errors.New("sender: frame needs more than 255 chunks")

// EncodeFrame serializes paths and splits the body into chunks of at most
// maxPayload bytes. Every chunk carries the same header apart from its
// chunk number. An empty frame still produces one (empty) chunk.
// maxPayload <= 0 selects protocol.MaxChunkPayload.
func EncodeFrame(senderID uint32, senderName string, frameNumber uint8, paths []protocol.Path, maxPayload int) ([]protocol.Chunk, error) {
	if maxPayload <= 0 {
		maxPayload = protocol.MaxChunkPayload
	}

	body, err := protocol.EncodeFrameBody(paths)
	if err != nil {
		return nil, err
	}

	chunkCount := (len(body) + maxPayload - 1) / maxPayload
	if chunkCount == 0 {
		chunkCount = 1
	}
	if chunkCount > protocol.MaxChunks {
		return nil, fmt.Errorf("%w: %d bytes at %d bytes per chunk", ErrProtocolLimit, len(body), maxPayload)
	}

	header := protocol.Header{
		Version:     protocol.Version,
		SenderID:    senderID,
		SenderName:  protocol.TruncateName(senderName),
		FrameNumber: frameNumber,
		ChunkCount:  uint8(chunkCount),
		Checksum:    protocol.Checksum(body),
	}

	chunks := make([]protocol.Chunk, chunkCount)
	for i := range chunks {
		start := i * maxPayload
		end := min(start+maxPayload, len(body))

		chunks[i].Header = header
		chunks[i].Header.ChunkNumber = uint8(i)
		chunks[i].Payload = body[start:end]
	}
	return chunks, nil
}
