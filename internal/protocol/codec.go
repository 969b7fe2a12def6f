package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// EncodeHeader serializes h into a HeaderSize byte slice. The magic and
// h.Version are written as given; callers normally leave Version at zero.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	putHeader(buf, h)
	return buf
}

func putHeader(buf []byte, h Header) {
	copy(buf[:MagicLen], Magic)
	buf[offVersion] = h.Version
	binary.LittleEndian.PutUint32(buf[offSenderID:], h.SenderID)
	copy(buf[offSenderName:offFrameNumber], TruncateName(h.SenderName))
	buf[offFrameNumber] = h.FrameNumber
	buf[offChunkCount] = h.ChunkCount
	buf[offChunkNumber] = h.ChunkNumber
	binary.LittleEndian.PutUint32(buf[offChecksum:], h.Checksum)
}

// DecodeHeader parses the fixed header at the start of data. It checks the
// magic but not the version, so callers can report incompatible senders.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes (need at least %d)", ErrShortHeader, len(data), HeaderSize)
	}
	if string(data[:MagicLen]) != Magic {
		return Header{}, ErrInvalidMagic
	}
	name := data[offSenderName:offFrameNumber]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Header{
		Version:     data[offVersion],
		SenderID:    binary.LittleEndian.Uint32(data[offSenderID:]),
		SenderName:  string(name),
		FrameNumber: data[offFrameNumber],
		ChunkCount:  data[offChunkCount],
		ChunkNumber: data[offChunkNumber],
		Checksum:    binary.LittleEndian.Uint32(data[offChecksum:]),
	}, nil
}

// EncodeChunk serializes a chunk into a datagram.
func EncodeChunk(c Chunk) []byte {
	buf := make([]byte, HeaderSize+len(c.Payload))
	putHeader(buf, c.Header)
	copy(buf[HeaderSize:], c.Payload)
	return buf
}

// DecodeChunk parses a datagram. The payload is copied, so data may be
// reused by the caller.
func DecodeChunk(data []byte) (Chunk, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return Chunk{}, err
	}
	payload := make([]byte, len(data)-HeaderSize)
	copy(payload, data[HeaderSize:])
	return Chunk{Header: h, Payload: payload}, nil
}

// TruncateName cuts name to at most SenderNameSize bytes without splitting
// a UTF-8 sequence.
func TruncateName(name string) string {
	if len(name) <= SenderNameSize {
		return name
	}
	cut := SenderNameSize
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
