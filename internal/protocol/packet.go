// Package protocol defines the PONK (Paths Over NetworK) wire format: the
// fixed chunk header, the per-path body and the two point encodings.
//
// Everything here is pure encode/decode. No I/O, no state.
package protocol

// Protocol identification.
const (
	Magic          = "PONK-UDP" // fixed 8-byte tag at the start of every datagram
	Version  uint8 = 0          // only protocol version this package speaks
	MagicLen       = len(Magic)
)

// Point data formats, selected per path by the format byte.
const (
	FormatXYRGBU16   uint8 = 0 // X,Y,R,G,B as uint16
	FormatXYF32RGBU8 uint8 = 1 // X,Y as float32, R,G,B as uint8
)

// Wire limits.
const (
	SenderNameSize  = 32    // senderName field, UTF-8, NUL padded
	MetaKeySize     = 8     // metadata key, EightCC
	MaxChunks       = 255   // chunkCount is a single byte
	MaxMetaData     = 255   // metadataCount is a single byte
	MaxPoints       = 65535 // pointCount is a little-endian uint16
	MaxChunkPayload = 8192  // reference payload bytes per datagram
	DefaultPort     = 5583
)

// HeaderSize is the fixed header size:
// Magic(8) + Version(1) + SenderID(4) + SenderName(32) +
// FrameNumber(1) + ChunkCount(1) + ChunkNumber(1) + Checksum(4).
const HeaderSize = MagicLen + 1 + 4 + SenderNameSize + 1 + 1 + 1 + 4

// Header offsets.
const (
	offVersion     = MagicLen
	offSenderID    = offVersion + 1
	offSenderName  = offSenderID + 4
	offFrameNumber = offSenderName + SenderNameSize
	offChunkCount  = offFrameNumber + 1
	offChunkNumber = offChunkCount + 1
	offChecksum    = offChunkNumber + 1
)

// Header is the per-datagram header. Every chunk of a frame carries an
// identical copy, except for ChunkNumber.
type Header struct {
	Version     uint8
	SenderID    uint32 // stable across sender renames
	SenderName  string // display only, truncated to SenderNameSize bytes
	FrameNumber uint8  // wraps mod 256
	ChunkCount  uint8  // total chunks in the frame, 1..255
	ChunkNumber uint8  // 0-based index of this chunk
	Checksum    uint32 // additive checksum over the whole frame body
}

// Chunk is one datagram: a header plus a slice of the frame body.
type Chunk struct {
	Header  Header
	Payload []byte
}

// BytesPerPoint returns the encoded size of one point in the given format.
func BytesPerPoint(format uint8) (int, bool) {
	switch format {
	case FormatXYRGBU16:
		return 5 * 2, true
	case FormatXYF32RGBU8:
		return 2*4 + 3, true
	default:
		return 0, false
	}
}

// Checksum is the frame "CRC" carried in the header: the sum of all body
// bytes truncated to 32 bits. It is order-insensitive and trivially
// forgeable; it only catches gross transmission damage.
func Checksum(body []byte) uint32 {
	var sum uint32
	for _, b := range body {
		sum += uint32(b)
	}
	return sum
}
