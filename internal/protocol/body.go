package protocol

import (
	"encoding/binary"
	"io"
	"iter"
	"math"
)

// EncodeFrameBody serializes paths back to back:
//
//	[format][metaCount][metaCount x (key[8], value f32)][pointCount u16][points]
//
// It fails if a path uses an unknown format or overflows the metadata or
// point count fields.
func EncodeFrameBody(paths []Path) ([]byte, error) {
	size := 0
	for i, p := range paths {
		if len(p.MetaData) > MaxMetaData {
			return nil, &EncodeError{Path: i, Err: ErrTooManyMetaData}
		}
		if len(p.Points) > MaxPoints {
			return nil, &EncodeError{Path: i, Err: ErrTooManyPoints}
		}
		n, ok := p.encodedSize()
		if !ok {
			return nil, &EncodeError{Path: i, Err: ErrUnknownFormat}
		}
		size += n
	}

	buf := make([]byte, size)
	off := 0
	for _, p := range paths {
		buf[off] = p.Format
		buf[off+1] = uint8(len(p.MetaData))
		off += 2

		for _, m := range p.MetaData {
			copy(buf[off:off+MetaKeySize], m.Key[:])
			binary.LittleEndian.PutUint32(buf[off+MetaKeySize:], math.Float32bits(m.Value))
			off += MetaKeySize + 4
		}

		binary.LittleEndian.PutUint16(buf[off:], uint16(len(p.Points)))
		off += 2

		bpp, _ := BytesPerPoint(p.Format)
		for _, pt := range p.Points {
			putPoint(buf[off:], p.Format, pt)
			off += bpp
		}
	}
	return buf, nil
}

// PathDecoder walks a reassembled frame body one path at a time. It is a
// single forward scan: every path is sized by its own format, metadata
// count and point count fields, so there is no length table and no way to
// skip a broken path. Once Next returns an error it keeps returning it.
type PathDecoder struct {
	body  []byte
	off   int
	index int
	err   error
}

// NewPathDecoder returns a decoder over body. body is not copied.
func NewPathDecoder(body []byte) *PathDecoder {
	return &PathDecoder{body: body}
}

// Next decodes the next path. It returns io.EOF once the body is
// exhausted, or a *DecodeError if the remaining bytes are malformed.
func (d *PathDecoder) Next() (Path, error) {
	if d.err != nil {
		return Path{}, d.err
	}
	if d.off >= len(d.body) {
		d.err = io.EOF
		return Path{}, d.err
	}

	p, err := d.decodePath()
	if err != nil {
		d.err = err
		return Path{}, err
	}
	d.index++
	return p, nil
}

func (d *PathDecoder) fail(at int, err error) error {
	return &DecodeError{Path: d.index, Offset: at, Err: err}
}

func (d *PathDecoder) decodePath() (Path, error) {
	body, off := d.body, d.off

	if len(body)-off < 2 {
		return Path{}, d.fail(off, ErrTruncated)
	}
	p := Path{Format: body[off]}
	bpp, ok := BytesPerPoint(p.Format)
	if !ok {
		return Path{}, d.fail(off, ErrUnknownFormat)
	}
	metaCount := int(body[off+1])
	off += 2

	if len(body)-off < metaCount*(MetaKeySize+4) {
		return Path{}, d.fail(off, ErrTruncated)
	}
	if metaCount > 0 {
		p.MetaData = make([]MetaData, metaCount)
		for i := range p.MetaData {
			copy(p.MetaData[i].Key[:], body[off:off+MetaKeySize])
			p.MetaData[i].Value = math.Float32frombits(binary.LittleEndian.Uint32(body[off+MetaKeySize:]))
			off += MetaKeySize + 4
		}
	}

	if len(body)-off < 2 {
		return Path{}, d.fail(off, ErrTruncated)
	}
	pointCount := int(binary.LittleEndian.Uint16(body[off:]))
	off += 2

	if len(body)-off < pointCount*bpp {
		return Path{}, d.fail(off, ErrTruncated)
	}
	if pointCount > 0 {
		p.Points = make([]Point, pointCount)
		for i := range p.Points {
			p.Points[i] = readPoint(body[off:], p.Format)
			off += bpp
		}
	}

	d.off = off
	return p, nil
}

// DecodeFrameBody returns a lazy sequence over the paths in body. The
// sequence ends after the last path, or after yielding a single non-nil
// error. The sequence is single-use: ranging over it again never restarts
// from the first path.
func DecodeFrameBody(body []byte) iter.Seq2[Path, error] {
	d := NewPathDecoder(body)
	return func(yield func(Path, error) bool) {
		for {
			p, err := d.Next()
			if err == io.EOF {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

// DecodePaths decodes a whole frame body. A frame is all or nothing: any
// malformed path discards the paths decoded before it as well.
func DecodePaths(body []byte) ([]Path, error) {
	var paths []Path
	for p, err := range DecodeFrameBody(body) {
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
