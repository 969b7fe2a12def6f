package protocol

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Point is one colored 2D position. X and Y are nominally in [-1, 1],
// R, G and B are intensities in [0, 1].
type Point struct {
	X, Y    float32
	R, G, B float32
}

// MetaData is one key/value hint attached to a path. The key is an
// EightCC such as "PATHNUMB" or "MAXSPEED". The value is always a float32
// on the wire; Bool and Int apply the usual conventions on top of it.
type MetaData struct {
	Key   [MetaKeySize]byte
	Value float32
}

// NewMetaData builds an entry from a string key, truncated or NUL padded
// to MetaKeySize bytes.
func NewMetaData(key string, value float32) MetaData {
	var m MetaData
	copy(m.Key[:], key)
	m.Value = value
	return m
}

// Name returns the key with trailing NUL padding removed.
func (m MetaData) Name() string {
	return string(bytes.TrimRight(m.Key[:], "\x00"))
}

// Bool treats any non-zero value as true.
func (m MetaData) Bool() bool { return m.Value != 0 }

// Int rounds the value to the nearest integer.
func (m MetaData) Int() int { return int(math.Round(float64(m.Value))) }

// Path is one polyline. A closed shape repeats its first point at the end.
// MetaData keeps wire order; duplicate keys are allowed.
type Path struct {
	Format   uint8
	MetaData []MetaData
	Points   []Point
}

// Meta returns the first entry with the given key.
func (p Path) Meta(key string) (MetaData, bool) {
	for _, m := range p.MetaData {
		if m.Name() == key {
			return m, true
		}
	}
	return MetaData{}, false
}

// encodedSize returns the number of body bytes p occupies on the wire.
func (p Path) encodedSize() (int, bool) {
	bpp, ok := BytesPerPoint(p.Format)
	if !ok {
		return 0, false
	}
	return 1 + 1 + len(p.MetaData)*(MetaKeySize+4) + 2 + len(p.Points)*bpp, true
}

// ---------------------------------------------------------------------------
// Point encodings
// ---------------------------------------------------------------------------

// putPoint writes pt at buf[0:] in the given format. buf must be large enough.
func putPoint(buf []byte, format uint8, pt Point) {
	switch format {
	case FormatXYRGBU16:
		binary.LittleEndian.PutUint16(buf[0:], unitToU16(pt.X))
		binary.LittleEndian.PutUint16(buf[2:], unitToU16(pt.Y))
		binary.LittleEndian.PutUint16(buf[4:], intensityToU16(pt.R))
		binary.LittleEndian.PutUint16(buf[6:], intensityToU16(pt.G))
		binary.LittleEndian.PutUint16(buf[8:], intensityToU16(pt.B))
	case FormatXYF32RGBU8:
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(pt.X))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(pt.Y))
		buf[8] = intensityToU8(pt.R)
		buf[9] = intensityToU8(pt.G)
		buf[10] = intensityToU8(pt.B)
	}
}

// readPoint is the inverse of putPoint.
func readPoint(buf []byte, format uint8) Point {
	switch format {
	case FormatXYRGBU16:
		return Point{
			X: u16ToUnit(binary.LittleEndian.Uint16(buf[0:])),
			Y: u16ToUnit(binary.LittleEndian.Uint16(buf[2:])),
			R: float32(binary.LittleEndian.Uint16(buf[4:])) / math.MaxUint16,
			G: float32(binary.LittleEndian.Uint16(buf[6:])) / math.MaxUint16,
			B: float32(binary.LittleEndian.Uint16(buf[8:])) / math.MaxUint16,
		}
	default:
		return Point{
			X: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[4:])),
			R: float32(buf[8]) / math.MaxUint8,
			G: float32(buf[9]) / math.MaxUint8,
			B: float32(buf[10]) / math.MaxUint8,
		}
	}
}

// unitToU16 maps [-1, 1] onto [0, 65535], clamping out-of-range input.
func unitToU16(v float32) uint16 {
	return quantize((float64(v)+1)/2, math.MaxUint16)
}

func u16ToUnit(v uint16) float32 {
	return -1 + 2*(float32(v)/math.MaxUint16)
}

func intensityToU16(v float32) uint16 {
	return quantize(float64(v), math.MaxUint16)
}

func intensityToU8(v float32) uint8 {
	return uint8(quantize(float64(v), math.MaxUint8))
}

// quantize maps a [0, 1] value onto [0, top], rounding to nearest.
func quantize(v, top float64) uint16 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 1:
		return uint16(top)
	}
	return uint16(math.Round(v * top))
}
