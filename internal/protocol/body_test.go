package protocol

import (
	"errors"
	"io"
	"math"
	"testing"
)

func samplePaths(format uint8) []Path {
	return []Path{
		{
			Format: format,
			MetaData: []MetaData{
				NewMetaData("PATHNUMB", 1),
				NewMetaData("MAXSPEED", 0.5),
				NewMetaData("PATHNUMB", 9), // duplicates keep wire order
			},
			Points: []Point{
				{X: -1, Y: -1, R: 0, G: 0, B: 0},
				{X: 0.25, Y: -0.75, R: 1, G: 0, B: 1},
				{X: 1, Y: 1, R: 1, G: 1, B: 1},
			},
		},
		{Format: format},
		{
			Format: format,
			Points: []Point{{X: 0.5, Y: 0.5, R: 0, G: 1, B: 0}},
		},
	}
}

// tolerance returns the quantization step of a format's position field.
func tolerance(format uint8) float64 {
	if format == FormatXYRGBU16 {
		return 2.0 / math.MaxUint16
	}
	return 0
}

func assertPathsEqual(t *testing.T, got, want []Path, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("path count: got %d, want %d", len(got), len(want))
	}
	near := func(a, b float32) bool { return math.Abs(float64(a-b)) <= tol }
	for i := range want {
		g, w := got[i], want[i]
		if g.Format != w.Format {
			t.Errorf("path %d format: got %d, want %d", i, g.Format, w.Format)
		}
		if len(g.MetaData) != len(w.MetaData) {
			t.Fatalf("path %d metadata count: got %d, want %d", i, len(g.MetaData), len(w.MetaData))
		}
		for j := range w.MetaData {
			if g.MetaData[j] != w.MetaData[j] {
				t.Errorf("path %d meta %d: got %+v, want %+v", i, j, g.MetaData[j], w.MetaData[j])
			}
		}
		if len(g.Points) != len(w.Points) {
			t.Fatalf("path %d point count: got %d, want %d", i, len(g.Points), len(w.Points))
		}
		for j := range w.Points {
			gp, wp := g.Points[j], w.Points[j]
			if !near(gp.X, wp.X) || !near(gp.Y, wp.Y) || !near(gp.R, wp.R) || !near(gp.G, wp.G) || !near(gp.B, wp.B) {
				t.Errorf("path %d point %d: got %+v, want %+v", i, j, gp, wp)
			}
		}
	}
}

// TestFrameBodyRoundTrip verifies decode(encode(paths)) == paths for both
// point formats, order preserved.
func TestFrameBodyRoundTrip(t *testing.T) {
	for _, format := range []uint8{FormatXYRGBU16, FormatXYF32RGBU8} {
		t.Run(formatName(format), func(t *testing.T) {
			paths := samplePaths(format)
			body, err := EncodeFrameBody(paths)
			if err != nil {
				t.Fatalf("EncodeFrameBody failed: %v", err)
			}
			got, err := DecodePaths(body)
			if err != nil {
				t.Fatalf("DecodePaths failed: %v", err)
			}
			assertPathsEqual(t, got, paths, tolerance(format))
		})
	}
}

func formatName(format uint8) string {
	if format == FormatXYRGBU16 {
		return "XYRGB_U16"
	}
	return "XY_F32_RGB_U8"
}

// TestFrameBodyMixedFormats verifies that each path selects its own format.
func TestFrameBodyMixedFormats(t *testing.T) {
	paths := []Path{samplePaths(FormatXYF32RGBU8)[0], samplePaths(FormatXYRGBU16)[0]}
	body, err := EncodeFrameBody(paths)
	if err != nil {
		t.Fatalf("EncodeFrameBody failed: %v", err)
	}
	got, err := DecodePaths(body)
	if err != nil {
		t.Fatalf("DecodePaths failed: %v", err)
	}
	assertPathsEqual(t, got, paths, tolerance(FormatXYRGBU16))
}

// TestFrameBodyLayout pins the body layout of a single format 1 path.
func TestFrameBodyLayout(t *testing.T) {
	body, err := EncodeFrameBody([]Path{{
		Format:   FormatXYF32RGBU8,
		MetaData: []MetaData{NewMetaData("SKIPBLCK", 1)},
		Points:   []Point{{X: 0, Y: 0, R: 1, G: 0, B: 1}},
	}})
	if err != nil {
		t.Fatalf("EncodeFrameBody failed: %v", err)
	}

	if want := 1 + 1 + 12 + 2 + 11; len(body) != want {
		t.Fatalf("body size: got %d, want %d", len(body), want)
	}
	if body[0] != FormatXYF32RGBU8 || body[1] != 1 {
		t.Errorf("path prefix: got %v", body[:2])
	}
	if string(body[2:10]) != "SKIPBLCK" {
		t.Errorf("meta key: got %q", body[2:10])
	}
	if body[14] != 1 || body[15] != 0 {
		t.Errorf("point count not little-endian u16: %v", body[14:16])
	}
	if body[24] != 255 || body[25] != 0 || body[26] != 255 {
		t.Errorf("colors: got %v", body[24:27])
	}
}

func TestEncodeFrameBodyLimits(t *testing.T) {
	testCases := []struct {
		name string
		path Path
		want error
	}{
		{"unknown format", Path{Format: 2}, ErrUnknownFormat},
		{"too many metadata", Path{Format: FormatXYF32RGBU8, MetaData: make([]MetaData, MaxMetaData+1)}, ErrTooManyMetaData},
		{"too many points", Path{Format: FormatXYRGBU16, Points: make([]Point, MaxPoints+1)}, ErrTooManyPoints},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EncodeFrameBody([]Path{{Format: FormatXYF32RGBU8}, tc.path})
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			var encErr *EncodeError
			if !errors.As(err, &encErr) || encErr.Path != 1 {
				t.Errorf("expected EncodeError for path 1, got %v", err)
			}
		})
	}
}

func TestEncodeFrameBodyAtLimits(t *testing.T) {
	path := Path{
		Format:   FormatXYRGBU16,
		MetaData: make([]MetaData, MaxMetaData),
		Points:   make([]Point, MaxPoints),
	}
	body, err := EncodeFrameBody([]Path{path})
	if err != nil {
		t.Fatalf("EncodeFrameBody failed: %v", err)
	}
	got, err := DecodePaths(body)
	if err != nil {
		t.Fatalf("DecodePaths failed: %v", err)
	}
	if len(got[0].MetaData) != MaxMetaData || len(got[0].Points) != MaxPoints {
		t.Errorf("got %d metadata / %d points", len(got[0].MetaData), len(got[0].Points))
	}
}

// TestDecodeMalformedBody verifies that a malformed path discards the whole
// frame, including paths decoded before it.
func TestDecodeMalformedBody(t *testing.T) {
	good, err := EncodeFrameBody(samplePaths(FormatXYF32RGBU8)[:1])
	if err != nil {
		t.Fatalf("EncodeFrameBody failed: %v", err)
	}

	testCases := []struct {
		name string
		tail []byte
		want error
	}{
		{"lone format byte", []byte{FormatXYF32RGBU8}, ErrTruncated},
		{"unknown format", []byte{7, 0, 0, 0}, ErrUnknownFormat},
		{"truncated metadata", []byte{FormatXYF32RGBU8, 1, 'P', 'A', 'T', 'H'}, ErrTruncated},
		{"missing point count", []byte{FormatXYF32RGBU8, 0, 1}, ErrTruncated},
		{"truncated points", []byte{FormatXYRGBU16, 0, 2, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ErrTruncated},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body := append(append([]byte(nil), good...), tc.tail...)
			paths, err := DecodePaths(body)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if paths != nil {
				t.Errorf("expected no paths, got %d", len(paths))
			}
			var decErr *DecodeError
			if !errors.As(err, &decErr) || decErr.Path != 1 {
				t.Errorf("expected DecodeError for path 1, got %v", err)
			}
		})
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	paths, err := DecodePaths([]byte{})
	if err != nil {
		t.Fatalf("DecodePaths failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no paths, got %d", len(paths))
	}
}

// TestPathDecoderIsLazy verifies that paths before a malformed one are
// produced one at a time and that the error sticks.
func TestPathDecoderIsLazy(t *testing.T) {
	body, err := EncodeFrameBody(samplePaths(FormatXYF32RGBU8))
	if err != nil {
		t.Fatalf("EncodeFrameBody failed: %v", err)
	}
	body = append(body, 9)

	d := NewPathDecoder(body)
	for i := 0; i < 3; i++ {
		if _, err := d.Next(); err != nil {
			t.Fatalf("path %d: unexpected error %v", i, err)
		}
	}
	_, err = d.Next()
	if err == nil || err == io.EOF {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, again := d.Next(); again != err {
		t.Errorf("error did not stick: got %v", again)
	}

	seq := DecodeFrameBody(body[:len(body)-1])
	count := 0
	for _, err := range seq {
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		count++
	}
	for range seq {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 paths over two iterations, got %d", count)
	}
}

// TestFormatU16Mapping checks the affine mapping of the 16-bit format ends.
func TestFormatU16Mapping(t *testing.T) {
	body, err := EncodeFrameBody([]Path{{
		Format: FormatXYRGBU16,
		Points: []Point{{X: -1, Y: 1, R: 0, G: 1, B: 0.5}},
	}})
	if err != nil {
		t.Fatalf("EncodeFrameBody failed: %v", err)
	}
	raw := body[4:]
	want := []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x80}
	for i := range want {
		if raw[i] != want[i] {
			t.Fatalf("point bytes: got %v, want %v", raw[:10], want)
		}
	}
}
