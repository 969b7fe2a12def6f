package receiver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/madmappersoftware/Ponk/internal/protocol"
	"github.com/madmappersoftware/Ponk/internal/transport"
)

// collector records everything a Receiver reports.
type collector struct {
	frames       []Frame
	incompatible []SenderInfo
	errs         []error
}

func newTestReceiver(conn transport.Conn) (*Receiver, *collector) {
	c := &collector{}
	r := New(conn, Options{
		OnFrame:        func(f Frame) { c.frames = append(c.frames, f) },
		OnIncompatible: func(info SenderInfo) { c.incompatible = append(c.incompatible, info) },
		OnError:        func(err error) { c.errs = append(c.errs, err) },
	})
	r.now = func() time.Time { return t0 }
	return r, c
}

func samplePaths() []protocol.Path {
	return []protocol.Path{{
		Format:   protocol.FormatXYF32RGBU8,
		MetaData: []protocol.MetaData{protocol.NewMetaData("PATHNUMB", 0)},
		Points: []protocol.Point{
			{X: -0.5, Y: 0.5, R: 1, G: 0, B: 0},
			{X: 0.5, Y: -0.5, R: 0, G: 1, B: 0},
		},
	}}
}

// datagrams encodes body as a frame split into n chunks.
func datagrams(senderID uint32, name string, frame uint8, body []byte, n int) [][]byte {
	var out [][]byte
	for _, c := range split(senderID, frame, body, n) {
		c.Header.SenderName = name
		out = append(out, protocol.EncodeChunk(c))
	}
	return out
}

func frameBody(t *testing.T, paths []protocol.Path) []byte {
	t.Helper()
	body, err := protocol.EncodeFrameBody(paths)
	if err != nil {
		t.Fatalf("EncodeFrameBody: %v", err)
	}
	return body
}

func TestHandleDatagramDeliversFrame(t *testing.T) {
	r, c := newTestReceiver(nil)
	body := frameBody(t, samplePaths())

	dgs := datagrams(42, "Sample Sender", 7, body, 2)
	r.HandleDatagram(nil, dgs[1])
	if len(c.frames) != 0 {
		t.Fatal("frame delivered before all chunks arrived")
	}
	r.HandleDatagram(nil, dgs[0])

	if len(c.frames) != 1 {
		t.Fatalf("frames: got %d, want 1", len(c.frames))
	}
	f := c.frames[0]
	if f.SenderID != 42 || f.SenderName != "Sample Sender" || f.FrameNumber != 7 {
		t.Errorf("frame header: %+v", f)
	}
	if len(f.Paths) != 1 || len(f.Paths[0].Points) != 2 {
		t.Fatalf("paths: %+v", f.Paths)
	}
	if f.Paths[0].Points[1].G != 1 {
		t.Errorf("point: %+v", f.Paths[0].Points[1])
	}
	if len(c.errs) != 0 {
		t.Errorf("unexpected errors: %v", c.errs)
	}

	senders := r.Senders()
	if len(senders) != 1 || senders[0].Frames != 1 || !senders[0].LastSeen.Equal(t0) {
		t.Errorf("senders: %+v", senders)
	}
}

func TestHandleDatagramUnsupportedVersion(t *testing.T) {
	r, c := newTestReceiver(nil)
	body := frameBody(t, samplePaths())

	// Each chunk carries version 1; none may reach the reassembler.
	send := func(version uint8, frame uint8) {
		for _, dg := range datagrams(5, "future", frame, body, 2) {
			dg[protocol.MagicLen] = version
			r.HandleDatagram(nil, dg)
		}
	}
	send(1, 0)
	send(1, 1)

	if len(c.frames) != 0 {
		t.Error("frame from unsupported version delivered")
	}
	if len(c.incompatible) != 1 {
		t.Fatalf("incompatible notices: got %d, want 1", len(c.incompatible))
	}
	if c.incompatible[0].ID != 5 || c.incompatible[0].Version != 1 {
		t.Errorf("notice: %+v", c.incompatible[0])
	}
	if _, ok := r.State(5); ok {
		t.Error("unsupported version touched reassembly state")
	}
	if len(c.errs) != 1 || !errors.Is(c.errs[0], protocol.ErrUnsupportedVersion) {
		t.Errorf("errors: %v", c.errs)
	}

	// A different version is a new notice.
	send(2, 2)
	if len(c.incompatible) != 2 {
		t.Errorf("incompatible notices after version change: got %d, want 2", len(c.incompatible))
	}

	// The same sender switching to the supported version is accepted.
	for _, dg := range datagrams(5, "future", 3, body, 1) {
		r.HandleDatagram(nil, dg)
	}
	if len(c.frames) != 1 {
		t.Errorf("frames after downgrade: got %d, want 1", len(c.frames))
	}
}

func TestHandleDatagramRejectsGarbage(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, protocol.ErrShortHeader},
		{"short", []byte("PONK-UDP"), protocol.ErrShortHeader},
		{"bad magic", append([]byte("PONK-TCP"), make([]byte, protocol.HeaderSize)...), protocol.ErrInvalidMagic},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, c := newTestReceiver(nil)
			r.HandleDatagram(nil, tc.data)

			if len(c.errs) != 1 || !errors.Is(c.errs[0], tc.want) {
				t.Errorf("errors: got %v, want %v", c.errs, tc.want)
			}
			if len(r.Senders()) != 0 {
				t.Error("garbage registered a sender")
			}
		})
	}
}

func TestHandleDatagramMalformedBody(t *testing.T) {
	r, c := newTestReceiver(nil)

	// Valid checksum, unknown path format.
	body := []byte{9, 0, 0, 0}
	for _, dg := range datagrams(1, "bad", 0, body, 1) {
		r.HandleDatagram(nil, dg)
	}

	if len(c.frames) != 0 {
		t.Error("malformed body delivered")
	}
	if len(c.errs) != 1 || !errors.Is(c.errs[0], protocol.ErrUnknownFormat) {
		t.Fatalf("errors: %v", c.errs)
	}
	var se *SenderError
	if !errors.As(c.errs[0], &se) || se.SenderID != 1 {
		t.Errorf("error should name the sender: %v", c.errs[0])
	}
}

func TestHandleDatagramEmptyFrame(t *testing.T) {
	r, c := newTestReceiver(nil)
	for _, dg := range datagrams(1, "idle", 0, nil, 1) {
		r.HandleDatagram(nil, dg)
	}
	if len(c.frames) != 1 || len(c.frames[0].Paths) != 0 {
		t.Errorf("empty frame: got %+v", c.frames)
	}
}

func TestSenderRename(t *testing.T) {
	r, _ := newTestReceiver(nil)
	body := frameBody(t, samplePaths())

	for _, dg := range datagrams(3, "before", 0, body, 1) {
		r.HandleDatagram(nil, dg)
	}
	for _, dg := range datagrams(3, "after", 1, body, 1) {
		r.HandleDatagram(nil, dg)
	}

	senders := r.Senders()
	if len(senders) != 1 {
		t.Fatalf("senders: got %d, want 1", len(senders))
	}
	if senders[0].Name != "after" || senders[0].Frames != 2 {
		t.Errorf("sender: %+v", senders[0])
	}
}

func TestPollOverPipe(t *testing.T) {
	tx, rx := transport.Pipe()
	r, c := newTestReceiver(rx)

	got, err := r.Poll()
	if got || err != nil {
		t.Fatalf("Poll on empty pipe: got=%v err=%v", got, err)
	}

	body := frameBody(t, samplePaths())
	for _, dg := range datagrams(8, "pipe", 0, body, 3) {
		if err := tx.Send(nil, dg); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		if got, err := r.Poll(); !got || err != nil {
			t.Fatalf("Poll %d: got=%v err=%v", i, got, err)
		}
	}

	if len(c.frames) != 1 {
		t.Fatalf("frames: got %d, want 1", len(c.frames))
	}
	if c.frames[0].Source == nil || c.frames[0].Source.String() != "mem-a" {
		t.Errorf("source: %v", c.frames[0].Source)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	_, rx := transport.Pipe()
	r := New(rx, Options{PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsTransportError(t *testing.T) {
	_, rx := transport.Pipe()
	rx.Close()
	r := New(rx, Options{})

	err := r.Run(context.Background())
	if !errors.Is(err, transport.ErrClosed) {
		t.Errorf("Run: got %v, want ErrClosed", err)
	}
}
