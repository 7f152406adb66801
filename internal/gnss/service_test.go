package gnss

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"tigpsd/internal/ai2"
)

type fakeDevice struct {
	r io.Reader

	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

type captureHandler struct {
	mu     sync.Mutex
	frames []ai2.Frame
}

func (h *captureHandler) HandleFrame(f ai2.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, f)
}

func (h *captureHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

func withFakeDevice(t *testing.T, dev *fakeDevice) {
	t.Helper()
	orig := openDeviceFn
	openDeviceFn = func(path string, baud int) (io.ReadWriteCloser, error) {
		return dev, nil
	}
	t.Cleanup(func() { openDeviceFn = orig })
}

func waitStopped(t *testing.T, s *Service) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := s.Snapshot()
		if !snap.Running {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("service did not stop: %+v", s.Snapshot())
	return Snapshot{}
}

func TestService_DecodesStreamAndSurvivesCorruption(t *testing.T) {
	good1 := ai2.Encode(0x06, 0x99, []byte{0xAA})
	good2 := ai2.Encode(0x06, 0x98, []byte{0xBB, 0xCC})

	// A frame with a corrupted payload byte must be rejected without
	// affecting the frames around it.
	bad := ai2.Encode(0x06, 0x97, []byte{0x42})
	bad[5] ^= 0x01

	var stream []byte
	stream = append(stream, []byte("line noise")...)
	stream = append(stream, good1...)
	stream = append(stream, bad...)
	stream = append(stream, good2...)

	dev := &fakeDevice{r: bytes.NewReader(stream)}
	withFakeDevice(t, dev)

	var h captureHandler
	s := New(Config{Device: "/dev/tigps", NoInit: true}, &h)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := waitStopped(t, s)
	s.Close()

	if snap.Frames != 2 {
		t.Fatalf("frames=%d want 2", snap.Frames)
	}
	if snap.ChecksumFails != 1 {
		t.Fatalf("checksum_fails=%d want 1", snap.ChecksumFails)
	}
	if h.count() != 2 {
		t.Fatalf("handler frames=%d want 2", h.count())
	}

	dev.mu.Lock()
	closed := dev.closed
	dev.mu.Unlock()
	if !closed {
		t.Fatalf("device not closed")
	}
}

func TestService_RunsBringupWriter(t *testing.T) {
	dev := &fakeDevice{r: bytes.NewReader(nil)}
	withFakeDevice(t, dev)

	s := New(Config{Device: "/dev/tigps", InitGap: time.Millisecond})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := len(binarySequence())
	deadline := time.Now().Add(2 * time.Second)
	for dev.writeCount() < want && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Close()

	if got := dev.writeCount(); got != want {
		t.Fatalf("bring-up writes=%d want %d", got, want)
	}
	dev.mu.Lock()
	first := dev.writes[0]
	dev.mu.Unlock()
	if !bytes.Equal(first, binarySequence()[0]) {
		t.Fatalf("first bring-up write %x", first)
	}
}

func TestService_StartFailsWhenDeviceMissing(t *testing.T) {
	orig := openDeviceFn
	openDeviceFn = func(path string, baud int) (io.ReadWriteCloser, error) {
		return nil, io.ErrClosedPipe
	}
	t.Cleanup(func() { openDeviceFn = orig })

	s := New(Config{Device: "/dev/nope", NoInit: true})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected open failure")
	}
	if s.Snapshot().LastError == "" {
		t.Fatalf("expected last_error to be set")
	}
}

func TestService_AckFrameCounted(t *testing.T) {
	// An acknowledgment frame: class 2, arbitrary two body bytes.
	ack := ai2.EncodeBody(ai2.AckClass, []byte{0x00, 0x00})

	dev := &fakeDevice{r: bytes.NewReader(ack)}
	withFakeDevice(t, dev)

	var h captureHandler
	s := New(Config{Device: "/dev/tigps", NoInit: true}, &h)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := waitStopped(t, s)
	s.Close()

	if snap.Acks != 1 {
		t.Fatalf("acks=%d want 1", snap.Acks)
	}
	if h.count() != 1 || !h.frames[0].Ack {
		t.Fatalf("handler did not see ack frame")
	}
}
