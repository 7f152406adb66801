package gnss

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"tigpsd/internal/ai2"
)

// Config controls the receiver service.
//
// Device is the AI2 character device (/dev/tigps, or /dev/gnssX on a
// patched mainline kernel). Those are misc devices, not ttys; Baud is
// only applied when the device turns out to be a real serial port.
type Config struct {
	Device string
	Baud   int

	// NMEA selects the NMEA-passthrough bring-up sequence instead of
	// the binary report one.
	NMEA bool

	// NoInit skips the bring-up sequence entirely (receiver already
	// configured, or another process owns bring-up).
	NoInit bool

	// InitGap is the pause between bring-up commands. The receiver
	// offers no flow control during bring-up; fixed pacing is part of
	// the protocol discipline. Defaults to 200ms.
	InitGap time.Duration
}

// Handler receives every validated frame decoded from the device
// stream. Handlers run on the reader goroutine and should be fast.
type Handler interface {
	HandleFrame(frame ai2.Frame)
}

// RawHandler is an optional Handler extension for consumers that also
// want the validated frame buffer (start marker through checksum),
// e.g. raw dumps and frame recorders. The buffer is shared; treat it
// as read-only.
type RawHandler interface {
	HandleRawFrame(buf []byte)
}

type Snapshot struct {
	Device        string `json:"device,omitempty"`
	Running       bool   `json:"running"`
	Frames        uint64 `json:"frames"`
	Acks          uint64 `json:"acks"`
	Reports       uint64 `json:"reports"`
	ChecksumFails uint64 `json:"checksum_fails"`
	CutOffs       uint64 `json:"cut_offs"`
	LastFCount    uint32 `json:"last_fcount,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// Service owns the receiver device: a reader goroutine drives the
// deframer and fans decoded frames out to handlers, and a writer
// goroutine paces the bring-up sequence. Reader and writer share only
// the descriptor.
type Service struct {
	cfg      Config
	handlers []Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Snapshot

	mu   sync.Mutex
	dev  io.ReadWriteCloser
	snap Snapshot
}

// openDeviceFn is swapped out in tests.
var openDeviceFn = openDevice

func New(cfg Config, handlers ...Handler) *Service {
	if cfg.InitGap <= 0 {
		cfg.InitGap = 200 * time.Millisecond
	}
	s := &Service{cfg: cfg, handlers: handlers}
	s.snap = Snapshot{Device: cfg.Device}
	s.last.Store(s.snap)
	return s
}

// Start opens the device and launches the reader (and, unless
// disabled, the bring-up writer). An open failure is fatal and
// returned immediately; everything after that is self-healing.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gnss service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}
	if s.cfg.Device == "" {
		return fmt.Errorf("gnss device is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	dev, err := openDeviceFn(s.cfg.Device, s.cfg.Baud)
	if err != nil {
		s.setErrorLocked(fmt.Sprintf("gnss open failed device=%s: %v", s.cfg.Device, err))
		return err
	}
	s.dev = dev

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.updateLocked(func(snap *Snapshot) { snap.Running = true })
	log.Printf("gnss enabled device=%s nmea=%v", s.cfg.Device, s.cfg.NMEA)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readLoop(childCtx, dev)
	}()

	if !s.cfg.NoInit {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := bringup(childCtx, dev, s.cfg.NMEA, s.cfg.InitGap); err != nil && childCtx.Err() == nil {
				s.setError(fmt.Sprintf("gnss bring-up failed: %v", err))
			}
		}()
	}
	return nil
}

// Close stops the reader and writer and closes the device. Closing the
// descriptor is what unblocks a pending read.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	dev := s.dev
	s.cancel = nil
	s.dev = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if dev != nil {
		_ = dev.Close()
	}
	s.wg.Wait()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	return v.(Snapshot)
}

func (s *Service) readLoop(ctx context.Context, dev io.Reader) {
	reader := bufio.NewReader(dev)
	var d ai2.Deframer

	for {
		select {
		case <-ctx.Done():
			s.update(func(snap *Snapshot) { snap.Running = false })
			return
		default:
		}

		b, err := reader.ReadByte()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				s.setError(fmt.Sprintf("gnss read stopped: %v", err))
			}
			s.update(func(snap *Snapshot) { snap.Running = false })
			return
		}

		frame, derr := d.Push(b)
		if derr != nil {
			log.Printf("gnss: %v", derr)
			continue
		}
		if frame == nil {
			continue
		}
		s.handleFrame(frame)
	}
}

func (s *Service) handleFrame(buf []byte) {
	f, err := ai2.DecodeFrame(buf)
	if err != nil {
		if errors.Is(err, ai2.ErrShortFrame) {
			return
		}
		log.Printf("gnss: %v", err)
		s.update(func(snap *Snapshot) { snap.ChecksumFails++ })
		return
	}

	for _, diag := range f.Diags {
		log.Printf("gnss: %s", diag)
	}
	if f.Truncated {
		log.Printf("gnss: packet cut off")
	}

	s.update(func(snap *Snapshot) {
		snap.Frames++
		snap.Reports += uint64(len(f.Reports))
		if f.Ack {
			snap.Acks++
		}
		if f.Truncated {
			snap.CutOffs++
		}
		for _, r := range f.Reports {
			switch r := r.(type) {
			case ai2.PositionReport:
				snap.LastFCount = r.FCount
			case ai2.MeasurementReport:
				snap.LastFCount = r.FCount
			case ai2.NMEAReport:
				snap.LastFCount = r.FCount
			}
		}
	})

	for _, h := range s.handlers {
		if rh, ok := h.(RawHandler); ok {
			rh.HandleRawFrame(buf)
		}
		h.HandleFrame(f)
	}
}

func (s *Service) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateLocked(fn)
}

func (s *Service) updateLocked(fn func(*Snapshot)) {
	fn(&s.snap)
	s.last.Store(s.snap)
}

func (s *Service) setError(msg string) {
	s.update(func(snap *Snapshot) { snap.LastError = msg })
}

func (s *Service) setErrorLocked(msg string) {
	s.updateLocked(func(snap *Snapshot) { snap.LastError = msg })
}
