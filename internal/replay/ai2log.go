package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"tigpsd/internal/ai2"
)

// Log format: line-oriented text.
//
// - Blank lines and lines starting with '#' are ignored.
// - "START" resets the time origin.
// - Data lines are "<t_ns>,<hex>", where t_ns is nanoseconds since
//   START and hex is one validated frame buffer exactly as the
//   deframer produced it (start marker through checksum).
//
// The format is deliberately dumb so captures survive protocol
// regressions and can be pasted from receiver debug output.

// A Record is one log entry. START markers carry a nil Frame.
type Record struct {
	At    time.Duration
	Frame []byte
}

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 4096), 64*1024)

	var recs []Record
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func parseLine(line string) (Record, error) {
	comma := strings.IndexByte(line, ',')
	if comma < 0 {
		return Record{}, fmt.Errorf("invalid log line (missing comma): %q", line)
	}

	tsNs, err := strconv.ParseInt(strings.TrimSpace(line[:comma]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid log timestamp: %w", err)
	}
	if tsNs < 0 {
		return Record{}, fmt.Errorf("invalid log timestamp (negative): %d", tsNs)
	}

	hexStr := strings.ReplaceAll(strings.TrimSpace(line[comma+1:]), " ", "")
	frame, err := hex.DecodeString(hexStr)
	if err != nil {
		return Record{}, fmt.Errorf("invalid log frame hex: %w", err)
	}
	if len(frame) == 0 {
		return Record{}, fmt.Errorf("invalid log line (empty frame): %q", line)
	}
	return Record{At: time.Duration(tsNs), Frame: frame}, nil
}

type Writer struct {
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 32*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: time.Now()}, nil
}

func (ww *Writer) WriteFrame(now time.Time, frame []byte) error {
	if ww.closed {
		return errors.New("log writer is closed")
	}
	if len(frame) == 0 {
		return errors.New("frame is empty")
	}

	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(frame))
	return err
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

// Recorder taps the live frame stream into a log writer. It is wired
// in as a regular frame handler; write failures are remembered, not
// allowed to stall the reader.
type Recorder struct {
	w       *Writer
	lastErr error
}

func NewRecorder(w *Writer) *Recorder {
	return &Recorder{w: w}
}

func (r *Recorder) HandleFrame(ai2.Frame) {}

func (r *Recorder) HandleRawFrame(buf []byte) {
	if err := r.w.WriteFrame(time.Now(), buf); err != nil {
		r.lastErr = err
	}
}

func (r *Recorder) Err() error { return r.lastErr }

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play feeds recorded frames to cb with their relative timing.
// speed scales the waits: 2.0 halves them, 0.5 doubles them.
func Play(records []Record, speed float64, loop bool, sleeper Sleeper, cb func(frame []byte) error) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be > 0")
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}

	for {
		var origin, lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if r.Frame == nil {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				if wait := time.Duration(float64(at-lastAt) / speed); wait > 0 {
					sleeper.Sleep(wait)
				}
			}

			if err := cb(r.Frame); err != nil {
				return err
			}
			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
