package ai2

import "errors"

const (
	marker     = 0x10
	terminator = 0x03

	// maxFrame bounds a single collected frame. Anything longer is
	// corrupt; the receiver never sends frames near this size.
	maxFrame = 1024
)

// Deframer diagnostics. All of them are recoverable: the deframer is
// back in the idle state after reporting one and resynchronizes on the
// next start marker.
var (
	ErrNoise      = errors.New("ai2: discarding noise outside frame")
	ErrEmptyFrame = errors.New("ai2: unexpected end of packet")
	ErrOverlong   = errors.New("ai2: overlong packet, throwing away")
)

// Deframer reassembles AI2 frames from a raw byte stream.
//
// Inside a frame every 0x10 begins an escape: 0x10 0x10 collapses to
// one literal 0x10, 0x10 0x03 terminates the frame. The opening 0x10
// is kept at buf[0] so the checksum range covers it, matching the
// encoder's formula.
//
// The zero value is ready to use.
type Deframer struct {
	buf        []byte
	collecting bool
	escaping   bool
	noted      bool
}

// Push feeds one input byte. When the byte completes a frame, Push
// returns the collected frame bytes (start marker through the byte
// before the checksumless terminator; checksum still attached). The
// returned slice is a copy and stays valid across further pushes.
//
// A non-nil error is a diagnostic, not a failure; ErrNoise is reported
// once per run of garbage so a noisy line cannot flood the caller.
func (d *Deframer) Push(b byte) ([]byte, error) {
	if !d.collecting {
		if b != marker {
			if d.noted {
				return nil, nil
			}
			d.noted = true
			return nil, ErrNoise
		}
		d.collecting = true
		d.escaping = false
		d.noted = false
		d.buf = append(d.buf[:0], b)
		return nil, nil
	}

	// A terminator straight after the start marker is a frame with no
	// content; the escape state is irrelevant at this position.
	if len(d.buf) == 1 && b == terminator {
		d.reset()
		return nil, ErrEmptyFrame
	}

	if !d.escaping && b == marker {
		d.escaping = true
		return nil, nil
	}

	if d.escaping && b == terminator {
		frame := append([]byte(nil), d.buf...)
		d.reset()
		return frame, nil
	}
	d.escaping = false

	if len(d.buf) == maxFrame {
		d.reset()
		return nil, ErrOverlong
	}
	d.buf = append(d.buf, b)
	return nil, nil
}

func (d *Deframer) reset() {
	d.collecting = false
	d.escaping = false
	d.noted = false
	d.buf = d.buf[:0]
}
