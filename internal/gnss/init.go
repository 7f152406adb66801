package gnss

import (
	"context"
	"fmt"
	"io"
	"time"

	"tigpsd/internal/ai2"
)

// Receiver bring-up.
//
// The sequences below reproduce, byte for byte, the command stream the
// receiver expects after power-up. There is no acknowledgment-based
// pacing: a fixed gap between commands is all the receiver gets, and
// shortening it breaks real hardware.

// binarySequence configures the receiver for binary position,
// measurement and status reports.
func binarySequence() [][]byte {
	return [][]byte{
		ai2.Encode(0x00, 0xf5, []byte{0x01}),
		ai2.Encode(0x01, 0xf1, []byte{0x05}),
		ai2.Encode(0x01, 0xf0, nil),
		ai2.Encode(0x01, 0x02, []byte{0x02}), // receiver idle
		ai2.Encode(0x01, 0xed, []byte{0x00}),
		ai2.Encode(0x01, 0x06, []byte{0x01, 0x0e, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}),
		ai2.Encode(0x01, 0x02, []byte{0x03}), // receiver on
	}
}

// nmeaSequence switches the receiver into NMEA passthrough. The third
// frame batches rate/mask configuration and the final "receiver on"
// into a single multi-sub-packet frame, as the vendor procedure does.
func nmeaSequence() [][]byte {
	var body []byte
	body = ai2.AppendSubPacket(body, 0x08, []byte{
		0x00, 0x01, 0x3c, 0x01, 0x00, 0x01, 0x04, 0x83, 0x03, 0x70, 0x17, 0xa0,
		0x0f, 0x07, 0x1e, 0x07, 0x1e, 0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,
	})
	body = ai2.AppendSubPacket(body, 0x06, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0xff, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00})
	body = ai2.AppendSubPacket(body, 0x20, []byte{0x00, 0x00, 0x00, 0x00, 0x57, 0x02, 0x00, 0x00, 0x01})
	body = ai2.AppendSubPacket(body, 0xe5, []byte{0x3f, 0x00, 0x00, 0x00})
	body = ai2.AppendSubPacket(body, 0x02, []byte{0x03}) // receiver on

	return [][]byte{
		ai2.Encode(0x00, 0xf5, []byte{0x01}),
		ai2.Encode(0x01, 0xf1, []byte{0x05}),
		ai2.EncodeBody(0x01, body),
		ai2.Encode(0x00, 0x22, []byte{0x01}), // start NMEA output
	}
}

// bringup writes one of the fixed bring-up sequences with gap-sized
// pauses between commands. It stops early when ctx is cancelled.
func bringup(ctx context.Context, w io.Writer, nmea bool, gap time.Duration) error {
	seq := binarySequence()
	if nmea {
		seq = nmeaSequence()
	}

	for i, cmd := range seq {
		if i > 0 {
			if !sleepCtx(ctx, gap) {
				return ctx.Err()
			}
		}
		if _, err := w.Write(cmd); err != nil {
			return fmt.Errorf("bring-up command %d: %w", i+1, err)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
