package ai2

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortFrame marks a collected buffer too small to hold a class
// byte and checksum. Callers normally discard these silently.
var ErrShortFrame = errors.New("ai2: frame too short")

// ChecksumError reports a frame whose trailing checksum disagrees with
// the modular sum of its bytes. The whole frame is rejected.
type ChecksumError struct {
	Want uint16 // checksum carried on the wire
	Got  uint16 // sum computed over the frame bytes
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("ai2: checksum mismatch %04x != %04x", e.Want, e.Got)
}

// Frame is one validated protocol message. It exists only for the
// duration of a decode call; all contained reports are caller-owned
// values.
type Frame struct {
	Class   byte
	Ack     bool
	Reports []Report

	// Truncated is set when a sub-packet declared more bytes than the
	// frame had left ("packet cut off"). Reports decoded before the
	// cut remain valid.
	Truncated bool

	// Diags collects per-sub-packet decode complaints (short payloads,
	// excess data). They never abort the rest of the frame.
	Diags []string
}

// DecodeFrame validates the checksum of a collected frame buffer and
// decodes its sub-packets.
//
// The buffer layout is the deframer's output: buf[0] is the retained
// start marker, buf[1] the class byte, and the last two bytes the
// little-endian checksum over everything before them.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < 4 {
		return Frame{}, ErrShortFrame
	}

	n := len(buf) - 2
	want := binary.LittleEndian.Uint16(buf[n:])
	var sum uint16
	for _, b := range buf[:n] {
		sum += uint16(b)
	}
	if want != sum {
		return Frame{}, &ChecksumError{Want: want, Got: sum}
	}

	f := Frame{Class: buf[1]}
	if f.Class == AckClass {
		f.Ack = true
		return f, nil
	}

	body := buf[2:n]
	for len(body) >= 3 {
		typ := body[0]
		sublen := int(binary.LittleEndian.Uint16(body[1:3]))
		body = body[3:]
		if sublen > len(body) {
			f.Truncated = true
			break
		}
		r, diag := decodePayload(typ, body[:sublen])
		if r != nil {
			f.Reports = append(f.Reports, r)
		}
		if diag != "" {
			f.Diags = append(f.Diags, diag)
		}
		body = body[sublen:]
	}
	return f, nil
}

// decodePayload dispatches one sub-packet. Decoders are pure and
// bounds-checked; truncated input yields a diagnostic (and possibly no
// report), never a panic.
func decodePayload(typ byte, p []byte) (Report, string) {
	switch typ {
	case TypeMeasurement:
		return decodeMeasurement(p)
	case TypePosition:
		return decodePosition(p)
	case TypePositionExt:
		return decodePositionExt(p)
	case TypeNMEA:
		return decodeNMEA(p)
	case TypeAsyncEvent:
		return decodeAsyncEvent(p)
	case TypeError:
		return decodeError(p)
	default:
		return UnknownReport{Type: typ, Raw: append([]byte(nil), p...)}, ""
	}
}

// Wire layout sizes. Fields the receiver has never documented are
// skipped as reserved runs rather than guessed at.
const (
	measRecordLen   = 28 // sv u8, snr u16, cno u16, 23 reserved
	posHeaderLen    = 31 // fcount u32, 2 reserved, lat i32, lon i32, alt i16, 15 reserved
	posExtHeaderLen = 61 // fcount u32, 2 reserved, lat i32, lon i32, 47 reserved
	svRecordLen     = 6  // sv u8, 5 reserved
)

func decodeMeasurement(p []byte) (Report, string) {
	if len(p) < 4 {
		return nil, fmt.Sprintf("measurement payload too short: %d", len(p))
	}
	r := MeasurementReport{FCount: binary.LittleEndian.Uint32(p[:4])}

	rest := p[4:]
	n := len(rest) / measRecordLen
	r.ExcessBytes = len(rest) % measRecordLen

	var diag string
	if r.ExcessBytes != 0 {
		diag = fmt.Sprintf("measurement: %d bytes of excess data", r.ExcessBytes)
	}
	for i := 0; i < n; i++ {
		rec := rest[i*measRecordLen:]
		r.Sats = append(r.Sats, SatMeasurement{
			SV:  rec[0],
			SNR: float64(binary.LittleEndian.Uint16(rec[1:3])) / 10,
			CNo: float64(binary.LittleEndian.Uint16(rec[3:5])) / 10,
		})
	}
	return r, diag
}

// Raw angles are signed 32-bit fractions of the half-circle:
// lat = 90 * raw / 2^31, lon = 180 * raw / 2^31.
const angleScale = 2147483648.0

func decodePosition(p []byte) (Report, string) {
	if len(p) < posHeaderLen {
		return nil, fmt.Sprintf("position payload too short: %d", len(p))
	}
	alt := float64(int16(binary.LittleEndian.Uint16(p[14:16]))) / 2
	return PositionReport{
		FCount:    binary.LittleEndian.Uint32(p[:4]),
		LatDeg:    90 * float64(int32(binary.LittleEndian.Uint32(p[6:10]))) / angleScale,
		LonDeg:    180 * float64(int32(binary.LittleEndian.Uint32(p[10:14]))) / angleScale,
		AltitudeM: &alt,
		SVs:       decodeSVIDs(p[posHeaderLen:]),
	}, ""
}

func decodePositionExt(p []byte) (Report, string) {
	if len(p) < posExtHeaderLen {
		return nil, fmt.Sprintf("extended position payload too short: %d", len(p))
	}
	return PositionReport{
		FCount: binary.LittleEndian.Uint32(p[:4]),
		LatDeg: 90 * float64(int32(binary.LittleEndian.Uint32(p[6:10]))) / angleScale,
		LonDeg: 180 * float64(int32(binary.LittleEndian.Uint32(p[10:14]))) / angleScale,
		SVs:    decodeSVIDs(p[posExtHeaderLen:]),
	}, ""
}

func decodeSVIDs(p []byte) []uint8 {
	n := len(p) / svRecordLen
	if n == 0 {
		return nil
	}
	svs := make([]uint8, n)
	for i := range svs {
		svs[i] = p[i*svRecordLen]
	}
	return svs
}

func decodeNMEA(p []byte) (Report, string) {
	// NMEA passthrough never fails; whatever the receiver sent is
	// forwarded verbatim.
	if len(p) < 4 {
		return NMEAReport{Text: append([]byte(nil), p...)},
			fmt.Sprintf("nmea payload too short: %d", len(p))
	}
	return NMEAReport{
		FCount: binary.LittleEndian.Uint32(p[:4]),
		Text:   append([]byte(nil), p[4:]...),
	}, ""
}

func decodeAsyncEvent(p []byte) (Report, string) {
	if len(p) < 1 {
		return nil, "async event with empty payload"
	}
	return AsyncEventReport{Event: EngineEvent(p[0])}, ""
}

func decodeError(p []byte) (Report, string) {
	if len(p) != 2 {
		return ErrorReport{Raw: append(make([]byte, 0, len(p)), p...)},
			fmt.Sprintf("error report with unexpected length %d", len(p))
	}
	return ErrorReport{Code: binary.LittleEndian.Uint16(p)}, ""
}
