package ai2

import "fmt"

// Sub-packet types emitted by the receiver.
const (
	TypePosition    = 0x06
	TypeMeasurement = 0x08
	TypeNMEA        = 0xd3
	TypePositionExt = 0xd5
	TypeAsyncEvent  = 0xf4
	TypeError       = 0xf5
)

// AckClass marks a frame that only acknowledges a command; it carries
// no sub-packets.
const AckClass = 0x02

// Report is one decoded sub-packet. The set of implementations is
// closed; sinks switch over the concrete types exactly once.
type Report interface {
	isReport()
}

// PositionReport is the receiver's computed fix.
//
// AltitudeM is nil for the extended variant, which does not carry
// altitude on the wire.
type PositionReport struct {
	FCount    uint32
	LatDeg    float64
	LonDeg    float64
	AltitudeM *float64
	SVs       []uint8
}

// SatMeasurement is one tracked satellite within a MeasurementReport.
type SatMeasurement struct {
	SV  uint8
	SNR float64
	CNo float64
}

// MeasurementReport carries per-satellite signal measurements.
//
// ExcessBytes counts trailing bytes that did not form a whole
// satellite record; the integral records before them are still valid.
type MeasurementReport struct {
	FCount      uint32
	Sats        []SatMeasurement
	ExcessBytes int
}

// NMEAReport is opaque NMEA passthrough text; the codec does not
// reinterpret it.
type NMEAReport struct {
	FCount uint32
	Text   []byte
}

// EngineEvent is the receiver engine state carried by an async event.
type EngineEvent uint8

const (
	EngineOff  EngineEvent = 0x01
	EngineIdle EngineEvent = 0x07
)

func (e EngineEvent) String() string {
	switch e {
	case EngineOff:
		return "engine off"
	case EngineIdle:
		return "engine idle"
	default:
		return fmt.Sprintf("unknown engine event 0x%02x", uint8(e))
	}
}

// AsyncEventReport is an unsolicited receiver state change.
type AsyncEventReport struct {
	Event EngineEvent
}

// ErrorCodeBadChecksum is reported by the receiver when a command we
// sent failed its checksum check.
const ErrorCodeBadChecksum = 0x02ff

// ErrorReport is a receiver-side error indication. Code is valid only
// when Raw is nil; payloads that are not exactly two bytes are kept
// verbatim in Raw.
type ErrorReport struct {
	Code uint16
	Raw  []byte
}

// BadChecksum reports whether the receiver rejected a command for a
// checksum failure.
func (r ErrorReport) BadChecksum() bool {
	return r.Raw == nil && r.Code == ErrorCodeBadChecksum
}

// UnknownReport preserves a sub-packet of a type the codec does not
// understand. Unknown types are surfaced, never dropped.
type UnknownReport struct {
	Type uint8
	Raw  []byte
}

func (PositionReport) isReport()    {}
func (MeasurementReport) isReport() {}
func (NMEAReport) isReport()        {}
func (AsyncEventReport) isReport()  {}
func (ErrorReport) isReport()       {}
func (UnknownReport) isReport()     {}
