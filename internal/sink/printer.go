package sink

// Package sink renders decoded receiver reports. The codec hands it
// structured values; nothing here reaches back into the wire format.

import (
	"fmt"
	"io"

	"tigpsd/internal/ai2"
)

// Printer writes reports as human-readable text.
//
// In NMEA mode the passthrough sentences go to the primary writer and
// all decode chatter to the secondary one, so piping stdout yields a
// clean NMEA stream while stderr keeps the diagnostics.
type Printer struct {
	out io.Writer
	aux io.Writer

	nmea    bool
	rawDump bool
}

// NewPrinter returns a printer. aux may equal out; in NMEA mode it is
// where non-NMEA output is diverted.
func NewPrinter(out, aux io.Writer, nmeaMode, rawDump bool) *Printer {
	if aux == nil {
		aux = out
	}
	return &Printer{out: out, aux: aux, nmea: nmeaMode, rawDump: rawDump}
}

// info is the destination for decoded (non-passthrough) output.
func (p *Printer) info() io.Writer {
	if p.nmea {
		return p.aux
	}
	return p.out
}

// HandleFrame renders every report in the frame.
func (p *Printer) HandleFrame(f ai2.Frame) {
	if f.Ack {
		fmt.Fprintf(p.info(), "decoded ack\n")
		return
	}
	for _, r := range f.Reports {
		p.printReport(r)
	}
}

// HandleRawFrame dumps the validated frame bytes in raw-dump mode; the
// lines are hex and round-trip back through the replay reader.
func (p *Printer) HandleRawFrame(buf []byte) {
	if !p.rawDump {
		return
	}
	fmt.Fprintf(p.info(), "raw: %x\n", buf)
}

func (p *Printer) printReport(r ai2.Report) {
	w := p.info()
	switch r := r.(type) {
	case ai2.PositionReport:
		fmt.Fprintf(w, "position: fcount: %d, lat: %f lon: %f", r.FCount, r.LatDeg, r.LonDeg)
		if r.AltitudeM != nil {
			fmt.Fprintf(w, " altitude: %.1f", *r.AltitudeM)
		}
		fmt.Fprintf(w, " sv:")
		for _, sv := range r.SVs {
			fmt.Fprintf(w, " %d", sv)
		}
		fmt.Fprintf(w, "\n")

	case ai2.MeasurementReport:
		fmt.Fprintf(w, "measurement: fcount: %d, sats: %d\n", r.FCount, len(r.Sats))
		for _, s := range r.Sats {
			fmt.Fprintf(w, "SV: %d SNR: %.1f CNo: %.1f\n", s.SV, s.SNR, s.CNo)
		}

	case ai2.NMEAReport:
		fmt.Fprintf(p.info(), "nmea: fcount: %d\n", r.FCount)
		if len(r.Text) > 0 {
			_, _ = p.out.Write(r.Text)
		}

	case ai2.AsyncEventReport:
		fmt.Fprintf(w, "async event: %s\n", r.Event)

	case ai2.ErrorReport:
		switch {
		case r.Raw != nil:
			fmt.Fprintf(w, "receiver error with %d byte payload: %x\n", len(r.Raw), r.Raw)
		case r.BadChecksum():
			fmt.Fprintf(w, "receiver rejected command: invalid checksum\n")
		default:
			fmt.Fprintf(w, "receiver error code %04x\n", r.Code)
		}

	case ai2.UnknownReport:
		fmt.Fprintf(w, "unknown packet type %x len: %d payload: %x\n", r.Type, len(r.Raw), r.Raw)
	}
}
