package sink

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"tigpsd/internal/ai2"
)

// Fix is the latest known receiver position, assembled from binary
// position reports or from passthrough NMEA, whichever the receiver is
// configured to send.
type Fix struct {
	Valid  bool   `json:"valid"`
	Source string `json:"source,omitempty"` // "ai2" or "nmea"

	LatDeg    float64  `json:"lat_deg,omitempty"`
	LonDeg    float64  `json:"lon_deg,omitempty"`
	AltM      *float64 `json:"alt_m,omitempty"`
	SpeedKt   *float64 `json:"speed_kt,omitempty"`
	CourseDeg *float64 `json:"course_deg,omitempty"`

	Satellites *int   `json:"satellites,omitempty"`
	FCount     uint32 `json:"fcount,omitempty"`

	LastUpdateUTC string `json:"last_update_utc,omitempty"`
}

// FixTracker folds position and NMEA reports into a Fix snapshot.
// onFix, when non-nil, is invoked after every position update; it runs
// on the reader goroutine and should be fast.
type FixTracker struct {
	onFix func(Fix)

	mu   sync.Mutex
	fix  Fix
	last atomic.Value // Fix
}

func NewFixTracker(onFix func(Fix)) *FixTracker {
	t := &FixTracker{onFix: onFix}
	t.last.Store(Fix{})
	return t
}

func (t *FixTracker) Snapshot() Fix {
	if t == nil {
		return Fix{}
	}
	return t.last.Load().(Fix)
}

func (t *FixTracker) HandleFrame(f ai2.Frame) {
	for _, r := range f.Reports {
		switch r := r.(type) {
		case ai2.PositionReport:
			t.applyPosition(r)
		case ai2.NMEAReport:
			t.applyNMEA(r)
		}
	}
}

func (t *FixTracker) applyPosition(r ai2.PositionReport) {
	t.update(func(fix *Fix) {
		fix.Valid = true
		fix.Source = "ai2"
		fix.LatDeg = r.LatDeg
		fix.LonDeg = r.LonDeg
		if r.AltitudeM != nil {
			v := *r.AltitudeM
			fix.AltM = &v
		}
		n := len(r.SVs)
		fix.Satellites = &n
		fix.FCount = r.FCount
	})
}

func (t *FixTracker) applyNMEA(r ai2.NMEAReport) {
	for _, line := range strings.Split(string(r.Text), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}
		s, err := nmea.Parse(line)
		if err != nil {
			// Receivers interleave partial sentences across reports;
			// not worth surfacing.
			continue
		}

		switch m := s.(type) {
		case nmea.RMC:
			if m.Validity != nmea.ValidRMC {
				continue
			}
			t.update(func(fix *Fix) {
				fix.Valid = true
				fix.Source = "nmea"
				fix.LatDeg = m.Latitude
				fix.LonDeg = m.Longitude
				speed := m.Speed
				course := m.Course
				fix.SpeedKt = &speed
				fix.CourseDeg = &course
				fix.FCount = r.FCount
			})

		case nmea.GGA:
			if m.FixQuality == nmea.Invalid {
				continue
			}
			t.update(func(fix *Fix) {
				fix.Valid = true
				fix.Source = "nmea"
				fix.LatDeg = m.Latitude
				fix.LonDeg = m.Longitude
				alt := m.Altitude
				fix.AltM = &alt
				n := int(m.NumSatellites)
				fix.Satellites = &n
				fix.FCount = r.FCount
			})
		}
	}
}

func (t *FixTracker) update(fn func(*Fix)) {
	t.mu.Lock()
	fn(&t.fix)
	t.fix.LastUpdateUTC = time.Now().UTC().Format(time.RFC3339Nano)
	fix := t.fix
	onFix := t.onFix
	t.mu.Unlock()

	t.last.Store(fix)
	if onFix != nil {
		onFix(fix)
	}
}
