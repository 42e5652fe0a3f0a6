package astro

import (
	"fmt"
	"time"
)

// Location is a geographic observer position
type Location struct {
	Longitude float64 // degrees, east positive, -180..180
	Latitude  float64 // degrees, north positive, -90..90
	Altitude  float64 // meters above sea level
}

// Validate checks the coordinate ranges
func (l Location) Validate() error {
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("%w: longitude %.4f outside [-180, 180]", ErrDomain, l.Longitude)
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("%w: latitude %.4f outside [-90, 90]", ErrDomain, l.Latitude)
	}
	return nil
}

// Subject is the person a forecast is computed for. Immutable per query.
type Subject struct {
	BirthAt      time.Time // UTC
	BirthPlace   Location
	CurrentPlace Location
}

// Validate checks the subject against a query instant
func (s Subject) Validate(query time.Time) error {
	if err := s.BirthPlace.Validate(); err != nil {
		return err
	}
	if err := s.CurrentPlace.Validate(); err != nil {
		return err
	}
	if s.BirthAt.IsZero() {
		return fmt.Errorf("%w: birth instant not set", ErrDomain)
	}
	if !query.IsZero() && s.BirthAt.After(query) {
		return fmt.Errorf("%w: birth instant %s after query instant %s",
			ErrDomain, s.BirthAt.Format(time.RFC3339), query.Format(time.RFC3339))
	}
	return nil
}

// TimePeriod is a half-open interval [Start, End)
type TimePeriod struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the period
func (p TimePeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Duration returns the period length
func (p TimePeriod) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// Shift returns the period moved by d, both endpoints together
func (p TimePeriod) Shift(d time.Duration) TimePeriod {
	return TimePeriod{Start: p.Start.Add(d), End: p.End.Add(d)}
}

// MoonSignSegment is a maximal interval during which the moon keeps one sign
type MoonSignSegment struct {
	Period TimePeriod
	Sign   Sign
}

// DayMoonSigns describes the moon sign over one local calendar day
type DayMoonSigns struct {
	StartSign Sign
	Changed   bool
	ChangeAt  time.Time // UTC, meaningful only when Changed
	EndSign   Sign      // equals StartSign when !Changed
}

// MoonPhase is the classified phase of the moon
type MoonPhase int

const (
	NewMoon MoonPhase = iota
	WaxingCrescent
	FirstQuarter
	WaxingGibbous
	FullMoon
	WaningGibbous
	LastQuarter
	WaningCrescent
)

var phaseNames = [...]string{
	"New", "WaxingCrescent", "FirstQuarter", "WaxingGibbous",
	"Full", "WaningGibbous", "LastQuarter", "WaningCrescent",
}

func (m MoonPhase) String() string {
	if m < NewMoon || m > WaningCrescent {
		return "Unknown"
	}
	return phaseNames[m]
}

// Waxing reports whether the phase is on the growing half of the lunation
func (m MoonPhase) Waxing() bool {
	switch m {
	case WaxingCrescent, FirstQuarter, WaxingGibbous:
		return true
	}
	return false
}

// LunarDay is one ordinal day of a lunation, delimited by moonrises and
// capped by the new moons on either side
type LunarDay struct {
	Number int // 1..30
	Start  time.Time
	End    time.Time
}

// AstroEvent is one detected aspect between a transit and a natal planet.
// For mono events both positions are taken at the same instant and the
// pair reads (first planet, second planet).
type AstroEvent struct {
	Transit Planet
	Natal   Planet
	Aspect  int // degrees, normalized to 0..180
	Peak    time.Time
	HasPeak bool
}

// Key identifies the event triple independent of peak time
func (e AstroEvent) Key() string {
	return fmt.Sprintf("%s/%s/%d", e.Transit, e.Natal, e.Aspect)
}
