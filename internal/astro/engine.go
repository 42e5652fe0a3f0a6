// Package astro is the astrological computation core: zodiac classification,
// moon sign and phase engines, lunar day enumeration, aspect event search and
// void-of-course derivation. The package is pure and synchronous; all shared
// ephemeris state lives behind the Ephemeris interface.
package astro

import (
	"fmt"
	"time"
)

// Ephemeris supplies planetary positions and lunar circumstances. The
// production implementation wraps the Meeus ephemeris (internal/astro/ephem);
// tests inject deterministic synthetic motion.
type Ephemeris interface {
	// Position returns the ecliptic longitude in degrees (0..360) and the
	// instantaneous angular speed in degrees per day. A non-nil observer
	// activates topocentric correction.
	Position(p Planet, at time.Time, observer *Location) (lonDeg, speedDegPerDay float64, err error)

	// IlluminatedFraction returns the illuminated fraction of the moon's
	// disk, 0..1.
	IlluminatedFraction(at time.Time) (float64, error)

	// Moonrise returns the moonrise during the UT day containing t as seen
	// from loc, or ErrNoRising when the moon never crosses the horizon
	// that day.
	Moonrise(t time.Time, loc Location) (time.Time, error)

	// PrevNewMoon and NextNewMoon bracket t with new-moon instants.
	PrevNewMoon(t time.Time) (time.Time, error)
	NextNewMoon(t time.Time) (time.Time, error)
}

// Search constants shared across the engines. The one-minute stop width is
// fixed so worst-case bisection depth stays bounded.
const (
	bisectStop      = time.Minute
	signProbeStep   = time.Hour
	sampleStride    = 10 * time.Minute
	clusterGap      = 15 * time.Minute
	duplicateGap    = 2 * time.Hour
	lunarDayEpsilon = 10 * time.Minute

	// DefaultOrb is the tolerance in degrees for aspect peak detection
	DefaultOrb = 0.1
)

// Engine exposes the computation operations on top of an Ephemeris
type Engine struct {
	eph Ephemeris
}

// NewEngine creates an engine over the given ephemeris
func NewEngine(eph Ephemeris) *Engine {
	return &Engine{eph: eph}
}

// LocalDayBounds returns the UTC start and end of the local calendar day
// holding date, for a whole-hour UTC offset. All engine math stays in UTC;
// offsets apply only at the edges.
func LocalDayBounds(date time.Time, offsetHours int) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(-time.Duration(offsetHours) * time.Hour)
	return start, start.Add(24 * time.Hour)
}

// moonLon is the common single-lookup path used by the sign searches
func (e *Engine) moonLon(at time.Time, loc Location) (float64, error) {
	lon, _, err := e.eph.Position(Moon, at, &loc)
	if err != nil {
		return 0, fmt.Errorf("moon position at %s: %w", at.Format(time.RFC3339), err)
	}
	return lon, nil
}
