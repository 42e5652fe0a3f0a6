package astro

import (
	"fmt"
	"time"
)

// phaseProbeOffset is how far back the waxing/waning disambiguation looks.
// Six hours is coarse enough to ignore jitter near the quarters while
// never crossing one.
const phaseProbeOffset = 6 * time.Hour

// MoonPhaseAt classifies the moon phase at the given instant using
// illuminated-fraction bands. Crescent, quarter and gibbous bands are
// disambiguated by comparing the fraction six hours earlier.
// The fraction is geocentric; the parallax shift for a surface observer
// changes it by far less than a band width, so no observer is taken.
func (e *Engine) MoonPhaseAt(at time.Time) (MoonPhase, error) {
	f, err := e.eph.IlluminatedFraction(at)
	if err != nil {
		return 0, fmt.Errorf("illuminated fraction at %s: %w", at.Format(time.RFC3339), err)
	}

	switch {
	case f <= 0.01:
		return NewMoon, nil
	case f >= 0.99:
		return FullMoon, nil
	}

	earlier, err := e.eph.IlluminatedFraction(at.Add(-phaseProbeOffset))
	if err != nil {
		return 0, fmt.Errorf("illuminated fraction probe: %w", err)
	}
	waxing := f > earlier

	switch {
	case f < 0.45:
		if waxing {
			return WaxingCrescent, nil
		}
		return WaningCrescent, nil
	case f <= 0.55:
		if waxing {
			return FirstQuarter, nil
		}
		return LastQuarter, nil
	default:
		if waxing {
			return WaxingGibbous, nil
		}
		return WaningGibbous, nil
	}
}
