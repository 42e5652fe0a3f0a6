package astro

import (
	"fmt"
	"time"
)

// The moon covers about half a degree per hour, so one-hour probes can
// never skip a 30-degree sign band.
const maxSignProbes = 80

// MoonSignAt returns the moon's zodiac sign at the given instant
func (e *Engine) MoonSignAt(at time.Time, loc Location) (Sign, error) {
	if err := loc.Validate(); err != nil {
		return 0, err
	}
	lon, err := e.moonLon(at, loc)
	if err != nil {
		return 0, err
	}
	return SignOf(lon), nil
}

// MoonSignsOnDate evaluates the moon sign at the start and end of the local
// calendar day and, when they differ, bisects the transition instant to
// within one minute. ChangeAt is returned in UTC.
func (e *Engine) MoonSignsOnDate(date time.Time, offsetHours int, loc Location) (DayMoonSigns, error) {
	dayStart, dayEnd := LocalDayBounds(date, offsetHours)

	startSign, err := e.MoonSignAt(dayStart, loc)
	if err != nil {
		return DayMoonSigns{}, err
	}
	endSign, err := e.MoonSignAt(dayEnd, loc)
	if err != nil {
		return DayMoonSigns{}, err
	}

	if startSign == endSign {
		return DayMoonSigns{StartSign: startSign, EndSign: endSign}, nil
	}

	changeAt, err := e.bisectSignChange(dayStart, dayEnd, startSign, loc)
	if err != nil {
		return DayMoonSigns{}, err
	}
	return DayMoonSigns{
		StartSign: startSign,
		Changed:   true,
		ChangeAt:  changeAt,
		EndSign:   endSign,
	}, nil
}

// MoonSignPeriod returns the half-open interval [start, end) during which
// the moon keeps the sign it holds at the given instant. The bracket is
// found by one-hour strides away from the instant, then bisection into the
// hour where the sign flips.
func (e *Engine) MoonSignPeriod(at time.Time, subject Subject) (TimePeriod, error) {
	if err := subject.Validate(at); err != nil {
		return TimePeriod{}, err
	}
	loc := subject.CurrentPlace

	refSign, err := e.MoonSignAt(at, loc)
	if err != nil {
		return TimePeriod{}, err
	}

	start, err := e.signEdge(at, refSign, loc, -1)
	if err != nil {
		return TimePeriod{}, err
	}
	end, err := e.signEdge(at, refSign, loc, +1)
	if err != nil {
		return TimePeriod{}, err
	}
	return TimePeriod{Start: start, End: end}, nil
}

// signEdge walks in one-hour strides in the given direction until the sign
// changes, then bisects into that hour. dir is -1 for the sign's start,
// +1 for its end.
func (e *Engine) signEdge(at time.Time, refSign Sign, loc Location, dir int) (time.Time, error) {
	step := time.Duration(dir) * signProbeStep
	inside := at
	for i := 0; i < maxSignProbes; i++ {
		probe := inside.Add(step)
		s, err := e.MoonSignAt(probe, loc)
		if err != nil {
			return time.Time{}, err
		}
		if s != refSign {
			if dir > 0 {
				return e.bisectSignChange(inside, probe, refSign, loc)
			}
			// Bisecting towards the past: the reference sign sits on
			// the right of the bracket.
			return e.bisectSignStart(probe, inside, refSign, loc)
		}
		inside = probe
	}
	return time.Time{}, fmt.Errorf("%w: no sign change within %d hours of %s",
		ErrComputation, maxSignProbes, at.Format(time.RFC3339))
}

// bisectSignChange narrows [lo, hi], where lo holds refSign and hi does not,
// to the transition instant within one minute. The returned instant is the
// first probe past the boundary.
func (e *Engine) bisectSignChange(lo, hi time.Time, refSign Sign, loc Location) (time.Time, error) {
	for hi.Sub(lo) > bisectStop {
		mid := lo.Add(hi.Sub(lo) / 2)
		s, err := e.MoonSignAt(mid, loc)
		if err != nil {
			return time.Time{}, err
		}
		if s == refSign {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil
}

// bisectSignStart narrows [lo, hi], where hi holds refSign and lo does not,
// to the instant the reference sign begins.
func (e *Engine) bisectSignStart(lo, hi time.Time, refSign Sign, loc Location) (time.Time, error) {
	for hi.Sub(lo) > bisectStop {
		mid := lo.Add(hi.Sub(lo) / 2)
		s, err := e.MoonSignAt(mid, loc)
		if err != nil {
			return time.Time{}, err
		}
		if s == refSign {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi, nil
}
