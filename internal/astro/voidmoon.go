package astro

import (
	"context"
	"fmt"
	"time"
)

// monoEventsOnPeriod scans for aspects the first planet forms against the
// others with both bodies taken at the same instant. Used for the moon's
// running aspects inside its current sign.
func (e *Engine) monoEventsOnPeriod(ctx context.Context, start, end time.Time, loc Location, first Planet, others []Planet) ([]AstroEvent, error) {
	var raw []AstroEvent
	for at := start; !at.After(end); at = at.Add(sampleStride) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		firstLon, _, err := e.eph.Position(first, at, &loc)
		if err != nil {
			return nil, fmt.Errorf("%s at %s: %w", first, at.Format(time.RFC3339), err)
		}
		for _, other := range others {
			lon, _, err := e.eph.Position(other, at, &loc)
			if err != nil {
				return nil, fmt.Errorf("%s at %s: %w", other, at.Format(time.RFC3339), err)
			}
			if a, ok := AspectOf(firstLon, lon, MajorAspects, DefaultOrb); ok {
				raw = append(raw, AstroEvent{
					Transit: first,
					Natal:   other,
					Aspect:  a,
					Peak:    at,
					HasPeak: true,
				})
			}
		}
	}
	return coalesce(raw, duplicateGap, true), nil
}

// VoidMoonPeriod derives the void-of-course interval of the local calendar
// day holding date: from the moon's last major aspect inside its current
// sign to the moment it leaves the sign. Both endpoints are shifted to the
// local clock by the same offset. When no aspect peaks inside the sign,
// the whole sign period is void.
func (e *Engine) VoidMoonPeriod(ctx context.Context, date time.Time, subject Subject, offsetHours int) (TimePeriod, error) {
	dayStart, _ := LocalDayBounds(date, offsetHours)

	// Local noon sits safely inside the day whatever the offset.
	signPeriod, err := e.MoonSignPeriod(dayStart.Add(12*time.Hour), subject)
	if err != nil {
		return TimePeriod{}, err
	}

	others := make([]Planet, 0, len(NatalPlanets)-1)
	for _, p := range NatalPlanets {
		if p != Moon {
			others = append(others, p)
		}
	}

	events, err := e.monoEventsOnPeriod(ctx, signPeriod.Start, signPeriod.End, subject.CurrentPlace, Moon, others)
	if err != nil {
		return TimePeriod{}, err
	}

	shift := time.Duration(offsetHours) * time.Hour
	var lastPeak time.Time
	for _, ev := range events {
		if ev.HasPeak && ev.Peak.After(lastPeak) && signPeriod.Contains(ev.Peak) {
			lastPeak = ev.Peak
		}
	}
	if lastPeak.IsZero() {
		return signPeriod.Shift(shift), nil
	}
	return TimePeriod{Start: lastPeak, End: signPeriod.End}.Shift(shift), nil
}
