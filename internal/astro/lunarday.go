package astro

import (
	"errors"
	"fmt"
	"time"
)

const (
	// A lunation holds at most 30 lunar days; walking further means the
	// new-moon bracket is wrong.
	maxLunarDayNumber = 30

	// Moonrise recurs roughly every 24h50m. At polar latitudes whole days
	// can lack a rising, so day-by-day searches get a generous cap.
	maxMoonriseProbeDays = 40
)

// nextMoonrise finds the first moonrise strictly after t, advancing the
// probe date day by day when a polar day yields no rising.
func (e *Engine) nextMoonrise(t time.Time, loc Location) (time.Time, error) {
	day := t.Truncate(24 * time.Hour)
	for i := 0; i < maxMoonriseProbeDays; i++ {
		rise, err := e.eph.Moonrise(day, loc)
		if err == nil && rise.After(t) {
			return rise, nil
		}
		if err != nil && !errors.Is(err, ErrNoRising) {
			return time.Time{}, err
		}
		day = day.Add(24 * time.Hour)
	}
	return time.Time{}, fmt.Errorf("%w: no moonrise within %d days after %s",
		ErrComputation, maxMoonriseProbeDays, t.Format(time.RFC3339))
}

// prevMoonrise finds the last moonrise at or before t
func (e *Engine) prevMoonrise(t time.Time, loc Location) (time.Time, error) {
	day := t.Truncate(24 * time.Hour)
	for i := 0; i < maxMoonriseProbeDays; i++ {
		rise, err := e.eph.Moonrise(day, loc)
		if err == nil && !rise.After(t) {
			return rise, nil
		}
		if err != nil && !errors.Is(err, ErrNoRising) {
			return time.Time{}, err
		}
		day = day.Add(-24 * time.Hour)
	}
	return time.Time{}, fmt.Errorf("%w: no moonrise within %d days before %s",
		ErrComputation, maxMoonriseProbeDays, t.Format(time.RFC3339))
}

// LunarDayEnd returns the instant the current lunar day closes: the next
// moonrise or the next new moon, whichever comes first.
func (e *Engine) LunarDayEnd(t time.Time, loc Location) (time.Time, error) {
	rise, err := e.nextMoonrise(t, loc)
	if err != nil {
		return time.Time{}, err
	}
	newMoon, err := e.eph.NextNewMoon(t)
	if err != nil {
		return time.Time{}, fmt.Errorf("next new moon: %w", err)
	}
	if newMoon.Before(rise) {
		return newMoon, nil
	}
	return rise, nil
}

// LunarDayStart returns the instant the current lunar day opened: the
// previous moonrise or the previous new moon, whichever comes last. Early
// in a lunation no moonrise may precede t at all; the new moon then opens
// the day on its own.
func (e *Engine) LunarDayStart(t time.Time, loc Location) (time.Time, error) {
	newMoon, err := e.eph.PrevNewMoon(t)
	if err != nil {
		return time.Time{}, fmt.Errorf("previous new moon: %w", err)
	}
	rise, err := e.prevMoonrise(t, loc)
	if err != nil {
		if errors.Is(err, ErrComputation) {
			return newMoon, nil
		}
		return time.Time{}, err
	}
	if newMoon.After(rise) {
		return newMoon, nil
	}
	return rise, nil
}

// LunarDayNumber counts the ordinal of the lunar day containing t. Day #1
// opens at the last new moon; every moonrise since then starts the next day.
func (e *Engine) LunarDayNumber(t time.Time, loc Location) (int, error) {
	newMoon, err := e.eph.PrevNewMoon(t)
	if err != nil {
		return 0, fmt.Errorf("previous new moon: %w", err)
	}

	number := 1
	cursor := newMoon
	for {
		rise, err := e.nextMoonrise(cursor, loc)
		if err != nil {
			return 0, err
		}
		if rise.After(t) {
			return number, nil
		}
		number++
		if number > maxLunarDayNumber {
			return 0, fmt.Errorf("%w: more than %d moonrises since new moon %s",
				ErrComputation, maxLunarDayNumber, newMoon.Format(time.RFC3339))
		}
		cursor = rise
	}
}

// LunarDayAt returns the full lunar day record containing t
func (e *Engine) LunarDayAt(t time.Time, loc Location) (LunarDay, error) {
	if err := loc.Validate(); err != nil {
		return LunarDay{}, err
	}
	number, err := e.LunarDayNumber(t, loc)
	if err != nil {
		return LunarDay{}, err
	}
	start, err := e.LunarDayStart(t, loc)
	if err != nil {
		return LunarDay{}, err
	}
	end, err := e.LunarDayEnd(t, loc)
	if err != nil {
		return LunarDay{}, err
	}
	return LunarDay{Number: number, Start: start, End: end}, nil
}

// NextLunarDay returns the lunar day following ld
func (e *Engine) NextLunarDay(ld LunarDay, loc Location) (LunarDay, error) {
	return e.LunarDayAt(ld.End.Add(lunarDayEpsilon), loc)
}

// PreviousLunarDay returns the lunar day preceding ld
func (e *Engine) PreviousLunarDay(ld LunarDay, loc Location) (LunarDay, error) {
	return e.LunarDayAt(ld.Start.Add(-lunarDayEpsilon), loc)
}

// MainLunarDayOnDate selects the lunar day occupying the greatest share of
// the 24-hour local day that begins at utcMidnight. Midnight, noon and the
// next midnight decide the common cases; when all three differ, 25 hourly
// samples are tallied and the most frequent number wins, ties broken by
// first occurrence.
func (e *Engine) MainLunarDayOnDate(utcMidnight time.Time, loc Location) (LunarDay, error) {
	atMidnight, err := e.LunarDayAt(utcMidnight, loc)
	if err != nil {
		return LunarDay{}, err
	}
	atNoon, err := e.LunarDayAt(utcMidnight.Add(12*time.Hour), loc)
	if err != nil {
		return LunarDay{}, err
	}
	if atMidnight.Number == atNoon.Number {
		return atMidnight, nil
	}
	atNext, err := e.LunarDayAt(utcMidnight.Add(24*time.Hour), loc)
	if err != nil {
		return LunarDay{}, err
	}
	if atNoon.Number == atNext.Number {
		return atNoon, nil
	}

	// Three distinct lunar days touch the calendar day. Lunar days run
	// longer than 20 hours, so an hourly grid cannot miss one.
	type sample struct {
		hour time.Time
		day  LunarDay
	}
	counts := make(map[int]int)
	firstAt := make(map[int]sample)
	for h := 0; h <= 24; h++ {
		at := utcMidnight.Add(time.Duration(h) * time.Hour)
		ld, err := e.LunarDayAt(at, loc)
		if err != nil {
			return LunarDay{}, err
		}
		counts[ld.Number]++
		if _, seen := firstAt[ld.Number]; !seen {
			firstAt[ld.Number] = sample{hour: at, day: ld}
		}
	}

	best := atMidnight.Number
	for number, n := range counts {
		switch {
		case n > counts[best]:
			best = number
		case n == counts[best] && firstAt[number].hour.Before(firstAt[best].hour):
			best = number
		}
	}
	return firstAt[best].day, nil
}
