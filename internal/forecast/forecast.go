// Package forecast assembles per-day astrological forecasts on top of the
// computation core and attaches narrative text from the interpretation store.
package forecast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/interpretation"
)

// The aspect scan window runs from shortly after local midnight to the same
// hour the next day, so late-night peaks land on the day users read them.
const (
	windowLead = 3 * time.Hour
	windowSpan = 24 * time.Hour
)

// Event is a detected aspect with its looked-up narrative, when one exists
type Event struct {
	astro.AstroEvent
	Text *database.Interpretation
}

// Daily is the full forecast record for one subject and local day
type Daily struct {
	Date        time.Time // local midnight, UTC clock
	OffsetHours int

	Signs    astro.DayMoonSigns
	SignText *database.MoonSignInterpretation
	Phase    astro.MoonPhase

	MainLunarDay astro.LunarDay
	LunarDays    []astro.LunarDay

	VoidPeriod astro.TimePeriod

	Events []Event
}

// Builder computes Daily records
type Builder struct {
	engine *astro.Engine
	interp *interpretation.Store
	logger *zap.Logger
}

func NewBuilder(engine *astro.Engine, interp *interpretation.Store, logger *zap.Logger) *Builder {
	return &Builder{engine: engine, interp: interp, logger: logger}
}

// BuildDaily computes the forecast for the local calendar day holding date.
// date carries the local year/month/day on a UTC clock; offsetHours is the
// observed UTC offset of the subject's current place.
func (b *Builder) BuildDaily(ctx context.Context, subject astro.Subject, date time.Time, offsetHours int) (*Daily, error) {
	dayStart, _ := astro.LocalDayBounds(date, offsetHours)
	if err := subject.Validate(dayStart); err != nil {
		return nil, err
	}

	d := &Daily{OffsetHours: offsetHours}
	y, m, dd := date.Date()
	d.Date = time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)

	signs, err := b.engine.MoonSignsOnDate(date, offsetHours, subject.CurrentPlace)
	if err != nil {
		return nil, fmt.Errorf("moon signs: %w", err)
	}
	d.Signs = signs

	signText, err := b.interp.MoonSign(signs.StartSign)
	if err != nil {
		return nil, err
	}
	d.SignText = signText

	localNoon := dayStart.Add(12 * time.Hour)
	phase, err := b.engine.MoonPhaseAt(localNoon)
	if err != nil {
		return nil, fmt.Errorf("moon phase: %w", err)
	}
	d.Phase = phase

	main, err := b.engine.MainLunarDayOnDate(dayStart, subject.CurrentPlace)
	if err != nil {
		return nil, fmt.Errorf("main lunar day: %w", err)
	}
	d.MainLunarDay = main

	days, err := b.lunarDaysOverlapping(dayStart, dayStart.Add(24*time.Hour), subject.CurrentPlace)
	if err != nil {
		return nil, fmt.Errorf("lunar days: %w", err)
	}
	d.LunarDays = days

	void, err := b.engine.VoidMoonPeriod(ctx, date, subject, offsetHours)
	if err != nil {
		return nil, fmt.Errorf("void-of-course: %w", err)
	}
	d.VoidPeriod = void

	events, err := b.engine.EventsOnPeriod(ctx, dayStart.Add(windowLead), dayStart.Add(windowLead+windowSpan), subject)
	if err != nil {
		return nil, fmt.Errorf("aspect events: %w", err)
	}
	for _, ev := range events {
		text, err := b.interp.Aspect(ev.Transit, ev.Natal, ev.Aspect)
		if err != nil {
			return nil, err
		}
		d.Events = append(d.Events, Event{AstroEvent: ev, Text: text})
	}

	return d, nil
}

// lunarDaysOverlapping walks the lunar day chain covering [start, end)
func (b *Builder) lunarDaysOverlapping(start, end time.Time, loc astro.Location) ([]astro.LunarDay, error) {
	ld, err := b.engine.LunarDayAt(start, loc)
	if err != nil {
		return nil, err
	}

	var days []astro.LunarDay
	for ld.Start.Before(end) {
		days = append(days, ld)
		next, err := b.engine.NextLunarDay(ld, loc)
		if err != nil {
			return nil, err
		}
		ld = next
	}
	return days, nil
}
