package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/interpretation"
)

var epoch = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

var testLoc = astro.Location{Longitude: 37.6173, Latitude: 55.7558}

type linearBody struct {
	lon0      float64
	degPerDay float64
}

func (b linearBody) at(t time.Time) float64 {
	days := t.Sub(epoch).Hours() / 24
	lon := math.Mod(b.lon0+b.degPerDay*days, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

type fakeEphemeris struct {
	bodies   map[astro.Planet]linearBody
	illum    func(t time.Time) float64
	rises    []time.Time
	newMoons []time.Time
}

func (f *fakeEphemeris) Position(p astro.Planet, at time.Time, _ *astro.Location) (float64, float64, error) {
	b, ok := f.bodies[p]
	if !ok {
		return 0, 0, astro.ErrEphemeris
	}
	return b.at(at), b.degPerDay, nil
}

func (f *fakeEphemeris) IlluminatedFraction(at time.Time) (float64, error) {
	if f.illum == nil {
		return 0, astro.ErrEphemeris
	}
	return f.illum(at), nil
}

func (f *fakeEphemeris) Moonrise(t time.Time, _ astro.Location) (time.Time, error) {
	day := t.UTC().Truncate(24 * time.Hour)
	for _, r := range f.rises {
		if !r.Before(day) && r.Before(day.Add(24*time.Hour)) {
			return r, nil
		}
	}
	return time.Time{}, astro.ErrNoRising
}

func (f *fakeEphemeris) PrevNewMoon(t time.Time) (time.Time, error) {
	var best time.Time
	for _, nm := range f.newMoons {
		if !nm.After(t) && nm.After(best) {
			best = nm
		}
	}
	if best.IsZero() {
		return time.Time{}, astro.ErrComputation
	}
	return best, nil
}

func (f *fakeEphemeris) NextNewMoon(t time.Time) (time.Time, error) {
	var best time.Time
	for _, nm := range f.newMoons {
		if nm.After(t) && (best.IsZero() || nm.Before(best)) {
			best = nm
		}
	}
	if best.IsZero() {
		return time.Time{}, astro.ErrComputation
	}
	return best, nil
}

type fakeTexts struct {
	aspects map[[2]string]map[int]*database.Interpretation
	signs   map[string]*database.MoonSignInterpretation
}

func (f *fakeTexts) GetInterpretation(transit, natal string, aspect int) (*database.Interpretation, error) {
	byAspect, ok := f.aspects[[2]string{transit, natal}]
	if !ok {
		return nil, nil
	}
	return byAspect[aspect], nil
}

func (f *fakeTexts) GetMoonSignInterpretation(sign string) (*database.MoonSignInterpretation, error) {
	return f.signs[sign], nil
}

// dailyFixture: the moon runs through Aries at 12 degrees per day,
// squaring the stationary sun at epoch+10h and entering Taurus at
// epoch+20h. The remaining bodies are parked clear of the moon's path.
func dailyFixture() *fakeEphemeris {
	eph := &fakeEphemeris{
		bodies: map[astro.Planet]linearBody{
			astro.Moon:    {lon0: 20, degPerDay: 12},
			astro.Sun:     {lon0: 115},
			astro.Mercury: {lon0: 40.3},
			astro.Venus:   {lon0: 43.7},
			astro.Mars:    {lon0: 46.6},
			astro.Jupiter: {lon0: 222},
			astro.Saturn:  {lon0: 250},
			astro.Uranus:  {lon0: 285},
			astro.Neptune: {lon0: 318},
			astro.Pluto:   {lon0: 351},
		},
		illum: func(t time.Time) float64 {
			return 0.2 + 0.1*t.Sub(epoch).Hours()/24
		},
		newMoons: []time.Time{epoch.Add(-4 * time.Hour), epoch.Add(704 * time.Hour)},
	}
	for k := -6; k <= 20; k++ {
		eph.rises = append(eph.rises, epoch.Add(20*time.Hour+time.Duration(k)*(24*time.Hour+50*time.Minute)))
	}
	return eph
}

// dailySubject is born early enough to precede the local day start at
// any offset the tests use
func dailySubject() astro.Subject {
	return astro.Subject{
		BirthAt:      epoch.Add(-6 * time.Hour),
		BirthPlace:   testLoc,
		CurrentPlace: testLoc,
	}
}

func dailyBuilder(eph *fakeEphemeris) *Builder {
	texts := &fakeTexts{
		aspects: map[[2]string]map[int]*database.Interpretation{
			{"Луна", "Солнце"}: {
				90: {TransitPlanet: "Луна", NatalPlanet: "Солнце", Aspect: 90, General: "tension day"},
			},
		},
		signs: map[string]*database.MoonSignInterpretation{
			"Aries": {Sign: "Aries", General: "bold start"},
		},
	}
	store := interpretation.NewStore(texts, zap.NewNop())
	return NewBuilder(astro.NewEngine(eph), store, zap.NewNop())
}

func TestBuildDaily(t *testing.T) {
	b := dailyBuilder(dailyFixture())

	d, err := b.BuildDaily(context.Background(), dailySubject(), epoch, 0)
	require.NoError(t, err)

	require.Equal(t, astro.Aries, d.Signs.StartSign)
	require.True(t, d.Signs.Changed)
	require.Equal(t, astro.Taurus, d.Signs.EndSign)
	require.WithinDuration(t, epoch.Add(20*time.Hour), d.Signs.ChangeAt, 2*time.Minute)

	require.NotNil(t, d.SignText)
	require.Equal(t, "bold start", d.SignText.General)

	require.Equal(t, astro.WaxingCrescent, d.Phase)

	require.Equal(t, 1, d.MainLunarDay.Number)
	require.Len(t, d.LunarDays, 2)
	require.Equal(t, 1, d.LunarDays[0].Number)
	require.Equal(t, 2, d.LunarDays[1].Number)

	require.WithinDuration(t, epoch.Add(10*time.Hour), d.VoidPeriod.Start, 2*time.Minute)
	require.WithinDuration(t, epoch.Add(20*time.Hour), d.VoidPeriod.End, 2*time.Minute)

	// the moon's square to the natal sun plus the four stationary
	// transit bodies conjunct their own natal positions
	require.Len(t, d.Events, 5)

	var square *Event
	for i := range d.Events {
		ev := &d.Events[i]
		if ev.Transit == astro.Moon && ev.Natal == astro.Sun && ev.Aspect == 90 {
			square = ev
		}
	}
	require.NotNil(t, square)
	require.True(t, square.HasPeak)
	require.WithinDuration(t, epoch.Add(10*time.Hour), square.Peak, 2*time.Minute)
	require.NotNil(t, square.Text)
	require.Equal(t, "tension day", square.Text.General)
}

func TestBuildDailyRejectsBadSubject(t *testing.T) {
	b := dailyBuilder(dailyFixture())

	s := dailySubject()
	s.CurrentPlace.Latitude = 91
	_, err := b.BuildDaily(context.Background(), s, epoch, 0)
	require.ErrorIs(t, err, astro.ErrDomain)
}

func TestBuildDailyCancellation(t *testing.T) {
	b := dailyBuilder(dailyFixture())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.BuildDaily(ctx, dailySubject(), epoch, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRender(t *testing.T) {
	b := dailyBuilder(dailyFixture())

	d, err := b.BuildDaily(context.Background(), dailySubject(), epoch, 3)
	require.NoError(t, err)

	// The engine already put the void endpoints on the +3 local clock.
	require.WithinDuration(t, epoch.Add(13*time.Hour), d.VoidPeriod.Start, 2*time.Minute)
	require.WithinDuration(t, epoch.Add(23*time.Hour), d.VoidPeriod.End, 2*time.Minute)

	msg := d.Render("02.01.2006", "15:04")
	require.Contains(t, msg, "10.03.2024")
	require.Contains(t, msg, "Moon in Aries")
	require.Contains(t, msg, "bold start")
	require.Contains(t, msg, "Lunar day: 1")

	// Render must print the void interval as delivered, not shift it again.
	voidLine := "Void-of-course moon: " + d.VoidPeriod.Start.Format("15:04") +
		" – " + d.VoidPeriod.End.Format("15:04")
	require.Contains(t, msg, voidLine)
}
