package astro

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAspectOf(t *testing.T) {
	a, ok := AspectOf(10, 10.05, MajorAspects, 0.1)
	require.True(t, ok)
	require.Equal(t, 0, a)

	a, ok = AspectOf(10, 70, MajorAspects, 0.1)
	require.True(t, ok)
	require.Equal(t, 60, a)

	a, ok = AspectOf(350, 170.02, MajorAspects, 0.1)
	require.True(t, ok)
	require.Equal(t, 180, a)

	_, ok = AspectOf(10, 55, MajorAspects, 0.1)
	require.False(t, ok)

	// Tighter orbs reject what looser ones accept.
	_, ok = AspectOf(10, 70.05, MajorAspects, 0.01)
	require.False(t, ok)
}

func TestAspectOfSymmetry(t *testing.T) {
	pairs := [][2]float64{{10, 70}, {359.95, 0.02}, {123.4, 3.45}, {200, 290.08}}
	for _, p := range pairs {
		a1, ok1 := AspectOf(p[0], p[1], MajorAspects, 0.1)
		a2, ok2 := AspectOf(p[1], p[0], MajorAspects, 0.1)
		require.Equal(t, ok1, ok2, "pair %v", p)
		require.Equal(t, a1, a2, "pair %v", p)
	}

	// A longitude against itself is a conjunction whenever 0 is in the set.
	a, ok := AspectOf(137.2, 137.2, MajorAspects, 0.0001)
	require.True(t, ok)
	require.Equal(t, 0, a)
}

func TestAspectOfExtendedNormalization(t *testing.T) {
	// 240 is a trine approached from the other side and reports as 120.
	a, ok := AspectOf(10, 250, ExtendedAspects, 0.1)
	require.True(t, ok)
	require.Equal(t, 120, a)

	a, ok = AspectOf(0, 330.05, ExtendedAspects, 0.1)
	require.True(t, ok)
	require.Equal(t, 30, a)
}

func TestCoalesceClusters(t *testing.T) {
	mk := func(minutes int) AstroEvent {
		return AstroEvent{Transit: Moon, Natal: Sun, Aspect: 0, Peak: epoch.Add(time.Duration(minutes) * time.Minute), HasPeak: true}
	}

	// 0,10,20 form one cluster; the 40-minute sample sits past the
	// 15-minute gap and opens another.
	raw := []AstroEvent{mk(0), mk(10), mk(20), mk(40)}

	out := coalesce(raw, clusterGap, false)
	require.Len(t, out, 1, "de-duplicated scan keeps one event per triple")
	require.Equal(t, epoch.Add(10*time.Minute), out[0].Peak, "peak is the cluster mean")

	out = coalesce(raw, clusterGap, true)
	require.Len(t, out, 2, "a gap over 15 minutes splits clusters")
	require.Equal(t, epoch.Add(10*time.Minute), out[0].Peak)
	require.Equal(t, epoch.Add(40*time.Minute), out[1].Peak)
}

func TestCoalesceKeepsTriplesApart(t *testing.T) {
	raw := []AstroEvent{
		{Transit: Moon, Natal: Sun, Aspect: 0, Peak: epoch, HasPeak: true},
		{Transit: Moon, Natal: Sun, Aspect: 90, Peak: epoch.Add(5 * time.Minute), HasPeak: true},
		{Transit: Mercury, Natal: Sun, Aspect: 0, Peak: epoch.Add(10 * time.Minute), HasPeak: true},
	}
	out := coalesce(raw, clusterGap, false)
	require.Len(t, out, 3, "coalescing never merges different triples")

	for i := 1; i < len(out); i++ {
		require.False(t, out[i].Peak.Before(out[i-1].Peak), "peaks ordered ascending")
	}
}

// conjunctionFixture sets up a moon overtaking the natal sun position
// shortly after epoch. The natal sun is wherever the fake sun was at the
// subject's birth instant.
func conjunctionFixture(subject Subject) *fakeEphemeris {
	f := &fakeEphemeris{
		bodies: map[Planet]linearBody{
			Sun:     {lon0: 100, degPerDay: 0}, // stationary: natal == transit longitude
			Moon:    {lon0: 99, degPerDay: 12},
			Mercury: {lon0: 200, degPerDay: 1},
			Venus:   {lon0: 210, degPerDay: 1.2},
			Mars:    {lon0: 220, degPerDay: 0.5},
			Jupiter: {lon0: 10, degPerDay: 0.08},
			Saturn:  {lon0: 40, degPerDay: 0.03},
			Uranus:  {lon0: 130, degPerDay: 0.01},
			Neptune: {lon0: 160, degPerDay: 0.006},
			Pluto:   {lon0: 190, degPerDay: 0.004},
		},
	}
	return f
}

func TestEventsOnPeriodFindsConjunction(t *testing.T) {
	subject := testSubject()
	e := NewEngine(conjunctionFixture(subject))

	// Moon starts 1 degree behind the natal sun and closes at 12
	// degrees per day: exact conjunction two hours after epoch.
	events, err := e.EventsOnPeriod(context.Background(), epoch, epoch.Add(6*time.Hour), subject)
	require.NoError(t, err)

	var found *AstroEvent
	for i := range events {
		if events[i].Transit == Moon && events[i].Natal == Sun && events[i].Aspect == 0 {
			found = &events[i]
		}
	}
	require.NotNil(t, found, "moon-sun conjunction detected")
	require.True(t, found.HasPeak)
	require.LessOrEqual(t, found.Peak.Sub(epoch.Add(2*time.Hour)).Abs(), 15*time.Minute)
}

func TestEventsOnPeriodDeterministic(t *testing.T) {
	subject := testSubject()
	e := NewEngine(conjunctionFixture(subject))

	first, err := e.EventsOnPeriod(context.Background(), epoch, epoch.Add(24*time.Hour), subject)
	require.NoError(t, err)
	second, err := e.EventsOnPeriod(context.Background(), epoch, epoch.Add(24*time.Hour), subject)
	require.NoError(t, err)
	require.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		require.False(t, first[i].Peak.Before(first[i-1].Peak), "output sorted by peak")
	}
}

func TestEventsOnPeriodCancellation(t *testing.T) {
	subject := testSubject()
	e := NewEngine(conjunctionFixture(subject))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, err := e.EventsOnPeriod(ctx, epoch, epoch.Add(24*time.Hour), subject)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, events, "no partial output on cancellation")
}

func TestEventsOnPeriodRejectsInvertedPeriod(t *testing.T) {
	subject := testSubject()
	e := NewEngine(conjunctionFixture(subject))

	_, err := e.EventsOnPeriod(context.Background(), epoch, epoch.Add(-time.Hour), subject)
	require.ErrorIs(t, err, ErrDomain)
}

func TestPeakTimeRefinement(t *testing.T) {
	subject := testSubject()
	e := NewEngine(conjunctionFixture(subject))

	// At epoch the moon trails the stationary sun by exactly 1 degree
	// and closes at 12 degrees per day: the peak is two hours ahead.
	peak, err := e.PeakTime(epoch, Moon, Sun, 0, subject.CurrentPlace)
	require.NoError(t, err)
	require.LessOrEqual(t, peak.Sub(epoch.Add(2*time.Hour)).Abs(), time.Second)
}

func TestPeakTimeNoRelativeMotion(t *testing.T) {
	f := &fakeEphemeris{
		bodies: map[Planet]linearBody{
			Sun:  {lon0: 10, degPerDay: 1},
			Mars: {lon0: 40, degPerDay: 1},
		},
	}
	e := NewEngine(f)

	_, err := e.PeakTime(epoch, Sun, Mars, 30, testLoc)
	require.ErrorIs(t, err, ErrComputation)
}
