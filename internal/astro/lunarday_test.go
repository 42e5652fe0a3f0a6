package astro

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// lunationFixture builds one synthetic lunation: new moons at epoch and
// epoch+708h (29.5 days), first moonrise 20 hours in, then every 24h50m.
func lunationFixture() *fakeEphemeris {
	f := &fakeEphemeris{
		newMoons: []time.Time{epoch, epoch.Add(708 * time.Hour)},
	}
	for k := 0; k < 40; k++ {
		f.rises = append(f.rises, epoch.Add(20*time.Hour+time.Duration(k)*(24*time.Hour+50*time.Minute)))
	}
	return f
}

func TestLunarDayNumber(t *testing.T) {
	e := NewEngine(lunationFixture())

	n, err := e.LunarDayNumber(epoch.Add(time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, 1, n, "day #1 opens at the new moon")

	n, err = e.LunarDayNumber(epoch.Add(21*time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, 2, n, "first moonrise starts day #2")

	n, err = e.LunarDayNumber(epoch.Add(20*time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, 2, n, "a rise at the query instant already counts")
}

func TestLunarDayBounds(t *testing.T) {
	e := NewEngine(lunationFixture())
	at := epoch.Add(30 * time.Hour) // inside day #2

	ld, err := e.LunarDayAt(at, testLoc)
	require.NoError(t, err)
	require.Equal(t, 2, ld.Number)
	require.Equal(t, epoch.Add(20*time.Hour), ld.Start)
	require.Equal(t, epoch.Add(44*time.Hour+50*time.Minute), ld.End)
}

func TestLunarDayTiling(t *testing.T) {
	e := NewEngine(lunationFixture())
	nextNewMoon := epoch.Add(708 * time.Hour)

	ld, err := e.LunarDayAt(epoch.Add(time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, 1, ld.Number)
	require.Equal(t, epoch, ld.Start)

	// Walk the lunation: contiguous, non-overlapping, numbers increasing
	// by one, closed by the next new moon.
	for ld.End.Before(nextNewMoon) {
		next, err := e.NextLunarDay(ld, testLoc)
		require.NoError(t, err)
		require.Equal(t, ld.End, next.Start, "day %d must end where day %d starts", ld.Number, next.Number)
		require.Equal(t, ld.Number+1, next.Number)
		ld = next
	}
	require.Equal(t, nextNewMoon, ld.End, "the last lunar day closes at the next new moon")
	require.LessOrEqual(t, ld.Number, 30)

	// And back again.
	for ld.Number > 1 {
		prev, err := e.PreviousLunarDay(ld, testLoc)
		require.NoError(t, err)
		require.Equal(t, prev.End, ld.Start)
		require.Equal(t, ld.Number-1, prev.Number)
		ld = prev
	}
}

func TestMainLunarDaySimple(t *testing.T) {
	e := NewEngine(lunationFixture())

	// Midnight and noon of the first day agree on #1.
	ld, err := e.MainLunarDayOnDate(epoch, testLoc)
	require.NoError(t, err)
	require.Equal(t, 1, ld.Number)
}

func TestMainLunarDayNoonAgreement(t *testing.T) {
	e := NewEngine(lunationFixture())

	// One day in: both midnight and noon fall inside day #2, which runs
	// from the first rise at 20h to the next at 44h50m.
	ld, err := e.MainLunarDayOnDate(epoch.Add(24*time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, 2, ld.Number)
}

// twoTransitionFixture puts both a moonrise (M+1h) and a new moon (M+23h)
// inside the local day starting at M, so three lunar days touch it
func twoTransitionFixture(m time.Time) *fakeEphemeris {
	f := &fakeEphemeris{
		newMoons: []time.Time{m.Add(-300 * time.Hour), m.Add(23 * time.Hour), m.Add((23 + 708) * time.Hour)},
	}
	for k := 0; k < 30; k++ {
		f.rises = append(f.rises, m.Add(-274*time.Hour+time.Duration(k)*25*time.Hour))
	}
	return f
}

func TestMainLunarDayTwoTransitions(t *testing.T) {
	m := epoch
	e := NewEngine(twoTransitionFixture(m))

	got, err := e.MainLunarDayOnDate(m, testLoc)
	require.NoError(t, err)

	// Verify dominance by direct hourly counting.
	counts := make(map[int]int)
	for h := 0; h <= 24; h++ {
		ld, err := e.LunarDayAt(m.Add(time.Duration(h)*time.Hour), testLoc)
		require.NoError(t, err)
		counts[ld.Number]++
	}
	require.GreaterOrEqual(t, len(counts), 3, "fixture must produce three distinct lunar days")
	for number, n := range counts {
		require.LessOrEqual(t, n, counts[got.Number], "number %d outweighs the selected %d", number, got.Number)
	}
}

func TestMoonrisePolarRecovery(t *testing.T) {
	// Drop three days of risings after the first one; the search must
	// skip ahead day by day until a rising resolves.
	f := &fakeEphemeris{
		newMoons: []time.Time{epoch, epoch.Add(708 * time.Hour)},
		rises: []time.Time{
			epoch.Add(20 * time.Hour),
			epoch.Add(20*time.Hour + 4*24*time.Hour),
		},
	}
	e := NewEngine(f)

	end, err := e.LunarDayEnd(epoch.Add(21*time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, f.rises[1], end)
}

func TestLunarDayNumberDiverges(t *testing.T) {
	// A lunation stretched past 30 moonrises must be rejected instead of
	// walking the rise table forever.
	f := &fakeEphemeris{
		newMoons: []time.Time{epoch, epoch.Add(900 * time.Hour)},
	}
	for k := 0; k < 40; k++ {
		f.rises = append(f.rises, epoch.Add(time.Hour+time.Duration(k)*24*time.Hour))
	}
	e := NewEngine(f)

	_, err := e.LunarDayNumber(epoch.Add(35*24*time.Hour), testLoc)
	require.ErrorIs(t, err, ErrComputation)
}

// polarEphemeris wraps the fake's moonrise errors the way a production
// adapter does, with the sentinel buried behind context.
type polarEphemeris struct {
	*fakeEphemeris
}

func (p *polarEphemeris) Moonrise(t time.Time, loc Location) (time.Time, error) {
	rise, err := p.fakeEphemeris.Moonrise(t, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: no moonrise on %s", err, t.Format("2006-01-02"))
	}
	return rise, nil
}

func TestMoonrisePolarRecoveryWrappedError(t *testing.T) {
	// Same gap as above, but the circumpolar signal arrives wrapped; the
	// day-by-day search must still skip ahead instead of failing.
	f := &polarEphemeris{fakeEphemeris: &fakeEphemeris{
		newMoons: []time.Time{epoch, epoch.Add(708 * time.Hour)},
		rises: []time.Time{
			epoch.Add(20 * time.Hour),
			epoch.Add(20*time.Hour + 4*24*time.Hour),
		},
	}}
	e := NewEngine(f)

	end, err := e.LunarDayEnd(epoch.Add(21*time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, f.rises[1], end)

	start, err := e.LunarDayStart(epoch.Add(21*time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, f.rises[0], start)
}

func TestLunarDayStartBeforeFirstRise(t *testing.T) {
	// Inside day #1 no moonrise precedes the query at all; the new moon
	// opens the day by itself.
	e := NewEngine(lunationFixture())

	start, err := e.LunarDayStart(epoch.Add(time.Hour), testLoc)
	require.NoError(t, err)
	require.Equal(t, epoch, start)
}
