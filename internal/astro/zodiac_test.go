package astro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignOfTotality(t *testing.T) {
	// Every longitude in [0, 360) lands in exactly one band.
	counts := make(map[Sign]int)
	for lon := 0.0; lon < 360; lon += 0.25 {
		s := SignOf(lon)
		require.GreaterOrEqual(t, s, Aries)
		require.LessOrEqual(t, s, Pisces)
		counts[s]++
	}
	require.Len(t, counts, 12)
	for s, n := range counts {
		require.Equal(t, 120, n, "sign %s", s)
	}
}

func TestSignOfBoundaries(t *testing.T) {
	// Multiples of 30 belong to the upper band.
	require.Equal(t, Aries, SignOf(0))
	require.Equal(t, Taurus, SignOf(30))
	require.Equal(t, Pisces, SignOf(330))
	require.Equal(t, Aries, SignOf(360))
	require.Equal(t, Aries, SignOf(29.9999999), "just under the boundary stays in the lower band")

	// Negative and overflowing longitudes reduce mod 360.
	require.Equal(t, Pisces, SignOf(-10))
	require.Equal(t, Taurus, SignOf(390))
}

func TestSignBounds(t *testing.T) {
	for s := Aries; s <= Pisces; s++ {
		lower, upper := SignBounds(s)
		require.Equal(t, float64(s)*30, lower)
		require.Equal(t, lower+30, upper)
		require.Equal(t, s, SignOf(lower))
		require.Equal(t, s, SignOf(upper-0.0001))
		require.NotEqual(t, s, SignOf(upper), "upper bound belongs to the next band")
	}
}

func TestSignNames(t *testing.T) {
	require.Equal(t, "Aries", Aries.String())
	require.Equal(t, "Pisces", Pisces.String())
	require.Equal(t, "Unknown", Sign(12).String())
}
