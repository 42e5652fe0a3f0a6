// Package ephem adapts the Meeus planetary theory (learnmeeus/v3) to the
// astro.Ephemeris interface: geocentric and topocentric ecliptic longitudes,
// angular speeds, lunar illumination, moonrises and new-moon instants.
//
// VSOP87 planet data is read from a library-defined directory; a missing or
// unreadable dataset surfaces as astro.ErrEphemeris at construction time.
package ephem

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mooncaker816/learnmeeus/v3/base"
	"github.com/mooncaker816/learnmeeus/v3/coord"
	"github.com/mooncaker816/learnmeeus/v3/globe"
	"github.com/mooncaker816/learnmeeus/v3/julian"
	"github.com/mooncaker816/learnmeeus/v3/moonphase"
	"github.com/mooncaker816/learnmeeus/v3/moonposition"
	"github.com/mooncaker816/learnmeeus/v3/nutation"
	"github.com/mooncaker816/learnmeeus/v3/parallax"
	pp "github.com/mooncaker816/learnmeeus/v3/planetposition"
	"github.com/mooncaker816/learnmeeus/v3/pluto"
	"github.com/mooncaker816/learnmeeus/v3/rise"
	"github.com/mooncaker816/learnmeeus/v3/sidereal"
	"github.com/mooncaker816/learnmeeus/v3/solar"
	"github.com/soniakeys/unit"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
)

const (
	auKm        = 149597870.7
	earthRadius = 6378.14 // km, equatorial

	// speedStep is the half-width in days of the symmetric difference
	// used for angular speed. Wide enough to dominate position noise,
	// narrow enough that curvature stays negligible.
	speedStep = 0.02

	synodicMonthYears = 29.530588 / 365.25
)

// vsopIndex maps the astro planets carried by VSOP87 to library indices
var vsopIndex = map[astro.Planet]int{
	astro.Mercury: pp.Mercury,
	astro.Venus:   pp.Venus,
	astro.Mars:    pp.Mars,
	astro.Jupiter: pp.Jupiter,
	astro.Saturn:  pp.Saturn,
	astro.Uranus:  pp.Uranus,
	astro.Neptune: pp.Neptune,
}

// Adapter implements astro.Ephemeris on top of the Meeus routines. It owns
// the loaded VSOP87 planet tables; loading is serialized by a mutex and
// computed positions are memoized in a bounded LRU cache.
type Adapter struct {
	mu      sync.Mutex
	earth   *pp.V87Planet
	planets map[astro.Planet]*pp.V87Planet
	cache   *positionCache
}

// New creates an adapter, loading the Earth tables eagerly since nearly
// every lookup needs them
func New() (*Adapter, error) {
	earth, err := pp.LoadPlanet(pp.Earth)
	if err != nil {
		return nil, fmt.Errorf("%w: loading VSOP87 earth tables: %v", astro.ErrEphemeris, err)
	}
	return &Adapter{
		earth:   earth,
		planets: make(map[astro.Planet]*pp.V87Planet),
		cache:   newPositionCache(defaultCacheSize),
	}, nil
}

func (a *Adapter) planet(p astro.Planet) (*pp.V87Planet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.planets[p]; ok {
		return v, nil
	}
	idx, ok := vsopIndex[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no VSOP87 tables", astro.ErrEphemeris, p)
	}
	v, err := pp.LoadPlanet(idx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading VSOP87 tables for %s: %v", astro.ErrEphemeris, p, err)
	}
	a.planets[p] = v
	return v, nil
}

// JulianDay converts a UTC instant to a Julian Day number
func JulianDay(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// Position returns the ecliptic longitude in degrees and the angular speed
// in degrees per day. A non-nil observer activates topocentric correction.
func (a *Adapter) Position(p astro.Planet, at time.Time, observer *astro.Location) (float64, float64, error) {
	jd := JulianDay(at)
	if lon, speed, ok := a.cache.get(p, jd, observer); ok {
		return lon, speed, nil
	}

	lon, err := a.longitudeAt(p, jd, observer)
	if err != nil {
		return 0, 0, err
	}
	before, err := a.longitudeAt(p, jd-speedStep, observer)
	if err != nil {
		return 0, 0, err
	}
	after, err := a.longitudeAt(p, jd+speedStep, observer)
	if err != nil {
		return 0, 0, err
	}
	speed := wrap180(after-before) / (2 * speedStep)

	a.cache.put(p, jd, observer, lon, speed)
	return lon, speed, nil
}

func (a *Adapter) longitudeAt(p astro.Planet, jd float64, observer *astro.Location) (float64, error) {
	lonDeg, latDeg, distAU, err := a.geocentric(p, jd)
	if err != nil {
		return 0, err
	}
	if observer == nil {
		return normDeg(lonDeg), nil
	}
	topoLon := topocentricLongitude(lonDeg, latDeg, distAU, *observer, jd)
	return normDeg(topoLon), nil
}

// geocentric returns ecliptic-of-date longitude and latitude in degrees and
// the distance in AU
func (a *Adapter) geocentric(p astro.Planet, jd float64) (lonDeg, latDeg, distAU float64, err error) {
	switch p {
	case astro.Moon:
		λ, β, Δ := moonposition.Position(jd)
		Δψ, _ := nutation.Nutation(jd)
		return λ.Deg() + Δψ.Deg(), β.Deg(), Δ / auKm, nil

	case astro.Sun:
		s, β, R := solar.ApparentVSOP87(a.earth, jd)
		return s.Deg(), β.Deg(), R, nil

	case astro.Pluto:
		l, b, r := pluto.Heliocentric(jd)
		L0, B0, R0 := a.earth.Position2000(jd)
		lon, lat, dist := helioToGeo(l.Deg(), b.Deg(), r, L0.Deg(), B0.Deg(), R0)
		// Pluto's theory is referred to J2000; bring the longitude to
		// the equinox of date with the general precession rate.
		lon += generalPrecession(jd)
		return lon, lat, dist, nil

	default:
		planet, err := a.planet(p)
		if err != nil {
			return 0, 0, 0, err
		}
		L0, B0, R0 := a.earth.Position(jd)
		L, B, R := planet.Position(jd)
		lon, lat, dist := helioToGeo(L.Deg(), B.Deg(), R, L0.Deg(), B0.Deg(), R0)
		// One light-time iteration keeps the fast inner planets within
		// the aspect orb.
		jdRetarded := jd - 0.0057755183*dist
		L, B, R = planet.Position(jdRetarded)
		lon, lat, dist = helioToGeo(L.Deg(), B.Deg(), R, L0.Deg(), B0.Deg(), R0)
		return lon, lat, dist, nil
	}
}

// helioToGeo converts heliocentric spherical coordinates of a body and of
// the Earth to geocentric ecliptic longitude, latitude and distance
func helioToGeo(lDeg, bDeg, r, l0Deg, b0Deg, r0 float64) (lonDeg, latDeg, distAU float64) {
	l, b := lDeg*math.Pi/180, bDeg*math.Pi/180
	l0, b0 := l0Deg*math.Pi/180, b0Deg*math.Pi/180

	x := r*math.Cos(b)*math.Cos(l) - r0*math.Cos(b0)*math.Cos(l0)
	y := r*math.Cos(b)*math.Sin(l) - r0*math.Cos(b0)*math.Sin(l0)
	z := r*math.Sin(b) - r0*math.Sin(b0)

	dist := math.Sqrt(x*x + y*y + z*z)
	lon := math.Atan2(y, x) * 180 / math.Pi
	lat := math.Atan2(z, math.Hypot(x, y)) * 180 / math.Pi
	return normDeg(lon), lat, dist
}

// generalPrecession is the accumulated general precession in ecliptic
// longitude from J2000 to the epoch of jd, in degrees
func generalPrecession(jd float64) float64 {
	T := base.J2000Century(jd)
	return (5029.0966 * T / 3600) // arcsec per Julian century
}

// topocentricLongitude applies diurnal parallax for an observer via the
// equatorial route: ecliptic -> equatorial -> topocentric -> ecliptic
func topocentricLongitude(lonDeg, latDeg, distAU float64, obs astro.Location, jd float64) float64 {
	ε := nutation.MeanObliquity(jd)
	sε, cε := math.Sincos(ε.Rad())

	α, δ := coord.EclToEq(unit.AngleFromDeg(lonDeg), unit.AngleFromDeg(latDeg), sε, cε)
	ρs, ρc := globe.Earth76.ParallaxConstants(unit.AngleFromDeg(obs.Latitude), obs.Altitude)
	// Meeus counts geographic longitude positive west.
	west := unit.AngleFromDeg(-obs.Longitude)
	αt, δt := parallax.Topocentric(α, δ, distAU, ρs, ρc, west, jd)
	λ, _ := coord.EqToEcl(αt, δt, sε, cε)
	return λ.Deg()
}

// IlluminatedFraction returns the illuminated fraction of the moon's disk
func (a *Adapter) IlluminatedFraction(at time.Time) (float64, error) {
	jd := JulianDay(at)
	λ, β, Δ := moonposition.Position(jd)
	s, _, R := solar.ApparentVSOP87(a.earth, jd)

	// Meeus 48.2/48.3: geocentric elongation, then phase angle from the
	// triangle sun-earth-moon.
	cosψ := math.Cos(β.Rad()) * math.Cos(λ.Rad()-s.Rad())
	ψ := math.Acos(cosψ)
	sunKm := R * auKm
	i := math.Atan2(sunKm*math.Sin(ψ), Δ-sunKm*cosψ)
	return base.Illuminated(unit.Angle(i)), nil
}

// Moonrise returns the moonrise of the UT day containing t as seen from
// loc. Circumpolar days surface astro.ErrNoRising.
func (a *Adapter) Moonrise(t time.Time, loc astro.Location) (time.Time, error) {
	dayStart := t.UTC().Truncate(24 * time.Hour)
	jd0 := JulianDay(dayStart)
	Th0 := sidereal.Apparent(jd0)

	coords := globe.Coord{
		Lat: unit.AngleFromDeg(loc.Latitude),
		Lon: unit.AngleFromDeg(-loc.Longitude),
	}

	// ApproxTimes holds the lunar coordinates fixed over the day, so
	// refine by re-evaluating them at the candidate instant.
	riseFrac := 0.5
	for iter := 0; iter < 3; iter++ {
		λ, β, Δ := moonposition.Position(jd0 + riseFrac)
		ε := nutation.MeanObliquity(jd0)
		sε, cε := math.Sincos(ε.Rad())
		α, δ := coord.EclToEq(λ, β, sε, cε)

		π := unit.Angle(math.Asin(earthRadius / Δ))
		h0 := rise.Stdh0Lunar(π)

		tRise, _, _, err := rise.ApproxTimes(coords, h0, Th0, α, δ)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s at lat %.2f: %v",
				astro.ErrNoRising, dayStart.Format("2006-01-02"), loc.Latitude, err)
		}
		riseFrac = tRise.Day()
	}
	return dayStart.Add(time.Duration(riseFrac * 24 * float64(time.Hour))), nil
}

// PrevNewMoon returns the last new moon at or before t
func (a *Adapter) PrevNewMoon(t time.Time) (time.Time, error) {
	return a.newMoonNear(t, false)
}

// NextNewMoon returns the first new moon after t
func (a *Adapter) NextNewMoon(t time.Time) (time.Time, error) {
	return a.newMoonNear(t, true)
}

// newMoonNear scans adjacent lunations around t; moonphase.New snaps a
// decimal year to its nearest true new moon
func (a *Adapter) newMoonNear(t time.Time, next bool) (time.Time, error) {
	jd := JulianDay(t)
	year := base.JDEToJulianYear(jd)

	best := math.NaN()
	for k := -2.0; k <= 2.0; k++ {
		nm := moonphase.New(year + k*synodicMonthYears)
		if next {
			if nm > jd && (math.IsNaN(best) || nm < best) {
				best = nm
			}
		} else {
			if nm <= jd && (math.IsNaN(best) || nm > best) {
				best = nm
			}
		}
	}
	if math.IsNaN(best) {
		return time.Time{}, fmt.Errorf("%w: no new moon bracket near %s",
			astro.ErrComputation, t.Format(time.RFC3339))
	}
	return julian.JDToTime(best).UTC(), nil
}

// normDeg reduces an angle in degrees to [0, 360)
func normDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// wrap180 reduces an angle in degrees to (-180, 180]
func wrap180(d float64) float64 {
	d = normDeg(d)
	if d > 180 {
		d -= 360
	}
	return d
}
