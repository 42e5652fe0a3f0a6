package astro

import "errors"

var (
	// ErrEphemeris indicates the underlying ephemeris lookup failed.
	// Fatal to the enclosing query.
	ErrEphemeris = errors.New("ephemeris lookup failed")

	// ErrComputation indicates a numerical search did not converge
	ErrComputation = errors.New("computation did not converge")

	// ErrDomain indicates inputs out of range, rejected before computation
	ErrDomain = errors.New("input out of range")

	// ErrNoRising is returned by moonrise lookups at polar latitudes when
	// the moon stays above or below the horizon for the whole day. The
	// lunar day engine recovers by advancing the probe date.
	ErrNoRising = errors.New("no moonrise in window")
)
