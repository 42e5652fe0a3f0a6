// Package tz derives wall-clock offsets from geographic coordinates. The
// engines do all their math in UTC; offsets are only applied at the
// presentation edges.
package tz

import (
	"fmt"
	"time"

	"github.com/ringsaturn/tzf"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
)

// Service resolves coordinates to IANA zones and whole-hour UTC offsets
type Service struct {
	finder tzf.F
}

// NewService builds the timezone finder from the embedded polygon data
func NewService() (*Service, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("timezone finder: %w", err)
	}
	return &Service{finder: finder}, nil
}

// ZoneName returns the IANA zone name for a location
func (s *Service) ZoneName(loc astro.Location) (string, error) {
	if err := loc.Validate(); err != nil {
		return "", err
	}
	name := s.finder.GetTimezoneName(loc.Longitude, loc.Latitude)
	if name == "" {
		return "", fmt.Errorf("%w: no timezone for lon %.4f lat %.4f",
			astro.ErrDomain, loc.Longitude, loc.Latitude)
	}
	return name, nil
}

// OffsetHours returns the observed UTC offset, DST included, at the
// current wall clock of the location
func (s *Service) OffsetHours(loc astro.Location) (int, error) {
	return s.OffsetHoursAt(loc, time.Now())
}

// OffsetHoursAt returns the observed UTC offset at the given instant
func (s *Service) OffsetHoursAt(loc astro.Location, at time.Time) (int, error) {
	name, err := s.ZoneName(loc)
	if err != nil {
		return 0, err
	}
	zone, err := time.LoadLocation(name)
	if err != nil {
		return 0, fmt.Errorf("loading zone %q: %w", name, err)
	}
	_, offsetSeconds := at.In(zone).Zone()
	return offsetSeconds / 3600, nil
}

// LocalDayBounds returns the UTC bracket of the local calendar day holding
// date for the given whole-hour offset
func LocalDayBounds(date time.Time, offsetHours int) (time.Time, time.Time) {
	return astro.LocalDayBounds(date, offsetHours)
}
