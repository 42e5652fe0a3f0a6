package astro

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// MajorAspects are the separations used for void-of-course and peak search
var MajorAspects = []int{0, 60, 90, 120, 180}

// ExtendedAspects adds the harmonics recognized during event detection.
// Values above 180 are the same separations approached from the other
// direction and normalize to their supplement on match.
var ExtendedAspects = []int{0, 30, 60, 90, 120, 150, 180, 240, 270, 300, 330, 360}

// AspectOf checks whether the separation of two longitudes matches one of
// the target angles within orb. The match is returned normalized to 0..180.
// The check is symmetric in its longitude arguments; iteration order of the
// aspect set decides ties deterministically.
func AspectOf(lon1, lon2 float64, aspects []int, orb float64) (int, bool) {
	sep := normDeg(lon1 - lon2)
	if sep > 180 {
		sep = 360 - sep
	}
	for _, a := range aspects {
		target := a
		if target > 180 {
			target = 360 - target
		}
		if math.Abs(sep-float64(target)) <= orb {
			return target, true
		}
	}
	return 0, false
}

// natalLongitudes evaluates every natal planet once at the birth instant
func (e *Engine) natalLongitudes(subject Subject) (map[Planet]float64, error) {
	natal := make(map[Planet]float64, len(NatalPlanets))
	for _, p := range NatalPlanets {
		lon, _, err := e.eph.Position(p, subject.BirthAt, &subject.BirthPlace)
		if err != nil {
			return nil, fmt.Errorf("natal %s: %w", p, err)
		}
		natal[p] = lon
	}
	return natal, nil
}

// EventsAt returns the aspects the transit planets form at the given
// instant against the subject's natal positions. Peaks are left unset.
func (e *Engine) EventsAt(at time.Time, subject Subject) ([]AstroEvent, error) {
	if err := subject.Validate(at); err != nil {
		return nil, err
	}
	natal, err := e.natalLongitudes(subject)
	if err != nil {
		return nil, err
	}
	return e.eventsAgainstNatal(at, subject.CurrentPlace, natal)
}

func (e *Engine) eventsAgainstNatal(at time.Time, loc Location, natal map[Planet]float64) ([]AstroEvent, error) {
	var events []AstroEvent
	for _, transit := range TransitPlanets {
		lon, _, err := e.eph.Position(transit, at, &loc)
		if err != nil {
			return nil, fmt.Errorf("transit %s at %s: %w", transit, at.Format(time.RFC3339), err)
		}
		for _, np := range NatalPlanets {
			if a, ok := AspectOf(lon, natal[np], MajorAspects, DefaultOrb); ok {
				events = append(events, AstroEvent{
					Transit: transit,
					Natal:   np,
					Aspect:  a,
					Peak:    at,
					HasPeak: true,
				})
			}
		}
	}
	return events, nil
}

// EventsOnPeriod scans [start, end] at a fixed ten-minute stride and
// coalesces consecutive detections of the same (transit, natal, aspect)
// triple into a single event whose peak is the mean of the cluster. The
// output is sorted by peak ascending, peakless events first. The context
// is polled between samples; on cancellation no partial output is kept.
func (e *Engine) EventsOnPeriod(ctx context.Context, start, end time.Time, subject Subject) ([]AstroEvent, error) {
	raw, err := e.scanPeriod(ctx, start, end, subject)
	if err != nil {
		return nil, err
	}
	return coalesce(raw, clusterGap, false), nil
}

// EventsOnPeriodWithDuplicates keeps distinct occurrences of the same
// triple when their detections are separated by more than two hours,
// still averaging timestamps inside each sub-cluster.
func (e *Engine) EventsOnPeriodWithDuplicates(ctx context.Context, start, end time.Time, subject Subject) ([]AstroEvent, error) {
	raw, err := e.scanPeriod(ctx, start, end, subject)
	if err != nil {
		return nil, err
	}
	return coalesce(raw, duplicateGap, true), nil
}

func (e *Engine) scanPeriod(ctx context.Context, start, end time.Time, subject Subject) ([]AstroEvent, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: period end %s before start %s",
			ErrDomain, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if err := subject.Validate(start); err != nil {
		return nil, err
	}
	natal, err := e.natalLongitudes(subject)
	if err != nil {
		return nil, err
	}

	var raw []AstroEvent
	for at := start; !at.After(end); at = at.Add(sampleStride) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		events, err := e.eventsAgainstNatal(at, subject.CurrentPlace, natal)
		if err != nil {
			return nil, err
		}
		raw = append(raw, events...)
	}
	return raw, nil
}

// coalesce groups raw detections by triple, splits each group into
// clusters wherever the gap between adjacent timestamps exceeds maxGap,
// and emits one representative per cluster with the mean timestamp.
// With keepAll false only the first cluster of each group survives, which
// is the single-occurrence semantics of EventsOnPeriod.
func coalesce(raw []AstroEvent, maxGap time.Duration, keepAll bool) []AstroEvent {
	groups := make(map[string][]AstroEvent)
	var order []string
	for _, ev := range raw {
		k := ev.Key()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], ev)
	}

	out := make([]AstroEvent, 0, len(order))
	for _, k := range order {
		group := groups[k]
		sort.Slice(group, func(i, j int) bool { return group[i].Peak.Before(group[j].Peak) })

		clusterStart := 0
		for i := 1; i <= len(group); i++ {
			if i < len(group) && group[i].Peak.Sub(group[i-1].Peak) <= maxGap {
				continue
			}
			out = append(out, meanEvent(group[clusterStart:i]))
			clusterStart = i
			if !keepAll {
				break
			}
		}
	}

	sortEvents(out)
	return out
}

// meanEvent collapses a cluster into one event at the arithmetic mean of
// its timestamps
func meanEvent(cluster []AstroEvent) AstroEvent {
	rep := cluster[0]
	if len(cluster) == 1 {
		return rep
	}
	base := cluster[0].Peak
	var total time.Duration
	for _, ev := range cluster {
		total += ev.Peak.Sub(base)
	}
	rep.Peak = base.Add(total / time.Duration(len(cluster)))
	return rep
}

// sortEvents orders by peak ascending with peakless events first; equal
// peaks break by (transit, natal, aspect)
func sortEvents(events []AstroEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.HasPeak != b.HasPeak {
			return !a.HasPeak
		}
		if a.HasPeak && !a.Peak.Equal(b.Peak) {
			return a.Peak.Before(b.Peak)
		}
		if a.Transit != b.Transit {
			return a.Transit < b.Transit
		}
		if a.Natal != b.Natal {
			return a.Natal < b.Natal
		}
		return a.Aspect < b.Aspect
	})
}

// PeakTime refines an approximate aspect instant using the relative
// angular velocity of the two bodies. The correction is the remaining
// separation divided by the closing speed, in days.
func (e *Engine) PeakTime(approx time.Time, p1, p2 Planet, aspectDeg int, loc Location) (time.Time, error) {
	lon1, v1, err := e.eph.Position(p1, approx, &loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s at %s: %w", p1, approx.Format(time.RFC3339), err)
	}
	lon2, v2, err := e.eph.Position(p2, approx, &loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s at %s: %w", p2, approx.Format(time.RFC3339), err)
	}

	closing := v2 - v1
	if math.Abs(closing) < 1e-6 {
		return time.Time{}, fmt.Errorf("%w: %s and %s have no relative motion near %s",
			ErrComputation, p1, p2, approx.Format(time.RFC3339))
	}

	sep := normDeg(lon2 - lon1)
	remaining := wrap180(float64(aspectDeg) - sep)
	days := remaining / closing
	if math.Abs(days) > 1 {
		return time.Time{}, fmt.Errorf("%w: peak correction of %.2f days from %s",
			ErrComputation, days, approx.Format(time.RFC3339))
	}
	return approx.Add(time.Duration(days * 24 * float64(time.Hour))), nil
}

// wrap180 reduces an angle in degrees to (-180, 180]
func wrap180(d float64) float64 {
	d = normDeg(d)
	if d > 180 {
		d -= 360
	}
	return d
}
