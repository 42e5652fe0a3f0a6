package forecast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
)

// Activity is a user-chosen undertaking to pick a day for
type Activity int

const (
	ActivityLove Activity = iota
	ActivityBusiness
	ActivityCareer
	ActivityTravel
	ActivityHealth
	ActivityCreative
	ActivityFamily
)

var activityNames = [...]string{
	"Love", "Business", "Career", "Travel", "Health", "Creative", "Family",
}

func (a Activity) String() string {
	if a < ActivityLove || a > ActivityFamily {
		return "Unknown"
	}
	return activityNames[a]
}

// ActivityByName resolves a case-insensitive activity name
func ActivityByName(name string) (Activity, bool) {
	for i, n := range activityNames {
		if strings.EqualFold(n, name) {
			return Activity(i), true
		}
	}
	return 0, false
}

// rulingPlanet maps each activity to the body whose transits decide the score
var rulingPlanet = map[Activity]astro.Planet{
	ActivityLove:     astro.Venus,
	ActivityBusiness: astro.Mercury,
	ActivityCareer:   astro.Saturn,
	ActivityTravel:   astro.Jupiter,
	ActivityHealth:   astro.Mars,
	ActivityCreative: astro.Sun,
	ActivityFamily:   astro.Moon,
}

// DayScore is the suitability of one local day for an activity
type DayScore struct {
	Date  time.Time // local midnight, UTC clock
	Score int
}

// Score counts the activity's ruling-planet aspects over the period:
// sextiles and trines add one, squares and oppositions subtract one.
// Conjunctions are neutral.
func (b *Builder) Score(ctx context.Context, subject astro.Subject, start, end time.Time, activity Activity) (int, error) {
	ruler, ok := rulingPlanet[activity]
	if !ok {
		return 0, fmt.Errorf("%w: unknown activity %d", astro.ErrDomain, activity)
	}

	events, err := b.engine.EventsOnPeriod(ctx, start, end, subject)
	if err != nil {
		return 0, err
	}

	score := 0
	for _, ev := range events {
		if ev.Transit != ruler && ev.Natal != ruler {
			continue
		}
		switch ev.Aspect {
		case 60, 120:
			score++
		case 90, 180:
			score--
		}
	}
	return score, nil
}

// BestDay scores each of the candidate days starting at date and returns
// all scores with the index of the best one. Earlier days win ties.
func (b *Builder) BestDay(ctx context.Context, subject astro.Subject, date time.Time, days int, offsetHours int, activity Activity) ([]DayScore, int, error) {
	if days <= 0 {
		return nil, 0, fmt.Errorf("%w: candidate span must be positive, got %d days", astro.ErrDomain, days)
	}

	scores := make([]DayScore, 0, days)
	best := 0
	for i := 0; i < days; i++ {
		day := date.AddDate(0, 0, i)
		start, end := astro.LocalDayBounds(day, offsetHours)

		s, err := b.Score(ctx, subject, start, end, activity)
		if err != nil {
			return nil, 0, err
		}

		y, m, d := day.Date()
		scores = append(scores, DayScore{
			Date:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Score: s,
		})
		if s > scores[best].Score {
			best = i
		}
	}
	return scores, best, nil
}
