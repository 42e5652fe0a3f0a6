// Package scheduler drives the once-per-day forecast dispatch: one timer
// job per subscribed user, firing at the user's local send time and
// rescheduling itself for the next day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/forecast"
	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
)

// refreshInterval is how often the active user set is re-read
const refreshInterval = time.Hour

// sendAtLayout is the wall-clock format of the per-user send time
const sendAtLayout = "15:04"

// UserSource supplies the subscribed users and their locations
type UserSource interface {
	GetActiveUsers(now time.Time, testPeriodDays int) ([]*database.User, error)
	GetLocation(id int64) (*database.Location, error)
}

// Offsets resolves a location to its observed UTC offset
type Offsets interface {
	OffsetHoursAt(loc astro.Location, at time.Time) (int, error)
}

// Publisher delivers messages to a Kafka topic
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Scheduler owns the timer set and the per-user dispatch jobs
type Scheduler struct {
	timers  *Timers
	users   UserSource
	offsets Offsets
	builder *forecast.Builder
	pub     Publisher
	ops     Publisher // may be nil
	logger  *zap.Logger

	testPeriodDays int
	dateLayout     string
	timeLayout     string

	ctx    context.Context
	cancel context.CancelFunc
}

func New(users UserSource, offsets Offsets, builder *forecast.Builder, pub, ops Publisher, logger *zap.Logger, testPeriodDays int, dateLayout, timeLayout string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		timers:         NewTimers(),
		users:          users,
		offsets:        offsets,
		builder:        builder,
		pub:            pub,
		ops:            ops,
		logger:         logger,
		testPeriodDays: testPeriodDays,
		dateLayout:     dateLayout,
		timeLayout:     timeLayout,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start loads the active users, schedules their jobs and begins the
// periodic refresh
func (s *Scheduler) Start() error {
	s.timers.Start()
	if err := s.refresh(); err != nil {
		return err
	}
	go s.refreshLoop()
	return nil
}

// Stop cancels in-flight dispatches and stops the timer set
func (s *Scheduler) Stop() {
	s.cancel()
	s.timers.Stop()
}

// Pending returns the number of scheduled dispatch jobs
func (s *Scheduler) Pending() int {
	return s.timers.Pending()
}

func (s *Scheduler) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.refresh(); err != nil {
				s.logger.Error("failed to refresh scheduled users", zap.Error(err))
			}
		}
	}
}

// refresh re-reads the active user set and (re)schedules one job per user.
// Job IDs are derived from the user id so rescheduling replaces in place;
// lapsed users simply stop being rescheduled on their next fire.
func (s *Scheduler) refresh() error {
	users, err := s.users.GetActiveUsers(time.Now().UTC(), s.testPeriodDays)
	if err != nil {
		return fmt.Errorf("failed to load active users: %w", err)
	}

	for _, u := range users {
		if err := s.scheduleUser(u); err != nil {
			s.logger.Warn("failed to schedule user", zap.Int64("user_id", u.UserID), zap.Error(err))
		}
	}

	s.logger.Info("scheduled dispatch jobs", zap.Int("users", len(users)))
	return nil
}

func (s *Scheduler) scheduleUser(u *database.User) error {
	loc, err := s.users.GetLocation(u.CurrentLocationID)
	if err != nil {
		return fmt.Errorf("failed to load location %d: %w", u.CurrentLocationID, err)
	}
	if loc == nil {
		return fmt.Errorf("location %d not found", u.CurrentLocationID)
	}

	place := astro.Location{Longitude: loc.Longitude, Latitude: loc.Latitude, Altitude: loc.Altitude}
	now := time.Now().UTC()
	offset, err := s.offsets.OffsetHoursAt(place, now)
	if err != nil {
		return err
	}

	runAt, err := NextRun(u.SendAt, offset, now)
	if err != nil {
		return err
	}

	user := *u
	jobID := fmt.Sprintf("dispatch:%d", user.UserID)
	return s.timers.Schedule(jobID, runAt, func() {
		s.fire(&user, place)
	})
}

// fire builds and publishes one forecast, then schedules the next run
func (s *Scheduler) fire(u *database.User, place astro.Location) {
	if err := s.dispatch(u, place); err != nil {
		s.logger.Error("dispatch failed", zap.Int64("user_id", u.UserID), zap.Error(err))
		s.reportFailure(u.UserID, err)
	}

	if err := s.scheduleUser(u); err != nil {
		s.logger.Error("failed to reschedule user", zap.Int64("user_id", u.UserID), zap.Error(err))
		s.reportFailure(u.UserID, err)
	}
}

// reportFailure raises an ops alert for a failed dispatch so the admins
// hear about the user the bot went silent on
func (s *Scheduler) reportFailure(userID int64, cause error) {
	if s.ops == nil {
		return
	}

	alert := &protocol.OpsAlert{
		Type:   failureAlertType(cause),
		UserID: userID,
		Detail: cause.Error(),
		At:     time.Now().UTC(),
	}
	value, err := protocol.EncodeOpsAlert(alert)
	if err != nil {
		s.logger.Error("failed to encode ops alert", zap.Error(err))
		return
	}
	if err := s.ops.Publish(s.ctx, fmt.Sprintf("%d", userID), value); err != nil {
		s.logger.Error("failed to publish ops alert", zap.Error(err))
	}
}

// failureAlertType separates broken ephemeris data from everything else
func failureAlertType(err error) string {
	if errors.Is(err, astro.ErrEphemeris) {
		return protocol.OpsEphemerisFailure
	}
	return protocol.OpsSchedulerFailure
}

func (s *Scheduler) dispatch(u *database.User, place astro.Location) error {
	now := time.Now().UTC()
	offset, err := s.offsets.OffsetHoursAt(place, now)
	if err != nil {
		return err
	}

	// The forecast is for the user's current local calendar day
	localDate := now.Add(time.Duration(offset) * time.Hour)

	birthLoc, err := s.users.GetLocation(u.BirthLocationID)
	if err != nil || birthLoc == nil {
		return fmt.Errorf("failed to load birth location %d: %v", u.BirthLocationID, err)
	}

	subject := astro.Subject{
		BirthAt:      u.BirthAt,
		BirthPlace:   astro.Location{Longitude: birthLoc.Longitude, Latitude: birthLoc.Latitude, Altitude: birthLoc.Altitude},
		CurrentPlace: place,
	}

	daily, err := s.builder.BuildDaily(s.ctx, subject, localDate, offset)
	if err != nil {
		return fmt.Errorf("failed to build forecast: %w", err)
	}

	dispatch := &protocol.ForecastDispatch{
		DispatchID: uuid.New().String(),
		UserID:     u.UserID,
		ChatID:     u.ChatID,
		Date:       daily.Date.Format(s.dateLayout),
		Text:       daily.Render(s.dateLayout, s.timeLayout),
		SentAt:     now,
	}
	value, err := protocol.EncodeForecastDispatch(dispatch)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch: %w", err)
	}

	key := fmt.Sprintf("%d", u.ChatID)
	if err := s.pub.Publish(s.ctx, key, value); err != nil {
		return fmt.Errorf("failed to publish dispatch: %w", err)
	}

	s.logger.Info("published forecast",
		zap.Int64("user_id", u.UserID),
		zap.String("dispatch_id", dispatch.DispatchID),
		zap.String("date", dispatch.Date))
	return nil
}

// NextRun returns the next UTC instant at which the local wall clock of
// the given offset reads sendAt. A send time equal to the current minute
// schedules for tomorrow.
func NextRun(sendAt string, offsetHours int, now time.Time) (time.Time, error) {
	wall, err := time.Parse(sendAtLayout, sendAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid send time %q: %w", sendAt, err)
	}

	local := now.UTC().Add(time.Duration(offsetHours) * time.Hour)
	y, m, d := local.Date()
	runLocal := time.Date(y, m, d, wall.Hour(), wall.Minute(), 0, 0, time.UTC)
	if !runLocal.After(local) {
		runLocal = runLocal.AddDate(0, 0, 1)
	}

	return runLocal.Add(-time.Duration(offsetHours) * time.Hour), nil
}
