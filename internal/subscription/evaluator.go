// Package subscription watches for lapsing paid and test access and emits
// deduplicated reminders to the operations topic.
package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
)

// checkInterval is how often the lapse scan runs
const checkInterval = time.Hour

// reminderWindow is how far ahead of the lapse a reminder goes out
const reminderWindow = 3 * 24 * time.Hour

// UserSource supplies the users whose access lapses soon
type UserSource interface {
	GetExpiringUsers(now time.Time, window time.Duration, testPeriodDays int) ([]*database.User, error)
}

// Dedup suppresses repeat reminders to the same user
type Dedup interface {
	MarkReminded(ctx context.Context, userID int64) (bool, error)
}

// Publisher delivers reminders to the operations topic
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Evaluator scans for lapsing access and publishes reminders
type Evaluator struct {
	users  UserSource
	dedup  Dedup
	pub    Publisher
	logger *zap.Logger

	testPeriodDays int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEvaluator creates a new subscription evaluator
func NewEvaluator(users UserSource, dedup Dedup, pub Publisher, logger *zap.Logger, testPeriodDays int) *Evaluator {
	return &Evaluator{
		users:          users,
		dedup:          dedup,
		pub:            pub,
		logger:         logger,
		testPeriodDays: testPeriodDays,
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic lapse scan
func (e *Evaluator) Start(ctx context.Context) {
	e.wg.Add(1)
	go e.run(ctx)
}

// Stop stops the evaluator gracefully
func (e *Evaluator) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

func (e *Evaluator) run(ctx context.Context) {
	defer e.wg.Done()

	// First scan immediately, then on the interval
	if err := e.Evaluate(ctx); err != nil {
		e.logger.Error("subscription scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Evaluate(ctx); err != nil {
				e.logger.Error("subscription scan failed", zap.Error(err))
			}
		}
	}
}

// Evaluate runs one lapse scan: every user whose paid period or test
// period ends inside the reminder window gets at most one reminder per
// dedup TTL.
func (e *Evaluator) Evaluate(ctx context.Context) error {
	now := time.Now().UTC()

	users, err := e.users.GetExpiringUsers(now, reminderWindow, e.testPeriodDays)
	if err != nil {
		return fmt.Errorf("failed to load expiring users: %w", err)
	}

	reminded := 0
	for _, u := range users {
		fresh, err := e.dedup.MarkReminded(ctx, u.UserID)
		if err != nil {
			e.logger.Warn("reminder dedup failed", zap.Int64("user_id", u.UserID), zap.Error(err))
			continue
		}
		if !fresh {
			continue
		}

		if err := e.remind(ctx, u, now); err != nil {
			e.logger.Warn("failed to publish reminder", zap.Int64("user_id", u.UserID), zap.Error(err))
			continue
		}
		reminded++
	}

	e.logger.Info("subscription scan complete",
		zap.Int("expiring", len(users)), zap.Int("reminded", reminded))
	return nil
}

func (e *Evaluator) remind(ctx context.Context, u *database.User, now time.Time) error {
	lapse := e.lapseAt(u)

	alert := &protocol.OpsAlert{
		Type:   protocol.OpsSubscriptionExpiring,
		UserID: u.UserID,
		Detail: fmt.Sprintf("access lapses at %s", lapse.Format(time.RFC3339)),
		At:     now,
	}
	data, err := protocol.EncodeOpsAlert(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	key := fmt.Sprintf("%d", u.UserID)
	return e.pub.Publish(ctx, key, data)
}

// lapseAt picks the later of the paid end and the test period end
func (e *Evaluator) lapseAt(u *database.User) time.Time {
	var lapse time.Time
	if u.SubscribedUntil != nil {
		lapse = *u.SubscribedUntil
	}
	if u.TestStartedAt != nil {
		testEnd := u.TestStartedAt.AddDate(0, 0, e.testPeriodDays)
		if testEnd.After(lapse) {
			lapse = testEnd
		}
	}
	return lapse
}
