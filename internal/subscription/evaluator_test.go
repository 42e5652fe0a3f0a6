package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
)

type fakeUsers struct {
	users []*database.User
}

func (f *fakeUsers) GetExpiringUsers(time.Time, time.Duration, int) ([]*database.User, error) {
	return f.users, nil
}

type fakeDedup struct {
	seen map[int64]bool
}

func (f *fakeDedup) MarkReminded(_ context.Context, userID int64) (bool, error) {
	if f.seen[userID] {
		return false, nil
	}
	f.seen[userID] = true
	return true, nil
}

type fakePublisher struct {
	alerts []*protocol.OpsAlert
}

func (f *fakePublisher) Publish(_ context.Context, _ string, value []byte) error {
	alert, err := protocol.DecodeOpsAlert(value)
	if err != nil {
		return err
	}
	f.alerts = append(f.alerts, alert)
	return nil
}

func TestEvaluateRemindsOnce(t *testing.T) {
	until := time.Date(2026, 1, 27, 0, 0, 0, 0, time.UTC)
	users := &fakeUsers{users: []*database.User{
		{UserID: 1, ChatID: 11, SubscribedUntil: &until},
		{UserID: 2, ChatID: 12, SubscribedUntil: &until},
	}}
	dedup := &fakeDedup{seen: make(map[int64]bool)}
	pub := &fakePublisher{}

	e := NewEvaluator(users, dedup, pub, zap.NewNop(), 3)

	require.NoError(t, e.Evaluate(context.Background()))
	require.Len(t, pub.alerts, 2)
	require.Equal(t, protocol.OpsSubscriptionExpiring, pub.alerts[0].Type)
	require.Equal(t, int64(1), pub.alerts[0].UserID)

	// second scan inside the dedup window stays quiet
	require.NoError(t, e.Evaluate(context.Background()))
	require.Len(t, pub.alerts, 2)
}

func TestLapseAtPrefersLaterEnd(t *testing.T) {
	e := NewEvaluator(nil, nil, nil, zap.NewNop(), 7)

	paid := time.Date(2026, 1, 27, 0, 0, 0, 0, time.UTC)
	testStart := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)

	// test period ends 2026-02-01, after the paid end
	u := &database.User{SubscribedUntil: &paid, TestStartedAt: &testStart}
	require.Equal(t, testStart.AddDate(0, 0, 7), e.lapseAt(u))

	// paid only
	u = &database.User{SubscribedUntil: &paid}
	require.Equal(t, paid, e.lapseAt(u))
}
