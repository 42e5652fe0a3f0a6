package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
	"github.com/sssm0ulder/astrobot-sub000/internal/queue"
)

// Alerter consumes the ops topic and forwards each alert as email
type Alerter struct {
	consumer *queue.Consumer
	notifier *EmailNotifier
	logger   *zap.Logger
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func NewAlerter(consumer *queue.Consumer, notifier *EmailNotifier, logger *zap.Logger) *Alerter {
	return &Alerter{
		consumer: consumer,
		notifier: notifier,
		logger:   logger,
	}
}

func (a *Alerter) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go a.run(ctx)
}

func (a *Alerter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *Alerter) run(ctx context.Context) {
	defer a.wg.Done()

	for {
		msg, err := a.consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("failed to consume alert", zap.Error(err))
			continue
		}

		alert, err := protocol.DecodeOpsAlert(msg.Value)
		if err != nil {
			a.logger.Warn("failed to decode alert", zap.Error(err))
			a.consumer.Commit(ctx, msg)
			continue
		}

		if err := a.notifier.SendOpsAlert(alert); err != nil {
			// commit anyway; a broken SMTP setup should not wedge the topic
			a.logger.Warn("failed to send alert email",
				zap.String("alert_type", alert.Type), zap.Error(err))
		}

		if err := a.consumer.Commit(ctx, msg); err != nil {
			a.logger.Warn("failed to commit alert", zap.Error(err))
		}
	}
}
