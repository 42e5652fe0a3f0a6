package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
	"github.com/sssm0ulder/astrobot-sub000/internal/queue"
)

// ChatPusher fans a push message out to a chat's live connections
type ChatPusher interface {
	PushToChat(chatID int64, push *protocol.PushMessage) int
}

// Pusher consumes dispatched forecasts and writes them to connected
// chat frontends. Messages for chats with no live connection are
// committed anyway; the frontend fetches the forecast on demand
type Pusher struct {
	consumer *queue.Consumer
	target   ChatPusher
	logger   *zap.Logger
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func NewPusher(consumer *queue.Consumer, target ChatPusher, logger *zap.Logger) *Pusher {
	return &Pusher{
		consumer: consumer,
		target:   target,
		logger:   logger,
	}
}

func (p *Pusher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(ctx)
}

func (p *Pusher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pusher) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		msg, err := p.consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("failed to consume dispatch", zap.Error(err))
			continue
		}

		dispatch, err := protocol.DecodeForecastDispatch(msg.Value)
		if err != nil {
			p.logger.Warn("failed to decode dispatch", zap.Error(err))
			p.consumer.Commit(ctx, msg)
			continue
		}

		push := &protocol.PushMessage{
			Type:       protocol.MsgTypePush,
			DispatchID: dispatch.DispatchID,
			Date:       dispatch.Date,
			Text:       dispatch.Text,
		}

		delivered := p.target.PushToChat(dispatch.ChatID, push)
		p.logger.Debug("forecast dispatched",
			zap.String("dispatch_id", dispatch.DispatchID),
			zap.Int64("chat_id", dispatch.ChatID),
			zap.Int("connections", delivered))

		if err := p.consumer.Commit(ctx, msg); err != nil {
			p.logger.Warn("failed to commit dispatch", zap.Error(err))
		}
	}
}
