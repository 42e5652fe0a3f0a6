package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
)

// Dispatcher consumes delivered forecasts from Kafka and batch-records
// them as viewed predictions
type Dispatcher struct {
	consumer      *Consumer
	db            *database.DB
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(consumer *Consumer, db *database.DB, logger *zap.Logger, batchSize int, flushInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		consumer:      consumer,
		db:            db,
		logger:        logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and recording deliveries
func (d *Dispatcher) Start(ctx context.Context) error {
	d.wg.Add(1)
	go d.run(ctx)
	return nil
}

// Stop stops the dispatcher gracefully, flushing the pending batch
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		for {
			msg, err := d.consumer.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				d.logger.Warn("consumer error", zap.Error(err))
				continue
			}
			select {
			case msgChan <- msg:
			case <-d.stopCh:
				return
			}
		}
	}()

	for {
		select {
		case <-d.stopCh:
			if len(batch) > 0 {
				d.flush(ctx, batch)
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				d.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= d.batchSize {
				d.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context, batch []kafka.Message) {
	records := make([]*database.ViewedPrediction, 0, len(batch))
	for _, msg := range batch {
		rec, err := d.decode(msg)
		if err != nil {
			d.logger.Warn("failed to decode dispatch", zap.Error(err),
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
			continue
		}
		records = append(records, rec)
	}

	if err := d.db.InsertViewedPredictions(records); err != nil {
		d.logger.Error("failed to record deliveries", zap.Error(err), zap.Int("count", len(records)))
		return
	}

	// Commit offsets only after the batch landed
	for _, msg := range batch {
		if err := d.consumer.Commit(ctx, msg); err != nil {
			d.logger.Warn("failed to commit offset", zap.Error(err))
		}
	}

	d.logger.Info("recorded forecast deliveries", zap.Int("count", len(records)))
}

func (d *Dispatcher) decode(msg kafka.Message) (*database.ViewedPrediction, error) {
	dispatch, err := protocol.DecodeForecastDispatch(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dispatch: %w", err)
	}

	viewedAt := dispatch.SentAt
	if viewedAt.IsZero() {
		viewedAt = time.Now().UTC()
	}

	return &database.ViewedPrediction{
		UserID:     dispatch.UserID,
		Date:       dispatch.Date,
		DispatchID: dispatch.DispatchID,
		ViewedAt:   viewedAt,
	}, nil
}
