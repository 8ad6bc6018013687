package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/app/repositories"
	"github.com/driftmarket/driftmarket/pkg/cache"
	"github.com/driftmarket/driftmarket/pkg/logger"
	"github.com/driftmarket/driftmarket/pkg/metrics"
	"github.com/driftmarket/driftmarket/pkg/workerpool"
)

// ErrSweepRunning is returned when another sweep holds the advisory lock.
var ErrSweepRunning = errors.New("email retry sweep already running")

// sweepLockName is the advisory lock shared by all sweep entry points
// (cron endpoint, admin endpoint, scheduler, CLI).
const sweepLockName = "sweep:order-emails"

// sweepLockTTL bounds how long a crashed holder can block the next run.
const sweepLockTTL = 10 * time.Minute

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// SweepService re-attempts confirmation emails for orders that never got
// one, in bounded concurrent batches.
type SweepService struct {
	orders     *repositories.OrderRepository
	mailer     *OrderMailer
	locker     cache.Locker
	pool       *workerpool.Pool
	batchSize  int
	batchDelay time.Duration
}

func NewSweepService(orders *repositories.OrderRepository, mailer *OrderMailer, locker cache.Locker, pool *workerpool.Pool, batchSize int, batchDelay time.Duration) *SweepService {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SweepService{
		orders:     orders,
		mailer:     mailer,
		locker:     locker,
		pool:       pool,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// Run executes one sweep, capped at maxOrders. trigger labels the metrics
// ("cron", "admin", "schedule", "cli"). maxOrders <= 0 is a no-op that
// still succeeds. Returns ErrSweepRunning if another sweep is in flight.
func (s *SweepService) Run(ctx context.Context, maxOrders int, trigger string) (SweepResult, error) {
	if maxOrders <= 0 {
		return SweepResult{}, nil
	}

	ok, err := s.locker.TryLock(ctx, sweepLockName, sweepLockTTL)
	if err != nil {
		return SweepResult{}, err
	}
	if !ok {
		return SweepResult{}, ErrSweepRunning
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), sweepLockName); err != nil {
			logger.Warn("sweep: release lock", "error", err)
		}
	}()

	metrics.SweepRuns.WithLabelValues(trigger).Inc()

	orders, err := s.orders.ListNeedingRetry(maxOrders)
	if err != nil {
		return SweepResult{}, err
	}
	if len(orders) == 0 {
		logger.Info("sweep: nothing to retry", "trigger", trigger)
		return SweepResult{}, nil
	}

	logger.Info("sweep: starting", "trigger", trigger, "orders", len(orders))

	var sent, failed atomic.Int64
	for start := 0; start < len(orders); start += s.batchSize {
		end := start + s.batchSize
		if end > len(orders) {
			end = len(orders)
		}

		tasks := make([]func(), 0, end-start)
		for _, o := range orders[start:end] {
			o := o
			tasks = append(tasks, func() {
				if err := s.mailer.Deliver(o); err != nil {
					failed.Add(1)
				} else {
					sent.Add(1)
				}
			})
		}
		if err := s.pool.RunBatch(tasks); err != nil {
			return SweepResult{}, err
		}

		if end < len(orders) && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return SweepResult{
					Processed: end,
					Sent:      int(sent.Load()),
					Failed:    int(failed.Load()),
				}, ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}
	}

	res := SweepResult{
		Processed: len(orders),
		Sent:      int(sent.Load()),
		Failed:    int(failed.Load()),
	}
	logger.Info("sweep: done", "trigger", trigger,
		"processed", res.Processed, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}

// RetryOne re-attempts a single order's email immediately, bypassing the
// backoff window but never the sent flag or the retry cap.
func (s *SweepService) RetryOne(publicID string) (models.Order, error) {
	o, err := s.orders.ByPublicID(publicID)
	if err != nil {
		return models.Order{}, err
	}
	if o.EmailSent {
		return o, nil
	}
	if o.EmailRetryCount >= models.MaxEmailRetries {
		return o, errors.New("retry limit reached")
	}

	sendErr := s.mailer.Deliver(o)
	refreshed, err := s.orders.ByPublicID(publicID)
	if err != nil {
		return o, err
	}
	if sendErr != nil {
		return refreshed, sendErr
	}
	return refreshed, nil
}
