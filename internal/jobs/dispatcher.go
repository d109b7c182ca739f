package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/observability"
	"go.uber.org/zap"
)

// Job outcomes
const (
	OutcomeDone      = "done"
	OutcomeRetried   = "retried"
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "failed"
)

// Dispatcher pops jobs and routes them to the handler registered for their
// queue. Retryable failures put the identical payload back until the
// attempt budget runs out; anything else is logged and dropped.
type Dispatcher struct {
	queue       Queue
	handlers    map[string]Handler
	maxAttempts int
	wait        time.Duration
	metrics     *observability.LedgerMetrics
	log         *zap.Logger
}

func NewDispatcher(queue Queue, maxAttempts int, metrics *observability.LedgerMetrics, log *zap.Logger) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Dispatcher{
		queue:       queue,
		handlers:    map[string]Handler{},
		maxAttempts: maxAttempts,
		wait:        5 * time.Second,
		metrics:     metrics,
		log:         log,
	}
}

func (d *Dispatcher) Register(queue string, h Handler) {
	d.handlers[queue] = h
}

// Run consumes every registered queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for queue := range d.handlers {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			d.consume(ctx, queue)
		}(queue)
	}
	wg.Wait()
}

func (d *Dispatcher) consume(ctx context.Context, queue string) {
	d.log.Info("consuming queue", zap.String("queue", queue))
	for ctx.Err() == nil {
		if _, err := d.ProcessOne(ctx, queue); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Error("queue pop failed", zap.String("queue", queue), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne handles at most one job and reports its outcome. It returns
// an empty outcome when the queue stayed empty for the wait period.
func (d *Dispatcher) ProcessOne(ctx context.Context, queue string) (string, error) {
	payload, err := d.queue.Pop(ctx, queue, d.wait)
	if errors.Is(err, ErrEmpty) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	outcome := d.handle(ctx, queue, payload)
	d.metrics.RecordJob(queue, outcome)
	return outcome, nil
}

func (d *Dispatcher) handle(ctx context.Context, queue string, payload []byte) string {
	id := jobID(payload)
	log := d.log.With(zap.String("queue", queue), zap.String("job_id", id))

	h, ok := d.handlers[queue]
	if !ok {
		log.Error("no handler for queue")
		return OutcomeFailed
	}

	err := h.Handle(ctx, payload)
	switch {
	case err == nil:
		d.resetAttempts(ctx, queue, id, log)
		return OutcomeDone

	case apperr.IsRetryable(err):
		attempts, aerr := d.queue.IncrAttempts(ctx, queue, id)
		if aerr != nil {
			log.Error("failed to count job attempt", zap.Error(aerr))
			attempts = d.maxAttempts
		}
		if attempts < d.maxAttempts {
			if perr := d.queue.Push(ctx, queue, payload); perr != nil {
				log.Error("failed to requeue job", zap.Error(perr))
				return OutcomeFailed
			}
			log.Warn("job requeued", zap.Int("attempt", attempts), zap.Error(err))
			return OutcomeRetried
		}
		d.resetAttempts(ctx, queue, id, log)
		log.Error("job attempts exhausted", zap.Int("attempts", attempts), zap.Error(err))
		return OutcomeExhausted

	default:
		d.resetAttempts(ctx, queue, id, log)
		log.Warn("job dropped", zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
		return OutcomeFailed
	}
}

func (d *Dispatcher) resetAttempts(ctx context.Context, queue, id string, log *zap.Logger) {
	if id == "" {
		return
	}
	if err := d.queue.ResetAttempts(ctx, queue, id); err != nil {
		log.Warn("failed to reset job attempts", zap.Error(err))
	}
}
