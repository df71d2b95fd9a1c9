// Package coordinator manages worker fan-out over the task queue and tallies
// the per-item status records the workers report back.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avask/harvester/internal/harvest"
	"github.com/avask/harvester/internal/metrics"
)

// ErrNoItems is returned when a run is started with nothing to harvest.
var ErrNoItems = errors.New("no items to harvest")

// Runner is the unit the coordinator fans out to. *worker.Worker satisfies it.
type Runner interface {
	Run(ctx context.Context)
}

// Factory builds one Runner per effective worker slot, sharing the run's
// result channel.
type Factory func(id string, results chan<- harvest.StatusRecord) Runner

// Config controls a run.
type Config struct {
	// Workers is the requested worker count before clamping.
	Workers int
	// Clamp relates the worker count to the CPU count.
	Clamp harvest.Clamp
	// CompletionTimeout bounds the wait for status records. Zero waits
	// forever, so a crashed worker hangs the run.
	CompletionTimeout time.Duration
}

// Coordinator owns the task queue and result channel for a run.
type Coordinator struct {
	queue   harvest.Queue
	factory Factory
	cfg     Config
	logger  *zap.Logger
}

// New creates a Coordinator.
func New(queue harvest.Queue, factory Factory, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		queue:   queue,
		factory: factory,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run starts the workers, enqueues every item exactly once followed by one
// sentinel per worker, then drains exactly len(items) status records.
func (c *Coordinator) Run(ctx context.Context, items []string) (harvest.Tally, error) {
	if len(items) == 0 {
		return harvest.Tally{}, ErrNoItems
	}

	logger := c.logger.With(zap.String("run_id", uuid.NewString()))
	workers := harvest.ClampWorkers(c.cfg.Workers, c.cfg.Clamp)
	logger.Info("spawning gatherers",
		zap.Int("workers", workers),
		zap.Int("items", len(items)),
	)

	results := make(chan harvest.StatusRecord, len(items))
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Workers start before any task is enqueued so they race to drain the
	// queue; no task has worker affinity.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		r := c.factory(fmt.Sprintf("gatherer-%d", i+1), results)
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run(wctx)
		}()
	}

	for _, item := range items {
		if err := c.queue.Enqueue(ctx, harvest.NewTask(item)); err != nil {
			cancel()
			wg.Wait()
			return harvest.Tally{}, fmt.Errorf("enqueue item %s: %w", item, err)
		}
	}
	for i := 0; i < workers; i++ {
		if err := c.queue.Enqueue(ctx, harvest.SentinelTask()); err != nil {
			cancel()
			wg.Wait()
			return harvest.Tally{}, fmt.Errorf("enqueue sentinel: %w", err)
		}
	}

	tally, deadlineHit, err := c.drain(ctx, results, len(items), logger)
	if err != nil {
		cancel()
		wg.Wait()
		return tally, err
	}

	if deadlineHit {
		// Abandon whatever is stuck; the missing records were already
		// synthesized as failures.
		cancel()
	} else if err := c.queue.Join(ctx); err != nil {
		logger.Warn("queue join failed", zap.Error(err))
	}
	wg.Wait()

	logger.Info("harvest complete",
		zap.Int("succeeded", tally.Succeeded),
		zap.Int("failed", tally.Failed),
		zap.String("summary", tally.Summary()),
	)
	return tally, nil
}

// drain consumes exactly n status records, or synthesizes failures for the
// missing ones once the completion deadline passes.
func (c *Coordinator) drain(
	ctx context.Context,
	results <-chan harvest.StatusRecord,
	n int,
	logger *zap.Logger,
) (harvest.Tally, bool, error) {
	var deadline <-chan time.Time
	if c.cfg.CompletionTimeout > 0 {
		timer := time.NewTimer(c.cfg.CompletionTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var tally harvest.Tally
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return tally, false, fmt.Errorf("run canceled: %w", ctx.Err())
		case <-deadline:
			missing := n - i
			logger.Warn("completion deadline exceeded; counting missing records as failures",
				zap.Int("missing", missing),
			)
			tally.Failed += missing
			metrics.ItemsFailed.Add(float64(missing))
			return tally, true, nil
		case rec := <-results:
			switch rec.Outcome {
			case harvest.OutcomeSuccess:
				tally.Succeeded++
				metrics.ItemsSucceeded.Inc()
			default:
				tally.Failed++
				metrics.ItemsFailed.Inc()
				logger.Warn("item failed",
					zap.String("item", rec.Item),
					zap.String("reason", rec.Reason),
				)
			}
		}
	}
	return tally, false, nil
}
