// Package worker implements the harvest pipeline execution loop.
package worker

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/avask/harvester/internal/harvest"
)

// Config controls Worker behavior.
type Config struct {
	// Mode selects sequential or concurrent batch execution.
	Mode harvest.Mode
	// MaxInFlight caps concurrent fetches per worker in concurrent mode.
	MaxInFlight int
}

const defaultMaxInFlight = 32

// Worker drains the task queue until it observes a sentinel, then executes
// its accumulated batch and reports one status record per real task.
type Worker struct {
	id       string
	queue    harvest.Queue
	fetcher  harvest.Fetcher
	strategy harvest.Strategy
	results  chan<- harvest.StatusRecord
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	id string,
	queue harvest.Queue,
	fetcher harvest.Fetcher,
	strategy harvest.Strategy,
	results chan<- harvest.StatusRecord,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.Mode == "" {
		cfg.Mode = harvest.ModeSequential
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:       id,
		queue:    queue,
		fetcher:  fetcher,
		strategy: strategy,
		results:  results,
		cfg:      cfg,
		logger:   logger.With(zap.String("worker", id)),
	}
}

// Run blocks until the worker has consumed its sentinel and finished its
// batch, or until the context ends.
func (w *Worker) Run(ctx context.Context) {
	batch, ok := w.intake(ctx)
	if !ok {
		return
	}
	w.logger.Info("dispatching batch",
		zap.Int("tasks", len(batch)),
		zap.String("mode", string(w.cfg.Mode)),
	)

	if w.cfg.Mode == harvest.ModeConcurrent {
		w.dispatchConcurrent(ctx, batch)
	} else {
		w.dispatchSequential(ctx, batch)
	}

	// Acknowledge the sentinel that ended the intake loop.
	w.queue.Done()
	w.logger.Debug("worker exiting")
}

// intake accumulates tasks until the sentinel arrives. Real tasks are
// acknowledged as they are taken; the sentinel's acknowledgment is deferred
// until the batch has been dispatched.
func (w *Worker) intake(ctx context.Context) ([]harvest.Task, bool) {
	var batch []harvest.Task
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error("dequeue failed", zap.Error(err))
			}
			return nil, false
		}
		if task.Sentinel {
			w.logger.Debug("received all allocated tasks", zap.Int("tasks", len(batch)))
			return batch, true
		}
		batch = append(batch, task)
		w.queue.Done()
	}
}

// dispatchSequential processes tasks one at a time in arrival order, emitting
// each record as its task finishes.
func (w *Worker) dispatchSequential(ctx context.Context, batch []harvest.Task) {
	for _, task := range batch {
		rec := w.process(ctx, task)
		w.emit(ctx, rec)
	}
}

// dispatchConcurrent runs the whole batch over one shared fetcher session,
// bounded by MaxInFlight, and emits the records only after every task has
// finished.
func (w *Worker) dispatchConcurrent(ctx context.Context, batch []harvest.Task) {
	records := make([]harvest.StatusRecord, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.MaxInFlight)
	for i, task := range batch {
		i, task := i, task
		g.Go(func() error {
			records[i] = w.process(gctx, task)
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		w.emit(ctx, rec)
	}
}

// process executes fetch+save for one task and converts every error into a
// failure record; a worker never crashes on a bad item.
func (w *Worker) process(ctx context.Context, task harvest.Task) harvest.StatusRecord {
	w.logger.Debug("processing item", zap.String("item", task.ID))

	targets, err := w.strategy.Resolve(ctx, task.ID)
	if err != nil {
		w.logger.Error("resolve failed", zap.String("item", task.ID), zap.Error(err))
		return harvest.Failed(task.ID, err.Error())
	}

	for _, target := range targets {
		resp, err := w.fetcher.Fetch(ctx, harvest.FetchRequest{
			URL:   target.URL,
			Query: target.Query,
			Kind:  target.Kind,
		})
		if err != nil {
			w.logger.Error("fetch failed",
				zap.String("item", task.ID),
				zap.String("url", target.URL),
				zap.Error(err),
			)
			return harvest.Failed(task.ID, err.Error())
		}

		path, err := w.strategy.Save(task.ID, target, resp.Body)
		if err != nil {
			w.logger.Error("save failed",
				zap.String("item", task.ID),
				zap.String("url", target.URL),
				zap.Error(err),
			)
			return harvest.Failed(task.ID, err.Error())
		}
		w.logger.Debug("artifact saved", zap.String("item", task.ID), zap.String("path", path))
	}

	return harvest.Succeeded(task.ID)
}

func (w *Worker) emit(ctx context.Context, rec harvest.StatusRecord) {
	select {
	case <-ctx.Done():
	case w.results <- rec:
	}
}
