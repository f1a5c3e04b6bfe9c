package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/meetrec/internal/platform/logger"
)

// ErrDispatcherRunning is returned by Start on a dispatcher that is already running.
var ErrDispatcherRunning = errors.New("dispatcher already running")

// DispatcherConfig holds configuration for the dispatcher
type DispatcherConfig struct {
	// Workers determines how many tasks run concurrently.
	Workers int

	// PollInterval is how long an idle worker sleeps when no notifier
	// wake-up arrives.
	PollInterval time.Duration

	// HandlerTimeout bounds a single handler invocation.
	HandlerTimeout time.Duration

	// StuckTaskAge defines how long a task can stay processing before it is
	// considered abandoned. Keep it above HandlerTimeout.
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for abandoned tasks.
	StuckTaskCheckInterval time.Duration

	// RequeueAbandoned re-enqueues a fresh copy of every abandoned task.
	RequeueAbandoned bool
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:                1,
		PollInterval:           time.Second,
		HandlerTimeout:         15 * time.Minute,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		RequeueAbandoned:       true,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	d := DefaultDispatcherConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = d.HandlerTimeout
	}
	if c.StuckTaskAge <= 0 {
		c.StuckTaskAge = d.StuckTaskAge
	}
	if c.StuckTaskCheckInterval <= 0 {
		c.StuckTaskCheckInterval = d.StuckTaskCheckInterval
	}
	return c
}

// Dispatcher claims pending tasks from the queue and runs the handler
// registered for each task's type.
type Dispatcher struct {
	queue    *Queue
	handlers map[string]Handler
	config   DispatcherConfig
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. The handler map is copied; task types
// missing from it are failed with ErrUnregisteredType when claimed.
func NewDispatcher(queue *Queue, handlers map[string]Handler, config DispatcherConfig, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	config = config.withDefaults()
	log = log.With("component", "dispatcher")
	if config.StuckTaskAge <= config.HandlerTimeout {
		log.Warn("stuck task age does not exceed handler timeout; running tasks may be failed as abandoned",
			"stuck_task_age", config.StuckTaskAge,
			"handler_timeout", config.HandlerTimeout)
	}

	hs := make(map[string]Handler, len(handlers))
	for k, v := range handlers {
		hs[k] = v
	}

	return &Dispatcher{
		queue:    queue,
		handlers: hs,
		config:   config,
		logger:   log,
	}
}

// Start recovers abandoned tasks and launches the workers and the stuck-task
// monitor. They run until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return ErrDispatcherRunning
	}

	if _, err := d.RecoverStale(ctx); err != nil {
		return fmt.Errorf("failed to recover abandoned tasks: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(runCtx, i)
	}

	d.wg.Add(1)
	go d.stuckTaskMonitor(runCtx)

	d.logger.Info("dispatcher started",
		"workers", d.config.Workers,
		"task_types", len(d.handlers))
	return nil
}

// Stop cancels in-flight work and waits for every worker to record its
// outcome. It is safe to call on a dispatcher that was never started.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Run starts the dispatcher and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// ProcessNext claims and runs a single task synchronously. It reports
// whether a task was claimed; handler failures are recorded on the task,
// not returned.
func (d *Dispatcher) ProcessNext(ctx context.Context) (bool, error) {
	return d.processNext(ctx, 0)
}

// RecoverStale fails processing tasks older than StuckTaskAge and, when
// RequeueAbandoned is set, re-enqueues a copy of each. It returns the number
// of tasks failed.
func (d *Dispatcher) RecoverStale(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-d.config.StuckTaskAge)
	msg := fmt.Sprintf("abandoned: still processing after %s", d.config.StuckTaskAge)

	stale, err := d.queue.store.FailStale(ctx, cutoff, msg, d.config.RequeueAbandoned)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	for _, t := range stale {
		d.logger.Warn("abandoned task failed",
			"task_id", t.ID,
			"task_type", t.Type,
			"requeued", d.config.RequeueAbandoned)
	}
	if d.config.RequeueAbandoned {
		if err := d.queue.notifier.Notify(ctx); err != nil {
			d.logger.Warn("failed to notify dispatchers", "error", err)
		}
	}
	return len(stale), nil
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	log := d.logger.With("worker_id", id)
	log.Debug("starting worker")

	for {
		if ctx.Err() != nil {
			log.Debug("stopping worker")
			return
		}

		processed, err := d.processNext(ctx, id)
		if err != nil {
			log.Error("failed to claim task", "error", err)
		}
		if processed {
			continue
		}

		timer := time.NewTimer(d.config.PollInterval)
		select {
		case <-ctx.Done():
		case <-d.queue.notifier.Wake():
		case <-timer.C:
		}
		timer.Stop()
	}
}

func (d *Dispatcher) processNext(ctx context.Context, workerID int) (bool, error) {
	t, err := d.queue.store.Claim(ctx)
	if errors.Is(err, ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	d.execute(ctx, t, workerID)
	return true, nil
}

// execute runs the handler for a claimed task and records the outcome.
// Outcome writes use a context detached from ctx so shutdown cannot
// leave the task without a recorded result.
func (d *Dispatcher) execute(ctx context.Context, t *Task, workerID int) {
	log := d.logger.With(
		"task_id", t.ID,
		"task_type", t.Type,
		"worker_id", workerID,
	)
	storeCtx := context.WithoutCancel(ctx)

	h, ok := d.handlers[t.Type]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnregisteredType, t.Type)
		log.Error("task failed", "error", err)
		d.fail(storeCtx, log, t, err.Error())
		return
	}

	log.Info("processing task")
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, d.config.HandlerTimeout)
	err := d.invoke(logger.WithLogger(runCtx, log), h, t)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	cancel()

	duration := time.Since(start)

	switch {
	case err == nil:
		if cerr := d.queue.store.Complete(storeCtx, t.ID); cerr != nil {
			log.Error("failed to mark task completed", "error", cerr)
			return
		}
		log.Info("task completed", "duration", duration)

	case ctx.Err() != nil:
		d.abandon(storeCtx, log, t, fmt.Sprintf("interrupted by shutdown: %v", err))

	case timedOut:
		msg := fmt.Sprintf("handler timed out after %s: %v", d.config.HandlerTimeout, err)
		log.Error("task failed", "error", msg, "duration", duration)
		d.fail(storeCtx, log, t, msg)

	default:
		log.Error("task failed", "error", err, "duration", duration)
		d.fail(storeCtx, log, t, err.Error())
	}
}

// invoke calls the handler, converting a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, t *Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.FromContextOrDefault(ctx, d.logger).Error("handler panic",
				"panic", p,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return h.Handle(ctx, t)
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, t *Task, msg string) {
	if err := d.queue.store.Fail(ctx, t.ID, msg); err != nil {
		log.Error("failed to mark task failed", "error", err)
	}
}

// abandon fails a task whose handler was cut short by shutdown and, when
// configured, re-enqueues its payload so another run picks it up.
func (d *Dispatcher) abandon(ctx context.Context, log *slog.Logger, t *Task, msg string) {
	log.Warn("task interrupted", "reason", msg)
	if err := d.queue.store.Fail(ctx, t.ID, msg); err != nil {
		log.Error("failed to mark task failed", "error", err)
		return
	}
	if !d.config.RequeueAbandoned {
		return
	}
	newID, err := d.queue.enqueueRaw(ctx, t.Type, t.Payload)
	if err != nil {
		log.Error("failed to requeue interrupted task", "error", err)
		return
	}
	log.Info("interrupted task requeued", "new_task_id", newID)
}

// stuckTaskMonitor periodically fails tasks that have been processing for
// longer than StuckTaskAge.
func (d *Dispatcher) stuckTaskMonitor(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RecoverStale(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("failed to check for stuck tasks", "error", err)
			}
		}
	}
}
