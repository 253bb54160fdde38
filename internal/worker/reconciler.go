package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finca/internal/core"
	applog "finca/internal/log"
)

// Source lists the records the mirror should hold.
type Source interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	ListContributions(ctx context.Context) ([]core.Contribution, error)
}

// ReconcilerConfig holds configuration for the periodic reconciler
type ReconcilerConfig struct {
	// Interval between passes (default: 15m)
	Interval time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{Interval: 15 * time.Minute}
}

// Reconciler periodically compares the mirror with the store. It runs one
// pass immediately on Start.
type Reconciler struct {
	worker *Worker
	source Source
	config ReconcilerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	passes  int
}

func NewReconciler(w *Worker, src Source, cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReconcilerConfig().Interval
	}
	return &Reconciler{worker: w, source: src, config: cfg}
}

// Start begins the loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)
	r.worker.logger.InfoContext(ctx, "Reconciler started", "interval", r.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	close(r.stopCh)
	select {
	case <-r.doneCh:
	case <-ctx.Done():
		r.worker.logger.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

func (r *Reconciler) isRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Passes returns how many passes have completed, successful or not.
func (r *Reconciler) Passes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passes
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

// RunOnce performs a single reconciliation from the source.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	es, err := r.source.ListExpenses(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("list expenses: %w", err)
	}
	cs, err := r.source.ListContributions(ctx)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("list contributions: %w", err)
	}
	return r.worker.Reconcile(ctx, es, cs)
}

func (r *Reconciler) pass(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil {
		r.worker.logger.ErrorContext(ctx, "Reconciliation failed",
			applog.FieldOperation, applog.OpReconcile, applog.FieldError, err)
	}
	r.mu.Lock()
	r.passes++
	r.mu.Unlock()
}
