package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ResetSweeper clears reset tokens whose expiry is not after now.
type ResetSweeper interface {
	ClearExpiredResets(ctx context.Context, now time.Time) (int64, error)
}

// SweepObserver is satisfied by *observability.Prom.
type SweepObserver interface {
	ResetsSwept(n int64)
}

type Config struct {
	Interval     time.Duration
	SweepTimeout time.Duration
}

// Worker periodically removes expired password-reset state. Expired tokens
// are already unusable; sweeping only keeps the table tidy.
type Worker struct {
	cfg      Config
	repo     ResetSweeper
	observer SweepObserver
	log      *slog.Logger
	now      func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo ResetSweeper, observer SweepObserver, log *slog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		observer: observer,
		log:      log,
		now:      time.Now,
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.sweepAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper received shutdown signal")
			return nil
		case <-ticker.C:
			w.sweepAndLog(ctx)
		}
	}
}

func (w *Worker) sweepAndLog(ctx context.Context) {
	n, err := w.SweepOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("reset sweep failed", "err", err)
		}
		return
	}
	if n > 0 {
		w.log.Info("expired reset tokens cleared", "count", n)
	}
}

// SweepOnce runs a single bounded sweep and reports how many users changed.
func (w *Worker) SweepOnce(ctx context.Context) (int64, error) {
	sctx, cancel := context.WithTimeout(ctx, w.cfg.SweepTimeout)
	defer cancel()

	n, err := w.repo.ClearExpiredResets(sctx, w.now().UTC())
	if err != nil {
		return 0, err
	}

	if w.observer != nil {
		w.observer.ResetsSwept(n)
	}
	return n, nil
}
