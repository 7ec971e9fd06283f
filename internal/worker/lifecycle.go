package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// LifecycleAdvancer moves auctions through pending, active and ended.
type LifecycleAdvancer interface {
	AdvanceLifecycle(ctx context.Context) error
}

// LifecycleWorker calls AdvanceLifecycle on every tick until stopped.
type LifecycleWorker struct {
	advancer LifecycleAdvancer
	interval time.Duration
	done     chan struct{}
}

func NewLifecycleWorker(advancer LifecycleAdvancer, interval time.Duration) *LifecycleWorker {
	if interval <= 0 {
		interval = time.Second
	}

	return &LifecycleWorker{
		advancer: advancer,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (w *LifecycleWorker) Run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// Done is closed once Run has returned.
func (w *LifecycleWorker) Done() <-chan struct{} {
	return w.done
}

func (w *LifecycleWorker) tick(ctx context.Context) {
	if err := w.advancer.AdvanceLifecycle(ctx); err != nil && ctx.Err() == nil {
		logrus.WithError(err).Error("failed to advance auction lifecycle")
	}
}
