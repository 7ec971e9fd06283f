package fanout

import (
	"context"
	"sync"
	"time"

	"auction-bidding-api/internal/entity"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sink is a downstream consumer of committed outcomes, such as a cache or an
// event archive.
type Sink interface {
	Name() string
	Handle(ctx context.Context, outcome *entity.Outcome) error
}

type DispatcherConfig struct {
	QueueSize int
	// per sink; defaults to QueueSize
	SinkQueueSize int
	SinkRetries   int
	SinkBackoff   time.Duration
	SinkDeadline  time.Duration
}

// Dispatcher moves outcomes off the request path. One goroutine drains the
// queue, so every listener sees events in the order they were enqueued.
// Each sink has its own queue and goroutine, so a slow sink never holds up
// listener delivery.
type Dispatcher struct {
	fanout  *Fanout
	workers []*sinkWorker
	cfg     DispatcherConfig
	queue   chan *entity.Outcome

	closeOnce sync.Once
	done      chan struct{}
}

type sinkWorker struct {
	sink  Sink
	queue chan *entity.Outcome
}

func NewDispatcher(f *Fanout, cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.SinkQueueSize <= 0 {
		cfg.SinkQueueSize = cfg.QueueSize
	}
	if cfg.SinkRetries <= 0 {
		cfg.SinkRetries = 3
	}
	if cfg.SinkBackoff <= 0 {
		cfg.SinkBackoff = 100 * time.Millisecond
	}
	if cfg.SinkDeadline <= 0 {
		cfg.SinkDeadline = 5 * time.Second
	}

	workers := make([]*sinkWorker, 0, len(sinks))
	for _, sink := range sinks {
		workers = append(workers, &sinkWorker{sink: sink, queue: make(chan *entity.Outcome, cfg.SinkQueueSize)})
	}

	return &Dispatcher{
		fanout:  f,
		workers: workers,
		cfg:     cfg,
		queue:   make(chan *entity.Outcome, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Enqueue never blocks. It reports false when the outcome was dropped
// because the queue is full.
func (d *Dispatcher) Enqueue(outcome *entity.Outcome) bool {
	if outcome.Id == uuid.Nil {
		outcome.Id = uuid.New()
	}

	select {
	case d.queue <- outcome:
		return true
	default:
		logrus.WithField("auction_id", outcome.AuctionId).Warn("dispatch queue full, outcome dropped")
		return false
	}
}

// Run drains the queue until ctx is cancelled, then delivers what is left
// and gives the sinks up to SinkDeadline to finish their own queues.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.closeOnce.Do(func() { close(d.done) })

	sinkCtx, cancelSinks := context.WithCancel(context.Background())
	defer cancelSinks()

	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(w *sinkWorker) {
			defer wg.Done()
			d.runSink(sinkCtx, w)
		}(w)
	}

	for {
		select {
		case outcome := <-d.queue:
			d.deliver(outcome)
		case <-ctx.Done():
			d.drain()
			for _, w := range d.workers {
				close(w.queue)
			}
			d.waitSinks(&wg, cancelSinks)
			return
		}
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) drain() {
	for {
		select {
		case outcome := <-d.queue:
			d.deliver(outcome)
		default:
			return
		}
	}
}

func (d *Dispatcher) waitSinks(wg *sync.WaitGroup, cancelSinks context.CancelFunc) {
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(d.cfg.SinkDeadline)
	defer timer.Stop()

	select {
	case <-finished:
	case <-timer.C:
		logrus.Warn("sinks did not finish in time, abandoning their queues")
		cancelSinks()
		<-finished
	}
}

func (d *Dispatcher) deliver(outcome *entity.Outcome) {
	for _, delivery := range outcome.Deliveries {
		d.fanout.Broadcast(delivery.Recipients, delivery.Event)
	}

	for _, w := range d.workers {
		select {
		case w.queue <- outcome:
		default:
			logrus.WithFields(logrus.Fields{
				"sink":       w.sink.Name(),
				"auction_id": outcome.AuctionId,
			}).Warn("sink queue full, outcome skipped")
		}
	}
}

func (d *Dispatcher) runSink(ctx context.Context, w *sinkWorker) {
	for outcome := range w.queue {
		if ctx.Err() != nil {
			continue
		}
		d.handleWithRetry(ctx, w.sink, outcome)
	}
}

func (d *Dispatcher) handleWithRetry(ctx context.Context, sink Sink, outcome *entity.Outcome) {
	log := logrus.WithFields(logrus.Fields{"sink": sink.Name(), "auction_id": outcome.AuctionId})

	for attempt := 1; attempt <= d.cfg.SinkRetries; attempt++ {
		sinkCtx, cancel := context.WithTimeout(ctx, d.cfg.SinkDeadline)
		err := sink.Handle(sinkCtx, outcome)
		cancel()
		if err == nil {
			return
		}

		log.WithError(err).WithField("attempt", attempt).Warn("sink failed")
		if attempt == d.cfg.SinkRetries {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * d.cfg.SinkBackoff):
		}
	}

	log.Error("sink gave up on outcome")
}
