// Package notifier delivers payment events to external sinks off the
// request path.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"checkout-service/models"
	awspkg "checkout-service/pkg/aws"
)

// Notifier is what the checkout services depend on.
type Notifier interface {
	// Notify enqueues ev and reports whether it was accepted. It never blocks.
	Notify(ev models.PaymentEvent) bool
}

// Sink delivers one event to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev models.PaymentEvent) error
}

// Idempotency claims an event key once across all replicas.
type Idempotency interface {
	Claim(ctx context.Context, key string) (bool, error)
}

type Options struct {
	QueueSize   int
	Workers     int
	SinkTimeout time.Duration
	Idempotency Idempotency
	Metrics     awspkg.MetricsRecorder
}

// Dispatcher fans events out to sinks from a bounded queue drained by a
// fixed worker pool. Sink failures are logged and counted, never returned.
type Dispatcher struct {
	queue   chan models.PaymentEvent
	sinks   []Sink
	opts    Options
	logger  *zap.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started sync.Once
}

var ErrClosed = errors.New("notifier closed")

func NewDispatcher(opts Options, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:  make(chan models.PaymentEvent, opts.QueueSize),
		sinks:  sinks,
		opts:   opts,
		logger: logger,
	}
}

// Start launches the worker pool. Calling it again has no effect.
func (d *Dispatcher) Start() {
	d.started.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.worker(i)
		}
		d.logger.Info("notification dispatcher started",
			zap.Int("workers", d.opts.Workers),
			zap.Int("queue_size", d.opts.QueueSize),
			zap.Int("sinks", len(d.sinks)))
	})
}

func (d *Dispatcher) Notify(ev models.PaymentEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped, dispatcher closed",
			zap.String("event", string(ev.Type)), zap.String("checkout_id", ev.CheckoutID))
		return false
	}

	select {
	case d.queue <- ev:
		return true
	default:
		d.logger.Warn("notification dropped, queue full",
			zap.String("event", string(ev.Type)), zap.String("checkout_id", ev.CheckoutID))
		d.count(awspkg.MetricNotificationsDropped, ev, "")
		return false
	}
}

// Close stops accepting events and waits for queued ones to be delivered,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for ev := range d.queue {
		d.dispatch(ev)
	}
	d.logger.Debug("notification worker stopped", zap.Int("worker", id))
}

func (d *Dispatcher) dispatch(ev models.PaymentEvent) {
	if d.opts.Idempotency != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.SinkTimeout)
		ok, err := d.opts.Idempotency.Claim(ctx, IdempotencyKey(ev))
		cancel()
		if err != nil {
			d.logger.Warn("idempotency check failed, delivering anyway",
				zap.String("event", string(ev.Type)), zap.Error(err))
		} else if !ok {
			d.logger.Info("duplicate notification suppressed",
				zap.String("event", string(ev.Type)), zap.String("checkout_id", ev.CheckoutID))
			return
		}
	}

	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.SinkTimeout)
		err := sink.Send(ctx, ev)
		cancel()
		if err != nil {
			d.logger.Error("notification sink failed",
				zap.String("sink", sink.Name()),
				zap.String("event", string(ev.Type)),
				zap.String("checkout_id", ev.CheckoutID),
				zap.Error(err))
			d.count(awspkg.MetricNotificationSinkError, ev, sink.Name())
			continue
		}
		d.logger.Info("notification delivered",
			zap.String("sink", sink.Name()),
			zap.String("event", string(ev.Type)),
			zap.String("checkout_id", ev.CheckoutID))
	}
}

func (d *Dispatcher) count(metric string, ev models.PaymentEvent, sink string) {
	if d.opts.Metrics == nil || !d.opts.Metrics.IsEnabled() {
		return
	}
	dims := map[string]string{"Event": string(ev.Type)}
	if sink != "" {
		dims["Sink"] = sink
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = d.opts.Metrics.RecordCount(ctx, metric, dims)
}

// IdempotencyKey identifies one event for one checkout.
func IdempotencyKey(ev models.PaymentEvent) string {
	return "notify:" + string(ev.Type) + ":" + ev.CheckoutID
}
