package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oskarlind/tradingpost/internal/model"
)

// Sink delivers a single callback message to a trader endpoint.
type Sink interface {
	Deliver(trader string, message string) error
}

// Stats contains dispatcher counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Dispatcher is the asynchronous callback fan-out worker. It implements
// the engine's Notifier interface.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger
	queue  *queue[envelope]

	wg sync.WaitGroup

	mu        sync.Mutex
	delivered int64
	failed    int64
}

type envelope struct {
	trader  string
	message string
}

// NewDispatcher creates a dispatcher delivering through the given sink.
func NewDispatcher(sink Sink, bufferSize int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sink:   sink,
		logger: logger,
		queue:  newQueue[envelope](bufferSize),
	}
}

// Notify enqueues a callback message. Never blocks.
func (d *Dispatcher) Notify(trader model.TraderRef, message string) {
	if !d.queue.send(envelope{trader: trader.ClientName, message: message}) {
		d.logger.Warn("dispatcher closed, callback dropped", "trader", trader.ClientName)
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.wg.Add(1)
	go d.deliverLoop()
	d.logger.Info("callback dispatcher started")
	return nil
}

// Stop closes the queue and waits for in-flight deliveries to finish.
// Messages still queued are delivered before the worker exits, unless
// the context expires first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.queue.close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("callback dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("callback dispatcher stop timed out")
	}
	return nil
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Queued:    d.queue.len(),
		Delivered: d.delivered,
		Failed:    d.failed,
	}
}

func (d *Dispatcher) deliverLoop() {
	defer d.wg.Done()

	for {
		env, ok := d.queue.receive()
		if !ok {
			return
		}

		err := d.sink.Deliver(env.trader, env.message)

		d.mu.Lock()
		if err != nil {
			d.failed++
		} else {
			d.delivered++
		}
		d.mu.Unlock()

		if err != nil {
			// Callback failures are expected (endpoints die silently)
			// and never propagate.
			d.logger.Warn("callback delivery failed",
				"trader", env.trader,
				"message", env.message,
				"error", err,
			)
		}
	}
}
