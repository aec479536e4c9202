package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/presetstudio/entitlements/internal/api/metrics"
	"github.com/presetstudio/entitlements/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
)

// Dispatcher routes billing events to a fixed set of workers using
// consistent hashing on the subscription ID, guaranteeing per-subscription
// ordering (a renewal is never applied after the deletion that followed it).
type Dispatcher struct {
	workers []chan ports.BillingEventInput
	service ports.SubscriptionService
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.SubscriptionService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.BillingEventInput, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.BillingEventInput, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends an event to the worker responsible for its subscription.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Enqueue(event ports.BillingEventInput) {
	d.workers[d.shardIndex(event.SubscriptionID)] <- event
}

// shardIndex maps a subscription ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(subscriptionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subscriptionID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.BillingEventInput) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			metrics.BillingQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
			if err := d.service.ProcessEvent(ctx, event); err != nil {
				metrics.BillingEventsTotal.WithLabelValues(string(event.Kind), "error").Inc()
				d.log.Error().Err(err).
					Str("subscription_id", event.SubscriptionID).
					Str("kind", string(event.Kind)).
					Int("worker_id", id).
					Msg("billing event processing failed")
				continue
			}
			metrics.BillingEventsTotal.WithLabelValues(string(event.Kind), "ok").Inc()
		}
	}
}

