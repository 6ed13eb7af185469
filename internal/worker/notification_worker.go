// Package worker runs background delivery of domain events.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/idea-service/internal/events"
	"github.com/spec-kit/idea-service/internal/observability"
)

// WebhookOptions configures a NotificationWorker.
type WebhookOptions struct {
	URL       string
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// NotificationWorker posts events as JSON to a webhook from a fixed pool of
// goroutines fed by a bounded queue. A full queue drops the event.
type NotificationWorker struct {
	opts    WebhookOptions
	client  *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics

	queue    chan events.Event
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewNotificationWorker builds a worker. client should come from
// security.NewWebhookClient outside of tests.
func NewNotificationWorker(opts WebhookOptions, client *http.Client, logger *zap.Logger, metrics *observability.Metrics) *NotificationWorker {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &NotificationWorker{
		opts:    opts,
		client:  client,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan events.Event, opts.QueueSize),
	}
}

// Start launches the delivery goroutines.
func (w *NotificationWorker) Start() {
	for i := 0; i < w.opts.Workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
	w.logger.Info("notification worker started",
		zap.Int("workers", w.opts.Workers),
		zap.Int("queue_size", w.opts.QueueSize))
}

// Enqueue schedules event for delivery. It never blocks and reports whether
// the event was accepted.
func (w *NotificationWorker) Enqueue(event events.Event) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return false
	}
	select {
	case w.queue <- event:
		return true
	default:
		w.metrics.WebhookDelivery("dropped")
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("idea_id", event.IdeaID))
		return false
	}
}

// Stop closes the queue and waits for queued events to drain or ctx to end.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		close(w.queue)
		w.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for event := range w.queue {
		if err := w.deliver(event); err != nil {
			w.metrics.WebhookDelivery("failed")
			w.logger.Error("webhook delivery failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			continue
		}
		w.metrics.WebhookDelivery("delivered")
	}
}

func (w *NotificationWorker) deliver(event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.opts.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.Type))
	req.Header.Set("X-Event-ID", event.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
