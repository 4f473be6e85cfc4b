// Package dispatcher delivers signed event payloads to webhook subscribers.
//
// Delivery is fire-and-forget from the engine's perspective: DispatchAsync
// returns before any network I/O happens, and a slow or failing subscriber
// never delays delivery to another. Exhausted retries drop the event with an
// error log; there is no dead-letter queue.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"verigate/internal/webhook/metrics"
	"verigate/internal/webhook/models"
	id "verigate/pkg/domain"
)

const (
	headerSignature = "X-Verify-Signature"
	headerTimestamp = "X-Verify-Timestamp"
	headerEvent     = "X-Verify-Event"

	defaultMaxAttempts = 3
	defaultTimeout     = 10 * time.Second
	defaultMaxParallel = 16
)

// Registry is the read-only view of webhook subscriptions.
type Registry interface {
	List(ctx context.Context, orgID id.OrgID) ([]*models.Subscription, error)
}

type Option func(*Dispatcher)

// Dispatcher fans events out to matching subscriptions with bounded retry.
type Dispatcher struct {
	registry    Registry
	client      *http.Client
	logger      *slog.Logger
	metrics     *metrics.Metrics
	retry       RetryPolicy
	maxAttempts int
	maxParallel int
	now         func() time.Time

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

func NewDispatcher(registry Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		client:      &http.Client{Timeout: defaultTimeout},
		retry:       ExponentialRetryPolicy{Initial: 2 * time.Second, Max: 8 * time.Second},
		maxAttempts: defaultMaxAttempts,
		maxParallel: defaultMaxParallel,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithHTTPClient sets a custom HTTP client (timeout included).
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithLogger sets the logger instance for the dispatcher.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics instance for the dispatcher.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithMaxAttempts caps total attempts per subscriber, retries included.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithRetryPolicy overrides the backoff schedule between attempts.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.retry = p
		}
	}
}

// WithMaxParallel bounds concurrent deliveries within one event's fan-out.
func WithMaxParallel(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxParallel = n
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// DispatchAsync enqueues delivery of the event to every matching enabled
// subscription of the organization and returns immediately.
func (d *Dispatcher) DispatchAsync(orgID id.OrgID, payload models.Payload) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.dispatch(context.Background(), orgID, payload)
	}()
}

// Close waits for in-flight deliveries, scheduled retries included, to
// drain.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

// Shutdown aborts pending retries and waits for running POSTs to return.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, orgID id.OrgID, payload models.Payload) {
	subs, err := d.registry.List(ctx, orgID)
	if err != nil {
		d.logError(ctx, "failed to list webhook subscriptions",
			"org_id", orgID.String(),
			"event", payload.Event,
			"error", err,
		)
		return
	}

	var matching []*models.Subscription
	for _, sub := range subs {
		if sub.Matches(payload.Event) {
			matching = append(matching, sub)
		}
	}
	if len(matching) == 0 {
		return
	}

	// Serialize once; every subscriber in this fan-out gets the same bytes,
	// so the signature each receiver verifies covers an identical body.
	body, err := json.Marshal(payload)
	if err != nil {
		d.logError(ctx, "failed to serialize webhook payload",
			"event", payload.Event,
			"error", err,
		)
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(d.maxParallel)
	for _, sub := range matching {
		sub := sub
		g.Go(func() error {
			d.deliver(ctx, sub, payload.Event, body)
			return nil
		})
	}
	_ = g.Wait()
}

// deliver POSTs to one subscriber, retrying per the backoff schedule.
// Failures never propagate anywhere except logs and metrics.
func (d *Dispatcher) deliver(ctx context.Context, sub *models.Subscription, event string, body []byte) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(d.retry.NextDelay(attempt - 1)):
			case <-d.done:
				return
			}
		}

		err := d.post(ctx, sub, event, body)
		if err == nil {
			if d.metrics != nil {
				d.metrics.Deliveries.WithLabelValues(event, "delivered").Inc()
			}
			d.logInfo(ctx, "webhook delivered",
				"subscription_id", sub.ID.String(),
				"event", event,
				"attempt", attempt,
			)
			return
		}

		if attempt < d.maxAttempts {
			if d.metrics != nil {
				d.metrics.Retries.Inc()
			}
			d.logWarn(ctx, "webhook delivery failed, will retry",
				"subscription_id", sub.ID.String(),
				"event", event,
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		if d.metrics != nil {
			d.metrics.Deliveries.WithLabelValues(event, "failed").Inc()
			d.metrics.Dropped.WithLabelValues(event).Inc()
		}
		d.logError(ctx, "webhook delivery failed, dropping event",
			"subscription_id", sub.ID.String(),
			"event", event,
			"attempts", attempt,
			"error", err,
		)
	}
}

func (d *Dispatcher) post(ctx context.Context, sub *models.Subscription, event string, body []byte) error {
	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.ObserveDelivery(time.Since(start))
		}
	}()

	ts := d.now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, Sign(sub.Secret, ts, body))
	req.Header.Set(headerTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(headerEvent, event)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) logInfo(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.InfoContext(ctx, msg, args...)
	}
}

func (d *Dispatcher) logWarn(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.WarnContext(ctx, msg, args...)
	}
}

func (d *Dispatcher) logError(ctx context.Context, msg string, args ...any) {
	if d.logger != nil {
		d.logger.ErrorContext(ctx, msg, args...)
	}
}
