package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/helpdesk-rbac/pkg/audit"
	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
)

const (
	defaultQueueSize = 256
	defaultTimeout   = 5 * time.Second
	maxResponseBody  = 64 << 10
)

var (
	ErrQueueFull = errors.New("webhook queue is full")
	ErrClosed    = errors.New("webhook notifier is closed")
)

// Delivery outcomes, used as metric labels
const (
	DeliveryStatusSuccess = "success"
	DeliveryStatusFailed  = "failed"
	DeliveryStatusRetried = "retried"
	DeliveryStatusDropped = "dropped"
)

// Endpoint is one subscriber
type Endpoint struct {
	URL    string
	Secret string // signs the body when set
	Format Format
	Events []audit.EventType // empty subscribes to every event
}

func (e Endpoint) wants(t audit.EventType) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, want := range e.Events {
		if want == t {
			return true
		}
	}
	return false
}

// Notification is the body sent to json endpoints
type Notification struct {
	ID        string          `json:"id"`
	Type      audit.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Event     *audit.Event    `json:"event"`
}

// Config configures a Notifier
type Config struct {
	Endpoints []Endpoint
	Retry     RetryConfig
	QueueSize int
	Timeout   time.Duration // per attempt
}

type job struct {
	endpoint     Endpoint
	notification *Notification
	body         []byte
}

// Notifier is an audit.Logger that posts events to webhook endpoints from a
// background worker. Failed deliveries are retried with backoff; after Close
// each queued delivery gets a single attempt.
type Notifier struct {
	endpoints []Endpoint
	client    *http.Client
	retry     *RetryPolicy
	log       *logrus.Logger
	metrics   *observability.Metrics

	mu        sync.RWMutex
	closed    bool
	queue     chan job
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier creates a notifier and starts its delivery worker
func NewNotifier(cfg Config, log *logrus.Logger, metrics *observability.Metrics) *Notifier {
	if log == nil {
		log = logrus.New()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	n := &Notifier{
		endpoints: cfg.Endpoints,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retry:   NewRetryPolicy(cfg.Retry),
		log:     log,
		metrics: metrics,
		queue:   make(chan job, cfg.QueueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Log queues the event for every subscribed endpoint. It never blocks; an
// error means at least one delivery was not queued.
func (n *Notifier) Log(_ context.Context, event *audit.Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}

	notification := &Notification{
		ID:        uuid.NewString(),
		Type:      event.EventType,
		Timestamp: time.Now().UTC(),
		Event:     event,
	}

	var errs []error
	for _, endpoint := range n.endpoints {
		if !endpoint.wants(event.EventType) {
			continue
		}
		body, err := encode(endpoint.Format, notification)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to encode notification: %w", err))
			continue
		}

		select {
		case n.queue <- job{endpoint: endpoint, notification: notification, body: body}:
		default:
			n.metrics.RecordWebhookDelivery(DeliveryStatusDropped)
			errs = append(errs, fmt.Errorf("%w: %s", ErrQueueFull, endpoint.URL))
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events and waits for queued deliveries
func (n *Notifier) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		close(n.stop)
		n.mu.Unlock()
	})
	<-n.done
	return nil
}

func (n *Notifier) run() {
	defer close(n.done)
	for j := range n.queue {
		n.deliver(j)
	}
}

func (n *Notifier) deliver(j job) {
	entry := n.log.WithFields(logrus.Fields{
		"webhook":         j.endpoint.URL,
		"notification_id": j.notification.ID,
		"event_type":      j.notification.Type,
	})

	for attempt := 1; ; attempt++ {
		err := n.send(j)
		if err == nil {
			n.metrics.RecordWebhookDelivery(DeliveryStatusSuccess)
			entry.WithField("attempts", attempt).Debug("Webhook delivered")
			return
		}

		if !n.retry.ShouldRetry(attempt, err) {
			n.metrics.RecordWebhookDelivery(DeliveryStatusFailed)
			entry.WithError(err).WithField("attempts", attempt).Warn("Webhook delivery failed")
			return
		}

		n.metrics.RecordWebhookDelivery(DeliveryStatusRetried)
		select {
		case <-time.After(n.retry.NextRetryDelay(attempt)):
		case <-n.stop:
			n.metrics.RecordWebhookDelivery(DeliveryStatusFailed)
			entry.WithError(err).WithField("attempts", attempt).Warn("Webhook delivery abandoned on shutdown")
			return
		}
	}
}

func (n *Notifier) send(j job) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, j.endpoint.URL, bytes.NewReader(j.body))
	if err != nil {
		return &RejectedError{Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "helpdesk-rbac-webhooks")
	req.Header.Set("X-Helpdesk-Event", string(j.notification.Type))
	req.Header.Set("X-Helpdesk-Delivery", j.notification.ID)
	if j.endpoint.Secret != "" {
		req.Header.Set("X-Helpdesk-Signature", Sign(j.body, j.endpoint.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	return statusError(resp.StatusCode)
}

// Sign returns the X-Helpdesk-Signature value for a body
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received body against its signature header
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
