/*
Package event implements at-least-once transaction fan-out.

PURPOSE:
  Every finalized transaction is published to the configured subscriber
  services (journal, receipt archive, stock, ...). Delivery progress is
  tracked per service in the delivery store; the republisher retries
  anything that falls short, so consumers must deduplicate by event id.

DELIVERY FLOW:
  1. Finalization inserts a pending EventDelivery, then publishes.
  2. Each subscriber is POSTed the transaction payload; a 2xx marks that
     service delivered, anything else marks it failed with the error.
  3. Subscribers that process asynchronously may instead acknowledge
     later through the delivery-status endpoint; Ack flips the service
     entry regardless of what the POST attempt recorded.
  4. The overall status is recomputed from the per-service entries after
     every change.

SEE ALSO:
  - republisher.go: Background redelivery of undelivered events
  - store: DeliveryStore
*/
package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
)

// Subscriber is one downstream consumer of transaction events.
type Subscriber struct {
	ServiceName string `yaml:"serviceName" json:"serviceName"`
	URL         string `yaml:"url" json:"url"`
}

// Envelope is the wire form POSTed to subscribers.
type Envelope struct {
	EventID     string           `json:"eventId"`
	EventType   string           `json:"eventType"`
	PublishedAt time.Time        `json:"publishedAt"`
	Transaction *pos.Transaction `json:"transaction"`
}

const eventTypeTransactionLog = "transaction_log"

// Publisher fans transaction events out to subscribers and records the
// outcome per service.
type Publisher struct {
	Deliveries  store.DeliveryStore
	Subscribers []Subscriber
	Client      *http.Client

	// MaxAttempts bounds per-subscriber POST retries within one publish.
	MaxAttempts uint64

	// now is swappable for tests.
	now func() time.Time
}

// NewPublisher builds a publisher with the given subscriber set.
func NewPublisher(ds store.DeliveryStore, subs []Subscriber, client *http.Client) *Publisher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Publisher{
		Deliveries:  ds,
		Subscribers: subs,
		Client:      client,
		MaxAttempts: 3,
		now:         time.Now,
	}
}

// Publish records a new delivery for the transaction and attempts every
// subscriber once (with short retries). Publish never fails the caller's
// finalization because of a subscriber outage: delivery errors are
// recorded and left to the republisher.
func (p *Publisher) Publish(ctx context.Context, tran *pos.Transaction) (*pos.EventDelivery, error) {
	env := Envelope{
		EventID:     uuid.NewString(),
		EventType:   eventTypeTransactionLog,
		PublishedAt: p.now().UTC(),
		Transaction: tran,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}

	delivery := &pos.EventDelivery{
		EventID:       env.EventID,
		TenantID:      tran.TenantID,
		StoreCode:     tran.StoreCode,
		TerminalNo:    tran.TerminalNo,
		BusinessDate:  tran.BusinessDate,
		TransactionNo: tran.TransactionNo,
		PublishedAt:   env.PublishedAt,
		OverallStatus: pos.DeliveryPending,
		Payload:       payload,
	}
	for _, sub := range p.Subscribers {
		delivery.Services = append(delivery.Services, pos.ServiceDelivery{
			ServiceName: sub.ServiceName,
			Status:      pos.DeliveryPending,
		})
	}

	if err := p.Deliveries.InsertDelivery(ctx, delivery); err != nil {
		return nil, fmt.Errorf("insert delivery: %w", err)
	}

	p.attemptAll(ctx, delivery)
	return delivery, nil
}

// Redeliver retries the subscribers of an existing delivery that are not
// yet marked delivered.
func (p *Publisher) Redeliver(ctx context.Context, delivery *pos.EventDelivery) {
	p.attemptAll(ctx, delivery)
}

// Ack records a subscriber's verdict on an existing event, typically
// called once the subscriber has durably processed (or definitively
// rejected) it. An empty status means delivered. A delivered service
// never regresses to failed; re-acking delivered is a no-op.
func (p *Publisher) Ack(ctx context.Context, eventID, serviceName string, status pos.DeliveryStatus, message string) (*pos.EventDelivery, error) {
	if status == "" {
		status = pos.DeliveryDelivered
	}
	if status != pos.DeliveryDelivered && status != pos.DeliveryFailed {
		return nil, pos.ErrInvalidRequest.WithDetail("status must be delivered or failed, got %q", status)
	}

	delivery, err := p.Deliveries.GetDelivery(ctx, eventID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, pos.ErrTransactionNotFound.WithDetail("event %s", eventID)
		}
		return nil, fmt.Errorf("load delivery: %w", err)
	}

	svc := delivery.Service(serviceName)
	if svc == nil {
		return nil, pos.ErrInvalidRequest.WithDetail("unknown service %q", serviceName)
	}
	if svc.Status == pos.DeliveryDelivered {
		return delivery, nil
	}

	if status == pos.DeliveryDelivered {
		now := p.now().UTC()
		svc.Status = pos.DeliveryDelivered
		svc.DeliveredAt = &now
		svc.ErrorMessage = ""
	} else {
		svc.Status = pos.DeliveryFailed
		svc.DeliveredAt = nil
		svc.ErrorMessage = message
	}
	delivery.RecomputeOverall()
	if err := p.Deliveries.SaveDelivery(ctx, delivery); err != nil {
		return nil, fmt.Errorf("save delivery: %w", err)
	}
	return delivery, nil
}

func (p *Publisher) attemptAll(ctx context.Context, delivery *pos.EventDelivery) {
	for _, sub := range p.Subscribers {
		svc := delivery.Service(sub.ServiceName)
		if svc == nil || svc.Status == pos.DeliveryDelivered {
			continue
		}
		if err := p.post(ctx, sub.URL, delivery.Payload); err != nil {
			log.Printf("[Publisher] delivery to %s failed for event %s: %v", sub.ServiceName, delivery.EventID, err)
			svc.Status = pos.DeliveryFailed
			svc.ErrorMessage = err.Error()
		} else {
			now := p.now().UTC()
			svc.Status = pos.DeliveryDelivered
			svc.DeliveredAt = &now
			svc.ErrorMessage = ""
		}
	}

	delivery.RecomputeOverall()
	if err := p.Deliveries.SaveDelivery(ctx, delivery); err != nil {
		log.Printf("[Publisher] save delivery %s failed: %v", delivery.EventID, err)
	}
}

// post sends one payload with exponential backoff on transient failures.
func (p *Publisher) post(ctx context.Context, url string, payload []byte) error {
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.Client.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		err = fmt.Errorf("subscriber returned %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.MaxAttempts-1),
		ctx,
	)
	return backoff.Retry(attempt, policy)
}

// SetClock overrides the time source. Tests only.
func (p *Publisher) SetClock(now func() time.Time) { p.now = now }
