package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"resto/internal/broker"
	"resto/internal/models"
	"resto/internal/socket"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrDeliveryFailed = errors.New("push delivery failed")

type Subscriptions interface {
	ListPushSubscriptions(ctx context.Context, tenantID string) ([]models.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, subscriptionID string) error
}

type Config struct {
	MaxAttempts int
}

type Worker struct {
	subs        Subscriptions
	sender      Sender
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

func NewWorker(subs Subscriptions, sender Sender, cfg Config) *Worker {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Worker{
		subs:        subs,
		sender:      sender,
		maxAttempts: maxAttempts,
		newBackOff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

type Notification struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	AlertID string `json:"alertId"`
	TableID string `json:"tableId"`
	Type    string `json:"type"`
}

func titleFor(alertType string) string {
	switch alertType {
	case models.AlertCallWaiter:
		return "Waiter requested"
	case models.AlertIncomingOrder:
		return "New order"
	case models.AlertWantsCashPayment:
		return "Cash payment"
	case models.AlertPaymentApproved:
		return "Payment approved"
	default:
		return "Alert"
	}
}

// Handle sends one envelope to every subscription of its tenant. Events other
// than alert.created are skipped.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	env, err := broker.DecodeDelivery(body)
	if err != nil {
		return err
	}
	if env.Event != socket.EventAlertCreated {
		return nil
	}
	alert, err := socket.DecodeAlert(env)
	if err != nil {
		return err
	}
	tenantID := alert.TenantID
	if tenantID == "" {
		tenantID = env.TenantID
	}
	payload, err := json.Marshal(Notification{
		Title:   titleFor(alert.Type),
		Body:    alert.Message,
		AlertID: alert.AlertID,
		TableID: alert.TableID,
		Type:    alert.Type,
	})
	if err != nil {
		return err
	}

	subs, err := w.subs.ListPushSubscriptions(ctx, tenantID)
	if err != nil {
		return err
	}
	failed := 0
	for _, sub := range subs {
		if err := w.deliver(ctx, sub, payload); err != nil {
			log.Printf("push failed subscription=%s tenant=%s: %v", sub.SubscriptionID, tenantID, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d subscriptions", ErrDeliveryFailed, failed, len(subs))
	}
	return nil
}

func (w *Worker) deliver(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	_, err := backoff.Retry(ctx, func() (int, error) {
		status, err := w.sender.Send(ctx, sub, payload)
		if err == nil {
			return status, nil
		}
		switch {
		case status == http.StatusNotFound || status == http.StatusGone:
			if delErr := w.subs.DeletePushSubscription(ctx, sub.SubscriptionID); delErr != nil {
				log.Printf("delete expired subscription=%s: %v", sub.SubscriptionID, delErr)
			}
			return status, nil
		case status >= 400 && status < 500 && status != http.StatusTooManyRequests:
			return status, backoff.Permanent(err)
		}
		return status, err
	}, backoff.WithBackOff(w.newBackOff()), backoff.WithMaxTries(uint(w.maxAttempts)))
	return err
}

// Run consumes deliveries until ctx ends or the channel closes. A message
// that still fails after the retry budget is rejected without requeue so the
// broker dead-letters it.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := w.Handle(ctx, d.Body); err != nil {
				log.Printf("push message type=%s dead-lettered: %v", d.Type, err)
				if nackErr := d.Nack(false, false); nackErr != nil {
					log.Printf("nack error: %v", nackErr)
				}
				continue
			}
			if ackErr := d.Ack(false); ackErr != nil {
				log.Printf("ack error: %v", ackErr)
			}
		}
	}
}
