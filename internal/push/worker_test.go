package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"resto/internal/models"
	"resto/internal/socket"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeSubs struct {
	subs    []models.PushSubscription
	deleted []string
}

func (f *fakeSubs) ListPushSubscriptions(ctx context.Context, tenantID string) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	for _, sub := range f.subs {
		if sub.TenantID == tenantID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (f *fakeSubs) DeletePushSubscription(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeSender struct {
	sendFn func(sub models.PushSubscription, payload []byte) (int, error)
	calls  map[string]int
}

func (f *fakeSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[sub.SubscriptionID]++
	return f.sendFn(sub, payload)
}

func newTestWorker(subs Subscriptions, sender Sender, attempts int) *Worker {
	w := NewWorker(subs, sender, Config{MaxAttempts: attempts})
	w.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return w
}

func alertBody(t *testing.T, alertType string) []byte {
	t.Helper()
	env, err := socket.AlertCreated(models.Alert{
		AlertID:   "a1",
		TenantID:  "t1",
		TableID:   "4",
		Type:      alertType,
		Message:   "Table 4 is calling a waiter",
		CreatedAt: time.Now(),
	}, socket.NewMeta(1, time.Now()))
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	env.TenantID = "t1"
	raw, err := socket.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func TestHandleSendsToTenantSubscriptions(t *testing.T) {
	subs := &fakeSubs{subs: []models.PushSubscription{
		{SubscriptionID: "s1", TenantID: "t1", Endpoint: "https://push.example/1"},
		{SubscriptionID: "s2", TenantID: "t2", Endpoint: "https://push.example/2"},
	}}
	var payloads []string
	sender := &fakeSender{sendFn: func(sub models.PushSubscription, payload []byte) (int, error) {
		payloads = append(payloads, string(payload))
		return 201, nil
	}}
	w := newTestWorker(subs, sender, 3)

	if err := w.Handle(context.Background(), alertBody(t, models.AlertCallWaiter)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sender.calls["s1"] != 1 || sender.calls["s2"] != 0 {
		t.Fatalf("unexpected calls %v", sender.calls)
	}
	if len(payloads) != 1 || payloads[0] == "" {
		t.Fatalf("unexpected payloads %v", payloads)
	}
}

func TestHandleRetriesThenFails(t *testing.T) {
	subs := &fakeSubs{subs: []models.PushSubscription{{SubscriptionID: "s1", TenantID: "t1"}}}
	sender := &fakeSender{sendFn: func(sub models.PushSubscription, payload []byte) (int, error) {
		return 503, errors.New("unavailable")
	}}
	w := newTestWorker(subs, sender, 3)

	err := w.Handle(context.Background(), alertBody(t, models.AlertIncomingOrder))
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if sender.calls["s1"] != 3 {
		t.Fatalf("expected 3 attempts, got %d", sender.calls["s1"])
	}
}

func TestHandleDeletesGoneSubscriptions(t *testing.T) {
	subs := &fakeSubs{subs: []models.PushSubscription{{SubscriptionID: "s1", TenantID: "t1"}}}
	sender := &fakeSender{sendFn: func(sub models.PushSubscription, payload []byte) (int, error) {
		return 410, errors.New("gone")
	}}
	w := newTestWorker(subs, sender, 3)

	if err := w.Handle(context.Background(), alertBody(t, models.AlertCallWaiter)); err != nil {
		t.Fatalf("expired subscriptions are not failures, got %v", err)
	}
	if len(subs.deleted) != 1 || subs.deleted[0] != "s1" || sender.calls["s1"] != 1 {
		t.Fatalf("expected single attempt and delete, got calls=%v deleted=%v", sender.calls, subs.deleted)
	}
}

func TestHandleSkipsOtherEvents(t *testing.T) {
	sender := &fakeSender{sendFn: func(sub models.PushSubscription, payload []byte) (int, error) {
		t.Fatalf("no push expected")
		return 0, nil
	}}
	w := newTestWorker(&fakeSubs{}, sender, 3)
	env, _ := socket.SummaryUpdated(models.OrdersSummary{}, socket.NewMeta(1, time.Now()))
	raw, _ := socket.Encode(env)
	if err := w.Handle(context.Background(), raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
}

type fakeAck struct {
	acked  []uint64
	nacked []uint64
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	if requeue {
		return errors.New("requeue not expected")
	}
	f.nacked = append(f.nacked, tag)
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error {
	return nil
}

func TestRunAcksAndDeadLetters(t *testing.T) {
	subs := &fakeSubs{subs: []models.PushSubscription{{SubscriptionID: "s1", TenantID: "t1"}}}
	fail := true
	sender := &fakeSender{sendFn: func(sub models.PushSubscription, payload []byte) (int, error) {
		if fail {
			return 500, errors.New("boom")
		}
		return 201, nil
	}}
	w := newTestWorker(subs, sender, 2)
	ack := &fakeAck{}

	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: alertBody(t, models.AlertCallWaiter)}
	close(deliveries)
	w.Run(context.Background(), deliveries)
	if len(ack.nacked) != 1 || len(ack.acked) != 0 {
		t.Fatalf("expected dead-letter, got acked=%v nacked=%v", ack.acked, ack.nacked)
	}

	fail = false
	deliveries = make(chan amqp.Delivery, 1)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: alertBody(t, models.AlertCallWaiter)}
	close(deliveries)
	w.Run(context.Background(), deliveries)
	if len(ack.acked) != 1 || ack.acked[0] != 2 {
		t.Fatalf("expected ack, got %v", ack.acked)
	}
}
