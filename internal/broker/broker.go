// Package broker moves realtime envelopes through RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"resto/internal/socket"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange           = "dining.events"
	DeadLetterExchange = "dining.dlx"
	PushQueue          = "dining.push"
	DeadLetterQueue    = "dining.push.dead"
)

// Publisher forwards envelopes to the fanout exchange.
type Publisher struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, env socket.Envelope) error {
	body, err := socket.Encode(env)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		return fmt.Errorf("publish %s: channel closed", env.Event)
	}
	return p.ch.PublishWithContext(ctx, Exchange, env.Event, false, false, Message(env, body))
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		if err := p.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

// Message builds the persistent AMQP message for an envelope.
func Message(env socket.Envelope, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         env.Event,
		MessageId:    fmt.Sprintf("%s-%d", env.TenantID, env.Meta.Version),
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"tenant_id": env.TenantID},
		Body:         body,
	}
}

// Consumer reads envelopes from the push queue. Rejected deliveries are
// routed to the dead-letter exchange.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialConsumer(url string, prefetch int) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := DeclareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch}, nil
}

type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

func DeclareTopology(ch declarer) error {
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}
	if err := ch.QueueBind(DeadLetterQueue, "", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}
	args := amqp.Table{"x-dead-letter-exchange": DeadLetterExchange}
	if _, err := ch.QueueDeclare(PushQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare push queue: %w", err)
	}
	if err := ch.QueueBind(PushQueue, "", Exchange, false, nil); err != nil {
		return fmt.Errorf("bind push queue: %w", err)
	}
	return nil
}

func (c *Consumer) Deliveries(ctx context.Context, name string) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, PushQueue, name, false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	if c.ch != nil && !c.ch.IsClosed() {
		if err := c.ch.Close(); err != nil {
			return fmt.Errorf("close rabbitmq channel: %w", err)
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

// DecodeDelivery parses the envelope carried by a delivery body.
func DecodeDelivery(body []byte) (socket.Envelope, error) {
	var env socket.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return socket.Envelope{}, fmt.Errorf("decode delivery: %w", err)
	}
	return env, nil
}
