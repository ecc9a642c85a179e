// Package events stamps realtime envelopes and fans them out.
package events

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"resto/internal/hub"
	"resto/internal/models"
	"resto/internal/socket"
)

type Broadcaster interface {
	Broadcast(payload []byte, meta hub.Subscription)
}

type Forwarder interface {
	Publish(ctx context.Context, env socket.Envelope) error
}

type Publisher struct {
	version atomic.Int64
	hub     Broadcaster
	broker  Forwarder
	now     func() time.Time
}

// NewPublisher returns a publisher. broker may be nil.
func NewPublisher(h Broadcaster, broker Forwarder) *Publisher {
	return &Publisher{hub: h, broker: broker, now: time.Now}
}

// Meta returns the current version without advancing it.
func (p *Publisher) Meta() socket.Meta {
	return socket.NewMeta(p.version.Load(), p.now())
}

func (p *Publisher) next() socket.Meta {
	return socket.NewMeta(p.version.Add(1), p.now())
}

type builder func(meta socket.Meta) (socket.Envelope, error)

func (p *Publisher) publish(ctx context.Context, tenantID, tableID string, build builder) {
	env, err := build(p.next())
	if err != nil {
		log.Printf("build event tenant=%s: %v", tenantID, err)
		return
	}
	env.TenantID = tenantID
	payload, err := socket.Encode(env)
	if err != nil {
		log.Printf("encode event=%s tenant=%s: %v", env.Event, tenantID, err)
		return
	}
	if p.hub != nil {
		p.hub.Broadcast(payload, hub.Subscription{TenantID: tenantID, TableID: tableID})
	}
	if p.broker != nil {
		if err := p.broker.Publish(ctx, env); err != nil {
			log.Printf("broker publish event=%s tenant=%s: %v", env.Event, tenantID, err)
		}
	}
}

func (p *Publisher) TableUpdated(ctx context.Context, t models.Table) {
	p.publish(ctx, t.TenantID, t.TableID, func(meta socket.Meta) (socket.Envelope, error) {
		return socket.TableUpdated(t, meta)
	})
}

func (p *Publisher) LayoutUpdated(ctx context.Context, tenantID string, l models.Layout) {
	p.publish(ctx, tenantID, "", func(meta socket.Meta) (socket.Envelope, error) {
		return socket.LayoutUpdated(l, meta)
	})
}

func (p *Publisher) OrderCreated(ctx context.Context, o models.Order) {
	p.publish(ctx, o.TenantID, o.TableID, func(meta socket.Meta) (socket.Envelope, error) {
		return socket.OrderCreated(o, meta)
	})
}

func (p *Publisher) OrderUpdated(ctx context.Context, o models.Order) {
	p.publish(ctx, o.TenantID, o.TableID, func(meta socket.Meta) (socket.Envelope, error) {
		return socket.OrderUpdated(o, meta)
	})
}

func (p *Publisher) SummaryUpdated(ctx context.Context, tenantID string, s models.OrdersSummary) {
	p.publish(ctx, tenantID, "", func(meta socket.Meta) (socket.Envelope, error) {
		return socket.SummaryUpdated(s, meta)
	})
}

func (p *Publisher) AlertCreated(ctx context.Context, a models.Alert) {
	p.publish(ctx, a.TenantID, a.TableID, func(meta socket.Meta) (socket.Envelope, error) {
		return socket.AlertCreated(a, meta)
	})
}

func (p *Publisher) AlertUpdated(ctx context.Context, a models.Alert) {
	p.publish(ctx, a.TenantID, a.TableID, func(meta socket.Meta) (socket.Envelope, error) {
		return socket.AlertUpdated(a, meta)
	})
}

// Ready encodes the subscribe snapshot at the current version.
func (p *Publisher) Ready(tenantID string, snapshot socket.Snapshot) ([]byte, error) {
	env, err := socket.Ready(snapshot, p.Meta())
	if err != nil {
		return nil, err
	}
	env.TenantID = tenantID
	return socket.Encode(env)
}

func (p *Publisher) Heartbeat() ([]byte, error) {
	env, err := socket.Heartbeat(p.Meta())
	if err != nil {
		return nil, err
	}
	return socket.Encode(env)
}
