// Package dining holds the restaurant workflows that sit between the HTTP
// routes and the store: every mutation is persisted first and then
// re-serialized to realtime subscribers.
package dining

import (
	"context"
	"time"

	"resto/internal/catalog"
	"resto/internal/models"
	"resto/internal/socket"
	"resto/internal/store"
)

// Events receives every committed mutation.
type Events interface {
	TableUpdated(ctx context.Context, t models.Table)
	LayoutUpdated(ctx context.Context, tenantID string, l models.Layout)
	OrderCreated(ctx context.Context, o models.Order)
	OrderUpdated(ctx context.Context, o models.Order)
	SummaryUpdated(ctx context.Context, tenantID string, s models.OrdersSummary)
	AlertCreated(ctx context.Context, a models.Alert)
	AlertUpdated(ctx context.Context, a models.Alert)
}

type Options struct {
	SessionTTL time.Duration
	CatalogTTL time.Duration
}

type Service struct {
	store   store.Store
	catalog *catalog.Cache
	events  Events
	opts    Options
	now     func() time.Time
}

func NewService(st store.Store, events Events, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = time.Minute
	}
	if events == nil {
		events = noopEvents{}
	}
	return &Service{
		store:   st,
		catalog: catalog.New(st, opts.CatalogTTL),
		events:  events,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot gathers the state sent with socket.ready.
func (s *Service) Snapshot(ctx context.Context, tenantID string) (socket.Snapshot, error) {
	tables, err := s.store.ListTables(ctx, tenantID, false)
	if err != nil {
		return socket.Snapshot{}, err
	}
	layout, err := s.store.GetLayout(ctx, tenantID)
	if err != nil {
		return socket.Snapshot{}, err
	}
	alerts, err := s.store.ListAlerts(ctx, tenantID, false)
	if err != nil {
		return socket.Snapshot{}, err
	}
	summary, err := s.store.OrdersSummary(ctx, tenantID)
	if err != nil {
		return socket.Snapshot{}, err
	}
	return socket.Snapshot{Tables: tables, Layout: layout, Alerts: alerts, Summary: summary}, nil
}

func (s *Service) publishSummary(ctx context.Context, tenantID string) {
	summary, err := s.store.OrdersSummary(ctx, tenantID)
	if err != nil {
		return
	}
	s.events.SummaryUpdated(ctx, tenantID, summary)
}

type noopEvents struct{}

func (noopEvents) TableUpdated(context.Context, models.Table)                  {}
func (noopEvents) LayoutUpdated(context.Context, string, models.Layout)        {}
func (noopEvents) OrderCreated(context.Context, models.Order)                  {}
func (noopEvents) OrderUpdated(context.Context, models.Order)                  {}
func (noopEvents) SummaryUpdated(context.Context, string, models.OrdersSummary) {}
func (noopEvents) AlertCreated(context.Context, models.Alert)                  {}
func (noopEvents) AlertUpdated(context.Context, models.Alert)                  {}
