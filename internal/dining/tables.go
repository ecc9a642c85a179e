package dining

import (
	"context"
	"errors"
	"strings"

	"resto/internal/models"
	"resto/internal/store"
)

type TableInput struct {
	TableID string
	Number  string
	ZoneID  string
	Seats   int
	QRCode  string
}

type StateChange struct {
	Status string
	Reason string
	Covers int
	Actor  models.Actor
}

type TableDetail struct {
	Table   models.Table
	History []models.HistoryEntry
}

func (s *Service) ListTables(ctx context.Context, tenantID string, includeInactive bool) ([]models.Table, error) {
	return s.store.ListTables(ctx, tenantID, includeInactive)
}

func (s *Service) GetTable(ctx context.Context, tenantID, tableID string) (TableDetail, error) {
	table, err := s.store.GetTable(ctx, tenantID, tableID)
	if err != nil {
		return TableDetail{}, err
	}
	history, err := s.store.ListTableHistory(ctx, tenantID, tableID)
	if err != nil {
		return TableDetail{}, err
	}
	return TableDetail{Table: table, History: history}, nil
}

func (s *Service) TableHistory(ctx context.Context, tenantID, tableID string) ([]models.HistoryEntry, error) {
	return s.store.ListTableHistory(ctx, tenantID, tableID)
}

func (s *Service) CreateTable(ctx context.Context, tenantID string, input TableInput) (models.Table, error) {
	input.Number = strings.TrimSpace(input.Number)
	if input.Number == "" {
		return models.Table{}, invalid("number", "is required")
	}
	if input.Seats < 0 {
		return models.Table{}, invalid("seats", "must not be negative")
	}
	table, err := s.store.CreateTable(ctx, models.Table{
		TableID:  strings.TrimSpace(input.TableID),
		TenantID: tenantID,
		Number:   input.Number,
		ZoneID:   strings.TrimSpace(input.ZoneID),
		Seats:    input.Seats,
		QRCode:   strings.TrimSpace(input.QRCode),
	})
	if err != nil {
		return models.Table{}, err
	}
	s.events.TableUpdated(ctx, table)
	return table, nil
}

func (s *Service) ChangeTableState(ctx context.Context, tenantID, tableID string, change StateChange) (models.Table, error) {
	if change.Covers < 0 {
		return models.Table{}, invalid("covers", "must not be negative")
	}
	table, err := s.store.UpdateTableState(ctx, store.TableStateInput{
		TenantID:   tenantID,
		TableID:    tableID,
		Status:     strings.TrimSpace(change.Status),
		Actor:      change.Actor,
		Reason:     strings.TrimSpace(change.Reason),
		Covers:     change.Covers,
		OccurredAt: s.now(),
	})
	if err != nil {
		return models.Table{}, err
	}
	s.events.TableUpdated(ctx, table)
	return table, nil
}

func (s *Service) DeactivateTable(ctx context.Context, tenantID, tableID string) (models.Table, error) {
	table, err := s.store.DeactivateTable(ctx, tenantID, tableID)
	if err != nil {
		return models.Table{}, err
	}
	s.events.TableUpdated(ctx, table)
	return table, nil
}

func (s *Service) GetLayout(ctx context.Context, tenantID string) (models.Layout, error) {
	return s.store.GetLayout(ctx, tenantID)
}

func (s *Service) SaveLayout(ctx context.Context, tenantID string, layout models.Layout, seats []models.TableSeats) (models.Layout, []models.Table, error) {
	for _, seat := range seats {
		if seat.Seats < 0 {
			return models.Layout{}, nil, invalid("tables.seats", "must not be negative")
		}
	}
	saved, tables, err := s.store.UpdateTableLayout(ctx, tenantID, layout, seats)
	if errors.Is(err, store.ErrTableNotFound) {
		return models.Layout{}, nil, invalid("layout", "%v", err)
	}
	if err != nil {
		return models.Layout{}, nil, err
	}
	s.events.LayoutUpdated(ctx, tenantID, saved)
	for _, table := range tables {
		s.events.TableUpdated(ctx, table)
	}
	return saved, tables, nil
}

func (s *Service) ListZones(ctx context.Context, tenantID string) ([]models.Zone, error) {
	return s.store.ListZones(ctx, tenantID)
}

func (s *Service) CreateZone(ctx context.Context, tenantID, name, color string) (models.Zone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Zone{}, invalid("name", "is required")
	}
	return s.store.CreateZone(ctx, models.Zone{TenantID: tenantID, Name: name, Color: strings.TrimSpace(color)})
}
