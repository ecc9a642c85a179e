package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"resto/internal/models"
	"resto/internal/store"

	"github.com/google/uuid"
)

func (s *Store) ListTables(ctx context.Context, tenantID string, includeInactive bool) ([]models.Table, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var tables []models.Table
	for _, table := range s.state.Tables {
		if table.TenantID != tenantID {
			continue
		}
		if !table.Active && !includeInactive {
			continue
		}
		tables = append(tables, table)
	}
	sortTables(tables)
	return tables, nil
}

func (s *Store) GetTable(ctx context.Context, tenantID, tableID string) (models.Table, error) {
	if err := s.lock(); err != nil {
		return models.Table{}, err
	}
	defer s.mu.Unlock()

	table, ok := s.state.Tables[key(tenantID, tableID)]
	if !ok {
		return models.Table{}, store.ErrTableNotFound
	}
	return table, nil
}

func (s *Store) FindTableByQR(ctx context.Context, qrCode string) (models.Table, error) {
	if err := s.lock(); err != nil {
		return models.Table{}, err
	}
	defer s.mu.Unlock()

	if qrCode == "" {
		return models.Table{}, store.ErrQRCodeNotFound
	}
	for _, table := range s.state.Tables {
		if table.QRCode == qrCode && table.Active {
			return table, nil
		}
	}
	return models.Table{}, store.ErrQRCodeNotFound
}

func (s *Store) CreateTable(ctx context.Context, table models.Table) (models.Table, error) {
	if err := s.lock(); err != nil {
		return models.Table{}, err
	}
	defer s.mu.Unlock()

	if table.TableID == "" {
		table.TableID = uuid.NewString()
	}
	k := key(table.TenantID, table.TableID)
	if _, exists := s.state.Tables[k]; exists {
		return models.Table{}, fmt.Errorf("table %s: %w", table.TableID, store.ErrDuplicate)
	}
	if table.ZoneID != "" {
		if _, ok := s.state.Zones[key(table.TenantID, table.ZoneID)]; !ok {
			return models.Table{}, store.ErrZoneNotFound
		}
	}
	if table.Status == "" {
		table.Status = models.TableFree
	}
	if !models.IsTableStatus(table.Status) {
		return models.Table{}, store.ErrInvalidStatus
	}
	if table.QRCode == "" {
		table.QRCode = uuid.NewString()
	}
	now := time.Now().UTC()
	if table.CreatedAt.IsZero() {
		table.CreatedAt = now
	}
	table.UpdatedAt = now
	table.Active = true

	put(s, s.state.Tables, k, table)
	if err := s.commitLocked(); err != nil {
		return models.Table{}, err
	}
	return table, nil
}

func (s *Store) UpdateTableState(ctx context.Context, input store.TableStateInput) (models.Table, error) {
	if err := s.lock(); err != nil {
		return models.Table{}, err
	}
	defer s.mu.Unlock()

	k := key(input.TenantID, input.TableID)
	table, ok := s.state.Tables[k]
	if !ok {
		return models.Table{}, store.ErrTableNotFound
	}
	entry, err := store.ApplyTableState(&table, input)
	if err != nil {
		return models.Table{}, err
	}
	put(s, s.state.Tables, k, table)
	s.appendHistory(entry)
	if err := s.commitLocked(); err != nil {
		return models.Table{}, err
	}
	return table, nil
}

func (s *Store) DeactivateTable(ctx context.Context, tenantID, tableID string) (models.Table, error) {
	if err := s.lock(); err != nil {
		return models.Table{}, err
	}
	defer s.mu.Unlock()

	k := key(tenantID, tableID)
	table, ok := s.state.Tables[k]
	if !ok {
		return models.Table{}, store.ErrTableNotFound
	}
	table.Active = false
	table.UpdatedAt = time.Now().UTC()
	put(s, s.state.Tables, k, table)
	if err := s.commitLocked(); err != nil {
		return models.Table{}, err
	}
	return table, nil
}

func (s *Store) GetLayout(ctx context.Context, tenantID string) (models.Layout, error) {
	if err := s.lock(); err != nil {
		return models.Layout{}, err
	}
	defer s.mu.Unlock()

	layout, ok := s.state.Layouts[tenantID]
	if !ok {
		return models.Layout{Zones: []models.LayoutZone{}, Nodes: []models.LayoutNode{}}, nil
	}
	return cloneLayout(layout), nil
}

func (s *Store) UpdateTableLayout(ctx context.Context, tenantID string, layout models.Layout, seats []models.TableSeats) (models.Layout, []models.Table, error) {
	if err := s.lock(); err != nil {
		return models.Layout{}, nil, err
	}
	defer s.mu.Unlock()

	for _, node := range layout.Nodes {
		if _, ok := s.state.Tables[key(tenantID, node.TableID)]; !ok {
			return models.Layout{}, nil, fmt.Errorf("layout node %s: %w", node.TableID, store.ErrTableNotFound)
		}
	}
	for _, seat := range seats {
		if _, ok := s.state.Tables[key(tenantID, seat.TableID)]; !ok {
			return models.Layout{}, nil, fmt.Errorf("table %s: %w", seat.TableID, store.ErrTableNotFound)
		}
	}
	zones := make(map[string]bool, len(layout.Zones))
	for _, zone := range layout.Zones {
		zones[zone.ID] = true
	}
	for _, node := range layout.Nodes {
		if node.Zone != "" && !zones[node.Zone] {
			log.Printf("layout tenant=%s node=%s references unknown zone %s", tenantID, node.TableID, node.Zone)
		}
	}

	now := time.Now().UTC()
	layout = cloneLayout(layout)
	layout.UpdatedAt = now
	put(s, s.state.Layouts, tenantID, layout)

	updated := make([]models.Table, 0, len(seats))
	for _, seat := range seats {
		k := key(tenantID, seat.TableID)
		table := s.state.Tables[k]
		table.Seats = seat.Seats
		if seat.ZoneID != "" {
			table.ZoneID = seat.ZoneID
		}
		table.UpdatedAt = now
		put(s, s.state.Tables, k, table)
		updated = append(updated, table)
	}
	if err := s.commitLocked(); err != nil {
		return models.Layout{}, nil, err
	}
	return cloneLayout(layout), updated, nil
}

func (s *Store) ListTableHistory(ctx context.Context, tenantID, tableID string) ([]models.HistoryEntry, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if _, ok := s.state.Tables[key(tenantID, tableID)]; !ok {
		return nil, store.ErrTableNotFound
	}
	var entries []models.HistoryEntry
	for _, entry := range s.state.History {
		if entry.TenantID == tenantID && entry.TableID == tableID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func cloneLayout(layout models.Layout) models.Layout {
	out := models.Layout{
		Zones:     append([]models.LayoutZone{}, layout.Zones...),
		Nodes:     append([]models.LayoutNode{}, layout.Nodes...),
		UpdatedAt: layout.UpdatedAt,
	}
	return out
}

func sortTables(tables []models.Table) {
	sort.Slice(tables, func(i, j int) bool {
		a, errA := strconv.Atoi(tables[i].Number)
		b, errB := strconv.Atoi(tables[j].Number)
		if errA == nil && errB == nil && a != b {
			return a < b
		}
		if tables[i].Number != tables[j].Number {
			return tables[i].Number < tables[j].Number
		}
		return tables[i].TableID < tables[j].TableID
	})
}
