package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"resto/internal/models"
	"resto/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tableColumns = `
	tenant_id, table_id, number, status, zone_id, seats,
	covers_current, covers_total, covers_sessions, session_started_at, last_released_at,
	qr_code, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(row rowScanner) (models.Table, error) {
	var table models.Table
	var zoneID sql.NullString
	var startedAt, releasedAt sql.NullTime
	if err := row.Scan(
		&table.TenantID, &table.TableID, &table.Number, &table.Status, &zoneID, &table.Seats,
		&table.Covers.Current, &table.Covers.Total, &table.Covers.Sessions, &startedAt, &releasedAt,
		&table.QRCode, &table.Active, &table.CreatedAt, &table.UpdatedAt,
	); err != nil {
		return models.Table{}, err
	}
	table.ZoneID = nullString(zoneID)
	table.Covers.SessionStartedAt = nullTimePtr(startedAt)
	table.Covers.LastReleasedAt = nullTimePtr(releasedAt)
	table.CreatedAt = table.CreatedAt.UTC()
	table.UpdatedAt = table.UpdatedAt.UTC()
	return table, nil
}

func (s *Store) ListTables(ctx context.Context, tenantID string, includeInactive bool) ([]models.Table, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tableColumns+`
		FROM dining_tables
		WHERE tenant_id = $1 AND (active OR $2)
		ORDER BY
			CASE WHEN number ~ '^[0-9]+$' THEN number::bigint END NULLS LAST,
			number, table_id
	`, tenantID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

func (s *Store) GetTable(ctx context.Context, tenantID, tableID string) (models.Table, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tableColumns+`
		FROM dining_tables
		WHERE tenant_id = $1 AND table_id = $2
	`, tenantID, tableID)
	table, err := scanTable(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Table{}, store.ErrTableNotFound
		}
		return models.Table{}, err
	}
	return table, nil
}

func (s *Store) FindTableByQR(ctx context.Context, qrCode string) (models.Table, error) {
	if qrCode == "" {
		return models.Table{}, store.ErrQRCodeNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+tableColumns+`
		FROM dining_tables
		WHERE qr_code = $1 AND active
	`, qrCode)
	table, err := scanTable(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Table{}, store.ErrQRCodeNotFound
		}
		return models.Table{}, err
	}
	return table, nil
}

func (s *Store) CreateTable(ctx context.Context, table models.Table) (models.Table, error) {
	if table.TableID == "" {
		table.TableID = uuid.NewString()
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

	if table.ZoneID != "" {
		var exists bool
		if err := s.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM zones WHERE tenant_id = $1 AND zone_id = $2)
		`, table.TenantID, table.ZoneID).Scan(&exists); err != nil {
			return models.Table{}, err
		}
		if !exists {
			return models.Table{}, store.ErrZoneNotFound
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dining_tables (`+tableColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, table.TenantID, table.TableID, table.Number, table.Status, nullIfEmpty(table.ZoneID), table.Seats,
		table.Covers.Current, table.Covers.Total, table.Covers.Sessions,
		nullTime(table.Covers.SessionStartedAt), nullTime(table.Covers.LastReleasedAt),
		table.QRCode, table.Active, table.CreatedAt, table.UpdatedAt)
	if err != nil {
		return models.Table{}, mapWriteError(err, "table "+table.TableID, store.ErrTenantNotFound)
	}
	return table, nil
}

// UpdateTableState holds the table row lock for the whole transition so
// concurrent updates on one table are applied one at a time.
func (s *Store) UpdateTableState(ctx context.Context, input store.TableStateInput) (models.Table, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Table{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	table, err := lockTable(ctx, tx, input.TenantID, input.TableID)
	if err != nil {
		return models.Table{}, err
	}
	entry, err := store.ApplyTableState(&table, input)
	if err != nil {
		return models.Table{}, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE dining_tables
		SET status = $3, covers_current = $4, covers_total = $5, covers_sessions = $6,
			session_started_at = $7, last_released_at = $8, updated_at = $9
		WHERE tenant_id = $1 AND table_id = $2
	`, table.TenantID, table.TableID, table.Status, table.Covers.Current, table.Covers.Total, table.Covers.Sessions,
		nullTime(table.Covers.SessionStartedAt), nullTime(table.Covers.LastReleasedAt), table.UpdatedAt); err != nil {
		return models.Table{}, err
	}

	var actor []byte
	actor, err = json.Marshal(entry.Actor)
	if err != nil {
		return models.Table{}, err
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO table_history (entry_id, tenant_id, table_id, from_status, to_status, actor, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.EntryID, entry.TenantID, entry.TableID, entry.From, entry.To, actor, entry.Reason, entry.CreatedAt); err != nil {
		return models.Table{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Table{}, err
	}
	return table, nil
}

func (s *Store) DeactivateTable(ctx context.Context, tenantID, tableID string) (models.Table, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE dining_tables
		SET active = FALSE, updated_at = $3
		WHERE tenant_id = $1 AND table_id = $2
		RETURNING `+tableColumns, tenantID, tableID, time.Now().UTC())
	table, err := scanTable(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Table{}, store.ErrTableNotFound
		}
		return models.Table{}, err
	}
	return table, nil
}

func (s *Store) GetLayout(ctx context.Context, tenantID string) (models.Layout, error) {
	var zones, nodes []byte
	var layout models.Layout
	err := s.pool.QueryRow(ctx, `
		SELECT zones, nodes, updated_at FROM layouts WHERE tenant_id = $1
	`, tenantID).Scan(&zones, &nodes, &layout.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Layout{Zones: []models.LayoutZone{}, Nodes: []models.LayoutNode{}}, nil
		}
		return models.Layout{}, err
	}
	if err := json.Unmarshal(zones, &layout.Zones); err != nil {
		return models.Layout{}, fmt.Errorf("decode layout zones: %w", err)
	}
	if err := json.Unmarshal(nodes, &layout.Nodes); err != nil {
		return models.Layout{}, fmt.Errorf("decode layout nodes: %w", err)
	}
	if layout.Zones == nil {
		layout.Zones = []models.LayoutZone{}
	}
	if layout.Nodes == nil {
		layout.Nodes = []models.LayoutNode{}
	}
	layout.UpdatedAt = layout.UpdatedAt.UTC()
	return layout, nil
}

func (s *Store) UpdateTableLayout(ctx context.Context, tenantID string, layout models.Layout, seats []models.TableSeats) (models.Layout, []models.Table, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Layout{}, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, node := range layout.Nodes {
		if err = ensureTable(ctx, tx, tenantID, node.TableID); err != nil {
			return models.Layout{}, nil, fmt.Errorf("layout node %s: %w", node.TableID, err)
		}
	}
	for _, seat := range seats {
		if err = ensureTable(ctx, tx, tenantID, seat.TableID); err != nil {
			return models.Layout{}, nil, fmt.Errorf("table %s: %w", seat.TableID, err)
		}
	}
	known := make(map[string]bool, len(layout.Zones))
	for _, zone := range layout.Zones {
		known[zone.ID] = true
	}
	for _, node := range layout.Nodes {
		if node.Zone != "" && !known[node.Zone] {
			log.Printf("layout tenant=%s node=%s references unknown zone %s", tenantID, node.TableID, node.Zone)
		}
	}

	if layout.Zones == nil {
		layout.Zones = []models.LayoutZone{}
	}
	if layout.Nodes == nil {
		layout.Nodes = []models.LayoutNode{}
	}
	var zones, nodes []byte
	if zones, err = json.Marshal(layout.Zones); err != nil {
		return models.Layout{}, nil, err
	}
	if nodes, err = json.Marshal(layout.Nodes); err != nil {
		return models.Layout{}, nil, err
	}
	now := time.Now().UTC()
	layout.UpdatedAt = now
	if _, err = tx.Exec(ctx, `
		INSERT INTO layouts (tenant_id, zones, nodes, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (tenant_id) DO UPDATE SET zones = EXCLUDED.zones, nodes = EXCLUDED.nodes, updated_at = EXCLUDED.updated_at
	`, tenantID, zones, nodes, now); err != nil {
		return models.Layout{}, nil, mapWriteError(err, "layout "+tenantID, store.ErrTenantNotFound)
	}

	updated := make([]models.Table, 0, len(seats))
	for _, seat := range seats {
		var table models.Table
		table, err = scanTable(tx.QueryRow(ctx, `
			UPDATE dining_tables
			SET seats = $3, zone_id = COALESCE($4, zone_id), updated_at = $5
			WHERE tenant_id = $1 AND table_id = $2
			RETURNING `+tableColumns, tenantID, seat.TableID, seat.Seats, nullIfEmpty(seat.ZoneID), now))
		if err != nil {
			return models.Layout{}, nil, err
		}
		updated = append(updated, table)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Layout{}, nil, err
	}
	return layout, updated, nil
}

func (s *Store) ListTableHistory(ctx context.Context, tenantID, tableID string) ([]models.HistoryEntry, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM dining_tables WHERE tenant_id = $1 AND table_id = $2)
	`, tenantID, tableID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrTableNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT entry_id, tenant_id, table_id, from_status, to_status, actor, reason, created_at
		FROM table_history
		WHERE tenant_id = $1 AND table_id = $2
		ORDER BY created_at, entry_id
	`, tenantID, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var actor []byte
		if err := rows.Scan(&entry.EntryID, &entry.TenantID, &entry.TableID, &entry.From, &entry.To, &actor, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actor, &entry.Actor); err != nil {
			return nil, fmt.Errorf("decode history actor: %w", err)
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func lockTable(ctx context.Context, tx pgx.Tx, tenantID, tableID string) (models.Table, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+tableColumns+`
		FROM dining_tables
		WHERE tenant_id = $1 AND table_id = $2
		FOR UPDATE
	`, tenantID, tableID)
	table, err := scanTable(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Table{}, store.ErrTableNotFound
		}
		return models.Table{}, err
	}
	return table, nil
}

func ensureTable(ctx context.Context, tx pgx.Tx, tenantID, tableID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM dining_tables WHERE tenant_id = $1 AND table_id = $2)
	`, tenantID, tableID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrTableNotFound
	}
	return nil
}
