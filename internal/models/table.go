package models

import "time"

type Table struct {
	TableID   string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Number    string    `json:"number"`
	Status    string    `json:"status"`
	ZoneID    string    `json:"zoneId,omitempty"`
	Seats     int       `json:"seats"`
	Covers    Covers    `json:"covers"`
	QRCode    string    `json:"qrCode,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Covers struct {
	Current          int        `json:"current"`
	Total            int        `json:"total"`
	Sessions         int        `json:"sessions"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	LastReleasedAt   *time.Time `json:"lastReleasedAt,omitempty"`
}

const (
	TableFree     = "libre"
	TableOccupied = "ocupada"
	TableReserved = "reservada"
	TableCleaning = "limpieza"
	TableClosed   = "cerrada"
)

var TableStatuses = []string{TableFree, TableOccupied, TableReserved, TableCleaning, TableClosed}

func IsTableStatus(status string) bool {
	for _, s := range TableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Actor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

type HistoryEntry struct {
	EntryID   string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	TableID   string    `json:"tableId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Actor     Actor     `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Zone struct {
	ZoneID    string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Layout struct {
	Zones     []LayoutZone `json:"zones"`
	Nodes     []LayoutNode `json:"nodes"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type LayoutZone struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type LayoutNode struct {
	TableID string  `json:"tableId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Shape   string  `json:"shape,omitempty"`
	Zone    string  `json:"zone,omitempty"`
}

// TableSeats carries per-table data saved together with a layout.
type TableSeats struct {
	TableID string `json:"id"`
	Seats   int    `json:"seats"`
	ZoneID  string `json:"zoneId,omitempty"`
}
