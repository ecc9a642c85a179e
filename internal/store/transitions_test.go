package store

import (
	"errors"
	"testing"
	"time"

	"resto/internal/models"
)

func TestValidTableTransition(t *testing.T) {
	cases := []struct {
		from  string
		to    string
		valid bool
	}{
		{"libre", "ocupada", true},
		{"libre", "reservada", true},
		{"libre", "cerrada", true},
		{"libre", "libre", false},
		{"libre", "limpieza", false},
		{"ocupada", "limpieza", true},
		{"ocupada", "libre", false},
		{"ocupada", "ocupada", false},
		{"ocupada", "reservada", false},
		{"ocupada", "cerrada", false},
		{"reservada", "ocupada", true},
		{"reservada", "libre", true},
		{"reservada", "limpieza", false},
		{"reservada", "reservada", false},
		{"limpieza", "libre", true},
		{"limpieza", "cerrada", true},
		{"limpieza", "ocupada", false},
		{"cerrada", "libre", true},
		{"cerrada", "ocupada", false},
		{"unknown", "libre", false},
		{"libre", "unknown", false},
	}

	for _, tt := range cases {
		if got := ValidTableTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidTableTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestTableTransitionTableIsTotal(t *testing.T) {
	for _, from := range models.TableStatuses {
		for _, to := range models.TableStatuses {
			first := ValidTableTransition(from, to)
			for i := 0; i < 3; i++ {
				if ValidTableTransition(from, to) != first {
					t.Fatalf("non-deterministic answer for %s -> %s", from, to)
				}
			}
			if from == to && first {
				t.Fatalf("same-state transition %s allowed", from)
			}
		}
	}
}

func TestValidOrderTransition(t *testing.T) {
	cases := []struct {
		from  string
		to    string
		valid bool
	}{
		{"open", "preparing", true},
		{"open", "closed", true},
		{"open", "ready", false},
		{"preparing", "ready", true},
		{"ready", "delivered", true},
		{"delivered", "closed", true},
		{"delivered", "open", false},
		{"closed", "open", false},
		{"closed", "closed", false},
	}
	for _, tt := range cases {
		if got := ValidOrderTransition(tt.from, tt.to); got != tt.valid {
			t.Fatalf("ValidOrderTransition(%q, %q)=%v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestValidPaymentTransition(t *testing.T) {
	cases := []struct {
		from string
		to   string
		ok   bool
		noop bool
	}{
		{"pending", "paid", true, false},
		{"pending", "cancelled", true, false},
		{"pending", "pending", false, false},
		{"paid", "paid", true, true},
		{"paid", "cancelled", false, false},
		{"cancelled", "paid", false, false},
		{"cancelled", "cancelled", true, true},
	}
	for _, tt := range cases {
		ok, noop := ValidPaymentTransition(tt.from, tt.to)
		if ok != tt.ok || noop != tt.noop {
			t.Fatalf("ValidPaymentTransition(%q, %q)=(%v,%v), want (%v,%v)", tt.from, tt.to, ok, noop, tt.ok, tt.noop)
		}
	}
}

func TestApplyTableStateCovers(t *testing.T) {
	table := models.Table{TableID: "1", TenantID: "t1", Status: models.TableFree, Active: true}
	seatedAt := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	entry, err := ApplyTableState(&table, TableStateInput{
		Status:     models.TableOccupied,
		Covers:     4,
		Actor:      models.Actor{ID: "u1", Name: "Ana", Role: "waiter"},
		Reason:     "walk-in",
		OccurredAt: seatedAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.From != models.TableFree || entry.To != models.TableOccupied {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Actor.Name != "Ana" || entry.Reason != "walk-in" || !entry.CreatedAt.Equal(seatedAt) {
		t.Fatalf("entry lost actor or reason: %+v", entry)
	}
	if table.Covers.Current != 4 || table.Covers.Total != 4 || table.Covers.Sessions != 1 {
		t.Fatalf("unexpected covers %+v", table.Covers)
	}

	if _, err := ApplyTableState(&table, TableStateInput{Status: models.TableCleaning, OccurredAt: seatedAt.Add(time.Hour)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Covers.Current != 0 || table.Covers.Total != 4 || table.Covers.LastReleasedAt == nil {
		t.Fatalf("covers not released %+v", table.Covers)
	}
}

func TestApplyTableStateRejects(t *testing.T) {
	table := models.Table{TableID: "2", Status: models.TableOccupied, Active: true}
	if _, err := ApplyTableState(&table, TableStateInput{Status: models.TableFree}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if table.Status != models.TableOccupied {
		t.Fatalf("table mutated on rejected transition")
	}
	if _, err := ApplyTableState(&table, TableStateInput{Status: "sucia"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	table.Active = false
	if _, err := ApplyTableState(&table, TableStateInput{Status: models.TableCleaning}); !errors.Is(err, ErrTableInactive) {
		t.Fatalf("expected ErrTableInactive, got %v", err)
	}
}
