package dining

import (
	"testing"

	"resto/internal/models"
)

func TestLineTotal(t *testing.T) {
	cases := []struct {
		name string
		item models.OrderItem
		want int64
	}{
		{"plain", models.OrderItem{UnitPriceCents: 500, Quantity: 3}, 1500},
		{"modifiers", models.OrderItem{UnitPriceCents: 500, ModifiersCents: 150, Quantity: 2}, 1300},
		{"discount", models.OrderItem{UnitPriceCents: 500, Quantity: 2, DiscountCents: 300}, 700},
		{"floored", models.OrderItem{UnitPriceCents: 500, Quantity: 1, DiscountCents: 900}, 0},
	}
	for _, tt := range cases {
		if got := LineTotal(tt.item); got != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestApplyTotals(t *testing.T) {
	order := models.Order{
		Items: []models.OrderItem{
			{UnitPriceCents: 1000, Quantity: 2, Modifiers: []models.OrderModifier{{PriceCents: 250}}},
			{UnitPriceCents: 333, Quantity: 1},
		},
		DiscountCents: 500,
		TipCents:      100,
		TotalCents:    1,
	}
	ApplyTotals(&order, models.TenantSettings{TaxRateBps: 2100, ServiceChargeBps: 1000})

	if order.Items[0].ModifiersCents != 250 || order.Items[0].LineTotalCents != 2500 {
		t.Fatalf("unexpected first line %+v", order.Items[0])
	}
	if order.SubtotalCents != 2833 {
		t.Fatalf("expected subtotal 2833, got %d", order.SubtotalCents)
	}
	// base 2333: tax 489.93 -> 490, service 233.3 -> 233
	if order.TaxCents != 490 || order.ServiceChargeCents != 233 {
		t.Fatalf("unexpected tax=%d service=%d", order.TaxCents, order.ServiceChargeCents)
	}
	want := order.SubtotalCents - order.DiscountCents + order.TaxCents + order.TipCents + order.ServiceChargeCents
	if order.TotalCents != want || want != 3156 {
		t.Fatalf("expected total %d, got %d", want, order.TotalCents)
	}
}

func TestBasisPointsRoundsHalfUp(t *testing.T) {
	if got := basisPoints(50, 1000); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := basisPoints(5, 1000); got != 1 {
		t.Fatalf("expected 0.5 to round up to 1, got %d", got)
	}
	if got := basisPoints(4, 1000); got != 0 {
		t.Fatalf("expected 0.4 to round down, got %d", got)
	}
	if got := basisPoints(-100, 1000); got != 0 {
		t.Fatalf("expected 0 for negative base, got %d", got)
	}
}
