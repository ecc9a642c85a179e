package dining

import "resto/internal/models"

// LineTotal is (unit + modifiers) * quantity - discount, never below zero.
func LineTotal(item models.OrderItem) int64 {
	total := (item.UnitPriceCents+item.ModifiersCents)*int64(item.Quantity) - item.DiscountCents
	if total < 0 {
		return 0
	}
	return total
}

// basisPoints applies bps to amount rounding half up.
func basisPoints(amount int64, bps int) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*int64(bps) + 5000) / 10000
}

// ApplyTotals recomputes every derived amount on order from its items and
// adjustments. Any totals already present are overwritten.
func ApplyTotals(order *models.Order, settings models.TenantSettings) {
	var subtotal int64
	for i := range order.Items {
		item := &order.Items[i]
		var mods int64
		for _, mod := range item.Modifiers {
			mods += mod.PriceCents
		}
		item.ModifiersCents = mods
		item.LineTotalCents = LineTotal(*item)
		subtotal += item.LineTotalCents
	}
	discount := order.DiscountCents
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	base := subtotal - discount

	order.SubtotalCents = subtotal
	order.DiscountCents = discount
	order.TaxCents = basisPoints(base, settings.TaxRateBps)
	order.ServiceChargeCents = basisPoints(base, settings.ServiceChargeBps)
	if order.TipCents < 0 {
		order.TipCents = 0
	}
	order.TotalCents = base + order.TaxCents + order.TipCents + order.ServiceChargeCents
}
