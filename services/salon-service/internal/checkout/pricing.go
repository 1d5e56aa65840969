// Package checkout prices shop orders, reserves stock and drives payment.
package checkout

import "strings"

// PricingConfig is applied to every order. Amounts are in the smallest
// currency unit.
type PricingConfig struct {
	Currency           string `json:"currency"`
	TaxRateBasisPoints int64  `json:"tax_rate_basis_points"`
	ShippingFlatCents  int64  `json:"shipping_flat_cents"`
	// FreeShippingThresholdCents waives shipping for subtotals at or above
	// it. Zero disables the waiver.
	FreeShippingThresholdCents int64 `json:"free_shipping_threshold_cents"`
}

func DefaultPricing() PricingConfig {
	return PricingConfig{Currency: "usd"}
}

func (p PricingConfig) normalized() PricingConfig {
	p.Currency = strings.ToLower(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = "usd"
	}
	return p
}

type Line struct {
	UnitPriceCents int64
	Quantity       int
}

type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// Quote prices lines. Tax applies to the subtotal only and is rounded half
// up to a whole cent.
func Quote(lines []Line, p PricingConfig) Totals {
	var t Totals
	for _, l := range lines {
		t.SubtotalCents += l.UnitPriceCents * int64(l.Quantity)
	}
	if t.SubtotalCents > 0 {
		t.ShippingCents = p.ShippingFlatCents
		if p.FreeShippingThresholdCents > 0 && t.SubtotalCents >= p.FreeShippingThresholdCents {
			t.ShippingCents = 0
		}
	}
	t.TaxCents = (t.SubtotalCents*p.TaxRateBasisPoints + 5000) / 10000
	t.TotalCents = t.SubtotalCents + t.ShippingCents + t.TaxCents
	return t
}
