package domain

import "github.com/shopspring/decimal"

type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Total       decimal.Decimal `json:"total"`
}

// ShippingRule charges FlatFee unless the subtotal is strictly above FreeShippingThreshold.
type ShippingRule struct {
	FreeShippingThreshold decimal.Decimal
	FlatFee               decimal.Decimal
}

func (r ShippingRule) Quote(items []LineItem) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrEmptyOrder
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity < 1 {
			return Totals{}, ErrInvalidQuantity
		}
		if item.UnitPrice.IsNegative() {
			return Totals{}, ErrInvalidPrice
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shipping := r.FlatFee.Round(2)
	if subtotal.GreaterThan(r.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Total:       subtotal.Add(shipping),
	}, nil
}
