package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rule() ShippingRule {
	return ShippingRule{FreeShippingThreshold: d("50.00"), FlatFee: d("5.99")}
}

func TestQuoteBelowThresholdPaysShipping(t *testing.T) {
	totals, err := rule().Quote([]LineItem{{SKU: "R-1", UnitPrice: d("45.00"), Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, "45.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "5.99", totals.ShippingFee.StringFixed(2))
	assert.Equal(t, "50.99", totals.Total.StringFixed(2))
}

func TestQuoteAtThresholdStillPaysShipping(t *testing.T) {
	totals, err := rule().Quote([]LineItem{{UnitPrice: d("25.00"), Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, "5.99", totals.ShippingFee.StringFixed(2))
	assert.Equal(t, "55.99", totals.Total.StringFixed(2))
}

func TestQuoteAboveThresholdShipsFree(t *testing.T) {
	totals, err := rule().Quote([]LineItem{
		{UnitPrice: d("30.00"), Quantity: 1},
		{UnitPrice: d("10.005"), Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "50.01", totals.Subtotal.StringFixed(2))
	assert.True(t, totals.ShippingFee.IsZero())
	assert.Equal(t, "50.01", totals.Total.StringFixed(2))
}

func TestQuoteValidation(t *testing.T) {
	_, err := rule().Quote(nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)
	_, err = rule().Quote([]LineItem{{UnitPrice: d("1"), Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = rule().Quote([]LineItem{{UnitPrice: d("-1"), Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(PaymentStatusPending, PaymentStatusPaid))
	assert.True(t, CanTransition(PaymentStatusPaid, PaymentStatusProcessing))
	assert.True(t, CanTransition(PaymentStatusProcessing, PaymentStatusShipped))
	assert.True(t, CanTransition(PaymentStatusProcessing, PaymentStatusCancelled))
	assert.False(t, CanTransition(PaymentStatusShipped, PaymentStatusCancelled))
	assert.False(t, CanTransition(PaymentStatusPending, PaymentStatusShipped))
	assert.False(t, CanTransition(PaymentStatusCancelled, PaymentStatusPending))

	assert.ElementsMatch(t,
		[]PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusProcessing},
		SourcesFor(PaymentStatusCancelled))
	assert.Equal(t, []PaymentStatus{PaymentStatusPending}, SourcesFor(PaymentStatusPaid))
	assert.Empty(t, SourcesFor(PaymentStatusPending))
}
