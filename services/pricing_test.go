package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yeremiapane/qr-restaurant/models"
	"gorm.io/datatypes"
)

func TestComputeTotals(t *testing.T) {
	items := []models.OrderItem{
		{UnitPrice: 8, Quantity: 2},
		{UnitPrice: 3.5, Quantity: 1, Customizations: datatypes.NewJSONType([]models.SelectedCustomization{
			{Name: "Oat Milk", Price: 0.5},
		})},
	}

	totals := ComputeTotals(items)
	assert.Equal(t, 20.0, totals.Subtotal)
	assert.Equal(t, 2.0, totals.Tax)
	assert.Equal(t, 1.0, totals.ServiceCharge)
	assert.Equal(t, 23.0, totals.Total)
}

func TestComputeTotalsRoundsEachComponent(t *testing.T) {
	totals := ComputeTotals([]models.OrderItem{{UnitPrice: 0.1, Quantity: 3}})
	assert.Equal(t, 0.3, totals.Subtotal)
	assert.Equal(t, 0.03, totals.Tax)
	assert.Equal(t, 0.02, totals.ServiceCharge)
	assert.Equal(t, 0.35, totals.Total)
}

func TestLineTotal(t *testing.T) {
	cz := []models.SelectedCustomization{{Name: "Extra Cheese", Price: 1.5}, {Name: "Thin Crust", Price: 0}}
	assert.Equal(t, "27", LineTotal(12, cz, 2).String())
	assert.Equal(t, "0", LineTotal(12, nil, 0).String())
}

func TestSumAmounts(t *testing.T) {
	assert.Equal(t, 0.3, SumAmounts(0.1, 0.2))
	assert.Equal(t, 0.0, SumAmounts())
}

func TestCalculateFee(t *testing.T) {
	cases := []struct {
		method   PaymentMethod
		amount   float64
		fee, net float64
	}{
		{MethodCard, 100, 2.9, 97.1},
		{MethodUPI, 100, 0.5, 99.5},
		{MethodWallet, 50, 1, 49},
		{MethodCash, 42.42, 0, 42.42},
		{MethodBankTransfer, 10, 0.1, 9.9},
		{MethodQRIS, 1000, 7, 993},
		{PaymentMethod("crypto"), 10, 0, 10},
	}
	for _, tc := range cases {
		fee, net := CalculateFee(tc.method, tc.amount)
		assert.Equal(t, tc.fee, fee, string(tc.method))
		assert.Equal(t, tc.net, net, string(tc.method))
	}
}

func TestNewOrderNumber(t *testing.T) {
	now := time.UnixMilli(1_700_000_123_456)
	num := NewOrderNumber(now)
	assert.Regexp(t, `^ORD123456\d{3}$`, num)
}

func TestNewTransactionID(t *testing.T) {
	now := time.UnixMilli(1_700_012_345_678)
	assert.Regexp(t, `^CAR12345678[A-Z]{6}$`, NewTransactionID(MethodCard, now))
	assert.Regexp(t, `^UPI12345678[A-Z]{6}$`, NewTransactionID(MethodUPI, now))
	assert.Regexp(t, `^BAN12345678[A-Z]{6}$`, NewTransactionID(MethodBankTransfer, now))
}

func TestBuildTableQR(t *testing.T) {
	qr := BuildTableQR("https://dine.example.com/", 3, 12)
	assert.Equal(t, "https://dine.example.com/scan/3/12", qr.ScanURL)
	assert.Equal(t,
		"https://api.qrserver.com/v1/create-qr-code/?size=300x300&data=https%3A%2F%2Fdine.example.com%2Fscan%2F3%2F12",
		qr.ImageURL)
}
