package services

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/qr-restaurant/models"
)

var (
	TaxRate     = decimal.NewFromFloat(0.10)
	ServiceRate = decimal.NewFromFloat(0.05)
)

// OrderTotals is the money breakdown of one order. Each component is rounded to cents.
type OrderTotals struct {
	Subtotal      float64 `json:"subtotal"`
	Tax           float64 `json:"tax"`
	ServiceCharge float64 `json:"service_charge"`
	Total         float64 `json:"total"`
}

// LineTotal prices one line: (unit price + chosen customizations) x quantity.
func LineTotal(unitPrice float64, customizations []models.SelectedCustomization, quantity int) decimal.Decimal {
	price := decimal.NewFromFloat(unitPrice)
	for _, cz := range customizations {
		price = price.Add(decimal.NewFromFloat(cz.Price))
	}
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// ComputeTotals applies tax and service charge to the summed lines.
func ComputeTotals(items []models.OrderItem) OrderTotals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(LineTotal(item.UnitPrice, item.Customizations.Data(), item.Quantity))
	}
	subtotal = subtotal.Round(2)

	tax := subtotal.Mul(TaxRate).Round(2)
	service := subtotal.Mul(ServiceRate).Round(2)
	total := subtotal.Add(tax).Add(service)

	return OrderTotals{
		Subtotal:      subtotal.InexactFloat64(),
		Tax:           tax.InexactFloat64(),
		ServiceCharge: service.InexactFloat64(),
		Total:         total.InexactFloat64(),
	}
}

// SumAmounts adds money values without float drift.
func SumAmounts(amounts ...float64) float64 {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromFloat(a))
	}
	return sum.Round(2).InexactFloat64()
}

// NewOrderNumber returns "ORD" + last 6 digits of the unix-millis clock + 3
// random digits. It is a display label: two orders placed in the same
// millisecond window can share it, so nothing keys on it.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%06d%03d", now.UnixMilli()%1_000_000, rand.IntN(1000))
}

// FeeRates is the processing fee charged per online payment method.
var FeeRates = map[PaymentMethod]decimal.Decimal{
	MethodCard:         decimal.NewFromFloat(0.029),
	MethodUPI:          decimal.NewFromFloat(0.005),
	MethodWallet:       decimal.NewFromFloat(0.02),
	MethodCash:         decimal.Zero,
	MethodBankTransfer: decimal.NewFromFloat(0.01),
	MethodQRIS:         decimal.NewFromFloat(0.007),
}

// CalculateFee returns the fee and the net amount for a gross amount.
func CalculateFee(method PaymentMethod, amount float64) (fee, net float64) {
	gross := decimal.NewFromFloat(amount)
	rate, ok := FeeRates[method]
	if !ok {
		rate = decimal.Zero
	}
	f := gross.Mul(rate).Round(2)
	return f.InexactFloat64(), gross.Sub(f).Round(2).InexactFloat64()
}

const upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewTransactionID builds e.g. "CAR" + "12345678" + "QWERTY".
func NewTransactionID(method PaymentMethod, now time.Time) string {
	prefix := strings.ToUpper(string(method))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	var suffix strings.Builder
	for i := 0; i < 6; i++ {
		suffix.WriteByte(upperLetters[rand.IntN(len(upperLetters))])
	}
	return fmt.Sprintf("%s%08d%s", prefix, now.UnixMilli()%100_000_000, suffix.String())
}
