package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatIDR renders a rupiah amount with Indonesian digit grouping,
// e.g. 1234567.5 -> "Rp 1.234.567,50". Used for operator-facing messages.
// The rounded decimal is split into whole rupiah and cents so amounts stay
// exact well past float64's integer range.
func FormatIDR(amount decimal.Decimal) string {
	r := amount.Round(2)
	sign := ""
	if r.IsNegative() {
		sign = "-"
		r = r.Neg()
	}
	units := r.IntPart()
	cents := r.Sub(decimal.NewFromInt(units)).Shift(2).IntPart()
	return idPrinter.Sprintf("Rp %s%d,%02d", sign, units, cents)
}
