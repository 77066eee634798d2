package purchasing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOrderTotalsScenario(t *testing.T) {
	calc := NewCalculator(dec("11"))
	lines := []OrderLine{
		{Quantity: dec("10"), UnitPrice: dec("1000"), DiscountPct: dec("0")},
		{Quantity: dec("5"), UnitPrice: dec("2000"), DiscountPct: dec("10")},
	}
	fin := calc.Calculate(lines, decimal.Zero, true)

	require.True(t, fin.Subtotal.Equal(dec("19000")), "subtotal %s", fin.Subtotal)
	require.True(t, fin.AfterDiscount.Equal(dec("19000")))
	require.True(t, fin.TaxAmount.Equal(dec("2090")), "tax %s", fin.TaxAmount)
	require.True(t, fin.TotalAmount.Equal(dec("21090")), "total %s", fin.TotalAmount)
}

func TestNonPKPForcesZeroTax(t *testing.T) {
	calc := NewCalculator(dec("11"))
	lines := []OrderLine{
		{Quantity: dec("3"), UnitPrice: dec("150000")},
	}
	fin := calc.Calculate(lines, dec("50000"), false)

	require.True(t, fin.TaxRate.IsZero())
	require.True(t, fin.TaxAmount.IsZero())
	require.True(t, fin.TotalAmount.Equal(fin.AfterDiscount))
}

func TestZeroRateFallsBackToStatutoryPPN(t *testing.T) {
	calc := NewCalculator(decimal.Zero)
	fin := calc.Calculate([]OrderLine{{Quantity: dec("1"), UnitPrice: dec("100")}}, decimal.Zero, true)
	require.True(t, fin.TaxAmount.Equal(dec("11")))
}

func TestHeaderDiscountReducesTaxBase(t *testing.T) {
	calc := NewCalculator(dec("11"))
	lines := []OrderLine{{Quantity: dec("2"), UnitPrice: dec("10000")}}
	fin := calc.Calculate(lines, dec("5000"), true)

	require.True(t, fin.AfterDiscount.Equal(dec("15000")))
	require.True(t, fin.TaxAmount.Equal(dec("1650")))
	require.True(t, fin.TotalAmount.Equal(dec("16650")))
}

func TestDiscountModeRoundTrip(t *testing.T) {
	subtotal := dec("19000")
	d := NewDiscountInput()
	d.SetNominal(dec("1234.56"), subtotal)

	d.SwitchMode(DiscountPercent, subtotal)
	d.SwitchMode(DiscountNominal, subtotal)

	diff := d.Amount().Sub(dec("1234.56")).Abs()
	require.True(t, diff.LessThanOrEqual(dec("0.01")), "drift %s", diff)
}

func TestDiscountViewsStayReconciled(t *testing.T) {
	subtotal := dec("20000")
	d := NewDiscountInput()

	d.SetNominal(dec("5000"), subtotal)
	require.True(t, d.Percent().Equal(dec("25")))

	d.SwitchMode(DiscountPercent, subtotal)
	d.SetPercent(dec("10"), subtotal)
	require.True(t, d.Amount().Equal(dec("2000")))

	// Switching back shows the amount the percentage edit produced.
	d.SwitchMode(DiscountNominal, subtotal)
	require.True(t, d.Amount().Equal(dec("2000")))
}

func TestNegativeInputsClampToZero(t *testing.T) {
	d := NewDiscountInput()
	d.SetNominal(dec("-10"), dec("1000"))
	require.True(t, d.Amount().IsZero())

	d.SetPercent(dec("-5"), dec("1000"))
	require.True(t, d.Amount().IsZero())
}

func TestTotalsRecomputedFromCurrentInputs(t *testing.T) {
	calc := NewCalculator(dec("11"))
	lines := []OrderLine{{Quantity: dec("1"), UnitPrice: dec("1000")}}

	before := calc.Calculate(lines, decimal.Zero, true)
	lines[0].Quantity = dec("4")
	after := calc.Calculate(lines, decimal.Zero, true)

	require.True(t, before.Subtotal.Equal(dec("1000")))
	require.True(t, after.Subtotal.Equal(dec("4000")))
	require.True(t, after.TotalAmount.Equal(dec("4440")))
}
