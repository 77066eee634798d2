package purchasing

import (
	"github.com/shopspring/decimal"
)

var (
	hundred        = decimal.NewFromInt(100)
	defaultPPNRate = decimal.NewFromInt(11)
)

// OrderLine is one priced row of a purchase order.
type OrderLine struct {
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
}

// Subtotal applies the per-line discount: qty × price × (1 − disc/100).
func (l OrderLine) Subtotal() decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(l.DiscountPct.Div(hundred))
	return l.Quantity.Mul(l.UnitPrice).Mul(factor).Round(2)
}

// Financials is the derived money breakdown of an order. It is never stored
// independently of its inputs: every field is recomputed top to bottom on
// each change.
type Financials struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	AfterDiscount  decimal.Decimal `json:"after_discount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// Calculator resolves tax rates. The configured PPN rate is a percentage,
// e.g. 11 for 11%.
type Calculator struct {
	ppnRate decimal.Decimal
}

// NewCalculator builds a Calculator. A zero rate falls back to the statutory
// 11% PPN.
func NewCalculator(ppnRate decimal.Decimal) Calculator {
	if ppnRate.IsZero() {
		ppnRate = defaultPPNRate
	}
	return Calculator{ppnRate: ppnRate}
}

// Calculate derives subtotal, discount, tax and total from current inputs.
// A non-PKP counterparty forces the tax rate to zero regardless of the
// configured PPN rate; that is a hard rule, not a default.
func (c Calculator) Calculate(lines []OrderLine, discountAmount decimal.Decimal, isPKP bool) Financials {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Subtotal())
	}
	afterDiscount := subtotal.Sub(discountAmount)

	taxRate := decimal.Zero
	if isPKP {
		taxRate = c.ppnRate.Div(hundred)
	}
	taxAmount := afterDiscount.Mul(taxRate).Round(2)

	return Financials{
		Subtotal:       subtotal.Round(2),
		DiscountAmount: discountAmount.Round(2),
		AfterDiscount:  afterDiscount.Round(2),
		TaxRate:        taxRate,
		TaxAmount:      taxAmount,
		TotalAmount:    afterDiscount.Add(taxAmount).Round(2),
	}
}

// DiscountMode selects how the operator enters the header discount.
type DiscountMode string

const (
	// DiscountNominal enters a rupiah amount directly.
	DiscountNominal DiscountMode = "NOMINAL"
	// DiscountPercent enters a percentage of the current subtotal.
	DiscountPercent DiscountMode = "PERCENTAGE"
)

// DiscountInput keeps the two entry modes consistent over one canonical
// nominal amount. Switching modes re-derives the inactive representation
// from the current subtotal at that moment, never lazily, so the displayed
// value always agrees with the last edit in the previous mode.
type DiscountInput struct {
	mode   DiscountMode
	amount decimal.Decimal
	pct    decimal.Decimal
}

// NewDiscountInput starts in nominal mode with a zero discount.
func NewDiscountInput() *DiscountInput {
	return &DiscountInput{mode: DiscountNominal}
}

// Mode returns the active entry mode.
func (d *DiscountInput) Mode() DiscountMode {
	return d.mode
}

// Amount returns the canonical nominal discount.
func (d *DiscountInput) Amount() decimal.Decimal {
	return d.amount
}

// Percent returns the percentage view.
func (d *DiscountInput) Percent() decimal.Decimal {
	return d.pct
}

// SetNominal records a direct amount edit and refreshes the percentage view.
func (d *DiscountInput) SetNominal(amount, subtotal decimal.Decimal) {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	d.amount = amount
	d.pct = pctOf(amount, subtotal)
}

// SetPercent records a percentage edit and re-derives the canonical amount
// from the current subtotal.
func (d *DiscountInput) SetPercent(pct, subtotal decimal.Decimal) {
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	d.pct = pct
	d.amount = subtotal.Mul(pct).Div(hundred).Round(2)
}

// SwitchMode flips the entry mode, recomputing the newly active view from
// the canonical amount so no representation ever drifts. The canonical
// amount itself is untouched, which makes a double switch a round trip.
func (d *DiscountInput) SwitchMode(mode DiscountMode, subtotal decimal.Decimal) {
	if mode == d.mode {
		return
	}
	d.mode = mode
	d.pct = pctOf(d.amount, subtotal)
}

func pctOf(amount, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(hundred).DivRound(subtotal, 6)
}
