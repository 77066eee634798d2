package purchasing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates purchase-order lifecycle states.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusApproved Status = "APPROVED"
)

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("purchasing: not found")
	// ErrNoLines indicates an order without lines.
	ErrNoLines = errors.New("purchasing: at least one line required")
	// ErrInvalidLine indicates a zero/negative quantity or price, or a
	// discount outside 0-100.
	ErrInvalidLine = errors.New("purchasing: invalid line values")
	// ErrInvalidState indicates an operation not allowed in the current
	// status.
	ErrInvalidState = errors.New("purchasing: invalid state for operation")
	// ErrAlreadyApproved indicates a duplicate approval attempt.
	ErrAlreadyApproved = errors.New("purchasing: already approved")
	// ErrSupplierInactive indicates the supplier cannot receive orders.
	ErrSupplierInactive = errors.New("purchasing: supplier inactive")
)

// POLine is one product row on a purchase order.
type POLine struct {
	ID          int64           `json:"id,omitempty"`
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Notes       string          `json:"notes"`
}

func (l POLine) toOrderLine() OrderLine {
	return OrderLine{Quantity: l.Quantity, UnitPrice: l.UnitPrice, DiscountPct: l.DiscountPct}
}

// PODraft is the aggregate handed to persistence.
type PODraft struct {
	SupplierID     int64           `json:"supplier_id"`
	OrderDate      time.Time       `json:"order_date"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Notes          string          `json:"notes"`
	Lines          []POLine        `json:"lines"`
}

// Validate checks the structural invariants before persistence.
func (d PODraft) Validate() error {
	if d.SupplierID == 0 || d.OrderDate.IsZero() {
		return errors.New("purchasing: supplier and order date required")
	}
	if len(d.Lines) == 0 {
		return ErrNoLines
	}
	if d.DiscountAmount.IsNegative() {
		return ErrInvalidLine
	}
	for _, l := range d.Lines {
		if l.ProductID == 0 || !l.Quantity.IsPositive() || l.UnitPrice.IsNegative() {
			return ErrInvalidLine
		}
		if l.DiscountPct.IsNegative() || l.DiscountPct.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidLine
		}
	}
	return nil
}

// PurchaseOrder is the persisted aggregate with its financial snapshot.
// The snapshot is recomputed from the lines on every write; it is never
// edited directly.
type PurchaseOrder struct {
	ID           uuid.UUID `json:"id"`
	Number       string    `json:"po_number"`
	SupplierID   int64     `json:"supplier_id"`
	SupplierName string    `json:"supplier_name"`
	OrderDate    time.Time `json:"order_date"`
	Notes        string    `json:"notes"`
	Status       Status    `json:"status"`
	Lines        []POLine  `json:"lines"`
	Financials
	CreatedBy  int64      `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ApprovedBy *int64     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

// LineMargin compares an ordered price against the product master cost.
type LineMargin struct {
	ProductID    int64           `json:"product_id"`
	ProductCode  string          `json:"product_code"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	BaseCost     decimal.Decimal `json:"base_cost"`
	Delta        decimal.Decimal `json:"delta"`
	AboveCurrent bool            `json:"above_current_cost"`
}
