package adjustment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type determines the sign applied to every line quantity when the
// adjustment is approved. Quantities themselves are stored as magnitudes.
type Type string

const (
	// TypeIncrease adds stock.
	TypeIncrease Type = "INCREASE"
	// TypeDecrease removes stock.
	TypeDecrease Type = "DECREASE"
)

// Valid reports whether the type is part of the enum.
func (t Type) Valid() bool {
	return t == TypeIncrease || t == TypeDecrease
}

// Sign returns +1 for increases and -1 for decreases.
func (t Type) Sign() decimal.Decimal {
	if t == TypeDecrease {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Reason classifies why stock is being adjusted.
type Reason string

const (
	ReasonCorrection Reason = "CORRECTION"
	ReasonDamage     Reason = "DAMAGE"
	ReasonExpiry     Reason = "EXPIRY"
	ReasonLost       Reason = "LOST"
	ReasonFound      Reason = "FOUND"
	ReasonOpname     Reason = "OPNAME"
)

var reasonLabels = map[Reason]string{
	ReasonCorrection: "Koreksi pencatatan",
	ReasonDamage:     "Barang rusak",
	ReasonExpiry:     "Barang kedaluwarsa",
	ReasonLost:       "Barang hilang",
	ReasonFound:      "Barang ditemukan",
	ReasonOpname:     "Hasil stok opname",
}

// Valid reports whether the reason is part of the taxonomy.
func (r Reason) Valid() bool {
	_, ok := reasonLabels[r]
	return ok
}

// Label returns the operator-facing description of the reason.
func (r Reason) Label() string {
	return reasonLabels[r]
}

// Reasons lists the full taxonomy in a stable order.
func Reasons() []Reason {
	return []Reason{ReasonCorrection, ReasonDamage, ReasonExpiry, ReasonLost, ReasonFound, ReasonOpname}
}

// Status enumerates adjustment lifecycle states.
type Status string

const (
	// StatusDraft is fully editable.
	StatusDraft Status = "DRAFT"
	// StatusApproved is terminal; stock deltas have been applied.
	StatusApproved Status = "APPROVED"
)

var (
	// ErrDuplicateProduct indicates a product already present among the lines.
	ErrDuplicateProduct = errors.New("adjustment: product already added")
	// ErrInvalidQuantity indicates a zero or negative quantity.
	ErrInvalidQuantity = errors.New("adjustment: quantity must be positive")
	// ErrProductNotInWarehouse indicates the product has no stock record in
	// the selected warehouse.
	ErrProductNotInWarehouse = errors.New("adjustment: product not stocked in warehouse")
	// ErrNoLineItems indicates an empty adjustment cannot move forward.
	ErrNoLineItems = errors.New("adjustment: at least one line item required")
	// ErrFutureDate indicates an adjustment dated after today.
	ErrFutureDate = errors.New("adjustment: date must not be in the future")
	// ErrIncompleteHeader indicates missing required header fields.
	ErrIncompleteHeader = errors.New("adjustment: header incomplete")
	// ErrInvalidState indicates an operation not allowed in the current status
	// or builder step.
	ErrInvalidState = errors.New("adjustment: invalid state for operation")
	// ErrImmutableHeader indicates an attempt to change locked header fields
	// of a persisted draft.
	ErrImmutableHeader = errors.New("adjustment: header fields locked after creation")
	// ErrAlreadyApproved indicates a duplicate approval attempt.
	ErrAlreadyApproved = errors.New("adjustment: already approved")
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("adjustment: not found")
	// ErrLineNotFound indicates line missing.
	ErrLineNotFound = errors.New("adjustment: line not found")
	// ErrSubmitInFlight indicates a submission already running.
	ErrSubmitInFlight = errors.New("adjustment: submission already in flight")
	// ErrConfirmationPending indicates a destructive operation awaiting
	// accept or decline.
	ErrConfirmationPending = errors.New("adjustment: confirmation pending")
)

// Header carries the adjustment-level fields. Everything except Notes is
// locked once the draft has been persisted.
type Header struct {
	WarehouseID    int64     `json:"warehouse_id"`
	Type           Type      `json:"adjustment_type"`
	Reason         Reason    `json:"reason"`
	AdjustmentDate time.Time `json:"adjustment_date"`
	Notes          string    `json:"notes"`
}

// Validate checks required fields and rejects future-dated adjustments.
func (h Header) Validate(now time.Time) error {
	if h.WarehouseID == 0 || !h.Type.Valid() || !h.Reason.Valid() || h.AdjustmentDate.IsZero() {
		return ErrIncompleteHeader
	}
	today := now.Truncate(24 * time.Hour)
	if h.AdjustmentDate.Truncate(24 * time.Hour).After(today) {
		return ErrFutureDate
	}
	return nil
}

// LineItem is one product row. Quantity is always a non-negative magnitude;
// the header type supplies the direction. ID is zero for lines created in the
// current editing session and set for lines loaded from a persisted draft.
type LineItem struct {
	ID          int64           `json:"id,omitempty"`
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity_adjusted"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	BatchID     *int64          `json:"batch_id,omitempty"`
	Notes       string          `json:"notes"`
}

// Subtotal is quantity times unit cost.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// TotalValue sums line subtotals. It is always derived, never trusted from
// a cached field during composition.
func TotalValue(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Draft is the aggregate handed to persistence: header plus ordered lines.
type Draft struct {
	Header
	Lines []LineItem
}

// Validate checks the aggregate invariants before any persistence call.
func (d Draft) Validate(now time.Time) error {
	if err := d.Header.Validate(now); err != nil {
		return err
	}
	if len(d.Lines) == 0 {
		return ErrNoLineItems
	}
	seen := make(map[int64]struct{}, len(d.Lines))
	for _, l := range d.Lines {
		if l.ProductID == 0 {
			return ErrIncompleteHeader
		}
		if !l.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
		if l.UnitCost.IsNegative() {
			return ErrInvalidQuantity
		}
		if _, dup := seen[l.ProductID]; dup {
			return ErrDuplicateProduct
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

// Adjustment is the persisted aggregate.
type Adjustment struct {
	ID     uuid.UUID `json:"id"`
	Number string    `json:"adjustment_number"`
	Header
	Lines      []LineItem      `json:"lines"`
	Status     Status          `json:"status"`
	TotalValue decimal.Decimal `json:"total_value"`
	CreatedBy  int64           `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ApprovedBy *int64          `json:"approved_by,omitempty"`
	ApprovedAt *time.Time      `json:"approved_at,omitempty"`
}

// SignedDelta returns the stock delta a line will apply on approval. The
// stored magnitude never carries the sign itself.
func (a Adjustment) SignedDelta(l LineItem) decimal.Decimal {
	return l.Quantity.Mul(a.Type.Sign())
}
