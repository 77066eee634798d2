package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementAdjustIn represents an approved INCREASE adjustment line.
	MovementAdjustIn MovementType = "ADJUST_IN"
	// MovementAdjustOut represents an approved DECREASE adjustment line.
	MovementAdjustOut MovementType = "ADJUST_OUT"
)

// Movement models the header of one stock mutation.
type Movement struct {
	ID          int64
	Code        string
	Type        MovementType
	WarehouseID int64
	RefModule   string
	RefID       string
	Note        string
	PostedAt    time.Time
	CreatedBy   int64
	CreatedAt   time.Time
}

// MovementLine models each product delta within a movement.
type MovementLine struct {
	ID         int64
	MovementID int64
	ProductID  int64
	Qty        decimal.Decimal
	UnitCost   decimal.Decimal
}

// Balance summarises stock in warehouse per product.
type Balance struct {
	WarehouseID int64
	ProductID   int64
	Qty         decimal.Decimal
	AvgCost     decimal.Decimal
	UpdatedAt   time.Time
}

// StockCardEntry describes one stock card row for reports.
type StockCardEntry struct {
	TxCode      string
	TxType      MovementType
	PostedAt    time.Time
	QtyIn       decimal.Decimal
	QtyOut      decimal.Decimal
	BalanceQty  decimal.Decimal
	UnitCost    decimal.Decimal
	BalanceCost decimal.Decimal
	Note        string
}

// MovementInput describes a signed stock delta to post. Qty carries the sign:
// positive for ADJUST_IN, negative for ADJUST_OUT.
type MovementInput struct {
	Code        string
	WarehouseID int64
	ProductID   int64
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	Note        string
	ActorID     int64
	RefModule   string
	RefID       string
}

// StockCardFilter filters card entries.
type StockCardFilter struct {
	WarehouseID int64
	ProductID   int64
	From        time.Time
	To          time.Time
	Limit       int
}

// ErrNegativeStock triggered when movement would result negative qty.
var ErrNegativeStock = errors.New("inventory: negative stock not allowed")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")

// ErrInvalidUnitCost indicates invalid cost value.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
