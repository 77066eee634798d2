package adjustment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lumbung-erp/lumbung-erp/internal/masterdata"
)

// StockLookup is the warehouse/product collaborator the store consults when
// adding lines. Lookup failures on cost suggestion are non-fatal; failures on
// the stock check are not, since they guard a hard invariant.
type StockLookup interface {
	HasStock(ctx context.Context, warehouseID, productID int64) (bool, error)
	LookupProduct(ctx context.Context, id int64) (masterdata.ProductDetail, error)
}

// AddLineInput carries the caller's fields for one new line. UnitCost nil
// means "use the suggestion from the product master".
type AddLineInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitCost  *decimal.Decimal
	BatchID   *int64
	Notes     string
}

// ItemStore owns the mutable line list during composition. Products are
// unique within one adjustment, so ProductID doubles as the line key for
// mutations; persisted IDs ride along untouched for update-diffing.
// Not safe for concurrent use; one editing session owns one store.
type ItemStore struct {
	warehouseID int64
	lines       []LineItem
}

// NewItemStore starts an empty store scoped to a warehouse.
func NewItemStore(warehouseID int64) *ItemStore {
	return &ItemStore{warehouseID: warehouseID}
}

// seededItemStore restores a store from persisted lines, keeping their IDs.
func seededItemStore(warehouseID int64, lines []LineItem) *ItemStore {
	s := &ItemStore{warehouseID: warehouseID}
	s.lines = append(s.lines, lines...)
	return s
}

// WarehouseID returns the scoping warehouse.
func (s *ItemStore) WarehouseID() int64 {
	return s.warehouseID
}

// Len returns the current line count.
func (s *ItemStore) Len() int {
	return len(s.lines)
}

// Lines returns a copy of the current lines in insertion order.
func (s *ItemStore) Lines() []LineItem {
	out := make([]LineItem, len(s.lines))
	copy(out, s.lines)
	return out
}

// TotalValue derives the aggregate value from the current lines.
func (s *ItemStore) TotalValue() decimal.Decimal {
	return TotalValue(s.lines)
}

// AddLine validates and appends one line. The unit cost suggestion follows
// base cost, then base price, then zero; a caller-supplied cost overrides it.
func (s *ItemStore) AddLine(ctx context.Context, lookup StockLookup, input AddLineInput) (LineItem, error) {
	if input.ProductID == 0 {
		return LineItem{}, fmt.Errorf("adjustment: product id required")
	}
	if !input.Quantity.IsPositive() {
		return LineItem{}, ErrInvalidQuantity
	}
	for _, l := range s.lines {
		if l.ProductID == input.ProductID {
			return LineItem{}, ErrDuplicateProduct
		}
	}
	ok, err := lookup.HasStock(ctx, s.warehouseID, input.ProductID)
	if err != nil {
		return LineItem{}, fmt.Errorf("adjustment: stock check: %w", err)
	}
	if !ok {
		return LineItem{}, ErrProductNotInWarehouse
	}

	line := LineItem{
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		BatchID:   input.BatchID,
		Notes:     input.Notes,
	}
	detail, err := lookup.LookupProduct(ctx, input.ProductID)
	if err == nil {
		line.ProductCode = detail.Code
		line.ProductName = detail.Name
		line.UnitCost = detail.SuggestedCost()
	}
	if input.UnitCost != nil {
		if input.UnitCost.IsNegative() {
			return LineItem{}, ErrInvalidQuantity
		}
		line.UnitCost = *input.UnitCost
	}
	s.lines = append(s.lines, line)
	return line, nil
}

// RemoveLine drops the line for a product. Removing an absent product is a
// no-op.
func (s *ItemStore) RemoveLine(productID int64) {
	for i, l := range s.lines {
		if l.ProductID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return
		}
	}
}

// UpdateLineQuantity mutates one line's quantity in place.
func (s *ItemStore) UpdateLineQuantity(productID int64, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return ErrInvalidQuantity
	}
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity = qty
			return nil
		}
	}
	return ErrLineNotFound
}

// UpdateLineCost mutates one line's unit cost in place.
func (s *ItemStore) UpdateLineCost(productID int64, cost decimal.Decimal) error {
	if cost.IsNegative() {
		return ErrInvalidQuantity
	}
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].UnitCost = cost
			return nil
		}
	}
	return ErrLineNotFound
}

// UpdateLineNotes mutates one line's notes in place.
func (s *ItemStore) UpdateLineNotes(productID int64, notes string) error {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Notes = notes
			return nil
		}
	}
	return ErrLineNotFound
}

// ImportAllFromWarehouse replaces the entire line list with one line per
// stock record, quantity defaulted to one and cost auto-suggested. Callers
// with existing lines must confirm first; the builder mediates that gate.
func (s *ItemStore) ImportAllFromWarehouse(ctx context.Context, lookup StockLookup, snapshot []masterdata.StockRecord) error {
	replacement := make([]LineItem, 0, len(snapshot))
	for _, rec := range snapshot {
		line := LineItem{
			ProductID:   rec.ProductID,
			ProductCode: rec.ProductCode,
			ProductName: rec.ProductName,
			Quantity:    decimal.NewFromInt(1),
		}
		// Cost suggestion failures degrade to zero cost rather than
		// aborting the whole import.
		if detail, err := lookup.LookupProduct(ctx, rec.ProductID); err == nil {
			line.UnitCost = detail.SuggestedCost()
		}
		replacement = append(replacement, line)
	}
	s.lines = replacement
	return nil
}

// reset clears all lines and rescopes the store to a new warehouse. Only the
// builder's confirmation gate calls this.
func (s *ItemStore) reset(warehouseID int64) {
	s.warehouseID = warehouseID
	s.lines = nil
}
