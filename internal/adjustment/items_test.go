package adjustment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-erp/lumbung-erp/internal/masterdata"
)

type stubLookup struct {
	stocked  map[int64]bool
	products map[int64]masterdata.ProductDetail
	stockErr error
}

func (s *stubLookup) HasStock(_ context.Context, _, productID int64) (bool, error) {
	if s.stockErr != nil {
		return false, s.stockErr
	}
	return s.stocked[productID], nil
}

func (s *stubLookup) LookupProduct(_ context.Context, id int64) (masterdata.ProductDetail, error) {
	detail, ok := s.products[id]
	if !ok {
		return masterdata.ProductDetail{}, masterdata.ErrNotFound
	}
	return detail, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func product(id int64, code string, baseCost, basePrice string) masterdata.ProductDetail {
	return masterdata.ProductDetail{Product: masterdata.Product{
		ID:        id,
		Code:      code,
		Name:      "Produk " + code,
		BaseCost:  dec(baseCost),
		BasePrice: dec(basePrice),
		IsActive:  true,
	}}
}

func testLookup() *stubLookup {
	return &stubLookup{
		stocked: map[int64]bool{1: true, 2: true, 3: true},
		products: map[int64]masterdata.ProductDetail{
			1: product(1, "SKU-1", "1500", "2000"),
			2: product(2, "SKU-2", "0", "900"),
			3: product(3, "SKU-3", "0", "0"),
		},
	}
}

func TestAddLineSuggestsCost(t *testing.T) {
	ctx := context.Background()
	lookup := testLookup()
	store := NewItemStore(7)

	// Base cost wins when positive.
	line, err := store.AddLine(ctx, lookup, AddLineInput{ProductID: 1, Quantity: dec("2")})
	require.NoError(t, err)
	require.True(t, line.UnitCost.Equal(dec("1500")))
	require.Equal(t, "SKU-1", line.ProductCode)

	// Base price is the fallback.
	line, err = store.AddLine(ctx, lookup, AddLineInput{ProductID: 2, Quantity: dec("1")})
	require.NoError(t, err)
	require.True(t, line.UnitCost.Equal(dec("900")))

	// Zero when neither is set.
	line, err = store.AddLine(ctx, lookup, AddLineInput{ProductID: 3, Quantity: dec("1")})
	require.NoError(t, err)
	require.True(t, line.UnitCost.IsZero())
}

func TestAddLineCallerCostOverridesSuggestion(t *testing.T) {
	store := NewItemStore(7)
	line, err := store.AddLine(context.Background(), testLookup(), AddLineInput{ProductID: 1, Quantity: dec("2"), UnitCost: decPtr("1234.56")})
	require.NoError(t, err)
	require.True(t, line.UnitCost.Equal(dec("1234.56")))
}

func TestAddLineRejections(t *testing.T) {
	ctx := context.Background()
	lookup := testLookup()
	store := NewItemStore(7)

	_, err := store.AddLine(ctx, lookup, AddLineInput{ProductID: 1, Quantity: dec("0")})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = store.AddLine(ctx, lookup, AddLineInput{ProductID: 1, Quantity: dec("-3")})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = store.AddLine(ctx, lookup, AddLineInput{ProductID: 99, Quantity: dec("1")})
	require.ErrorIs(t, err, ErrProductNotInWarehouse)

	_, err = store.AddLine(ctx, lookup, AddLineInput{ProductID: 1, Quantity: dec("1")})
	require.NoError(t, err)
	_, err = store.AddLine(ctx, lookup, AddLineInput{ProductID: 1, Quantity: dec("4")})
	require.ErrorIs(t, err, ErrDuplicateProduct)
	require.Equal(t, 1, store.Len())
}

func TestRemoveLineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore(7)
	_, err := store.AddLine(ctx, testLookup(), AddLineInput{ProductID: 1, Quantity: dec("1")})
	require.NoError(t, err)

	store.RemoveLine(1)
	require.Equal(t, 0, store.Len())
	store.RemoveLine(1)
	store.RemoveLine(42)
	require.Equal(t, 0, store.Len())
}

func TestTotalValueTracksEveryMutation(t *testing.T) {
	ctx := context.Background()
	lookup := testLookup()
	store := NewItemStore(7)

	_, err := store.AddLine(ctx, lookup, AddLineInput{ProductID: 1, Quantity: dec("2"), UnitCost: decPtr("1000")})
	require.NoError(t, err)
	require.True(t, store.TotalValue().Equal(dec("2000")))

	_, err = store.AddLine(ctx, lookup, AddLineInput{ProductID: 2, Quantity: dec("3"), UnitCost: decPtr("500")})
	require.NoError(t, err)
	require.True(t, store.TotalValue().Equal(dec("3500")))

	require.NoError(t, store.UpdateLineQuantity(2, dec("4")))
	require.True(t, store.TotalValue().Equal(dec("4000")))

	require.NoError(t, store.UpdateLineCost(1, dec("750")))
	require.True(t, store.TotalValue().Equal(dec("3500")))

	require.ErrorIs(t, store.UpdateLineQuantity(1, dec("0")), ErrInvalidQuantity)
	require.True(t, store.TotalValue().Equal(dec("3500")))

	store.RemoveLine(1)
	require.True(t, store.TotalValue().Equal(dec("2000")))

	require.NoError(t, store.ImportAllFromWarehouse(ctx, lookup, []masterdata.StockRecord{
		{ProductID: 1, ProductCode: "SKU-1"},
		{ProductID: 2, ProductCode: "SKU-2"},
	}))
	// 1×1500 + 1×900
	require.True(t, store.TotalValue().Equal(dec("2400")))
}

func TestUpdateLineNotes(t *testing.T) {
	ctx := context.Background()
	store := NewItemStore(7)
	_, err := store.AddLine(ctx, testLookup(), AddLineInput{ProductID: 1, Quantity: dec("1")})
	require.NoError(t, err)

	require.NoError(t, store.UpdateLineNotes(1, "kemasan penyok"))
	require.Equal(t, "kemasan penyok", store.Lines()[0].Notes)
	require.ErrorIs(t, store.UpdateLineNotes(5, "x"), ErrLineNotFound)
}

func TestImportAllReplacesWithQuantityOne(t *testing.T) {
	ctx := context.Background()
	lookup := testLookup()
	store := NewItemStore(7)
	_, err := store.AddLine(ctx, lookup, AddLineInput{ProductID: 2, Quantity: dec("9"), UnitCost: decPtr("123")})
	require.NoError(t, err)

	snapshot := []masterdata.StockRecord{
		{ProductID: 1, ProductCode: "SKU-1", ProductName: "Produk SKU-1", QuantityOnHand: dec("10")},
		{ProductID: 2, ProductCode: "SKU-2", ProductName: "Produk SKU-2", QuantityOnHand: dec("4")},
		{ProductID: 3, ProductCode: "SKU-3", ProductName: "Produk SKU-3", QuantityOnHand: dec("0")},
	}
	require.NoError(t, store.ImportAllFromWarehouse(ctx, lookup, snapshot))

	lines := store.Lines()
	require.Len(t, lines, 3)
	for _, l := range lines {
		require.True(t, l.Quantity.Equal(dec("1")))
	}
	require.True(t, lines[0].UnitCost.Equal(dec("1500")), "base cost wins")
	require.True(t, lines[1].UnitCost.Equal(dec("900")), "base price fallback")
	require.True(t, lines[2].UnitCost.IsZero())
}

func TestImportAllSurvivesCostLookupFailure(t *testing.T) {
	ctx := context.Background()
	lookup := &stubLookup{stocked: map[int64]bool{1: true}, products: map[int64]masterdata.ProductDetail{}}
	store := NewItemStore(7)

	require.NoError(t, store.ImportAllFromWarehouse(ctx, lookup, []masterdata.StockRecord{
		{ProductID: 1, ProductCode: "SKU-1"},
	}))
	require.Equal(t, 1, store.Len())
	require.True(t, store.Lines()[0].UnitCost.IsZero())
}
