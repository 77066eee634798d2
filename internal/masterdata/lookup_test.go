package masterdata

import (
	"context"
	"runtime"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu       sync.Mutex
	products map[string]Product
	byID     map[int64]ProductDetail
	stock    map[int64][]StockRecord
	release  chan struct{}
}

func (r *stubRepo) GetProduct(ctx context.Context, id int64) (ProductDetail, error) {
	if d, ok := r.byID[id]; ok {
		return d, nil
	}
	return ProductDetail{}, ErrNotFound
}

func (r *stubRepo) FindProductByCode(ctx context.Context, code string) (Product, error) {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[code]; ok {
		return p, nil
	}
	return Product{}, ErrNotFound
}

func (r *stubRepo) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	if _, ok := r.stock[id]; !ok {
		return Warehouse{}, ErrNotFound
	}
	return Warehouse{ID: id, IsActive: true}, nil
}

func (r *stubRepo) ListWarehouseStock(ctx context.Context, warehouseID int64) ([]StockRecord, error) {
	return r.stock[warehouseID], nil
}

func (r *stubRepo) GetStockRecord(ctx context.Context, warehouseID, productID int64) (StockRecord, error) {
	for _, rec := range r.stock[warehouseID] {
		if rec.ProductID == productID {
			return rec, nil
		}
	}
	return StockRecord{}, ErrNotFound
}

func (r *stubRepo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return Supplier{}, ErrNotFound
}

func TestCodeCheckerAvailability(t *testing.T) {
	repo := &stubRepo{products: map[string]Product{
		"SKU-001": {ID: 1, Code: "SKU-001", Name: "Beras Premium 5kg"},
	}}
	checker := NewCodeChecker(repo)
	ctx := context.Background()

	status, err := checker.Check(ctx, "SKU-001")
	require.NoError(t, err)
	require.False(t, status.Available)
	require.Equal(t, "Beras Premium 5kg", status.TakenBy)

	status, err = checker.Check(ctx, "SKU-999")
	require.NoError(t, err)
	require.True(t, status.Available)
}

func TestCodeCheckerDiscardsStaleResult(t *testing.T) {
	release := make(chan struct{})
	repo := &stubRepo{products: map[string]Product{}, release: release}
	checker := NewCodeChecker(repo)
	ctx := context.Background()

	// First query blocks inside the repository while a newer one is issued.
	firstDone := make(chan error, 1)
	go func() {
		_, err := checker.Check(ctx, "SKU-00")
		firstDone <- err
	}()

	// Wait until the first query is in flight, then issue the newer one.
	for checker.latest.Load() == 0 {
		runtime.Gosched()
	}
	secondDone := make(chan error, 1)
	go func() {
		_, err := checker.Check(ctx, "SKU-001")
		secondDone <- err
	}()
	for checker.latest.Load() < 2 {
		runtime.Gosched()
	}

	close(release)

	require.ErrorIs(t, <-firstDone, ErrStaleLookup)
	require.NoError(t, <-secondDone)
}

func TestSuggestedCostPriority(t *testing.T) {
	cases := []struct {
		name  string
		cost  string
		price string
		want  string
	}{
		{"cost wins", "1500", "2000", "1500"},
		{"price fallback", "0", "2000", "2000"},
		{"both zero", "0", "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Product{
				BaseCost:  decimal.RequireFromString(tc.cost),
				BasePrice: decimal.RequireFromString(tc.price),
			}
			require.True(t, p.SuggestedCost().Equal(decimal.RequireFromString(tc.want)))
		})
	}
}

func TestWarehouseStockMissingWarehouse(t *testing.T) {
	repo := &stubRepo{stock: map[int64][]StockRecord{}}
	svc := NewService(repo)
	_, err := svc.WarehouseStock(context.Background(), 9)
	require.ErrorIs(t, err, ErrNotFound)
}
