package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct fetches a product with its supplier terms.
func (r *Repository) GetProduct(ctx context.Context, id int64) (ProductDetail, error) {
	var detail ProductDetail
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, base_unit, base_cost, base_price, is_batch_tracked, is_fefo, is_active, deleted_at, created_at, updated_at
FROM products WHERE id=$1 AND deleted_at IS NULL`, id).
		Scan(&detail.ID, &detail.Code, &detail.Name, &detail.BaseUnit, &detail.BaseCost, &detail.BasePrice,
			&detail.IsBatchTracked, &detail.IsFEFO, &detail.IsActive, &detail.DeletedAt, &detail.CreatedAt, &detail.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductDetail{}, ErrNotFound
		}
		return ProductDetail{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT ps.supplier_id, s.name, ps.unit_price, ps.moq, ps.lead_days
FROM product_suppliers ps
JOIN suppliers s ON s.id = ps.supplier_id
WHERE ps.product_id=$1
ORDER BY ps.unit_price ASC`, id)
	if err != nil {
		return ProductDetail{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sup ProductSupplier
		if err := rows.Scan(&sup.SupplierID, &sup.SupplierName, &sup.UnitPrice, &sup.MOQ, &sup.LeadDays); err != nil {
			return ProductDetail{}, err
		}
		detail.Suppliers = append(detail.Suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return ProductDetail{}, err
	}
	return detail, nil
}

// FindProductByCode checks code availability for the catalogue form.
func (r *Repository) FindProductByCode(ctx context.Context, code string) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, base_unit, base_cost, base_price, is_batch_tracked, is_fefo, is_active, deleted_at, created_at, updated_at
FROM products WHERE code=$1 AND deleted_at IS NULL`, code).
		Scan(&p.ID, &p.Code, &p.Name, &p.BaseUnit, &p.BaseCost, &p.BasePrice,
			&p.IsBatchTracked, &p.IsFEFO, &p.IsActive, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetWarehouse fetches a warehouse by id.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, address, is_active, created_at, updated_at
FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

// ListWarehouseStock returns every stock record in a warehouse, joined with
// product identity so clients can render selectable rows directly.
func (r *Repository) ListWarehouseStock(ctx context.Context, warehouseID int64) ([]StockRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT b.product_id, p.code, p.name, b.qty
FROM stock_balances b
JOIN products p ON p.id = b.product_id AND p.deleted_at IS NULL
WHERE b.warehouse_id=$1
ORDER BY p.code ASC`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []StockRecord{}
	for rows.Next() {
		var rec StockRecord
		if err := rows.Scan(&rec.ProductID, &rec.ProductCode, &rec.ProductName, &rec.QuantityOnHand); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// GetStockRecord returns a single product's stock record in a warehouse.
func (r *Repository) GetStockRecord(ctx context.Context, warehouseID, productID int64) (StockRecord, error) {
	var rec StockRecord
	err := r.pool.QueryRow(ctx, `SELECT b.product_id, p.code, p.name, b.qty
FROM stock_balances b
JOIN products p ON p.id = b.product_id AND p.deleted_at IS NULL
WHERE b.warehouse_id=$1 AND b.product_id=$2`, warehouseID, productID).
		Scan(&rec.ProductID, &rec.ProductCode, &rec.ProductName, &rec.QuantityOnHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRecord{}, ErrNotFound
		}
		return StockRecord{}, err
	}
	return rec, nil
}

// GetSupplier fetches a supplier by id.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, phone, email, address, is_pkp, is_active, created_at, updated_at
FROM suppliers WHERE id=$1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.Phone, &s.Email, &s.Address, &s.IsPKP, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, err
	}
	return s, nil
}
