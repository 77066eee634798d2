package masterdata

import (
	"context"
	"errors"
)

// RepositoryPort abstracts repository usage for service and tests.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (ProductDetail, error)
	FindProductByCode(ctx context.Context, code string) (Product, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	ListWarehouseStock(ctx context.Context, warehouseID int64) ([]StockRecord, error)
	GetStockRecord(ctx context.Context, warehouseID, productID int64) (StockRecord, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
}

// Service exposes master data lookups to the rest of the application.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// LookupProduct returns the product master record used for cost suggestion
// and supplier price comparison.
func (s *Service) LookupProduct(ctx context.Context, id int64) (ProductDetail, error) {
	if id == 0 {
		return ProductDetail{}, errors.New("masterdata: product id required")
	}
	detail, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return ProductDetail{}, err
	}
	if !detail.IsActive {
		return ProductDetail{}, ErrInactiveProduct
	}
	return detail, nil
}

// WarehouseStock lists the selectable products for a warehouse. A missing
// warehouse yields ErrNotFound; an empty warehouse yields an empty list.
func (s *Service) WarehouseStock(ctx context.Context, warehouseID int64) ([]StockRecord, error) {
	if warehouseID == 0 {
		return nil, errors.New("masterdata: warehouse id required")
	}
	if _, err := s.repo.GetWarehouse(ctx, warehouseID); err != nil {
		return nil, err
	}
	return s.repo.ListWarehouseStock(ctx, warehouseID)
}

// HasStock reports whether a product has a stock record in a warehouse.
func (s *Service) HasStock(ctx context.Context, warehouseID, productID int64) (bool, error) {
	_, err := s.repo.GetStockRecord(ctx, warehouseID, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetWarehouse fetches a warehouse by id.
func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

// GetSupplier fetches a supplier by id.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}
