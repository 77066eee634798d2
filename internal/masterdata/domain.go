package masterdata

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Warehouse represents a storage location owning stock records.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product represents a sellable item in the catalogue.
type Product struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	BaseUnit       string          `json:"base_unit"`
	BaseCost       decimal.Decimal `json:"base_cost"`
	BasePrice      decimal.Decimal `json:"base_price"`
	IsBatchTracked bool            `json:"is_batch_tracked"`
	// IsFEFO marks perishables issued first-expired-first-out.
	IsFEFO    bool       `json:"is_fefo"`
	IsActive  bool       `json:"is_active"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ProductSupplier links a product to one of its suppliers with purchasing terms.
type ProductSupplier struct {
	SupplierID   int64           `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	// MOQ is the minimum order quantity accepted by this supplier.
	MOQ      decimal.Decimal `json:"moq"`
	LeadDays int             `json:"lead_days"`
}

// ProductDetail is the master lookup payload consumed by the adjustment and
// purchasing modules: costing data plus supplier terms.
type ProductDetail struct {
	Product
	Suppliers []ProductSupplier `json:"suppliers"`
}

// SuggestedCost resolves the unit-cost suggestion for a product:
// base cost when positive, else base price when positive, else zero.
func (p Product) SuggestedCost() decimal.Decimal {
	if p.BaseCost.IsPositive() {
		return p.BaseCost
	}
	if p.BasePrice.IsPositive() {
		return p.BasePrice
	}
	return decimal.Zero
}

// StockRecord summarises one product's on-hand quantity in a warehouse.
type StockRecord struct {
	ProductID      int64           `json:"product_id"`
	ProductCode    string          `json:"product_code"`
	ProductName    string          `json:"product_name"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
}

// Supplier represents a supplier entity.
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	// IsPKP marks tax-registered suppliers under the PPN regime.
	IsPKP     bool      `json:"is_pkp"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("masterdata: not found")
	// ErrInactiveProduct indicates the product has been deactivated.
	ErrInactiveProduct = errors.New("masterdata: product inactive")
)
