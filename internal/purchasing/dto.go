package purchasing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type poLineRequest struct {
	ID          int64           `json:"id,omitempty"`
	ProductID   int64           `json:"product_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Notes       string          `json:"notes"`
}

type poDraftRequest struct {
	SupplierID     int64           `json:"supplier_id" validate:"required"`
	OrderDate      string          `json:"order_date" validate:"required"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Notes          string          `json:"notes"`
	Lines          []poLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (r poDraftRequest) toDraft() (PODraft, error) {
	date, err := time.Parse("2006-01-02", r.OrderDate)
	if err != nil {
		return PODraft{}, fmt.Errorf("purchasing: parse date: %w", err)
	}
	d := PODraft{
		SupplierID:     r.SupplierID,
		OrderDate:      date,
		DiscountAmount: r.DiscountAmount,
		Notes:          r.Notes,
	}
	for _, l := range r.Lines {
		d.Lines = append(d.Lines, POLine{
			ID:          l.ID,
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			DiscountPct: l.DiscountPct,
			Notes:       l.Notes,
		})
	}
	return d, nil
}

type poApproveRequest struct {
	Notes string `json:"notes"`
}

type poResponse struct {
	PurchaseOrder
	Margins []LineMargin `json:"margins,omitempty"`
}
