package adjustment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type lineRequest struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity_adjusted"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	BatchID   *int64          `json:"batch_id,omitempty"`
	Notes     string          `json:"notes"`
}

type draftRequest struct {
	WarehouseID    int64         `json:"warehouse_id" validate:"required"`
	Type           string        `json:"adjustment_type" validate:"required,oneof=INCREASE DECREASE"`
	Reason         string        `json:"reason" validate:"required"`
	AdjustmentDate string        `json:"adjustment_date" validate:"required"`
	Notes          string        `json:"notes"`
	Lines          []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

// toDraft converts the request body into the domain aggregate. Quantity and
// uniqueness rules are enforced by Draft.Validate, not by struct tags.
func (r draftRequest) toDraft() (Draft, error) {
	date, err := time.Parse("2006-01-02", r.AdjustmentDate)
	if err != nil {
		return Draft{}, fmt.Errorf("adjustment: parse date: %w", err)
	}
	d := Draft{
		Header: Header{
			WarehouseID:    r.WarehouseID,
			Type:           Type(r.Type),
			Reason:         Reason(r.Reason),
			AdjustmentDate: date,
			Notes:          r.Notes,
		},
	}
	for _, l := range r.Lines {
		d.Lines = append(d.Lines, LineItem{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitCost:  l.UnitCost,
			BatchID:   l.BatchID,
			Notes:     l.Notes,
		})
	}
	return d, nil
}

type approveRequest struct {
	Notes string `json:"notes"`
}

type reasonResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
