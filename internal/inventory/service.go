package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockCardEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	allowNeg bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, allowNeg: cfg.AllowNegativeStock}
}

// PostMovement records a signed stock delta and maintains the moving average
// cost. Positive quantities carry the caller's unit cost into the average;
// negative quantities are issued at the current average.
func (s *Service) PostMovement(ctx context.Context, input MovementInput) (StockCardEntry, error) {
	var card StockCardEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		card, err = s.PostMovementTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return StockCardEntry{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("inventory:%s", card.TxType),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%s:%d", card.TxType, input.ProductID),
			Meta: map[string]any{
				"warehouse_id": input.WarehouseID,
				"product_id":   input.ProductID,
				"qty":          input.Qty.String(),
				"note":         input.Note,
			},
		})
	}
	return card, nil
}

// PostMovementTx applies one movement inside the caller's transaction. It is
// the building block for flows whose ledger writes must commit atomically
// with their own state change, such as adjustment approval: either every
// delta lands together with the status flip, or none do. No audit record is
// written; post-commit bookkeeping stays with the caller.
func (s *Service) PostMovementTx(ctx context.Context, tx TxRepository, input MovementInput) (StockCardEntry, error) {
	if input.WarehouseID == 0 || input.ProductID == 0 {
		return StockCardEntry{}, errors.New("inventory: warehouse and product required")
	}
	if input.Qty.IsZero() {
		return StockCardEntry{}, ErrInvalidQuantity
	}
	if input.Qty.IsPositive() && input.UnitCost.IsNegative() {
		return StockCardEntry{}, ErrInvalidUnitCost
	}
	if input.RefID != "" {
		if _, err := uuid.Parse(input.RefID); err != nil {
			return StockCardEntry{}, fmt.Errorf("inventory: invalid ref id: %w", err)
		}
	}

	now := time.Now().UTC()
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("MOV-%d", now.UnixNano())
	}
	movType := MovementAdjustIn
	if input.Qty.IsNegative() {
		movType = MovementAdjustOut
	}

	balance, err := tx.GetBalanceForUpdate(ctx, input.WarehouseID, input.ProductID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return StockCardEntry{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = Balance{WarehouseID: input.WarehouseID, ProductID: input.ProductID}
	}

	newQty := balance.Qty.Add(input.Qty)
	if !s.allowNeg && newQty.IsNegative() {
		return StockCardEntry{}, ErrNegativeStock
	}

	var unitCost, newAvg decimal.Decimal
	if input.Qty.IsPositive() {
		unitCost = input.UnitCost
		totalCost := balance.Qty.Mul(balance.AvgCost).Add(input.Qty.Mul(unitCost))
		if !newQty.IsZero() {
			newAvg = totalCost.DivRound(newQty, 6)
		}
	} else {
		unitCost = balance.AvgCost
		if newQty.IsPositive() {
			newAvg = balance.AvgCost
		}
	}

	header := Movement{
		Code:        code,
		Type:        movType,
		WarehouseID: input.WarehouseID,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
		Note:        input.Note,
		PostedAt:    now,
		CreatedBy:   input.ActorID,
	}
	movID, err := tx.InsertMovement(ctx, header)
	if err != nil {
		return StockCardEntry{}, err
	}
	line := MovementLine{
		MovementID: movID,
		ProductID:  input.ProductID,
		Qty:        input.Qty,
		UnitCost:   unitCost,
	}
	if err := tx.InsertMovementLines(ctx, movID, []MovementLine{line}); err != nil {
		return StockCardEntry{}, err
	}

	balance.Qty = newQty
	balance.AvgCost = newAvg
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return StockCardEntry{}, err
	}

	card := StockCardEntry{
		TxCode:      code,
		TxType:      movType,
		PostedAt:    now,
		QtyIn:       decimal.Max(input.Qty, decimal.Zero),
		QtyOut:      decimal.Max(input.Qty.Neg(), decimal.Zero),
		BalanceQty:  newQty,
		UnitCost:    unitCost,
		BalanceCost: newAvg,
		Note:        input.Note,
	}
	if err := tx.InsertCardEntry(ctx, card, input.WarehouseID, input.ProductID, movID); err != nil {
		return StockCardEntry{}, err
	}
	return card, nil
}

// GetStockCard lists stock card entries.
func (s *Service) GetStockCard(ctx context.Context, filter StockCardFilter) ([]StockCardEntry, error) {
	if filter.WarehouseID == 0 || filter.ProductID == 0 {
		return nil, errors.New("inventory: warehouse and product required")
	}
	return s.repo.GetStockCard(ctx, filter)
}
