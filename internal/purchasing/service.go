package purchasing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/masterdata"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service and tests.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
}

// TxRepository groups the statements run inside one transaction.
type TxRepository interface {
	InsertHeader(ctx context.Context, po *PurchaseOrder) error
	UpdateHeader(ctx context.Context, po PurchaseOrder) error
	InsertLine(ctx context.Context, poID uuid.UUID, line *POLine) error
	UpdateLine(ctx context.Context, line POLine) error
	DeleteLinesExcept(ctx context.Context, poID uuid.UUID, keepIDs []int64) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (PurchaseOrder, error)
	MarkApproved(ctx context.Context, id uuid.UUID, actorID int64, at time.Time) error
}

// ListFilter narrows purchase-order listings.
type ListFilter struct {
	Status     Status
	SupplierID int64
	Search     string
	Limit      int
	Offset     int
}

// MasterData supplies supplier and product master records.
type MasterData interface {
	GetSupplier(ctx context.Context, id int64) (masterdata.Supplier, error)
	LookupProduct(ctx context.Context, id int64) (masterdata.ProductDetail, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error
}

// IdempotencyPort guards one-shot operations.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const poModule = "purchase_order"

// Service owns the purchase-order lifecycle. Financials are derived by the
// calculator on every write; the supplier's PKP status decides whether PPN
// applies.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	master    MasterData
	calc      Calculator
	audit     AuditPort
	approvals ApprovalPort
	idem      IdempotencyPort
	now       func() time.Time
}

// NewService builds Service. Audit, approvals and idempotency may be nil in
// tests.
func NewService(logger *slog.Logger, repo RepositoryPort, master MasterData, calc Calculator, audit AuditPort, approvals ApprovalPort, idem IdempotencyPort) *Service {
	return &Service{
		logger:    logger,
		repo:      repo,
		master:    master,
		calc:      calc,
		audit:     audit,
		approvals: approvals,
		idem:      idem,
		now:       time.Now,
	}
}

// Get loads one order with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) resolveSupplier(ctx context.Context, id int64) (masterdata.Supplier, error) {
	supplier, err := s.master.GetSupplier(ctx, id)
	if err != nil {
		return masterdata.Supplier{}, err
	}
	if !supplier.IsActive {
		return masterdata.Supplier{}, ErrSupplierInactive
	}
	return supplier, nil
}

func (s *Service) financials(draft PODraft, isPKP bool) Financials {
	lines := make([]OrderLine, 0, len(draft.Lines))
	for _, l := range draft.Lines {
		lines = append(lines, l.toOrderLine())
	}
	return s.calc.Calculate(lines, draft.DiscountAmount, isPKP)
}

// Create persists a new DRAFT purchase order with a derived financial
// snapshot.
func (s *Service) Create(ctx context.Context, draft PODraft, actorID int64) (PurchaseOrder, error) {
	if err := draft.Validate(); err != nil {
		return PurchaseOrder{}, err
	}
	supplier, err := s.resolveSupplier(ctx, draft.SupplierID)
	if err != nil {
		return PurchaseOrder{}, err
	}

	now := s.now().UTC()
	po := PurchaseOrder{
		ID:           uuid.New(),
		Number:       fmt.Sprintf("PO-%d", now.UnixNano()),
		SupplierID:   supplier.ID,
		SupplierName: supplier.Name,
		OrderDate:    draft.OrderDate,
		Notes:        draft.Notes,
		Status:       StatusDraft,
		Financials:   s.financials(draft, supplier.IsPKP),
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertHeader(ctx, &po); err != nil {
			return err
		}
		for i := range draft.Lines {
			line := draft.Lines[i]
			line.ID = 0
			if err := tx.InsertLine(ctx, po.ID, &line); err != nil {
				return err
			}
			po.Lines = append(po.Lines, line)
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("purchasing: create: %w", err)
	}

	if s.approvals != nil {
		if err := s.approvals.EnsureSubmit(ctx, poModule, po.ID, actorID, ""); err != nil {
			s.logger.Warn("record submit", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actorID, "po:create", po)
	return po, nil
}

// Update rewrites a DRAFT order. Lines are diffed by persisted ID the same
// way adjustments are: no ID inserts, a known ID updates, missing persisted
// lines are deleted. The supplier is locked after creation.
func (s *Service) Update(ctx context.Context, id uuid.UUID, draft PODraft, actorID int64) (PurchaseOrder, error) {
	if err := draft.Validate(); err != nil {
		return PurchaseOrder{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if existing.Status != StatusDraft {
			return ErrInvalidState
		}
		if draft.SupplierID != existing.SupplierID {
			return ErrInvalidState
		}

		known := make(map[int64]struct{}, len(existing.Lines))
		for _, l := range existing.Lines {
			known[l.ID] = struct{}{}
		}
		keep := make([]int64, 0, len(draft.Lines))
		for i := range draft.Lines {
			line := draft.Lines[i]
			if line.ID == 0 {
				if err := tx.InsertLine(ctx, id, &line); err != nil {
					return err
				}
				keep = append(keep, line.ID)
				continue
			}
			if _, ok := known[line.ID]; !ok {
				return fmt.Errorf("%w: line %d", ErrNotFound, line.ID)
			}
			if err := tx.UpdateLine(ctx, line); err != nil {
				return err
			}
			keep = append(keep, line.ID)
		}
		if err := tx.DeleteLinesExcept(ctx, id, keep); err != nil {
			return err
		}

		supplier, err := s.resolveSupplier(ctx, existing.SupplierID)
		if err != nil {
			return err
		}
		existing.OrderDate = draft.OrderDate
		existing.Notes = draft.Notes
		existing.Financials = s.financials(draft, supplier.IsPKP)
		existing.UpdatedAt = s.now().UTC()
		return tx.UpdateHeader(ctx, existing)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actorID, "po:update", po)
	return po, nil
}

// Approve flips a DRAFT order to APPROVED. Stock arrives later through goods
// receipt, so approval here is a pure status transition with history.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actorID int64, note string) (PurchaseOrder, error) {
	key := fmt.Sprintf("po:approve:%s", id)
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, poModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return PurchaseOrder{}, ErrAlreadyApproved
			}
			return PurchaseOrder{}, err
		}
	}

	approvedAt := s.now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrAlreadyApproved
		}
		return tx.MarkApproved(ctx, id, actorID, approvedAt)
	})
	if err != nil {
		if s.idem != nil {
			if delErr := s.idem.Delete(ctx, key); delErr != nil {
				s.logger.Error("release approval key", slog.Any("error", delErr))
			}
		}
		return PurchaseOrder{}, err
	}

	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  poModule,
			RefID:   po.ID,
			ActorID: actorID,
			Action:  shared.ApprovalApprove,
			Note:    note,
		}); err != nil {
			s.logger.Warn("record approval", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actorID, "po:approve", po)
	return po, nil
}

// Margins compares each line's price against the current product master
// cost. Lookup failures skip the line rather than failing the whole report.
func (s *Service) Margins(ctx context.Context, po PurchaseOrder) []LineMargin {
	out := make([]LineMargin, 0, len(po.Lines))
	for _, line := range po.Lines {
		detail, err := s.master.LookupProduct(ctx, line.ProductID)
		if err != nil {
			s.logger.Warn("margin lookup", slog.Any("error", err), slog.Int64("product_id", line.ProductID))
			continue
		}
		delta := line.UnitPrice.Sub(detail.BaseCost)
		out = append(out, LineMargin{
			ProductID:    line.ProductID,
			ProductCode:  detail.Code,
			UnitPrice:    line.UnitPrice,
			BaseCost:     detail.BaseCost,
			Delta:        delta,
			AboveCurrent: delta.IsPositive(),
		})
	}
	return out
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, po PurchaseOrder) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: po.ID.String(),
		Meta: map[string]any{
			"number":      po.Number,
			"supplier_id": po.SupplierID,
			"lines":       len(po.Lines),
			"total":       shared.FormatIDR(po.TotalAmount),
		},
	}); err != nil {
		s.logger.Warn("record audit", slog.Any("error", err))
	}
}
