package adjustment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/inventory"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service and tests.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Adjustment, error)
	List(ctx context.Context, filter ListFilter) ([]Adjustment, int, error)
}

// TxRepository groups the statements run inside one transaction.
type TxRepository interface {
	InsertHeader(ctx context.Context, adj *Adjustment) error
	UpdateHeader(ctx context.Context, adj Adjustment) error
	InsertLine(ctx context.Context, adjID uuid.UUID, line *LineItem) error
	UpdateLine(ctx context.Context, line LineItem) error
	DeleteLinesExcept(ctx context.Context, adjID uuid.UUID, keepIDs []int64) error
	GetForUpdate(ctx context.Context, id uuid.UUID) (Adjustment, error)
	MarkApproved(ctx context.Context, id uuid.UUID, actorID int64, at time.Time) error
	// Ledger exposes the stock ledger bound to this same transaction, so
	// approval commits its movements and the status flip as one unit.
	Ledger() inventory.TxRepository
}

// ListFilter narrows adjustment listings.
type ListFilter struct {
	Status      Status
	WarehouseID int64
	Search      string
	Limit       int
	Offset      int
}

// StockPoster applies signed deltas to the ledger on approval. Movements are
// posted on the caller's transaction; nothing reaches the ledger unless that
// transaction commits.
type StockPoster interface {
	PostMovementTx(ctx context.Context, tx inventory.TxRepository, input inventory.MovementInput) (inventory.StockCardEntry, error)
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

// EventPublisher fans out lifecycle events to background processing.
type EventPublisher interface {
	AdjustmentSaved(ctx context.Context, ev SavedEvent) error
	AdjustmentApproved(ctx context.Context, ev ApprovedEvent) error
}

const approvalModule = "adjustment"

// Service owns the persisted adjustment lifecycle: create and update of
// drafts, and the one-shot approval that applies stock deltas.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	stock     StockPoster
	audit     AuditPort
	approvals ApprovalPort
	idem      IdempotencyPort
	events    EventPublisher
	now       func() time.Time
}

// NewService builds Service. Audit, approvals, idempotency and events may be
// nil in tests.
func NewService(logger *slog.Logger, repo RepositoryPort, stock StockPoster, audit AuditPort, approvals ApprovalPort, idem IdempotencyPort, events EventPublisher) *Service {
	return &Service{
		logger:    logger,
		repo:      repo,
		stock:     stock,
		audit:     audit,
		approvals: approvals,
		idem:      idem,
		events:    events,
		now:       time.Now,
	}
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// Get loads one adjustment with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Adjustment, error) {
	return s.repo.Get(ctx, id)
}

// List returns adjustments matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Adjustment, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return s.repo.List(ctx, filter)
}

// Create persists a new DRAFT adjustment. Validation happens before any
// statement runs; nothing partial ever reaches the database.
func (s *Service) Create(ctx context.Context, draft Draft, actorID int64) (Adjustment, error) {
	if err := draft.Validate(s.now()); err != nil {
		return Adjustment{}, err
	}
	now := s.now().UTC()
	adj := Adjustment{
		ID:         uuid.New(),
		Number:     generateNumber("ADJ"),
		Header:     draft.Header,
		Status:     StatusDraft,
		TotalValue: TotalValue(draft.Lines),
		CreatedBy:  actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertHeader(ctx, &adj); err != nil {
			return err
		}
		for i := range draft.Lines {
			line := draft.Lines[i]
			line.ID = 0
			if err := tx.InsertLine(ctx, adj.ID, &line); err != nil {
				return err
			}
			adj.Lines = append(adj.Lines, line)
		}
		return nil
	})
	if err != nil {
		return Adjustment{}, fmt.Errorf("adjustment: create: %w", err)
	}

	if s.approvals != nil {
		if err := s.approvals.EnsureSubmit(ctx, approvalModule, adj.ID, actorID, ""); err != nil {
			s.logger.Warn("record submit", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actorID, "adjustment:create", adj)
	s.publishSaved(ctx, adj)
	return adj, nil
}

// Update rewrites a DRAFT's mutable fields. Lines are diffed by persisted ID:
// no ID means insert, a known ID means in-place update, and persisted lines
// absent from the draft are deleted. Locked header fields must match the
// stored record.
func (s *Service) Update(ctx context.Context, id uuid.UUID, draft Draft, actorID int64) (Adjustment, error) {
	if err := draft.Validate(s.now()); err != nil {
		return Adjustment{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if existing.Status != StatusDraft {
			return ErrInvalidState
		}
		if draft.WarehouseID != existing.WarehouseID ||
			draft.Type != existing.Type ||
			draft.Reason != existing.Reason ||
			!sameDate(draft.AdjustmentDate, existing.AdjustmentDate) {
			return ErrImmutableHeader
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
				return fmt.Errorf("%w: line %d", ErrLineNotFound, line.ID)
			}
			if err := tx.UpdateLine(ctx, line); err != nil {
				return err
			}
			keep = append(keep, line.ID)
		}
		if err := tx.DeleteLinesExcept(ctx, id, keep); err != nil {
			return err
		}

		existing.Notes = draft.Notes
		existing.TotalValue = TotalValue(draft.Lines)
		existing.UpdatedAt = s.now().UTC()
		return tx.UpdateHeader(ctx, existing)
	})
	if err != nil {
		return Adjustment{}, err
	}

	adj, err := s.repo.Get(ctx, id)
	if err != nil {
		return Adjustment{}, err
	}
	s.recordAudit(ctx, actorID, "adjustment:update", adj)
	s.publishSaved(ctx, adj)
	return adj, nil
}

// Approve flips a DRAFT to APPROVED and applies one signed ledger movement
// per line, all in a single transaction: a rejected line rolls back every
// movement along with the status flip, so a retry starts from a clean slate.
// The sign comes from the header type only; stored quantities are magnitudes.
// A deterministic idempotency key blocks duplicate approval of the same
// adjustment; a failed attempt releases the key so the operator can retry.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actorID int64, note string) (Adjustment, error) {
	key := fmt.Sprintf("adjustment:approve:%s", id)
	if s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, key, approvalModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Adjustment{}, ErrAlreadyApproved
			}
			return Adjustment{}, err
		}
	}
	adj, err := s.approve(ctx, id, actorID, note)
	if err != nil && s.idem != nil {
		if delErr := s.idem.Delete(ctx, key); delErr != nil {
			s.logger.Error("release approval key", slog.Any("error", delErr))
		}
	}
	return adj, err
}

func (s *Service) approve(ctx context.Context, id uuid.UUID, actorID int64, note string) (Adjustment, error) {
	approvedAt := s.now().UTC()
	var adj Adjustment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrAlreadyApproved
		}

		ledger := tx.Ledger()
		for _, line := range current.Lines {
			_, err := s.stock.PostMovementTx(ctx, ledger, inventory.MovementInput{
				WarehouseID: current.WarehouseID,
				ProductID:   line.ProductID,
				Qty:         current.SignedDelta(line),
				UnitCost:    line.UnitCost,
				RefModule:   approvalModule,
				RefID:       current.ID.String(),
				Note:        fmt.Sprintf("%s %s", current.Number, current.Reason.Label()),
				ActorID:     actorID,
			})
			if err != nil {
				return fmt.Errorf("adjustment: post delta for product %d: %w", line.ProductID, err)
			}
		}

		if err := tx.MarkApproved(ctx, id, actorID, approvedAt); err != nil {
			return err
		}
		adj = current
		return nil
	})
	if err != nil {
		return Adjustment{}, err
	}

	adj.Status = StatusApproved
	adj.ApprovedBy = &actorID
	adj.ApprovedAt = &approvedAt

	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  approvalModule,
			RefID:   adj.ID,
			ActorID: actorID,
			Action:  shared.ApprovalApprove,
			Note:    note,
		}); err != nil {
			s.logger.Warn("record approval", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actorID, "adjustment:approve", adj)
	if s.events != nil {
		if err := s.events.AdjustmentApproved(ctx, ApprovedEvent{
			ID:          adj.ID,
			Number:      adj.Number,
			WarehouseID: adj.WarehouseID,
			Type:        adj.Type,
			LineCount:   len(adj.Lines),
			TotalValue:  adj.TotalValue,
			ApprovedAt:  approvedAt,
		}); err != nil {
			s.logger.Warn("publish approved event", slog.Any("error", err))
		}
	}
	return adj, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, adj Adjustment) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "adjustment",
		EntityID: adj.ID.String(),
		Meta: map[string]any{
			"number":       adj.Number,
			"warehouse_id": adj.WarehouseID,
			"type":         string(adj.Type),
			"reason":       string(adj.Reason),
			"lines":        len(adj.Lines),
			"total_value":  shared.FormatIDR(adj.TotalValue),
		},
	}); err != nil {
		s.logger.Warn("record audit", slog.Any("error", err))
	}
}

func (s *Service) publishSaved(ctx context.Context, adj Adjustment) {
	if s.events == nil {
		return
	}
	if err := s.events.AdjustmentSaved(ctx, SavedEvent{
		ID:     adj.ID,
		Number: adj.Number,
	}); err != nil {
		s.logger.Warn("publish saved event", slog.Any("error", err))
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
