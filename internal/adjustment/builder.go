package adjustment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/masterdata"
)

// Step enumerates the wizard states.
type Step int

const (
	// StepHeader collects warehouse, type, reason, date and notes.
	StepHeader Step = iota + 1
	// StepItems collects line items.
	StepItems
	// StepReview shows the full aggregate before submission.
	StepReview
	// StepSubmitted is terminal; the backend record owns the aggregate.
	StepSubmitted
)

// String names the step for logs.
func (s Step) String() string {
	switch s {
	case StepHeader:
		return "header"
	case StepItems:
		return "items"
	case StepReview:
		return "review"
	case StepSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Persistence is the create/update collaborator invoked on submission.
type Persistence interface {
	Create(ctx context.Context, draft Draft, actorID int64) (Adjustment, error)
	Update(ctx context.Context, id uuid.UUID, draft Draft, actorID int64) (Adjustment, error)
}

// Confirmation gates a destructive mutation. Nothing changes until Accept;
// Decline discards the pending operation and leaves all state untouched.
type Confirmation struct {
	prompt  string
	apply   func(ctx context.Context) error
	builder *Builder
}

// Prompt returns the operator-facing question.
func (c *Confirmation) Prompt() string {
	return c.prompt
}

// Accept applies the pending mutation.
func (c *Confirmation) Accept(ctx context.Context) error {
	if c.builder.pending != c {
		return ErrInvalidState
	}
	c.builder.pending = nil
	return c.apply(ctx)
}

// Decline drops the pending mutation without touching any state.
func (c *Confirmation) Decline() {
	if c.builder.pending == c {
		c.builder.pending = nil
	}
}

// Builder owns one in-progress adjustment through the wizard steps. It is
// single-session state: not safe for concurrent use.
type Builder struct {
	step     Step
	header   Header
	items    *ItemStore
	editID   uuid.UUID
	pending  *Confirmation
	inFlight bool
	result   *Adjustment
	now      func() time.Time
}

// NewBuilder starts a create-mode wizard at the header step.
func NewBuilder() *Builder {
	return &Builder{
		step:  StepHeader,
		items: NewItemStore(0),
		now:   time.Now,
	}
}

// EditBuilder pre-seeds the wizard from a persisted draft. Line IDs are kept
// so submission can diff updates against creates. Only DRAFT adjustments are
// editable.
func EditBuilder(adj Adjustment) (*Builder, error) {
	if adj.Status != StatusDraft {
		return nil, ErrInvalidState
	}
	return &Builder{
		step:   StepHeader,
		header: adj.Header,
		items:  seededItemStore(adj.WarehouseID, adj.Lines),
		editID: adj.ID,
		now:    time.Now,
	}, nil
}

// Step returns the current wizard step.
func (b *Builder) Step() Step {
	return b.step
}

// Header returns the current header fields.
func (b *Builder) Header() Header {
	h := b.header
	h.WarehouseID = b.items.WarehouseID()
	return h
}

// Items exposes the line-item store. Warehouse changes must go through
// ChangeWarehouse, never through the store directly.
func (b *Builder) Items() *ItemStore {
	return b.items
}

// EditMode reports whether the builder was seeded from a persisted draft.
func (b *Builder) EditMode() bool {
	return b.editID != uuid.Nil
}

// Pending returns the confirmation awaiting a decision, if any.
func (b *Builder) Pending() *Confirmation {
	return b.pending
}

// Result returns the persisted aggregate after a successful submission.
func (b *Builder) Result() *Adjustment {
	return b.result
}

// SetHeader updates the editable header fields. The warehouse is managed by
// ChangeWarehouse; in edit mode everything except notes is locked.
func (b *Builder) SetHeader(h Header) error {
	if b.step == StepSubmitted {
		return ErrInvalidState
	}
	if b.EditMode() {
		if h.Type != b.header.Type || h.Reason != b.header.Reason || !h.AdjustmentDate.Equal(b.header.AdjustmentDate) {
			return ErrImmutableHeader
		}
		b.header.Notes = h.Notes
		return nil
	}
	rescope := h.WarehouseID != 0 && h.WarehouseID != b.items.WarehouseID()
	if rescope && b.items.Len() > 0 {
		// Reject before touching anything so the header stays intact.
		return ErrConfirmationPending
	}
	b.header.Type = h.Type
	b.header.Reason = h.Reason
	b.header.AdjustmentDate = h.AdjustmentDate
	b.header.Notes = h.Notes
	if rescope {
		b.items.reset(h.WarehouseID)
	}
	return nil
}

// ChangeWarehouse rescopes the adjustment. With existing line items the
// change is destructive (the product universe is warehouse-scoped), so a
// confirmation is returned instead of applying it; accepting clears all
// lines, declining changes nothing. Without items the change applies
// immediately and both return values are nil.
func (b *Builder) ChangeWarehouse(newID int64) (*Confirmation, error) {
	if b.step == StepSubmitted {
		return nil, ErrInvalidState
	}
	if b.EditMode() {
		return nil, ErrImmutableHeader
	}
	if b.pending != nil {
		return nil, ErrConfirmationPending
	}
	if newID == 0 {
		return nil, ErrIncompleteHeader
	}
	if newID == b.items.WarehouseID() {
		return nil, nil
	}
	if b.items.Len() == 0 {
		b.items.reset(newID)
		return nil, nil
	}
	c := &Confirmation{
		prompt:  "Mengganti gudang akan menghapus semua baris penyesuaian. Lanjutkan?",
		builder: b,
		apply: func(context.Context) error {
			b.items.reset(newID)
			return nil
		},
	}
	b.pending = c
	return c, nil
}

// ImportAll replaces the line list with one qty-1 line per stocked product in
// the current warehouse. With existing lines it is destructive and returns a
// confirmation; otherwise it runs immediately.
func (b *Builder) ImportAll(ctx context.Context, lookup StockLookup, snapshot []masterdata.StockRecord) (*Confirmation, error) {
	if b.step != StepItems {
		return nil, ErrInvalidState
	}
	if b.pending != nil {
		return nil, ErrConfirmationPending
	}
	if b.items.Len() == 0 {
		return nil, b.items.ImportAllFromWarehouse(ctx, lookup, snapshot)
	}
	c := &Confirmation{
		prompt:  "Impor semua stok akan mengganti baris yang sudah ada. Lanjutkan?",
		builder: b,
		apply: func(ctx context.Context) error {
			return b.items.ImportAllFromWarehouse(ctx, lookup, snapshot)
		},
	}
	b.pending = c
	return c, nil
}

// Next advances one step. Forward transitions are gated; the gate error
// leaves the step unchanged.
func (b *Builder) Next() error {
	if b.pending != nil {
		return ErrConfirmationPending
	}
	switch b.step {
	case StepHeader:
		if err := b.Header().Validate(b.now()); err != nil {
			return err
		}
		b.step = StepItems
	case StepItems:
		if b.items.Len() == 0 {
			return ErrNoLineItems
		}
		b.step = StepReview
	default:
		return ErrInvalidState
	}
	return nil
}

// Back steps backward. Always permitted before submission and never discards
// data.
func (b *Builder) Back() error {
	switch b.step {
	case StepItems:
		b.step = StepHeader
	case StepReview:
		b.step = StepItems
	default:
		return ErrInvalidState
	}
	return nil
}

// Draft assembles the current aggregate.
func (b *Builder) Draft() Draft {
	return Draft{Header: b.Header(), Lines: b.items.Lines()}
}

// Submit persists the aggregate through the collaborator. It only runs from
// the review step, refuses to double-fire while a call is in flight, and on
// failure stays at review with all state intact so the operator can correct
// and resubmit.
func (b *Builder) Submit(ctx context.Context, p Persistence, actorID int64) (Adjustment, error) {
	if b.step != StepReview {
		return Adjustment{}, ErrInvalidState
	}
	if b.pending != nil {
		return Adjustment{}, ErrConfirmationPending
	}
	if b.inFlight {
		return Adjustment{}, ErrSubmitInFlight
	}
	draft := b.Draft()
	if err := draft.Validate(b.now()); err != nil {
		return Adjustment{}, err
	}
	b.inFlight = true
	defer func() { b.inFlight = false }()

	var (
		adj Adjustment
		err error
	)
	if b.EditMode() {
		adj, err = p.Update(ctx, b.editID, draft, actorID)
	} else {
		adj, err = p.Create(ctx, draft, actorID)
	}
	if err != nil {
		return Adjustment{}, err
	}
	b.step = StepSubmitted
	b.result = &adj
	return adj, nil
}
