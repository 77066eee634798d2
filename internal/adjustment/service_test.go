package adjustment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-erp/lumbung-erp/internal/inventory"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

type memRepo struct {
	adjustments map[uuid.UUID]*Adjustment
	nextLineID  int64
	stock       *fakeStock
}

func newMemRepo() *memRepo {
	return &memRepo{adjustments: make(map[uuid.UUID]*Adjustment)}
}

// WithTx commits the movements staged on the transaction's ledger only when
// the callback succeeds, mirroring a rollback on error.
func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memTx{repo: r, ledger: &memLedger{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if r.stock != nil {
		r.stock.posted = append(r.stock.posted, tx.ledger.staged...)
	}
	return nil
}

func (r *memRepo) Get(_ context.Context, id uuid.UUID) (Adjustment, error) {
	adj, ok := r.adjustments[id]
	if !ok {
		return Adjustment{}, ErrNotFound
	}
	out := *adj
	out.Lines = append([]LineItem(nil), adj.Lines...)
	return out, nil
}

func (r *memRepo) List(_ context.Context, _ ListFilter) ([]Adjustment, int, error) {
	items := make([]Adjustment, 0, len(r.adjustments))
	for _, adj := range r.adjustments {
		items = append(items, *adj)
	}
	return items, len(items), nil
}

type memTx struct {
	repo   *memRepo
	ledger *memLedger
}

func (t *memTx) Ledger() inventory.TxRepository { return t.ledger }

// memLedger buffers movements until the surrounding transaction commits. The
// persistence methods are inert; the adjustment tests only care about which
// inputs reached the ledger.
type memLedger struct {
	staged []inventory.MovementInput
}

func (l *memLedger) InsertMovement(context.Context, inventory.Movement) (int64, error) {
	return 0, nil
}

func (l *memLedger) InsertMovementLines(context.Context, int64, []inventory.MovementLine) error {
	return nil
}

func (l *memLedger) GetBalanceForUpdate(context.Context, int64, int64) (inventory.Balance, error) {
	return inventory.Balance{}, inventory.ErrBalanceNotFound
}

func (l *memLedger) UpsertBalance(context.Context, inventory.Balance) error { return nil }

func (l *memLedger) InsertCardEntry(context.Context, inventory.StockCardEntry, int64, int64, int64) error {
	return nil
}

func (t *memTx) InsertHeader(_ context.Context, adj *Adjustment) error {
	stored := *adj
	t.repo.adjustments[adj.ID] = &stored
	return nil
}

func (t *memTx) UpdateHeader(_ context.Context, adj Adjustment) error {
	stored, ok := t.repo.adjustments[adj.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Notes = adj.Notes
	stored.TotalValue = adj.TotalValue
	stored.UpdatedAt = adj.UpdatedAt
	return nil
}

func (t *memTx) InsertLine(_ context.Context, adjID uuid.UUID, line *LineItem) error {
	adj, ok := t.repo.adjustments[adjID]
	if !ok {
		return ErrNotFound
	}
	t.repo.nextLineID++
	line.ID = t.repo.nextLineID
	adj.Lines = append(adj.Lines, *line)
	return nil
}

func (t *memTx) UpdateLine(_ context.Context, line LineItem) error {
	for _, adj := range t.repo.adjustments {
		for i := range adj.Lines {
			if adj.Lines[i].ID == line.ID {
				adj.Lines[i] = line
				return nil
			}
		}
	}
	return ErrLineNotFound
}

func (t *memTx) DeleteLinesExcept(_ context.Context, adjID uuid.UUID, keepIDs []int64) error {
	adj, ok := t.repo.adjustments[adjID]
	if !ok {
		return ErrNotFound
	}
	keep := make(map[int64]struct{}, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = struct{}{}
	}
	filtered := adj.Lines[:0]
	for _, l := range adj.Lines {
		if _, ok := keep[l.ID]; ok {
			filtered = append(filtered, l)
		}
	}
	adj.Lines = filtered
	return nil
}

func (t *memTx) GetForUpdate(ctx context.Context, id uuid.UUID) (Adjustment, error) {
	return t.repo.Get(ctx, id)
}

func (t *memTx) MarkApproved(_ context.Context, id uuid.UUID, actorID int64, at time.Time) error {
	adj, ok := t.repo.adjustments[id]
	if !ok {
		return ErrNotFound
	}
	if adj.Status != StatusDraft {
		return ErrAlreadyApproved
	}
	adj.Status = StatusApproved
	adj.ApprovedBy = &actorID
	adj.ApprovedAt = &at
	return nil
}

// fakeStock stages movements on the transaction's ledger; memRepo.WithTx
// promotes them into posted on commit. failProduct limits fail to one
// product so a multi-line approval can break partway through.
type fakeStock struct {
	posted      []inventory.MovementInput
	fail        error
	failProduct int64
}

func (s *fakeStock) PostMovementTx(_ context.Context, tx inventory.TxRepository, input inventory.MovementInput) (inventory.StockCardEntry, error) {
	if s.fail != nil && (s.failProduct == 0 || s.failProduct == input.ProductID) {
		return inventory.StockCardEntry{}, s.fail
	}
	if ledger, ok := tx.(*memLedger); ok {
		ledger.staged = append(ledger.staged, input)
	}
	return inventory.StockCardEntry{BalanceQty: input.Qty}, nil
}

type fakeIdem struct {
	keys map[string]struct{}
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{keys: make(map[string]struct{})}
}

func (f *fakeIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if _, ok := f.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = struct{}{}
	return nil
}

func (f *fakeIdem) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func testService(repo *memRepo, stock *fakeStock, idem *fakeIdem) *Service {
	repo.stock = stock
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var idemPort IdempotencyPort
	if idem != nil {
		idemPort = idem
	}
	return NewService(logger, repo, stock, nil, nil, idemPort, nil)
}

func validDraft() Draft {
	return Draft{
		Header: Header{
			WarehouseID:    7,
			Type:           TypeDecrease,
			Reason:         ReasonDamage,
			AdjustmentDate: yesterday(),
		},
		Lines: []LineItem{
			{ProductID: 1, Quantity: dec("5"), UnitCost: dec("2000")},
		},
	}
}

func TestCreateValidation(t *testing.T) {
	svc := testService(newMemRepo(), &fakeStock{}, nil)
	ctx := context.Background()

	d := validDraft()
	d.AdjustmentDate = time.Now().AddDate(0, 0, 1)
	_, err := svc.Create(ctx, d, 42)
	require.ErrorIs(t, err, ErrFutureDate)

	d = validDraft()
	d.Lines = nil
	_, err = svc.Create(ctx, d, 42)
	require.ErrorIs(t, err, ErrNoLineItems)

	d = validDraft()
	d.Lines = append(d.Lines, LineItem{ProductID: 1, Quantity: dec("2"), UnitCost: dec("100")})
	_, err = svc.Create(ctx, d, 42)
	require.ErrorIs(t, err, ErrDuplicateProduct)

	d = validDraft()
	d.Lines[0].Quantity = dec("-5")
	_, err = svc.Create(ctx, d, 42)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	d = validDraft()
	d.Reason = Reason("WHATEVER")
	_, err = svc.Create(ctx, d, 42)
	require.ErrorIs(t, err, ErrIncompleteHeader)
}

func TestCreateDraft(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo, &fakeStock{}, nil)

	adj, err := svc.Create(context.Background(), validDraft(), 42)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, adj.Status)
	require.True(t, strings.HasPrefix(adj.Number, "ADJ-"))
	require.True(t, adj.TotalValue.Equal(dec("10000")))
	require.Len(t, adj.Lines, 1)
	require.NotZero(t, adj.Lines[0].ID)
	require.Equal(t, int64(42), adj.CreatedBy)

	stored, err := repo.Get(context.Background(), adj.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
}

func TestUpdateDiffsLinesByID(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo, &fakeStock{}, nil)
	ctx := context.Background()

	d := validDraft()
	d.Lines = append(d.Lines, LineItem{ProductID: 2, Quantity: dec("3"), UnitCost: dec("500")})
	adj, err := svc.Create(ctx, d, 42)
	require.NoError(t, err)
	keptID := adj.Lines[0].ID

	// Keep line 1 with a new quantity, drop line 2, add product 3.
	next := Draft{Header: adj.Header}
	next.Lines = []LineItem{
		{ID: keptID, ProductID: 1, Quantity: dec("8"), UnitCost: dec("2000")},
		{ProductID: 3, Quantity: dec("1"), UnitCost: dec("700")},
	}
	updated, err := svc.Update(ctx, adj.ID, next, 42)
	require.NoError(t, err)
	require.Len(t, updated.Lines, 2)
	require.Equal(t, keptID, updated.Lines[0].ID)
	require.True(t, updated.Lines[0].Quantity.Equal(dec("8")))
	require.NotZero(t, updated.Lines[1].ID)
	require.NotEqual(t, keptID, updated.Lines[1].ID)
	require.True(t, updated.TotalValue.Equal(dec("16700")))
}

func TestUpdateRejectsLockedHeaderChange(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo, &fakeStock{}, nil)
	ctx := context.Background()

	adj, err := svc.Create(ctx, validDraft(), 42)
	require.NoError(t, err)

	next := Draft{Header: adj.Header, Lines: adj.Lines}
	next.Type = TypeIncrease
	_, err = svc.Update(ctx, adj.ID, next, 42)
	require.ErrorIs(t, err, ErrImmutableHeader)

	next = Draft{Header: adj.Header, Lines: adj.Lines}
	next.WarehouseID = 99
	_, err = svc.Update(ctx, adj.ID, next, 42)
	require.ErrorIs(t, err, ErrImmutableHeader)
}

func TestUpdateRejectsForeignLineID(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo, &fakeStock{}, nil)
	ctx := context.Background()

	adj, err := svc.Create(ctx, validDraft(), 42)
	require.NoError(t, err)

	next := Draft{Header: adj.Header}
	next.Lines = []LineItem{{ID: 9999, ProductID: 1, Quantity: dec("2"), UnitCost: dec("100")}}
	_, err = svc.Update(ctx, adj.ID, next, 42)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestApproveAppliesSignedDeltas(t *testing.T) {
	repo := newMemRepo()
	stock := &fakeStock{}
	svc := testService(repo, stock, newFakeIdem())
	ctx := context.Background()

	adj, err := svc.Create(ctx, validDraft(), 42)
	require.NoError(t, err)
	require.True(t, adj.TotalValue.Equal(dec("10000")))

	approved, err := svc.Approve(ctx, adj.ID, 77, "sesuai berita acara")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	require.Equal(t, int64(77), *approved.ApprovedBy)

	// DECREASE: stored magnitude 5 posts as -5, cost untouched.
	require.Len(t, stock.posted, 1)
	require.True(t, stock.posted[0].Qty.Equal(dec("-5")))
	require.True(t, stock.posted[0].UnitCost.Equal(dec("2000")))
	require.Equal(t, int64(7), stock.posted[0].WarehouseID)
	require.Equal(t, adj.ID.String(), stock.posted[0].RefID)
}

func TestApproveIncreasePostsPositiveDelta(t *testing.T) {
	repo := newMemRepo()
	stock := &fakeStock{}
	svc := testService(repo, stock, nil)
	ctx := context.Background()

	d := validDraft()
	d.Type = TypeIncrease
	adj, err := svc.Create(ctx, d, 42)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, adj.ID, 77, "")
	require.NoError(t, err)
	require.Len(t, stock.posted, 1)
	require.True(t, stock.posted[0].Qty.Equal(dec("5")))
}

func TestApproveTwiceBlocked(t *testing.T) {
	repo := newMemRepo()
	stock := &fakeStock{}
	svc := testService(repo, stock, newFakeIdem())
	ctx := context.Background()

	adj, err := svc.Create(ctx, validDraft(), 42)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, adj.ID, 77, "")
	require.NoError(t, err)
	_, err = svc.Approve(ctx, adj.ID, 77, "")
	require.ErrorIs(t, err, ErrAlreadyApproved)
	require.Len(t, stock.posted, 1)
}

func TestApproveNonDraftBlockedWithoutIdempotency(t *testing.T) {
	repo := newMemRepo()
	svc := testService(repo, &fakeStock{}, nil)
	ctx := context.Background()

	adj, err := svc.Create(ctx, validDraft(), 42)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, adj.ID, 77, "")
	require.NoError(t, err)

	// Even with no key store the status check blocks a repeat.
	_, err = svc.Approve(ctx, adj.ID, 77, "")
	require.ErrorIs(t, err, ErrAlreadyApproved)
}

func TestApproveFailureReleasesIdempotencyKey(t *testing.T) {
	repo := newMemRepo()
	stock := &fakeStock{fail: errors.New("stok tidak mencukupi")}
	idem := newFakeIdem()
	svc := testService(repo, stock, idem)
	ctx := context.Background()

	adj, err := svc.Create(ctx, validDraft(), 42)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, adj.ID, 77, "")
	require.ErrorContains(t, err, "stok tidak mencukupi")

	got, err := repo.Get(ctx, adj.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)

	// The key was released, so the operator can retry after fixing stock.
	stock.fail = nil
	approved, err := svc.Approve(ctx, adj.ID, 77, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
}

func TestApprovePartialFailureAppliesNothing(t *testing.T) {
	repo := newMemRepo()
	stock := &fakeStock{fail: errors.New("stok tidak mencukupi"), failProduct: 2}
	idem := newFakeIdem()
	svc := testService(repo, stock, idem)
	ctx := context.Background()

	d := validDraft()
	d.Lines = append(d.Lines, LineItem{ProductID: 2, Quantity: dec("3"), UnitCost: dec("500")})
	adj, err := svc.Create(ctx, d, 42)
	require.NoError(t, err)

	// The second line is rejected; the first line's movement must roll back
	// with it and the status must stay DRAFT.
	_, err = svc.Approve(ctx, adj.ID, 77, "")
	require.ErrorContains(t, err, "stok tidak mencukupi")
	require.Empty(t, stock.posted)

	got, err := repo.Get(ctx, adj.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)

	// A retry after the block clears applies each delta exactly once.
	stock.fail = nil
	approved, err := svc.Approve(ctx, adj.ID, 77, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	perProduct := make(map[int64]int)
	for _, mov := range stock.posted {
		perProduct[mov.ProductID]++
	}
	require.Equal(t, map[int64]int{1: 1, 2: 1}, perProduct)
}

func TestApproveUnknownAdjustment(t *testing.T) {
	svc := testService(newMemRepo(), &fakeStock{}, nil)
	_, err := svc.Approve(context.Background(), uuid.New(), 77, "")
	require.ErrorIs(t, err, ErrNotFound)
}
