package adjustment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-erp/lumbung-erp/internal/masterdata"
)

type stubPersistence struct {
	created  []Draft
	updated  []Draft
	updateID uuid.UUID
	fail     error
}

func (p *stubPersistence) Create(_ context.Context, draft Draft, _ int64) (Adjustment, error) {
	if p.fail != nil {
		return Adjustment{}, p.fail
	}
	p.created = append(p.created, draft)
	return Adjustment{ID: uuid.New(), Number: "ADJ-1", Header: draft.Header, Lines: draft.Lines, Status: StatusDraft, TotalValue: TotalValue(draft.Lines)}, nil
}

func (p *stubPersistence) Update(_ context.Context, id uuid.UUID, draft Draft, _ int64) (Adjustment, error) {
	if p.fail != nil {
		return Adjustment{}, p.fail
	}
	p.updated = append(p.updated, draft)
	p.updateID = id
	return Adjustment{ID: id, Number: "ADJ-1", Header: draft.Header, Lines: draft.Lines, Status: StatusDraft, TotalValue: TotalValue(draft.Lines)}, nil
}

func yesterday() time.Time {
	return time.Now().AddDate(0, 0, -1)
}

func validHeader(warehouseID int64) Header {
	return Header{
		WarehouseID:    warehouseID,
		Type:           TypeDecrease,
		Reason:         ReasonDamage,
		AdjustmentDate: yesterday(),
	}
}

func builderAtItems(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.SetHeader(validHeader(7)))
	require.NoError(t, b.Next())
	require.Equal(t, StepItems, b.Step())
	return b
}

func TestHeaderGate(t *testing.T) {
	b := NewBuilder()
	require.ErrorIs(t, b.Next(), ErrIncompleteHeader)
	require.Equal(t, StepHeader, b.Step())

	h := validHeader(7)
	h.AdjustmentDate = time.Now().AddDate(0, 0, 2)
	require.NoError(t, b.SetHeader(h))
	require.ErrorIs(t, b.Next(), ErrFutureDate)
	require.Equal(t, StepHeader, b.Step())

	require.NoError(t, b.SetHeader(validHeader(7)))
	require.NoError(t, b.Next())
	require.Equal(t, StepItems, b.Step())
}

func TestItemsGateRequiresOneLine(t *testing.T) {
	b := builderAtItems(t)
	require.ErrorIs(t, b.Next(), ErrNoLineItems)
	require.Equal(t, StepItems, b.Step())

	_, err := b.Items().AddLine(context.Background(), testLookup(), AddLineInput{ProductID: 1, Quantity: dec("1")})
	require.NoError(t, err)
	require.NoError(t, b.Next())
	require.Equal(t, StepReview, b.Step())
}

func TestBackwardTransitionsKeepData(t *testing.T) {
	b := builderAtItems(t)
	_, err := b.Items().AddLine(context.Background(), testLookup(), AddLineInput{ProductID: 1, Quantity: dec("3")})
	require.NoError(t, err)
	require.NoError(t, b.Next())

	require.NoError(t, b.Back())
	require.Equal(t, StepItems, b.Step())
	require.NoError(t, b.Back())
	require.Equal(t, StepHeader, b.Step())
	require.ErrorIs(t, b.Back(), ErrInvalidState)

	require.Equal(t, 1, b.Items().Len())
	require.Equal(t, ReasonDamage, b.Header().Reason)
}

func TestWarehouseChangeGate(t *testing.T) {
	ctx := context.Background()
	b := builderAtItems(t)
	_, err := b.Items().AddLine(ctx, testLookup(), AddLineInput{ProductID: 1, Quantity: dec("2")})
	require.NoError(t, err)

	// Same warehouse is a no-op without confirmation.
	confirm, err := b.ChangeWarehouse(7)
	require.NoError(t, err)
	require.Nil(t, confirm)

	confirm, err = b.ChangeWarehouse(8)
	require.NoError(t, err)
	require.NotNil(t, confirm)
	// Nothing mutated until a decision is made.
	require.Equal(t, 1, b.Items().Len())
	require.Equal(t, int64(7), b.Items().WarehouseID())

	// Forward progress is blocked while the decision is pending.
	require.ErrorIs(t, b.Next(), ErrConfirmationPending)

	confirm.Decline()
	require.Equal(t, 1, b.Items().Len())
	require.Equal(t, int64(7), b.Items().WarehouseID())
	require.Nil(t, b.Pending())

	confirm, err = b.ChangeWarehouse(8)
	require.NoError(t, err)
	require.NoError(t, confirm.Accept(ctx))
	require.Equal(t, 0, b.Items().Len())
	require.Equal(t, int64(8), b.Items().WarehouseID())
}

func TestSetHeaderWarehouseGateKeepsHeaderIntact(t *testing.T) {
	b := builderAtItems(t)
	_, err := b.Items().AddLine(context.Background(), testLookup(), AddLineInput{ProductID: 1, Quantity: dec("2")})
	require.NoError(t, err)

	h := validHeader(8)
	h.Reason = ReasonLost
	h.Notes = "pindah gudang"
	require.ErrorIs(t, b.SetHeader(h), ErrConfirmationPending)

	// The rejected call must not leave a half-applied header behind.
	require.Equal(t, ReasonDamage, b.Header().Reason)
	require.Empty(t, b.Header().Notes)
	require.Equal(t, int64(7), b.Items().WarehouseID())
	require.Equal(t, 1, b.Items().Len())
}

func TestWarehouseChangeWithoutItemsAppliesDirectly(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.SetHeader(validHeader(7)))
	confirm, err := b.ChangeWarehouse(9)
	require.NoError(t, err)
	require.Nil(t, confirm)
	require.Equal(t, int64(9), b.Items().WarehouseID())
}

func TestImportAllGateWithExistingItems(t *testing.T) {
	ctx := context.Background()
	lookup := testLookup()
	b := builderAtItems(t)

	snapshot := []masterdata.StockRecord{
		{ProductID: 1, ProductCode: "SKU-1"},
		{ProductID: 2, ProductCode: "SKU-2"},
		{ProductID: 3, ProductCode: "SKU-3"},
	}

	// Empty store imports without confirmation.
	confirm, err := b.ImportAll(ctx, lookup, snapshot)
	require.NoError(t, err)
	require.Nil(t, confirm)
	require.Equal(t, 3, b.Items().Len())

	// A second import over existing lines needs confirmation.
	confirm, err = b.ImportAll(ctx, lookup, snapshot[:1])
	require.NoError(t, err)
	require.NotNil(t, confirm)
	require.Equal(t, 3, b.Items().Len())

	confirm.Decline()
	require.Equal(t, 3, b.Items().Len())

	confirm, err = b.ImportAll(ctx, lookup, snapshot[:1])
	require.NoError(t, err)
	require.NoError(t, confirm.Accept(ctx))
	require.Equal(t, 1, b.Items().Len())
}

func TestSubmitCreate(t *testing.T) {
	ctx := context.Background()
	p := &stubPersistence{}
	b := builderAtItems(t)
	_, err := b.Items().AddLine(ctx, testLookup(), AddLineInput{ProductID: 1, Quantity: dec("2"), UnitCost: decPtr("1000")})
	require.NoError(t, err)
	require.NoError(t, b.Next())

	adj, err := b.Submit(ctx, p, 42)
	require.NoError(t, err)
	require.Equal(t, StepSubmitted, b.Step())
	require.Len(t, p.created, 1)
	require.Empty(t, p.updated)
	require.True(t, adj.TotalValue.Equal(dec("2000")))

	// Terminal: no further mutation or resubmission.
	_, err = b.Submit(ctx, p, 42)
	require.ErrorIs(t, err, ErrInvalidState)
	require.ErrorIs(t, b.SetHeader(validHeader(7)), ErrInvalidState)
}

func TestSubmitFailureStaysAtReview(t *testing.T) {
	ctx := context.Background()
	backendErr := errors.New("nomor penyesuaian sudah dipakai")
	p := &stubPersistence{fail: backendErr}
	b := builderAtItems(t)
	_, err := b.Items().AddLine(ctx, testLookup(), AddLineInput{ProductID: 1, Quantity: dec("2")})
	require.NoError(t, err)
	require.NoError(t, b.Next())

	_, err = b.Submit(ctx, p, 42)
	require.ErrorIs(t, err, backendErr)
	require.Equal(t, StepReview, b.Step())
	require.Equal(t, 1, b.Items().Len())

	p.fail = nil
	_, err = b.Submit(ctx, p, 42)
	require.NoError(t, err)
	require.Equal(t, StepSubmitted, b.Step())
}

func TestSubmitOnlyFromReview(t *testing.T) {
	b := builderAtItems(t)
	_, err := b.Submit(context.Background(), &stubPersistence{}, 42)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestEditModePreservesLineIDs(t *testing.T) {
	ctx := context.Background()
	existing := Adjustment{
		ID:     uuid.New(),
		Number: "ADJ-9",
		Header: validHeader(7),
		Status: StatusDraft,
		Lines: []LineItem{
			{ID: 11, ProductID: 1, Quantity: dec("5"), UnitCost: dec("1500")},
			{ID: 12, ProductID: 2, Quantity: dec("2"), UnitCost: dec("900")},
		},
	}
	b, err := EditBuilder(existing)
	require.NoError(t, err)
	require.True(t, b.EditMode())

	require.NoError(t, b.Items().UpdateLineQuantity(1, dec("6")))
	_, err = b.Items().AddLine(ctx, testLookup(), AddLineInput{ProductID: 3, Quantity: dec("1")})
	require.NoError(t, err)
	b.Items().RemoveLine(2)

	lines := b.Items().Lines()
	require.Len(t, lines, 2)
	require.Equal(t, int64(11), lines[0].ID, "persisted id survives quantity update")
	require.Zero(t, lines[1].ID, "new line has no id")

	require.NoError(t, b.Next())
	require.NoError(t, b.Next())
	p := &stubPersistence{}
	_, err = b.Submit(ctx, p, 42)
	require.NoError(t, err)
	require.Equal(t, existing.ID, p.updateID)
	require.Empty(t, p.created)
}

func TestEditModeLocksHeader(t *testing.T) {
	existing := Adjustment{
		ID:     uuid.New(),
		Header: validHeader(7),
		Status: StatusDraft,
		Lines:  []LineItem{{ID: 11, ProductID: 1, Quantity: dec("5"), UnitCost: dec("1500")}},
	}
	b, err := EditBuilder(existing)
	require.NoError(t, err)

	changed := existing.Header
	changed.Type = TypeIncrease
	require.ErrorIs(t, b.SetHeader(changed), ErrImmutableHeader)

	_, err = b.ChangeWarehouse(8)
	require.ErrorIs(t, err, ErrImmutableHeader)

	// Notes stay editable.
	withNotes := existing.Header
	withNotes.Notes = "revisi catatan"
	require.NoError(t, b.SetHeader(withNotes))
	require.Equal(t, "revisi catatan", b.Header().Notes)
}

func TestEditBuilderRejectsApproved(t *testing.T) {
	_, err := EditBuilder(Adjustment{Status: StatusApproved})
	require.ErrorIs(t, err, ErrInvalidState)
}
