package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/platform/db"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("purchasing repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const poColumns = `po.id, po.number, po.supplier_id, s.name, po.order_date, po.notes, po.status,
po.subtotal, po.discount_amount, po.after_discount, po.tax_rate, po.tax_amount, po.total_amount,
po.created_by, po.created_at, po.updated_at, po.approved_by, po.approved_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var (
		po     PurchaseOrder
		status string
	)
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.SupplierName, &po.OrderDate, &po.Notes, &status,
		&po.Subtotal, &po.DiscountAmount, &po.AfterDiscount, &po.TaxRate, &po.TaxAmount, &po.TotalAmount,
		&po.CreatedBy, &po.CreatedAt, &po.UpdatedAt, &po.ApprovedBy, &po.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Status = Status(status)
	return po, nil
}

func loadPOLines(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, poID uuid.UUID) ([]POLine, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.product_id, p.code, p.name, l.quantity, l.unit_price, l.discount_pct, l.notes
FROM purchase_order_lines l
JOIN products p ON p.id = l.product_id
WHERE l.po_id = $1
ORDER BY l.id ASC`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []POLine
	for rows.Next() {
		var l POLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductCode, &l.ProductName, &l.Quantity, &l.UnitPrice, &l.DiscountPct, &l.Notes); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get loads one purchase order with its lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	if r == nil {
		return PurchaseOrder{}, errors.New("purchasing repository not initialised")
	}
	row := r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders po JOIN suppliers s ON s.id = po.supplier_id WHERE po.id = $1`, id)
	po, err := scanPO(row)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadPOLines(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// List returns purchase orders matching the filter, newest first. Lines are
// not loaded for listings.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	if r == nil {
		return nil, 0, errors.New("purchasing repository not initialised")
	}
	conds := []string{"1=1"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("po.status = $%d", len(args)))
	}
	if filter.SupplierID != 0 {
		args = append(args, filter.SupplierID)
		conds = append(conds, fmt.Sprintf("po.supplier_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(po.number ILIKE $%d OR s.name ILIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders po JOIN suppliers s ON s.id = po.supplier_id WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+` FROM purchase_orders po JOIN suppliers s ON s.id = po.supplier_id WHERE `+where+
		fmt.Sprintf(` ORDER BY po.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []PurchaseOrder{}
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *txRepository) InsertHeader(ctx context.Context, po *PurchaseOrder) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO purchase_orders
(id, number, supplier_id, order_date, notes, status, subtotal, discount_amount, after_discount, tax_rate, tax_amount, total_amount, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		po.ID, po.Number, po.SupplierID, po.OrderDate, po.Notes, string(po.Status),
		po.Subtotal, po.DiscountAmount, po.AfterDiscount, po.TaxRate, po.TaxAmount, po.TotalAmount,
		po.CreatedBy, po.CreatedAt, po.UpdatedAt)
	return err
}

func (r *txRepository) UpdateHeader(ctx context.Context, po PurchaseOrder) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET order_date=$2, notes=$3,
subtotal=$4, discount_amount=$5, after_discount=$6, tax_rate=$7, tax_amount=$8, total_amount=$9, updated_at=$10
WHERE id=$1 AND status='DRAFT'`,
		po.ID, po.OrderDate, po.Notes,
		po.Subtotal, po.DiscountAmount, po.AfterDiscount, po.TaxRate, po.TaxAmount, po.TotalAmount, po.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (r *txRepository) InsertLine(ctx context.Context, poID uuid.UUID, line *POLine) error {
	return r.tx.QueryRow(ctx, `INSERT INTO purchase_order_lines (po_id, product_id, quantity, unit_price, discount_pct, notes)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		poID, line.ProductID, line.Quantity, line.UnitPrice, line.DiscountPct, line.Notes).Scan(&line.ID)
}

func (r *txRepository) UpdateLine(ctx context.Context, line POLine) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_order_lines SET quantity=$2, unit_price=$3, discount_pct=$4, notes=$5 WHERE id=$1`,
		line.ID, line.Quantity, line.UnitPrice, line.DiscountPct, line.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteLinesExcept(ctx context.Context, poID uuid.UUID, keepIDs []int64) error {
	if len(keepIDs) == 0 {
		_, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE po_id=$1`, poID)
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE po_id=$1 AND NOT (id = ANY($2))`, poID, keepIDs)
	return err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (PurchaseOrder, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders po JOIN suppliers s ON s.id = po.supplier_id WHERE po.id = $1 FOR UPDATE OF po`, id)
	po, err := scanPO(row)
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadPOLines(ctx, r.tx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (r *txRepository) MarkApproved(ctx context.Context, id uuid.UUID, actorID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status='APPROVED', approved_by=$2, approved_at=$3, updated_at=$3
WHERE id=$1 AND status='DRAFT'`, id, actorID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyApproved
	}
	return nil
}
