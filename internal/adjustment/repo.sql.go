package adjustment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-erp/lumbung-erp/internal/inventory"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/db"
)

// Repository persists adjustments in PostgreSQL.
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

// Ledger shares this transaction with the stock ledger, so approval's
// movements commit or roll back together with the status flip.
func (r *txRepository) Ledger() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("adjustment repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const headerColumns = `a.id, a.number, a.warehouse_id, a.adjustment_type, a.reason, a.adjustment_date, a.notes,
a.status, a.total_value, a.created_by, a.created_at, a.updated_at, a.approved_by, a.approved_at`

func scanHeader(row pgx.Row) (Adjustment, error) {
	var (
		adj     Adjustment
		adjType string
		reason  string
		status  string
	)
	err := row.Scan(&adj.ID, &adj.Number, &adj.WarehouseID, &adjType, &reason, &adj.AdjustmentDate, &adj.Notes,
		&status, &adj.TotalValue, &adj.CreatedBy, &adj.CreatedAt, &adj.UpdatedAt, &adj.ApprovedBy, &adj.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Adjustment{}, ErrNotFound
		}
		return Adjustment{}, err
	}
	adj.Type = Type(adjType)
	adj.Reason = Reason(reason)
	adj.Status = Status(status)
	return adj, nil
}

func loadLines(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, adjID uuid.UUID) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT l.id, l.product_id, p.code, p.name, l.quantity, l.unit_cost, l.batch_id, l.notes
FROM adjustment_lines l
JOIN products p ON p.id = l.product_id
WHERE l.adjustment_id = $1
ORDER BY l.id ASC`, adjID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LineItem
	for rows.Next() {
		var l LineItem
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductCode, &l.ProductName, &l.Quantity, &l.UnitCost, &l.BatchID, &l.Notes); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get loads one adjustment with its lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Adjustment, error) {
	if r == nil {
		return Adjustment{}, errors.New("adjustment repository not initialised")
	}
	row := r.pool.QueryRow(ctx, `SELECT `+headerColumns+` FROM adjustments a WHERE a.id = $1`, id)
	adj, err := scanHeader(row)
	if err != nil {
		return Adjustment{}, err
	}
	adj.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return Adjustment{}, err
	}
	return adj, nil
}

// List returns adjustments matching the filter, newest first, plus the total
// count. Lines are not loaded for listings.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Adjustment, int, error) {
	if r == nil {
		return nil, 0, errors.New("adjustment repository not initialised")
	}
	conds := []string{"1=1"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.WarehouseID != 0 {
		args = append(args, filter.WarehouseID)
		conds = append(conds, fmt.Sprintf("a.warehouse_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conds = append(conds, fmt.Sprintf("(a.number ILIKE $%d OR a.notes ILIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM adjustments a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+headerColumns+` FROM adjustments a WHERE `+where+
		fmt.Sprintf(` ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []Adjustment{}
	for rows.Next() {
		adj, err := scanHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *txRepository) InsertHeader(ctx context.Context, adj *Adjustment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO adjustments
(id, number, warehouse_id, adjustment_type, reason, adjustment_date, notes, status, total_value, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		adj.ID, adj.Number, adj.WarehouseID, string(adj.Type), string(adj.Reason), adj.AdjustmentDate, adj.Notes,
		string(adj.Status), adj.TotalValue, adj.CreatedBy, adj.CreatedAt, adj.UpdatedAt)
	return err
}

func (r *txRepository) UpdateHeader(ctx context.Context, adj Adjustment) error {
	tag, err := r.tx.Exec(ctx, `UPDATE adjustments SET notes=$2, total_value=$3, updated_at=$4 WHERE id=$1 AND status='DRAFT'`,
		adj.ID, adj.Notes, adj.TotalValue, adj.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (r *txRepository) InsertLine(ctx context.Context, adjID uuid.UUID, line *LineItem) error {
	return r.tx.QueryRow(ctx, `INSERT INTO adjustment_lines (adjustment_id, product_id, quantity, unit_cost, batch_id, notes)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		adjID, line.ProductID, line.Quantity, line.UnitCost, line.BatchID, line.Notes).Scan(&line.ID)
}

func (r *txRepository) UpdateLine(ctx context.Context, line LineItem) error {
	tag, err := r.tx.Exec(ctx, `UPDATE adjustment_lines SET quantity=$2, unit_cost=$3, batch_id=$4, notes=$5 WHERE id=$1`,
		line.ID, line.Quantity, line.UnitCost, line.BatchID, line.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *txRepository) DeleteLinesExcept(ctx context.Context, adjID uuid.UUID, keepIDs []int64) error {
	if len(keepIDs) == 0 {
		_, err := r.tx.Exec(ctx, `DELETE FROM adjustment_lines WHERE adjustment_id=$1`, adjID)
		return err
	}
	_, err := r.tx.Exec(ctx, `DELETE FROM adjustment_lines WHERE adjustment_id=$1 AND NOT (id = ANY($2))`, adjID, keepIDs)
	return err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (Adjustment, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+headerColumns+` FROM adjustments a WHERE a.id = $1 FOR UPDATE`, id)
	adj, err := scanHeader(row)
	if err != nil {
		return Adjustment{}, err
	}
	adj.Lines, err = loadLines(ctx, r.tx, id)
	if err != nil {
		return Adjustment{}, err
	}
	return adj, nil
}

func (r *txRepository) MarkApproved(ctx context.Context, id uuid.UUID, actorID int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE adjustments SET status='APPROVED', approved_by=$2, approved_at=$3, updated_at=$3
WHERE id=$1 AND status='DRAFT'`, id, actorID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyApproved
	}
	return nil
}
