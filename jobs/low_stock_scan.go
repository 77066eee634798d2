package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	// TaskLowStockScan flags warehouse/product pairs at or below the
	// reorder threshold.
	TaskLowStockScan = "inventory:low_stock_scan"
)

// LowStockScanPayload narrows the scan to one warehouse; zero scans all.
type LowStockScanPayload struct {
	WarehouseID int64 `json:"warehouse_id"`
}

// NewLowStockScanTask builds a scan task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanHandler walks stock balances against each product's reorder
// point and records the shortfalls. Findings land in low_stock_alerts where
// the purchasing screens pick them up.
func NewLowStockScanHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		rows, err := pool.Query(ctx, `SELECT b.warehouse_id, b.product_id, p.code, b.qty, p.reorder_point
FROM stock_balances b
JOIN products p ON p.id = b.product_id
WHERE p.is_active AND p.reorder_point > 0 AND b.qty <= p.reorder_point
AND ($1 = 0 OR b.warehouse_id = $1)`, payload.WarehouseID)
		if err != nil {
			return err
		}
		defer rows.Close()

		flagged := 0
		for rows.Next() {
			var (
				warehouseID, productID int64
				code                   string
				qty, reorderPoint      decimal.Decimal
			)
			if err := rows.Scan(&warehouseID, &productID, &code, &qty, &reorderPoint); err != nil {
				return err
			}
			if _, err := pool.Exec(ctx, `INSERT INTO low_stock_alerts (warehouse_id, product_id, qty, reorder_point, detected_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (warehouse_id, product_id) DO UPDATE SET qty=EXCLUDED.qty, reorder_point=EXCLUDED.reorder_point, detected_at=NOW()`,
				warehouseID, productID, qty, reorderPoint); err != nil {
				return err
			}
			flagged++
			logger.Warn("low stock",
				slog.Int64("warehouse_id", warehouseID),
				slog.String("product_code", code),
				slog.String("qty", qty.String()),
				slog.String("reorder_point", reorderPoint.String()))
		}
		if err := rows.Err(); err != nil {
			return err
		}
		logger.Info("low stock scan done", slog.Int("flagged", flagged), slog.Int64("warehouse_id", payload.WarehouseID))
		return nil
	}
}
