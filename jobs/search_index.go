package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchIndexer maintains the denormalised adjustment_search table used by
// list screens for free-text lookup.
type SearchIndexer struct {
	pool *pgxpool.Pool
}

// NewSearchIndexer constructs SearchIndexer.
func NewSearchIndexer(pool *pgxpool.Pool) *SearchIndexer {
	return &SearchIndexer{pool: pool}
}

// ReindexAdjustment rebuilds the search row for one adjustment from the
// current header, warehouse and line products.
func (s *SearchIndexer) ReindexAdjustment(ctx context.Context, id string) error {
	adjID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("jobs: parse adjustment id: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO adjustment_search (adjustment_id, haystack, refreshed_at)
SELECT a.id,
       lower(concat_ws(' ', a.number, a.reason, a.notes, w.name, string_agg(p.code || ' ' || p.name, ' '))),
       NOW()
FROM adjustments a
JOIN warehouses w ON w.id = a.warehouse_id
LEFT JOIN adjustment_lines l ON l.adjustment_id = a.id
LEFT JOIN products p ON p.id = l.product_id
WHERE a.id = $1
GROUP BY a.id, w.name
ON CONFLICT (adjustment_id) DO UPDATE SET haystack=EXCLUDED.haystack, refreshed_at=NOW()`, adjID)
	return err
}
