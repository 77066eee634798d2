package adjustment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SavedEvent announces a created or updated draft for search reindexing.
type SavedEvent struct {
	ID     uuid.UUID
	Number string
}

// ApprovedEvent announces an approved adjustment whose deltas have been
// posted to the ledger.
type ApprovedEvent struct {
	ID          uuid.UUID
	Number      string
	WarehouseID int64
	Type        Type
	LineCount   int
	TotalValue  decimal.Decimal
	ApprovedAt  time.Time
}
