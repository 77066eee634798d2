package shared

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalAction enumerates approval log actions.
type ApprovalAction string

const (
	ApprovalSubmit  ApprovalAction = "SUBMIT"
	ApprovalApprove ApprovalAction = "APPROVE"
	ApprovalReject  ApprovalAction = "REJECT"
)

// ApprovalLog is one row of a document's approval trail.
type ApprovalLog struct {
	ID      int64
	Module  string
	RefID   uuid.UUID
	ActorID int64
	Action  ApprovalAction
	Note    string
	At      time.Time
}

func (l ApprovalLog) valid() error {
	switch {
	case l.Module == "":
		return errors.New("approval module required")
	case l.RefID == uuid.Nil:
		return errors.New("approval ref id required")
	case l.ActorID == 0:
		return errors.New("approval actor required")
	case l.Action == "":
		return errors.New("approval action required")
	}
	return nil
}

// ApprovalRecorder persists approval trails into the approvals table.
type ApprovalRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalRecorder constructs ApprovalRecorder.
func NewApprovalRecorder(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalRecorder {
	return &ApprovalRecorder{pool: pool, logger: logger}
}

// Record appends one entry to the trail.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	if err := log.valid(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO approvals (module, ref_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, log.Module, log.RefID, log.ActorID, string(log.Action), log.Note, log.At)
	if err != nil {
		r.logger.Error("record approval", slog.Any("error", err))
	}
	return err
}

// List returns the trail for one document, oldest first.
func (r *ApprovalRecorder) List(ctx context.Context, module string, ref uuid.UUID) ([]ApprovalLog, error) {
	if r == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, module, ref_id, actor_id, action, note, at
FROM approvals WHERE module=$1 AND ref_id=$2 ORDER BY at ASC`, module, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trail []ApprovalLog
	for rows.Next() {
		var entry ApprovalLog
		var action string
		if err := rows.Scan(&entry.ID, &entry.Module, &entry.RefID, &entry.ActorID, &action, &entry.Note, &entry.At); err != nil {
			return nil, err
		}
		entry.Action = ApprovalAction(action)
		trail = append(trail, entry)
	}
	return trail, rows.Err()
}

// EnsureSubmit records the SUBMIT entry once; a trail that already has one
// is left alone, so repeated draft saves do not pile up submit rows.
func (r *ApprovalRecorder) EnsureSubmit(ctx context.Context, module string, ref uuid.UUID, actorID int64, note string) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO approvals (module, ref_id, actor_id, action, note, at)
SELECT $1, $2, $3, 'SUBMIT', $4, NOW()
WHERE NOT EXISTS (SELECT 1 FROM approvals WHERE module=$1 AND ref_id=$2 AND action='SUBMIT')`,
		module, ref, actorID, note)
	if err != nil {
		r.logger.Error("ensure submit approval", slog.Any("error", err))
	}
	return err
}
