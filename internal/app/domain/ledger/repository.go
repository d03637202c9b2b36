package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/models"
)

// DB is the slice of pgxpool.Pool the ledger needs; tests substitute a
// pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Repository persists per-user interaction state, the append-only action
// log and the best-effort global aggregate.
type Repository interface {
	ApplyAction(ctx context.Context, userID uuid.UUID, eventID int64, action models.ActionType, now time.Time) (*models.UserEventStatus, error)
	AppendAction(ctx context.Context, userID uuid.UUID, eventID int64, action models.ActionType, now time.Time) error
	BumpGlobalCounts(ctx context.Context, eventID int64, action models.ActionType, delta int, now time.Time) error
	Unsave(ctx context.Context, userID uuid.UUID, eventID int64, now time.Time) (*models.UserEventStatus, error)
	EventExists(ctx context.Context, eventID int64) (bool, error)
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool DB
}

var _ Repository = (*RepositoryImpl)(nil)

func NewRepository(pgpool DB, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

const statusColumns = "user_id, event_id, saved, archived, attending, shared, saved_count, shared_count, opened_count, last_interaction_date"

// ApplyAction upserts the status row for a state-changing action. The row
// is created on first interaction; existing rows get the flag set and the
// counter bumped. ATTENDING toggles instead of setting.
func (r *RepositoryImpl) ApplyAction(ctx context.Context, userID uuid.UUID, eventID int64, action models.ActionType, now time.Time) (*models.UserEventStatus, error) {
	var query string
	switch action {
	case models.ActionSaved:
		query = `
			INSERT INTO user_event_status (user_id, event_id, saved, saved_count, last_interaction_date)
			VALUES ($1, $2, TRUE, 1, $3)
			ON CONFLICT (user_id, event_id) DO UPDATE
			SET saved = TRUE,
			    saved_count = user_event_status.saved_count + 1,
			    last_interaction_date = $3
			RETURNING ` + statusColumns
	case models.ActionArchived:
		query = `
			INSERT INTO user_event_status (user_id, event_id, archived, last_interaction_date)
			VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (user_id, event_id) DO UPDATE
			SET archived = TRUE,
			    last_interaction_date = $3
			RETURNING ` + statusColumns
	case models.ActionShared:
		query = `
			INSERT INTO user_event_status (user_id, event_id, shared, shared_count, last_interaction_date)
			VALUES ($1, $2, TRUE, 1, $3)
			ON CONFLICT (user_id, event_id) DO UPDATE
			SET shared = TRUE,
			    shared_count = user_event_status.shared_count + 1,
			    last_interaction_date = $3
			RETURNING ` + statusColumns
	case models.ActionOpened:
		query = `
			INSERT INTO user_event_status (user_id, event_id, opened_count, last_interaction_date)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (user_id, event_id) DO UPDATE
			SET opened_count = user_event_status.opened_count + 1,
			    last_interaction_date = $3
			RETURNING ` + statusColumns
	case models.ActionAttending:
		// Toggle: flipping in the upsert keeps read-flip-persist atomic
		// at the single-row level the store guarantees.
		query = `
			INSERT INTO user_event_status (user_id, event_id, attending, last_interaction_date)
			VALUES ($1, $2, TRUE, $3)
			ON CONFLICT (user_id, event_id) DO UPDATE
			SET attending = NOT user_event_status.attending,
			    last_interaction_date = $3
			RETURNING ` + statusColumns
	default:
		return nil, fmt.Errorf("unsupported action %q", action)
	}

	status, err := scanStatus(r.pgpool.QueryRow(ctx, query, userID, eventID, now))
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s: %w", action, err)
	}
	return status, nil
}

func (r *RepositoryImpl) AppendAction(ctx context.Context, userID uuid.UUID, eventID int64, action models.ActionType, now time.Time) error {
	query := `INSERT INTO interaction_actions (user_id, event_id, action_type, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.pgpool.Exec(ctx, query, userID, eventID, string(action), now); err != nil {
		return fmt.Errorf("failed to append %s action: %w", action, err)
	}
	return nil
}

// BumpGlobalCounts adjusts the per-event aggregate. Counters floor at
// zero. Callers treat failures as best-effort.
func (r *RepositoryImpl) BumpGlobalCounts(ctx context.Context, eventID int64, action models.ActionType, delta int, now time.Time) error {
	var column string
	switch action {
	case models.ActionSaved, models.ActionUnsaved:
		column = "saved_count"
	case models.ActionShared:
		column = "shared_count"
	case models.ActionAttending:
		column = "attended_count"
	case models.ActionArchived:
		column = "archived_count"
	default:
		// OPENED has no global aggregate.
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO interaction_counts (event_id, %[1]s, last_updated)
		VALUES ($1, GREATEST($2, 0), $3)
		ON CONFLICT (event_id) DO UPDATE
		SET %[1]s = GREATEST(interaction_counts.%[1]s + $2, 0),
		    last_updated = $3`, column)

	if _, err := r.pgpool.Exec(ctx, query, eventID, delta, now); err != nil {
		return fmt.Errorf("failed to bump global %s: %w", column, err)
	}
	return nil
}

// Unsave runs the one cross-table transaction in the ledger: status
// update, global counter decrement and the audit row commit together.
func (r *RepositoryImpl) Unsave(ctx context.Context, userID uuid.UUID, eventID int64, now time.Time) (*models.UserEventStatus, error) {
	tx, err := r.pgpool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start unsave transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
			r.logger.Error("Failed to rollback unsave transaction", zap.Error(rollbackErr))
		}
	}()

	selectQuery := `SELECT ` + statusColumns + ` FROM user_event_status WHERE user_id = $1 AND event_id = $2 FOR UPDATE`
	status, err := scanStatus(tx.QueryRow(ctx, selectQuery, userID, eventID))

	switch {
	case err == pgx.ErrNoRows:
		// Nothing to unsave: create the row unsaved and log the action
		// anyway so the no-op is auditable.
		insertQuery := `
			INSERT INTO user_event_status (user_id, event_id, saved, last_interaction_date)
			VALUES ($1, $2, FALSE, $3)
			RETURNING ` + statusColumns
		status, err = scanStatus(tx.QueryRow(ctx, insertQuery, userID, eventID, now))
		if err != nil {
			return nil, fmt.Errorf("failed to create unsaved status row: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO interaction_actions (user_id, event_id, action_type, created_at) VALUES ($1, $2, $3, $4)`,
			userID, eventID, string(models.ActionUnsaved), now); err != nil {
			return nil, fmt.Errorf("failed to log unsaved action: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit unsave transaction: %w", err)
		}
		return status, nil

	case err != nil:
		return nil, fmt.Errorf("failed to query status for unsave: %w", err)
	}

	if !status.Saved {
		// Already unsaved: idempotent, return unchanged.
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit unsave transaction: %w", err)
		}
		return status, nil
	}

	updateQuery := `
		UPDATE user_event_status
		SET saved = FALSE,
		    saved_count = GREATEST(saved_count - 1, 0),
		    last_interaction_date = $3
		WHERE user_id = $1 AND event_id = $2
		RETURNING ` + statusColumns
	status, err = scanStatus(tx.QueryRow(ctx, updateQuery, userID, eventID, now))
	if err != nil {
		return nil, fmt.Errorf("failed to update status for unsave: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE interaction_counts
		SET saved_count = GREATEST(saved_count - 1, 0), last_updated = $2
		WHERE event_id = $1`, eventID, now); err != nil {
		return nil, fmt.Errorf("failed to decrement global saved count: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO interaction_actions (user_id, event_id, action_type, created_at) VALUES ($1, $2, $3, $4)`,
		userID, eventID, string(models.ActionUnsaved), now); err != nil {
		return nil, fmt.Errorf("failed to log unsaved action: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit unsave transaction: %w", err)
	}
	return status, nil
}

func (r *RepositoryImpl) EventExists(ctx context.Context, eventID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`
	if err := r.pgpool.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return exists, nil
}

func scanStatus(row pgx.Row) (*models.UserEventStatus, error) {
	var s models.UserEventStatus
	err := row.Scan(&s.UserID, &s.EventID, &s.Saved, &s.Archived, &s.Attending, &s.Shared,
		&s.SavedCount, &s.SharedCount, &s.OpenedCount, &s.LastInteractionDate)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
