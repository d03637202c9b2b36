package recommend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/models"
)

// Repository stores the per-user recommendation queue. A missing queue is
// an empty pool, not an error.
type Repository interface {
	GetQueue(ctx context.Context, userID uuid.UUID) (*models.RecommendationQueue, error)
	ReplaceQueue(ctx context.Context, userID uuid.UUID, eventIDs []int64) error
}

type RepositoryImpl struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
}

var _ Repository = (*RepositoryImpl)(nil)

func NewRepository(pgpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *RepositoryImpl) GetQueue(ctx context.Context, userID uuid.UUID) (*models.RecommendationQueue, error) {
	query := `SELECT id, user_id, event_ids, last_updated FROM recommendation_queues WHERE user_id = $1`

	var q models.RecommendationQueue
	err := r.pgpool.QueryRow(ctx, query, userID).Scan(&q.ID, &q.UserID, &q.EventIDs, &q.LastUpdated)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query recommendation queue: %w", err)
	}
	return &q, nil
}

// ReplaceQueue overwrites the user's queue wholesale. The feed writes the
// remainder after taking from the front; the backfill writes merged ids.
func (r *RepositoryImpl) ReplaceQueue(ctx context.Context, userID uuid.UUID, eventIDs []int64) error {
	if eventIDs == nil {
		eventIDs = []int64{}
	}
	query := `
		INSERT INTO recommendation_queues (user_id, event_ids, last_updated)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET event_ids = EXCLUDED.event_ids, last_updated = now()`

	if _, err := r.pgpool.Exec(ctx, query, userID, eventIDs); err != nil {
		return fmt.Errorf("failed to replace recommendation queue: %w", err)
	}
	return nil
}
