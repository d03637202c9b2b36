package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/models"
)

// Service is the interaction ledger. RecordAction covers the
// state-changing swipe actions; Unsave is its own operation because it
// is the only transactional, decrementing path.
type Service interface {
	RecordAction(ctx context.Context, userID uuid.UUID, eventID int64, action models.ActionType) (*models.UserEventStatus, error)
	Unsave(ctx context.Context, userID uuid.UUID, eventID int64) (*models.UserEventStatus, error)
}

type ServiceImpl struct {
	logger *zap.Logger
	repo   Repository
}

var _ Service = (*ServiceImpl)(nil)

func NewService(repo Repository, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// RecordAction applies a swipe action to the per-user status row. The
// status upsert is the authoritative write; the audit log append and the
// global aggregate bump happen asynchronously and never fail the request.
func (s *ServiceImpl) RecordAction(ctx context.Context, userID uuid.UUID, eventID int64, action models.ActionType) (*models.UserEventStatus, error) {
	if !action.Valid() || action == models.ActionUnsaved {
		return nil, fmt.Errorf("%w: action %q", models.ErrValidation, action)
	}

	exists, err := s.repo.EventExists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check event %d: %w", eventID, err)
	}
	if !exists {
		return nil, models.ErrNotFound
	}

	now := time.Now().UTC()
	status, err := s.repo.ApplyAction(ctx, userID, eventID, action, now)
	if err != nil {
		return nil, err
	}

	// ATTENDING is a toggle, so the aggregate moves in whichever
	// direction the flag landed.
	delta := 1
	if action == models.ActionAttending && !status.Attending {
		delta = -1
	}

	bgCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.repo.AppendAction(bgCtx, userID, eventID, action, now); err != nil {
			s.logger.Warn("Failed to append interaction action",
				zap.String("userID", userID.String()),
				zap.Int64("eventID", eventID),
				zap.String("action", string(action)),
				zap.Error(err))
		}
		if err := s.repo.BumpGlobalCounts(bgCtx, eventID, action, delta, now); err != nil {
			s.logger.Warn("Failed to bump global interaction counts",
				zap.Int64("eventID", eventID),
				zap.String("action", string(action)),
				zap.Error(err))
		}
	}()

	return status, nil
}

// Unsave clears the saved flag. Missing events return ErrNotFound; a row
// that is already unsaved (or was never saved) comes back unchanged.
func (s *ServiceImpl) Unsave(ctx context.Context, userID uuid.UUID, eventID int64) (*models.UserEventStatus, error) {
	exists, err := s.repo.EventExists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to check event %d: %w", eventID, err)
	}
	if !exists {
		return nil, models.ErrNotFound
	}

	return s.repo.Unsave(ctx, userID, eventID, time.Now().UTC())
}
