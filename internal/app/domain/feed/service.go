package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/domain/events"
	"github.com/swipedeck/swipedeck/internal/app/domain/recommend"
	"github.com/swipedeck/swipedeck/internal/app/models"
	"github.com/swipedeck/swipedeck/internal/app/observability/metrics"
	"github.com/swipedeck/swipedeck/internal/pkg/cache"
)

// Backfill heuristics: a cached or pool count under poolLowThreshold is
// "thin"; an authoritative in-radius count under countLowThreshold means
// the recommender should widen its net.
const (
	poolLowThreshold  = 50
	countLowThreshold = 100
)

// Service assembles the swipe feed: recommendation pool first, random
// geo-filtered fallback second, with asynchronous backfill when either
// source runs thin.
type Service interface {
	BatchFetch(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, filter string, limit int) ([]models.Event, error)
	RandomFetch(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, filter string) (*models.Event, error)
	UnreadCount(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, maxDaysOld int) (int, error)
	GetEvent(ctx context.Context, eventID int64, userID uuid.UUID) (*models.Event, error)
}

type ServiceImpl struct {
	logger  *zap.Logger
	events  events.Repository
	pool    recommend.Repository
	locks   *recommend.UserLocks
	trigger recommend.Trigger
	counts  *cache.LocationCounts
	now     func() time.Time
}

var _ Service = (*ServiceImpl)(nil)

func NewService(
	eventsRepo events.Repository,
	poolRepo recommend.Repository,
	locks *recommend.UserLocks,
	trigger recommend.Trigger,
	counts *cache.LocationCounts,
	logger *zap.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		events:  eventsRepo,
		pool:    poolRepo,
		locks:   locks,
		trigger: trigger,
		counts:  counts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BatchFetch returns up to limit servable events: pool-sourced events in
// ascending-id order first, then randomly-ordered fallback events. The
// backfill trigger fires at most once per call, after assembly.
func (s *ServiceImpl) BatchFetch(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, filter string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		return []models.Event{}, nil
	}

	now := s.now()
	params := events.QueryParams{
		UserID:      userID,
		Center:      center,
		RadiusMiles: radiusMiles,
		Filter:      events.ParseFilter(filter, now),
		Now:         now,
	}

	backfillNeeded := false

	cacheKey := cache.Key(center.Latitude, center.Longitude, radiusMiles)
	if entry, ok := s.counts.Get(cacheKey); ok {
		if m := metrics.TryGet(); m != nil {
			m.LocationCacheHitsTotal.Add(ctx, 1)
		}
		if entry.Count < poolLowThreshold {
			backfillNeeded = true
		}
	}

	assembled, poolServed, err := s.takeFromPool(ctx, userID, params, limit, &backfillNeeded)
	if err != nil {
		return nil, err
	}

	// Pool ids that fell outside radius/filter mean the cached heuristic
	// is suspect: refresh it with an authoritative count. Advisory only,
	// so a failure here is logged, not surfaced.
	if poolServed > 0 && len(assembled) < limit {
		if count, countErr := s.events.CountWithin(ctx, params); countErr != nil {
			s.logger.Warn("Failed to refresh location count cache", zap.Error(countErr))
		} else {
			s.counts.Set(cacheKey, count)
			if count < countLowThreshold {
				backfillNeeded = true
			}
		}
	}

	fallbackServed := 0
	if len(assembled) < limit {
		exclude := eventIDsOf(assembled)
		fallback, err := s.events.RandomWithin(ctx, params, exclude, limit-len(assembled))
		if err != nil {
			return nil, fmt.Errorf("fallback query failed: %w", err)
		}
		fallbackServed = len(fallback)
		assembled = append(assembled, fallback...)
		if len(assembled) < limit {
			backfillNeeded = true
		}
	}

	if backfillNeeded {
		if s.trigger.Fire(ctx, userID, center, radiusMiles) {
			if m := metrics.TryGet(); m != nil {
				m.BackfillTriggersTotal.Add(ctx, 1)
			}
		}
	}

	if m := metrics.TryGet(); m != nil {
		m.FeedBatchTotal.Add(ctx, 1)
		m.FeedPoolServedTotal.Add(ctx, int64(len(assembled)-fallbackServed))
		m.FeedFallbackServedTotal.Add(ctx, int64(fallbackServed))
		m.LocationCacheEntries.Record(ctx, int64(s.counts.Len()))
	}

	if assembled == nil {
		assembled = []models.Event{}
	}
	return assembled, nil
}

// takeFromPool slices up to limit ids off the queue front, loads the
// matching servable rows, and persists the remainder asynchronously. The
// per-user lock is released by the persist goroutine, so the write is
// ordered before the next read for this user. poolServed is the number of
// ids taken, not the rows returned.
func (s *ServiceImpl) takeFromPool(ctx context.Context, userID uuid.UUID, params events.QueryParams, limit int, backfillNeeded *bool) ([]models.Event, int, error) {
	unlock := s.locks.Lock(userID)

	queue, err := s.pool.GetQueue(ctx, userID)
	if err != nil {
		unlock()
		return nil, 0, fmt.Errorf("pool read failed: %w", err)
	}

	if queue == nil || len(queue.EventIDs) < poolLowThreshold {
		*backfillNeeded = true
	}
	if queue == nil || len(queue.EventIDs) == 0 {
		unlock()
		return nil, 0, nil
	}

	take := limit
	if take > len(queue.EventIDs) {
		take = len(queue.EventIDs)
	}
	taken := queue.EventIDs[:take]
	remainder := append([]int64(nil), queue.EventIDs[take:]...)

	assembled, err := s.events.GetByIDs(ctx, taken, params)
	if err != nil {
		unlock()
		return nil, 0, fmt.Errorf("pool event load failed: %w", err)
	}

	bgCtx := context.WithoutCancel(ctx)
	go func() {
		defer unlock()
		if err := s.pool.ReplaceQueue(bgCtx, userID, remainder); err != nil {
			s.logger.Error("Failed to persist pool remainder",
				zap.String("userID", userID.String()),
				zap.Error(err))
		}
	}()

	return assembled, take, nil
}

// RandomFetch serves a single event: the first pool id that survives the
// predicates, else one random fallback candidate. Returns
// models.ErrNoEventsInRadius when the geography is exhausted. Unlike
// BatchFetch it peeks the pool without consuming it.
func (s *ServiceImpl) RandomFetch(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, filter string) (*models.Event, error) {
	now := s.now()
	params := events.QueryParams{
		UserID:      userID,
		Center:      center,
		RadiusMiles: radiusMiles,
		Filter:      events.ParseFilter(filter, now),
		Now:         now,
	}

	backfillNeeded := false

	queue, err := s.pool.GetQueue(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("pool read failed: %w", err)
	}
	if queue == nil || len(queue.EventIDs) < poolLowThreshold {
		backfillNeeded = true
	}

	defer func() {
		if backfillNeeded {
			s.trigger.Fire(ctx, userID, center, radiusMiles)
		}
	}()

	if queue != nil && len(queue.EventIDs) > 0 {
		candidates, err := s.events.GetByIDs(ctx, queue.EventIDs, params)
		if err != nil {
			return nil, fmt.Errorf("pool event load failed: %w", err)
		}
		if ev := firstInPoolOrder(queue.EventIDs, candidates); ev != nil {
			return ev, nil
		}
	}

	fallback, err := s.events.RandomWithin(ctx, params, nil, poolLowThreshold)
	if err != nil {
		return nil, fmt.Errorf("fallback query failed: %w", err)
	}
	if len(fallback) == 0 {
		backfillNeeded = true
		return nil, models.ErrNoEventsInRadius
	}
	// Rows arrive in random order, so the head is a uniform pick.
	return &fallback[0], nil
}

// UnreadCount counts servable events the user has not yet seen or acted
// on, optionally bounded to the next maxDaysOld days.
func (s *ServiceImpl) UnreadCount(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, maxDaysOld int) (int, error) {
	return s.events.UnreadCount(ctx, userID, center, radiusMiles, maxDaysOld, s.now())
}

// GetEvent loads one event with the user's status flags merged in.
func (s *ServiceImpl) GetEvent(ctx context.Context, eventID int64, userID uuid.UUID) (*models.Event, error) {
	return s.events.GetByID(ctx, eventID, userID)
}

func eventIDsOf(evs []models.Event) []int64 {
	if len(evs) == 0 {
		return nil
	}
	ids := make([]int64, len(evs))
	for i, ev := range evs {
		ids[i] = ev.ID
	}
	return ids
}

// firstInPoolOrder picks the candidate whose id appears earliest in the
// queue; GetByIDs returns ascending-id order, not serving order.
func firstInPoolOrder(queueIDs []int64, candidates []models.Event) *models.Event {
	if len(candidates) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Event, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}
	for _, id := range queueIDs {
		if ev, ok := byID[id]; ok {
			return ev
		}
	}
	return nil
}
