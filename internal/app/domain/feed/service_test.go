package feed

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/domain/events"
	"github.com/swipedeck/swipedeck/internal/app/domain/recommend"
	"github.com/swipedeck/swipedeck/internal/app/models"
	"github.com/swipedeck/swipedeck/internal/pkg/cache"
)

type mockEventsRepo struct {
	mock.Mock
}

func (m *mockEventsRepo) GetByIDs(ctx context.Context, ids []int64, p events.QueryParams) ([]models.Event, error) {
	args := m.Called(ctx, ids, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *mockEventsRepo) RandomWithin(ctx context.Context, p events.QueryParams, exclude []int64, limit int) ([]models.Event, error) {
	args := m.Called(ctx, p, exclude, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *mockEventsRepo) CountWithin(ctx context.Context, p events.QueryParams) (int, error) {
	args := m.Called(ctx, p)
	return args.Int(0), args.Error(1)
}

func (m *mockEventsRepo) UnreadCount(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, maxDaysOld int, now time.Time) (int, error) {
	args := m.Called(ctx, userID, center, radiusMiles, maxDaysOld, now)
	return args.Int(0), args.Error(1)
}

func (m *mockEventsRepo) GetByID(ctx context.Context, eventID int64, userID uuid.UUID) (*models.Event, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *mockEventsRepo) ListByStatus(ctx context.Context, userID uuid.UUID, list events.StatusList, limit, offset int) ([]models.Event, int, error) {
	args := m.Called(ctx, userID, list, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.Event), args.Int(1), args.Error(2)
}

type mockPoolRepo struct {
	mock.Mock
	replaced chan []int64
}

func newMockPoolRepo() *mockPoolRepo {
	return &mockPoolRepo{replaced: make(chan []int64, 1)}
}

func (m *mockPoolRepo) GetQueue(ctx context.Context, userID uuid.UUID) (*models.RecommendationQueue, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RecommendationQueue), args.Error(1)
}

func (m *mockPoolRepo) ReplaceQueue(ctx context.Context, userID uuid.UUID, eventIDs []int64) error {
	args := m.Called(ctx, userID, eventIDs)
	select {
	case m.replaced <- eventIDs:
	default:
	}
	return args.Error(0)
}

type countingTrigger struct {
	fires atomic.Int64
}

func (t *countingTrigger) Fire(context.Context, uuid.UUID, models.Coordinate, float64) bool {
	t.fires.Add(1)
	return true
}

func eventList(ids ...int64) []models.Event {
	evs := make([]models.Event, len(ids))
	for i, id := range ids {
		evs[i] = models.Event{ID: id, Name: "event"}
	}
	return evs
}

func queueOf(userID uuid.UUID, ids ...int64) *models.RecommendationQueue {
	return &models.RecommendationQueue{ID: uuid.New(), UserID: userID, EventIDs: ids, LastUpdated: time.Now()}
}

func newTestService(evRepo events.Repository, poolRepo recommend.Repository, trigger recommend.Trigger) *ServiceImpl {
	return NewService(evRepo, poolRepo, recommend.NewUserLocks(), trigger, cache.NewLocationCounts(nil), zap.NewNop())
}

func awaitReplace(t *testing.T, ch <-chan []int64) []int64 {
	t.Helper()
	select {
	case ids := <-ch:
		return ids
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pool remainder persist")
		return nil
	}
}

func TestBatchFetchServesPoolOnly(t *testing.T) {
	evRepo := new(mockEventsRepo)
	poolRepo := newMockPoolRepo()
	trigger := &countingTrigger{}
	svc := newTestService(evRepo, poolRepo, trigger)

	userID := uuid.New()
	// 60 ids in the pool keeps it above the thin threshold.
	ids := make([]int64, 60)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	poolRepo.On("GetQueue", mock.Anything, userID).Return(queueOf(userID, ids...), nil)
	evRepo.On("GetByIDs", mock.Anything, ids[:10], mock.Anything).Return(eventList(ids[:10]...), nil)
	poolRepo.On("ReplaceQueue", mock.Anything, userID, mock.Anything).Return(nil)

	got, err := svc.BatchFetch(context.Background(), userID, models.DefaultLocation, 100, "All", 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, ev := range got {
		assert.Equal(t, ids[i], ev.ID)
	}

	remainder := awaitReplace(t, poolRepo.replaced)
	assert.Equal(t, ids[10:], remainder)

	assert.EqualValues(t, 0, trigger.fires.Load())
	evRepo.AssertNotCalled(t, "RandomWithin", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchFetchEmptyPoolFallsBack(t *testing.T) {
	evRepo := new(mockEventsRepo)
	poolRepo := newMockPoolRepo()
	trigger := &countingTrigger{}
	svc := newTestService(evRepo, poolRepo, trigger)

	userID := uuid.New()

	// Empty pool, five events in radius, limit ten: everything comes from
	// the fallback and exactly one backfill fires.
	poolRepo.On("GetQueue", mock.Anything, userID).Return(nil, nil)
	evRepo.On("RandomWithin", mock.Anything, mock.Anything, []int64(nil), 10).Return(eventList(3, 7, 1, 9, 4), nil)

	got, err := svc.BatchFetch(context.Background(), userID, models.DefaultLocation, 100, "All", 10)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.EqualValues(t, 1, trigger.fires.Load())
	evRepo.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchFetchTopsUpThinPool(t *testing.T) {
	evRepo := new(mockEventsRepo)
	poolRepo := newMockPoolRepo()
	trigger := &countingTrigger{}
	svc := newTestService(evRepo, poolRepo, trigger)

	userID := uuid.New()

	// Three pool ids, only two survive the predicates. The authoritative
	// count refreshes the cache and the fallback tops up to the limit,
	// excluding what was already assembled.
	poolRepo.On("GetQueue", mock.Anything, userID).Return(queueOf(userID, 11, 12, 13), nil)
	evRepo.On("GetByIDs", mock.Anything, []int64{11, 12, 13}, mock.Anything).Return(eventList(11, 13), nil)
	poolRepo.On("ReplaceQueue", mock.Anything, userID, mock.Anything).Return(nil)
	evRepo.On("CountWithin", mock.Anything, mock.Anything).Return(42, nil)
	evRepo.On("RandomWithin", mock.Anything, mock.Anything, []int64{11, 13}, 3).Return(eventList(20, 21, 22), nil)

	got, err := svc.BatchFetch(context.Background(), userID, models.DefaultLocation, 100, "All", 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	// Pool-sourced events come first.
	assert.Equal(t, int64(11), got[0].ID)
	assert.Equal(t, int64(13), got[1].ID)

	awaitReplace(t, poolRepo.replaced)
	// Thin pool plus low authoritative count still fires exactly once.
	assert.EqualValues(t, 1, trigger.fires.Load())
	evRepo.AssertExpectations(t)
}

func TestBatchFetchRemainderVisibleToNextRead(t *testing.T) {
	evRepo := new(mockEventsRepo)
	poolRepo := newMockPoolRepo()
	trigger := &countingTrigger{}
	svc := newTestService(evRepo, poolRepo, trigger)

	userID := uuid.New()
	ids := make([]int64, 60)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	first := queueOf(userID, ids...)
	second := queueOf(userID, ids[10:]...)

	poolRepo.On("GetQueue", mock.Anything, userID).Return(first, nil).Once()
	poolRepo.On("GetQueue", mock.Anything, userID).Return(second, nil).Once()
	evRepo.On("GetByIDs", mock.Anything, ids[:10], mock.Anything).Return(eventList(ids[:10]...), nil).Once()
	evRepo.On("GetByIDs", mock.Anything, ids[10:20], mock.Anything).Return(eventList(ids[10:20]...), nil).Once()
	poolRepo.On("ReplaceQueue", mock.Anything, userID, mock.Anything).Return(nil)

	_, err := svc.BatchFetch(context.Background(), userID, models.DefaultLocation, 100, "All", 10)
	require.NoError(t, err)

	// The second fetch must observe the remainder, never the original
	// front: the per-user lock orders persist before the next read.
	got, err := svc.BatchFetch(context.Background(), userID, models.DefaultLocation, 100, "All", 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, ids[10], got[0].ID)
}

func TestRandomFetchPrefersPoolOrder(t *testing.T) {
	evRepo := new(mockEventsRepo)
	poolRepo := newMockPoolRepo()
	trigger := &countingTrigger{}
	svc := newTestService(evRepo, poolRepo, trigger)

	userID := uuid.New()

	// Queue serves 5 before 2 even though id order is ascending.
	poolRepo.On("GetQueue", mock.Anything, userID).Return(queueOf(userID, 5, 2), nil)
	evRepo.On("GetByIDs", mock.Anything, []int64{5, 2}, mock.Anything).Return(eventList(2, 5), nil)

	got, err := svc.RandomFetch(context.Background(), userID, models.DefaultLocation, 100, "All")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.ID)
}

func TestRandomFetchExhaustedGeography(t *testing.T) {
	evRepo := new(mockEventsRepo)
	poolRepo := newMockPoolRepo()
	trigger := &countingTrigger{}
	svc := newTestService(evRepo, poolRepo, trigger)

	userID := uuid.New()

	poolRepo.On("GetQueue", mock.Anything, userID).Return(nil, nil)
	evRepo.On("RandomWithin", mock.Anything, mock.Anything, []int64(nil), 50).Return([]models.Event{}, nil)

	_, err := svc.RandomFetch(context.Background(), userID, models.DefaultLocation, 100, "All")
	assert.ErrorIs(t, err, models.ErrNoEventsInRadius)
}

func TestBatchFetchZeroLimit(t *testing.T) {
	evRepo := new(mockEventsRepo)
	poolRepo := newMockPoolRepo()
	svc := newTestService(evRepo, poolRepo, &countingTrigger{})

	got, err := svc.BatchFetch(context.Background(), uuid.New(), models.DefaultLocation, 100, "All", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	poolRepo.AssertNotCalled(t, "GetQueue", mock.Anything, mock.Anything)
}
