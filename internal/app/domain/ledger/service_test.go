package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/models"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) ApplyAction(ctx context.Context, userID uuid.UUID, eventID int64, action models.ActionType, now time.Time) (*models.UserEventStatus, error) {
	args := m.Called(ctx, userID, eventID, action, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEventStatus), args.Error(1)
}

func (m *mockRepository) AppendAction(ctx context.Context, userID uuid.UUID, eventID int64, action models.ActionType, now time.Time) error {
	args := m.Called(ctx, userID, eventID, action, now)
	return args.Error(0)
}

func (m *mockRepository) BumpGlobalCounts(ctx context.Context, eventID int64, action models.ActionType, delta int, now time.Time) error {
	args := m.Called(ctx, eventID, action, delta, now)
	return args.Error(0)
}

func (m *mockRepository) Unsave(ctx context.Context, userID uuid.UUID, eventID int64, now time.Time) (*models.UserEventStatus, error) {
	args := m.Called(ctx, userID, eventID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEventStatus), args.Error(1)
}

func (m *mockRepository) EventExists(ctx context.Context, eventID int64) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func waitForCall(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async side-effect")
	}
}

func TestRecordActionSave(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, zap.NewNop())

	userID := uuid.New()
	status := &models.UserEventStatus{UserID: userID, EventID: 42, Saved: true, SavedCount: 1}

	bumped := make(chan struct{})
	repo.On("EventExists", mock.Anything, int64(42)).Return(true, nil)
	repo.On("ApplyAction", mock.Anything, userID, int64(42), models.ActionSaved, mock.Anything).Return(status, nil)
	repo.On("AppendAction", mock.Anything, userID, int64(42), models.ActionSaved, mock.Anything).Return(nil)
	repo.On("BumpGlobalCounts", mock.Anything, int64(42), models.ActionSaved, 1, mock.Anything).
		Run(func(mock.Arguments) { close(bumped) }).Return(nil)

	got, err := svc.RecordAction(context.Background(), userID, 42, models.ActionSaved)
	require.NoError(t, err)
	assert.True(t, got.Saved)
	assert.Equal(t, 1, got.SavedCount)

	waitForCall(t, bumped)
	repo.AssertExpectations(t)
}

func TestRecordActionRejectsInvalid(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, zap.NewNop())

	_, err := svc.RecordAction(context.Background(), uuid.New(), 1, models.ActionType("BOGUS"))
	assert.ErrorIs(t, err, models.ErrValidation)

	// UNSAVED goes through Unsave, not RecordAction.
	_, err = svc.RecordAction(context.Background(), uuid.New(), 1, models.ActionUnsaved)
	assert.ErrorIs(t, err, models.ErrValidation)

	repo.AssertNotCalled(t, "ApplyAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordActionMissingEvent(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, zap.NewNop())

	repo.On("EventExists", mock.Anything, int64(7)).Return(false, nil)

	_, err := svc.RecordAction(context.Background(), uuid.New(), 7, models.ActionSaved)
	assert.ErrorIs(t, err, models.ErrNotFound)
	repo.AssertNotCalled(t, "ApplyAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordActionAttendingToggle(t *testing.T) {
	tests := []struct {
		name      string
		attending bool
		wantDelta int
	}{
		{name: "toggled on increments aggregate", attending: true, wantDelta: 1},
		{name: "toggled off decrements aggregate", attending: false, wantDelta: -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(mockRepository)
			svc := NewService(repo, zap.NewNop())

			userID := uuid.New()
			status := &models.UserEventStatus{UserID: userID, EventID: 9, Attending: tc.attending}

			bumped := make(chan struct{})
			repo.On("EventExists", mock.Anything, int64(9)).Return(true, nil)
			repo.On("ApplyAction", mock.Anything, userID, int64(9), models.ActionAttending, mock.Anything).Return(status, nil)
			repo.On("AppendAction", mock.Anything, userID, int64(9), models.ActionAttending, mock.Anything).Return(nil)
			repo.On("BumpGlobalCounts", mock.Anything, int64(9), models.ActionAttending, tc.wantDelta, mock.Anything).
				Run(func(mock.Arguments) { close(bumped) }).Return(nil)

			got, err := svc.RecordAction(context.Background(), userID, 9, models.ActionAttending)
			require.NoError(t, err)
			assert.Equal(t, tc.attending, got.Attending)

			waitForCall(t, bumped)
			repo.AssertExpectations(t)
		})
	}
}

func TestRecordActionSideEffectFailureDoesNotFailRequest(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, zap.NewNop())

	userID := uuid.New()
	status := &models.UserEventStatus{UserID: userID, EventID: 3, Shared: true, SharedCount: 1}

	bumped := make(chan struct{})
	repo.On("EventExists", mock.Anything, int64(3)).Return(true, nil)
	repo.On("ApplyAction", mock.Anything, userID, int64(3), models.ActionShared, mock.Anything).Return(status, nil)
	repo.On("AppendAction", mock.Anything, userID, int64(3), models.ActionShared, mock.Anything).
		Return(assert.AnError)
	repo.On("BumpGlobalCounts", mock.Anything, int64(3), models.ActionShared, 1, mock.Anything).
		Run(func(mock.Arguments) { close(bumped) }).Return(assert.AnError)

	got, err := svc.RecordAction(context.Background(), userID, 3, models.ActionShared)
	require.NoError(t, err)
	assert.True(t, got.Shared)

	waitForCall(t, bumped)
}

func TestUnsaveMissingEvent(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, zap.NewNop())

	repo.On("EventExists", mock.Anything, int64(11)).Return(false, nil)

	_, err := svc.Unsave(context.Background(), uuid.New(), 11)
	assert.ErrorIs(t, err, models.ErrNotFound)
	repo.AssertNotCalled(t, "Unsave", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUnsaveDelegatesToRepository(t *testing.T) {
	repo := new(mockRepository)
	svc := NewService(repo, zap.NewNop())

	userID := uuid.New()
	status := &models.UserEventStatus{UserID: userID, EventID: 11, Saved: false}

	repo.On("EventExists", mock.Anything, int64(11)).Return(true, nil)
	repo.On("Unsave", mock.Anything, userID, int64(11), mock.Anything).Return(status, nil)

	got, err := svc.Unsave(context.Background(), userID, 11)
	require.NoError(t, err)
	assert.False(t, got.Saved)
	repo.AssertExpectations(t)
}
