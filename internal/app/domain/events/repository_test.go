package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/models"
)

var eventCols = []string{
	"id", "name", "description", "venue_name", "start_date_time",
	"longitude", "latitude", "image_data", "metadata", "created_at", "distance",
}

func fptr(v float64) *float64 { return &v }

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock requires the
// expected argument count to match even when the values are not checked.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *RepositoryImpl) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewRepository(pool, zap.NewNop())
}

func servableParams(userID uuid.UUID, now time.Time) QueryParams {
	return QueryParams{
		UserID:      userID,
		Center:      models.Coordinate{Latitude: 26.12, Longitude: -80.13},
		RadiusMiles: 100,
		Filter:      ParseFilter("", now),
		Now:         now,
	}
}

func TestGetByIDsExcludesInteractedAndOrdersAscending(t *testing.T) {
	pool, repo := newMockRepo(t)

	userID := uuid.New()
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	start := now.Add(48 * time.Hour)

	rows := pgxmock.NewRows(eventCols).
		AddRow(int64(7), "Art Walk", "", "Warehouse District", start,
			fptr(-80.14), fptr(26.12), []byte(`{"selectedImg":"https://img/7.jpg"}`), []byte(`{}`), now, 1.2).
		AddRow(int64(9), "Night Market", "", "", start,
			fptr(-80.15), fptr(26.13), []byte(`{}`), []byte(`{}`), now, 2.4)

	// Archived or saved rows must never come back, and pool hydration is
	// ascending-id regardless of the order the ids were passed in.
	pool.ExpectQuery(`(?s)NOT EXISTS.*s\.archived OR s\.saved.*ORDER BY e\.id ASC`).
		WithArgs(anyArgs(10)...).
		WillReturnRows(rows)

	evs, err := repo.GetByIDs(context.Background(), []int64{9, 7}, servableParams(userID, now))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, int64(7), evs[0].ID)
	assert.Equal(t, int64(9), evs[1].ID)
	assert.Equal(t, "https://img/7.jpg", evs[0].ImageURL)
	require.NotNil(t, evs[0].Geolocation)
	assert.InDelta(t, 26.12, evs[0].Geolocation.Latitude, 1e-9)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestGetByIDsEmptySkipsQuery(t *testing.T) {
	pool, repo := newMockRepo(t)

	evs, err := repo.GetByIDs(context.Background(), nil, servableParams(uuid.New(), time.Now()))
	require.NoError(t, err)
	assert.Nil(t, evs)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestCountWithinAppliesHaversineBound(t *testing.T) {
	pool, repo := newMockRepo(t)

	pool.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM events e.*asin\(sqrt\(least.*<= \$\d+`).
		WithArgs(anyArgs(6)...).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountWithin(context.Background(), servableParams(uuid.New(), time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	require.NoError(t, pool.ExpectationsWereMet())
}

func TestRandomWithinExcludesServedIDs(t *testing.T) {
	pool, repo := newMockRepo(t)

	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)

	rows := pgxmock.NewRows(eventCols).
		AddRow(int64(21), "Beach Cleanup", "", "", start,
			fptr(-80.11), fptr(26.10), []byte(`{}`), []byte(`{}`), now, 4.7)

	pool.ExpectQuery(`(?s)NOT \(e\.id = ANY\(.*ORDER BY random\(\)`).
		WithArgs(anyArgs(10)...).
		WillReturnRows(rows)

	evs, err := repo.RandomWithin(context.Background(), servableParams(uuid.New(), now), []int64{7, 9}, 5)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, int64(21), evs[0].ID)
	require.NoError(t, pool.ExpectationsWereMet())
}
