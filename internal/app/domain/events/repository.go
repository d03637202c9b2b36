package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/models"
	"github.com/swipedeck/swipedeck/internal/app/observability/metrics"
)

// DB is the pool surface the event store reads through; tests substitute
// a pgxmock pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QueryParams carries the shared predicate inputs for feed queries: the
// requesting user, the search center/radius and the parsed filter.
type QueryParams struct {
	UserID      uuid.UUID
	Center      models.Coordinate
	RadiusMiles float64
	Filter      Filter
	Now         time.Time
}

// StatusList selects which interaction listing to return.
type StatusList string

const (
	ListSaved    StatusList = "saved"
	ListArchived StatusList = "archived"
	ListHistory  StatusList = "history"
)

// Repository is the read side of the event store. Events are never
// written here; ingestion owns them.
type Repository interface {
	GetByIDs(ctx context.Context, ids []int64, p QueryParams) ([]models.Event, error)
	RandomWithin(ctx context.Context, p QueryParams, exclude []int64, limit int) ([]models.Event, error)
	CountWithin(ctx context.Context, p QueryParams) (int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, maxDaysOld int, now time.Time) (int, error)
	GetByID(ctx context.Context, eventID int64, userID uuid.UUID) (*models.Event, error)
	ListByStatus(ctx context.Context, userID uuid.UUID, list StatusList, limit, offset int) ([]models.Event, int, error)
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

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// observeQuery records duration and failure for a repository query on the
// DB instruments. No-op until observability is initialized.
func observeQuery(ctx context.Context, name string, start time.Time, err error) {
	m := metrics.TryGet()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("query", name))
	m.DBQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DBQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// haversineExpr evaluates the great-circle distance in miles between the
// event row and a query point, in SQL, so radius filtering happens at
// query time. Args: lat, lat, lon.
const haversineExpr = `(2 * 3958.8 * asin(sqrt(least(1::double precision, greatest(0::double precision,
	power(sin(radians((e.latitude - ?) / 2)), 2) +
	cos(radians(?)) * cos(radians(e.latitude)) *
	power(sin(radians((e.longitude - ?) / 2)), 2))))))`

const eventColumns = "e.id, e.name, e.description, e.venue_name, e.start_date_time, e.longitude, e.latitude, e.image_data, e.metadata, e.created_at"

// servablePredicates applies the invariant feed conditions: future start,
// present geolocation, not archived/saved by the user, matching filter,
// and within radius.
func servablePredicates(b sq.SelectBuilder, p QueryParams) sq.SelectBuilder {
	b = b.Where(sq.Expr("e.start_date_time > ?", p.Now)).
		Where("e.latitude IS NOT NULL AND e.longitude IS NOT NULL").
		Where(sq.Expr(`NOT EXISTS (
			SELECT 1 FROM user_event_status s
			WHERE s.user_id = ? AND s.event_id = e.id AND (s.archived OR s.saved))`, p.UserID))

	if p.Filter.Category != "" {
		b = b.Where(sq.Expr("jsonb_exists(e.metadata -> 'eventTags' -> 'Categories', ?)", p.Filter.Category))
	}
	if p.Filter.Start != nil && p.Filter.End != nil {
		b = b.Where(sq.Expr("e.start_date_time BETWEEN ? AND ?", *p.Filter.Start, *p.Filter.End))
	}

	lat, lon := p.Center.Latitude, p.Center.Longitude
	b = b.Where(sq.Expr(haversineExpr+" <= ?", lat, lat, lon, p.RadiusMiles))
	return b
}

func (r *RepositoryImpl) selectWithDistance(p QueryParams) sq.SelectBuilder {
	lat, lon := p.Center.Latitude, p.Center.Longitude
	b := psql.Select(eventColumns).
		Column(sq.Expr(haversineExpr+" AS distance", lat, lat, lon)).
		From("events e")
	return servablePredicates(b, p)
}

// GetByIDs loads the full rows for the given pool-sourced ids that still
// satisfy the feed predicates, ordered by ascending id for determinism.
func (r *RepositoryImpl) GetByIDs(ctx context.Context, ids []int64, p QueryParams) (evs []models.Event, err error) {
	if len(ids) == 0 {
		return nil, nil
	}
	defer func(start time.Time) { observeQuery(ctx, "events.get_by_ids", start, err) }(time.Now())

	query, args, err := r.selectWithDistance(p).
		Where(sq.Expr("e.id = ANY(?)", ids)).
		OrderBy("e.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build events-by-ids query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by ids: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// RandomWithin returns up to limit servable events in random order,
// excluding ids already assembled by the caller.
func (r *RepositoryImpl) RandomWithin(ctx context.Context, p QueryParams, exclude []int64, limit int) (evs []models.Event, err error) {
	if limit <= 0 {
		return nil, nil
	}
	defer func(start time.Time) { observeQuery(ctx, "events.random_within", start, err) }(time.Now())

	b := r.selectWithDistance(p)
	if len(exclude) > 0 {
		b = b.Where(sq.Expr("NOT (e.id = ANY(?))", exclude))
	}

	query, args, err := b.OrderBy("random()").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build random events query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query random events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountWithin is the authoritative count of servable events for the
// location/filter, used to refresh the heuristic cache.
func (r *RepositoryImpl) CountWithin(ctx context.Context, p QueryParams) (count int, err error) {
	defer func(start time.Time) { observeQuery(ctx, "events.count_within", start, err) }(time.Now())

	b := servablePredicates(psql.Select("COUNT(*)").From("events e"), p)

	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// UnreadCount counts upcoming events within radius that the user has
// neither archived, saved, nor opened. maxDaysOld <= 0 means no upper
// bound on the start time.
func (r *RepositoryImpl) UnreadCount(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64, maxDaysOld int, now time.Time) (count int, err error) {
	defer func(start time.Time) { observeQuery(ctx, "events.unread_count", start, err) }(time.Now())

	lat, lon := center.Latitude, center.Longitude
	b := psql.Select("COUNT(*)").From("events e").
		Where(sq.Expr("e.start_date_time > ?", now)).
		Where("e.latitude IS NOT NULL AND e.longitude IS NOT NULL").
		Where(sq.Expr(`NOT EXISTS (
			SELECT 1 FROM user_event_status s
			WHERE s.user_id = ? AND s.event_id = e.id
			  AND (s.archived OR s.saved OR s.opened_count > 0))`, userID)).
		Where(sq.Expr(haversineExpr+" <= ?", lat, lat, lon, radiusMiles))

	if maxDaysOld > 0 {
		b = b.Where(sq.Expr("e.start_date_time < ?", now.AddDate(0, 0, maxDaysOld)))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build unread count query: %w", err)
	}

	if err := r.pgpool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread events: %w", err)
	}
	return count, nil
}

// GetByID loads a single event with the user's status flags merged in.
// Returns models.ErrNotFound when the event does not exist.
func (r *RepositoryImpl) GetByID(ctx context.Context, eventID int64, userID uuid.UUID) (_ *models.Event, err error) {
	defer func(start time.Time) { observeQuery(ctx, "events.get_by_id", start, err) }(time.Now())

	query := `
		SELECT ` + eventColumns + `,
			COALESCE(s.saved, false), COALESCE(s.archived, false),
			COALESCE(s.attending, false), COALESCE(s.shared, false),
			COALESCE(s.saved_count, 0), COALESCE(s.shared_count, 0),
			COALESCE(s.opened_count, 0), COALESCE(s.last_interaction_date, 'epoch'::timestamptz)
		FROM events e
		LEFT JOIN user_event_status s ON s.event_id = e.id AND s.user_id = $2
		WHERE e.id = $1`

	row := r.pgpool.QueryRow(ctx, query, eventID, userID)

	ev, status, err := scanEventWithStatus(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query event %d: %w", eventID, err)
	}
	status.UserID = userID
	status.EventID = ev.ID
	ev.Status = status
	return ev, nil
}

// ListByStatus returns the user's saved/archived/history events ordered by
// interaction recency, plus the total for pagination.
func (r *RepositoryImpl) ListByStatus(ctx context.Context, userID uuid.UUID, list StatusList, limit, offset int) (_ []models.Event, _ int, err error) {
	defer func(start time.Time) { observeQuery(ctx, "events.list_by_status", start, err) }(time.Now())

	var cond string
	switch list {
	case ListSaved:
		cond = "s.saved"
	case ListArchived:
		cond = "s.archived"
	case ListHistory:
		cond = "(s.opened_count > 0 OR s.saved OR s.archived OR s.shared OR s.attending)"
	default:
		return nil, 0, fmt.Errorf("unknown status list %q", list)
	}

	countQuery := `
		SELECT COUNT(*)
		FROM user_event_status s
		WHERE s.user_id = $1 AND ` + cond

	var total int
	if err := r.pgpool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s events: %w", list, err)
	}

	query := `
		SELECT ` + eventColumns + `,
			s.saved, s.archived, s.attending, s.shared,
			s.saved_count, s.shared_count, s.opened_count, s.last_interaction_date
		FROM user_event_status s
		JOIN events e ON e.id = s.event_id
		WHERE s.user_id = $1 AND ` + cond + `
		ORDER BY s.last_interaction_date DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pgpool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s events: %w", list, err)
	}
	defer rows.Close()

	var result []models.Event
	for rows.Next() {
		ev, status, err := scanEventWithStatus(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s event row: %w", list, err)
		}
		status.UserID = userID
		status.EventID = ev.ID
		ev.Status = status
		result = append(result, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating %s event rows: %w", list, err)
	}

	return result, total, nil
}

func scanEvents(rows pgx.Rows) ([]models.Event, error) {
	var result []models.Event
	for rows.Next() {
		var (
			ev        models.Event
			lon, lat  *float64
			imageData []byte
			metadata  []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Description, &ev.VenueName, &ev.StartDateTime,
			&lon, &lat, &imageData, &metadata, &ev.CreatedAt, &ev.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		hydrateEvent(&ev, lon, lat, imageData, metadata)
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return result, nil
}

func scanEventWithStatus(row pgx.Row) (*models.Event, *models.UserEventStatus, error) {
	var (
		ev        models.Event
		status    models.UserEventStatus
		lon, lat  *float64
		imageData []byte
		metadata  []byte
	)
	err := row.Scan(&ev.ID, &ev.Name, &ev.Description, &ev.VenueName, &ev.StartDateTime,
		&lon, &lat, &imageData, &metadata, &ev.CreatedAt,
		&status.Saved, &status.Archived, &status.Attending, &status.Shared,
		&status.SavedCount, &status.SharedCount, &status.OpenedCount, &status.LastInteractionDate)
	if err != nil {
		return nil, nil, err
	}
	hydrateEvent(&ev, lon, lat, imageData, metadata)
	return &ev, &status, nil
}

// hydrateEvent decodes the jsonb payloads with safe defaulting and
// flattens the primary image URL. Malformed producer payloads degrade to
// zero values rather than failing the read.
func hydrateEvent(ev *models.Event, lon, lat *float64, imageData, metadata []byte) {
	if lon != nil && lat != nil {
		ev.Geolocation = &models.Coordinate{Latitude: *lat, Longitude: *lon}
	}
	if len(imageData) > 0 {
		_ = json.Unmarshal(imageData, &ev.ImageData)
	}
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &ev.Metadata)
	}
	ev.ImageURL = ev.FlattenImageURL()
}
