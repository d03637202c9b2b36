package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/swipedeck/swipedeck/internal/app/models"
	"github.com/swipedeck/swipedeck/internal/pkg/config"
)

// Trigger asks the external recommender to regenerate a user's queue.
// Firing is advisory: failures are logged, never surfaced to the feed.
type Trigger interface {
	Fire(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64) bool
}

// backfillDebounce caps trigger fires per user. Repeated feed requests
// against a drained pool would otherwise hammer the recommender.
const backfillDebounce = 30 * time.Second

type HTTPTrigger struct {
	logger  *zap.Logger
	repo    Repository
	locks   *UserLocks
	client  *http.Client
	url     string
	breaker *gobreaker.CircuitBreaker[[]int64]

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

var _ Trigger = (*HTTPTrigger)(nil)

func NewHTTPTrigger(cfg config.RecommenderConfig, repo Repository, locks *UserLocks, logger *zap.Logger) *HTTPTrigger {
	breaker := gobreaker.NewCircuitBreaker[[]int64](gobreaker.Settings{
		Name:    "recommender",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Recommender circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &HTTPTrigger{
		logger:   logger,
		repo:     repo,
		locks:    locks,
		client:   &http.Client{Timeout: cfg.Timeout},
		url:      cfg.URL,
		breaker:  breaker,
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

// Fire requests a backfill for the user. Returns false when the per-user
// debounce suppressed the call. The actual fetch and queue merge run in
// the background.
func (t *HTTPTrigger) Fire(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64) bool {
	if !t.limiter(userID).Allow() {
		return false
	}

	bgCtx := context.WithoutCancel(ctx)
	go func() {
		ids, err := t.breaker.Execute(func() ([]int64, error) {
			return t.fetch(bgCtx, userID, center, radiusMiles)
		})
		if err != nil {
			t.logger.Warn("Recommendation backfill failed",
				zap.String("userID", userID.String()),
				zap.Error(err))
			return
		}
		if len(ids) == 0 {
			return
		}
		if err := t.merge(bgCtx, userID, ids); err != nil {
			t.logger.Warn("Failed to merge backfilled recommendations",
				zap.String("userID", userID.String()),
				zap.Error(err))
		}
	}()
	return true
}

func (t *HTTPTrigger) limiter(userID uuid.UUID) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(backfillDebounce), 1)
		t.limiters[userID] = l
	}
	return l
}

func (t *HTTPTrigger) fetch(ctx context.Context, userID uuid.UUID, center models.Coordinate, radiusMiles float64) ([]int64, error) {
	payload, err := json.Marshal(map[string]any{
		"userId":      userID,
		"latitude":    center.Latitude,
		"longitude":   center.Longitude,
		"radiusMiles": radiusMiles,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backfill request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build backfill request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backfill request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recommender returned status %d", resp.StatusCode)
	}

	var body struct {
		EventIDs []int64 `json:"eventIds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode backfill response: %w", err)
	}
	return body.EventIDs, nil
}

// merge appends the new ids behind whatever the queue still holds,
// dropping duplicates, under the per-user lock so it cannot race a feed
// take.
func (t *HTTPTrigger) merge(ctx context.Context, userID uuid.UUID, ids []int64) error {
	unlock := t.locks.Lock(userID)
	defer unlock()

	queue, err := t.repo.GetQueue(ctx, userID)
	if err != nil {
		return err
	}

	var existing []int64
	if queue != nil {
		existing = queue.EventIDs
	}

	seen := make(map[int64]struct{}, len(existing)+len(ids))
	merged := make([]int64, 0, len(existing)+len(ids))
	for _, id := range existing {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}

	return t.repo.ReplaceQueue(ctx, userID, merged)
}
