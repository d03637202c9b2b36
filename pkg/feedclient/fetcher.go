package feedclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/swipedeck/swipedeck/internal/app/models"
)

// BatchRequest carries the feed parameters active at dispatch time.
type BatchRequest struct {
	Location    models.Coordinate
	RadiusMiles float64
	Filter      string
	Limit       int
}

// Fetcher retrieves feed batches and single events for the queue.
type Fetcher interface {
	FetchBatch(ctx context.Context, req BatchRequest) ([]models.Event, error)
	FetchEvent(ctx context.Context, eventID int64) (*models.Event, error)
}

// HTTPFetcher talks to the feed service's HTTP surface.
type HTTPFetcher struct {
	baseURL string
	userID  uuid.UUID
	client  *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(baseURL string, userID uuid.UUID, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		userID:  userID,
		client:  client,
	}
}

func (f *HTTPFetcher) FetchBatch(ctx context.Context, req BatchRequest) ([]models.Event, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(req.Limit))
	// Wire format puts longitude first.
	q.Set("location", fmt.Sprintf("%g,%g", req.Location.Longitude, req.Location.Latitude))
	q.Set("radius", strconv.FormatFloat(req.RadiusMiles, 'g', -1, 64))
	if req.Filter != "" {
		q.Set("filter", req.Filter)
	}

	var events []models.Event
	if err := f.getJSON(ctx, f.baseURL+"/api/events/batch?"+q.Encode(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (f *HTTPFetcher) FetchEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	var ev models.Event
	if err := f.getJSON(ctx, fmt.Sprintf("%s/api/event/%d", f.baseURL, eventID), &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (f *HTTPFetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-User-ID", f.userID.String())

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
