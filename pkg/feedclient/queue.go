package feedclient

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/swipedeck/swipedeck/internal/app/models"
	"github.com/swipedeck/swipedeck/internal/pkg/geo"
)

// lowWatermark is the buffer length below which the queue refills in the
// background.
const lowWatermark = 15

// Queue is the client-held swipe buffer: a current event, upcoming
// events, background low-watermark refill with single-flight guarding,
// and best-effort image prefetch. Safe for concurrent use.
type Queue struct {
	fetcher Fetcher
	images  ImageLoader
	logger  *zap.Logger

	mu              sync.Mutex
	req             BatchRequest
	buffer          []models.Event
	current         *models.Event
	oneOff          *models.Event
	fetchInProgress bool
	// epoch tags every outgoing fetch; a response is accepted only if the
	// epoch has not moved on (filter/location change) since dispatch.
	epoch uint64
}

func NewQueue(fetcher Fetcher, images ImageLoader, req BatchRequest, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	return &Queue{
		fetcher: fetcher,
		images:  images,
		logger:  logger,
		req:     req,
	}
}

// Start performs the initial blocking fetch, setting the first result as
// current and buffering the rest.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	req := q.req
	q.mu.Unlock()

	events, err := q.fetcher.FetchBatch(ctx, req)
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.apply(events)
	buffered := q.snapshot()
	q.mu.Unlock()

	go prefetchImages(context.WithoutCancel(ctx), q.images, buffered)
	return nil
}

// Current returns the event on screen: a direct-jump event when one is
// active, else the buffered current.
func (q *Queue) Current() *models.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.oneOff != nil {
		return q.oneOff
	}
	return q.current
}

// Len reports the number of buffered upcoming events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// NextEvent advances the queue: an active direct-jump event is discarded
// and the buffer resumes; otherwise the buffer front becomes current.
// Dropping below the low-watermark fires one background refill; a refill
// already in flight means the request is dropped silently.
func (q *Queue) NextEvent(ctx context.Context) *models.Event {
	q.mu.Lock()

	if q.oneOff != nil {
		// Swiping away from a shared-link event resumes the buffer
		// without consuming it.
		q.oneOff = nil
		current := q.current
		q.mu.Unlock()
		return current
	}

	if len(q.buffer) > 0 {
		q.current = &q.buffer[0]
		q.buffer = q.buffer[1:]
	} else {
		q.current = nil
	}
	current := q.current

	refill := len(q.buffer) < lowWatermark && !q.fetchInProgress
	if refill {
		q.fetchInProgress = true
	}
	req := q.req
	epoch := q.epoch
	buffered := q.snapshot()
	q.mu.Unlock()

	bgCtx := context.WithoutCancel(ctx)
	go prefetchImages(bgCtx, q.images, buffered)
	if refill {
		go q.refill(bgCtx, req, epoch)
	}
	return current
}

// JumpTo displays a specific event out-of-band. The buffered sequence is
// untouched; the next swipe discards the one-off and resumes it.
func (q *Queue) JumpTo(ctx context.Context, eventID int64) (*models.Event, error) {
	ev, err := q.fetcher.FetchEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	// The detail endpoint carries no distance; compute it against the
	// active center for display.
	if ev.Geolocation != nil {
		ev.Distance = geo.DistanceMiles(
			q.req.Location.Latitude, q.req.Location.Longitude,
			ev.Geolocation.Latitude, ev.Geolocation.Longitude)
	}
	q.oneOff = ev
	q.mu.Unlock()
	return ev, nil
}

// Reset discards the queue and refetches with new parameters. Any fetch
// still in flight for the old parameters keeps running but its result is
// dropped on arrival because the epoch has moved on.
func (q *Queue) Reset(ctx context.Context, req BatchRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	q.mu.Lock()
	q.epoch++
	q.req = req
	q.buffer = nil
	q.current = nil
	q.oneOff = nil
	q.fetchInProgress = false
	q.mu.Unlock()

	return q.Start(ctx)
}

func (q *Queue) refill(ctx context.Context, req BatchRequest, epoch uint64) {
	events, err := q.fetcher.FetchBatch(ctx, req)

	q.mu.Lock()
	if q.epoch != epoch {
		// Stale response for a superseded filter/location. Reset already
		// cleared fetchInProgress for the new state.
		q.mu.Unlock()
		return
	}
	q.fetchInProgress = false
	if err != nil {
		q.mu.Unlock()
		q.logger.Warn("Background feed refill failed", zap.Error(err))
		return
	}
	q.buffer = append(q.buffer, dedupe(events, q.buffer, q.current)...)
	buffered := q.snapshot()
	q.mu.Unlock()

	prefetchImages(ctx, q.images, buffered)
}

// apply installs a fresh batch: first event current, rest buffered.
// Caller holds the lock.
func (q *Queue) apply(events []models.Event) {
	if len(events) == 0 {
		q.current = nil
		q.buffer = nil
		return
	}
	q.current = &events[0]
	q.buffer = append([]models.Event(nil), events[1:]...)
}

// snapshot copies the buffer for lock-free prefetching. Caller holds the
// lock.
func (q *Queue) snapshot() []models.Event {
	return append([]models.Event(nil), q.buffer...)
}

// dedupe drops incoming events already buffered or on screen; the server
// excludes consumed pool ids but a refill can still overlap the tail.
func dedupe(incoming, buffer []models.Event, current *models.Event) []models.Event {
	seen := make(map[int64]struct{}, len(buffer)+1)
	for _, ev := range buffer {
		seen[ev.ID] = struct{}{}
	}
	if current != nil {
		seen[current.ID] = struct{}{}
	}

	var out []models.Event
	for _, ev := range incoming {
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}
		out = append(out, ev)
	}
	return out
}
