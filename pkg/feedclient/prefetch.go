package feedclient

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/swipedeck/swipedeck/internal/app/models"
)

// prefetchDepth is how many buffered events get their primary image
// warmed ahead of the swipe.
const prefetchDepth = 4

// ImageLoader warms an image URL into whatever cache the client has.
type ImageLoader interface {
	Load(ctx context.Context, url string) error
}

// HTTPImageLoader fetches the image over HTTP and discards the body; the
// transport-level cache does the actual warming.
type HTTPImageLoader struct {
	client *http.Client
}

var _ ImageLoader = (*HTTPImageLoader)(nil)

func NewHTTPImageLoader(client *http.Client) *HTTPImageLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPImageLoader{client: client}
}

func (l *HTTPImageLoader) Load(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build image request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}
	return nil
}

// prefetchImages warms the first prefetchDepth buffered images
// concurrently. Best-effort: individual failures are ignored.
func prefetchImages(ctx context.Context, loader ImageLoader, buffer []models.Event) {
	if loader == nil {
		return
	}

	depth := prefetchDepth
	if depth > len(buffer) {
		depth = len(buffer)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < depth; i++ {
		url := buffer[i].ImageURL
		if url == "" {
			continue
		}
		g.Go(func() error {
			_ = loader.Load(gctx, url)
			return nil
		})
	}
	_ = g.Wait()
}
