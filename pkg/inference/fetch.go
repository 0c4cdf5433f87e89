package inference

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"storybook/pkg/flight"
	"storybook/pkg/schema"
)

// maxImageBytes caps a downloaded image.
const maxImageBytes = 32 << 20

// Fetcher downloads images that a backend returned by URL. Concurrent
// requests for the same URL share one download.
type Fetcher struct {
	client *http.Client
	cache  *flight.Cache[string, []byte]
}

func NewFetcher(timeout time.Duration) *Fetcher {
	f := &Fetcher{client: &http.Client{Timeout: timeout}}
	f.cache = flight.NewCache(f.download, 10*time.Minute)
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.cache.Get(ctx, url)
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, schema.ErrNoImagePayload.Withf("invalid image url: %v", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, schema.ErrBackendUnavailable.Withf("fetching image: %v", err).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fromStatus("fetch", resp.StatusCode, fmt.Sprintf("fetching image: %s", resp.Status), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, schema.ErrBackendUnavailable.Withf("reading image: %v", err).Wrap(err)
	}
	if len(data) == 0 {
		return nil, schema.ErrNoImagePayload.Withf("empty image body")
	}
	return data, nil
}
