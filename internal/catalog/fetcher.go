package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultSourceURL serves current element sets for the Iridium NEXT shell,
// a constellation dense enough to keep a handful of beacons busy.
const DefaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=iridium-NEXT&FORMAT=tle"

// maxFetchBytes caps a download; element-set groups are a few hundred KB at
// most, so anything bigger is not a catalog.
const maxFetchBytes = 10 << 20

// Fetcher downloads raw element sets over HTTP.
type Fetcher struct {
	sourceURL string
	client    *http.Client
}

// NewFetcher returns a fetcher for the given URL, falling back to
// DefaultSourceURL when empty.
func NewFetcher(sourceURL string) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Fetcher{
		sourceURL: sourceURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SourceURL returns the configured source.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch downloads the element sets and returns the raw body.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("User-Agent", "galactic-grip/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching catalog: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading catalog body: %w", err)
	}
	if len(data) > maxFetchBytes {
		return nil, fmt.Errorf("catalog body exceeds %d bytes", maxFetchBytes)
	}
	return data, nil
}
