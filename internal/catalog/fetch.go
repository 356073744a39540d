package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrLoadFailure marks a failed catalog fetch. The dashboard does not open
// the push channel while the catalog is unavailable.
var ErrLoadFailure = errors.New("catalog load failed")

// maxCatalogBytes bounds the catalog response body.
const maxCatalogBytes = 32 << 20

// Fetcher retrieves the raw catalog list from the upstream hub.
type Fetcher struct {
	url    string
	client *http.Client
}

// NewFetcher creates a fetcher for the given catalog URL.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch performs the one-shot request. The body must be a JSON array; its
// element types are left to Load to filter.
func (f *Fetcher) Fetch(ctx context.Context) ([]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrLoadFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrLoadFailure, resp.StatusCode, f.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrLoadFailure, err)
	}

	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding body: %w", ErrLoadFailure, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is not a JSON array", ErrLoadFailure)
	}
	return raw, nil
}

// LoadFrom fetches and loads in one step.
func (f *Fetcher) LoadFrom(ctx context.Context) (*Store, error) {
	raw, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Load(raw), nil
}
