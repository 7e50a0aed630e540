// Package geocoding implements ports.Geocoder against public geocoding
// REST APIs.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/samirrijal/geomap/internal/core/domain"
)

const defaultTimeout = 5 * time.Second

type client struct {
	http      *http.Client
	userAgent string
}

func newClient(userAgent string, timeout time.Duration) client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return client{http: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

// getJSON issues a GET request and decodes the JSON body into out. Transport
// failures and non-200 answers wrap domain.ErrNetwork.
func (c client) getJSON(ctx context.Context, base string, params url.Values, out any) error {
	reqURL := base
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", base, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: upstream status %d", domain.ErrNetwork, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrNetwork, err)
	}
	return nil
}

func noMatch(address string) error {
	return fmt.Errorf("%w: no match for %q", domain.ErrNotFound, address)
}
