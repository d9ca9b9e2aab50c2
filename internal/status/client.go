package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dhke/internal/domain"
)

// HTTP reads a remote status endpoint.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for base, e.g. "http://127.0.0.1:8081". A bare
// host:port gets an http:// prefix.
func NewHTTP(base string) *HTTP {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: http.DefaultClient}
}

// Fetch returns the remote server's counters.
func (c *HTTP) Fetch(ctx context.Context) (domain.Stats, error) {
	var out domain.Stats
	if err := c.getJSON(ctx, "/status", &out); err != nil {
		return domain.Stats{}, err
	}
	return out, nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	u := c.Base + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: status get %s: %w", domain.ErrNetwork, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status get %s: %s", u, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
