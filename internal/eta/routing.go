package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/ride-dispatch/internal/models"
)

// RoutingClient queries a distance-matrix style HTTP routing service for
// live driving ETAs.
type RoutingClient struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewRoutingClient(endpoint, apiKey string, timeout time.Duration) *RoutingClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RoutingClient{Endpoint: endpoint, APIKey: apiKey, Client: &http.Client{Timeout: timeout}}
}

// Estimate queries the routing service and returns (etaMinutes, distanceKm).
// Any transport error, non-2xx status, or malformed payload is returned as
// an error for the caller to handle.
func (c *RoutingClient) Estimate(ctx context.Context, origin, dest models.Coord) (float64, float64, error) {
	q := url.Values{}
	q.Set("origins", fmt.Sprintf("%.6f,%.6f", origin.Lat, origin.Lng))
	q.Set("destinations", fmt.Sprintf("%.6f,%.6f", dest.Lat, dest.Lng))
	q.Set("mode", "driving")
	q.Set("units", "metric")
	if c.APIKey != "" {
		q.Set("key", c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("routing: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
		Rows   []struct {
			Elements []struct {
				Status   string `json:"status"`
				Duration struct {
					Value float64 `json:"value"` // seconds
				} `json:"duration"`
				Distance struct {
					Value float64 `json:"value"` // meters
				} `json:"distance"`
			} `json:"elements"`
		} `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, 0, err
	}
	if out.Status != "OK" {
		return 0, 0, fmt.Errorf("routing: status %q", out.Status)
	}
	if len(out.Rows) == 0 || len(out.Rows[0].Elements) == 0 {
		return 0, 0, fmt.Errorf("routing: empty matrix")
	}
	el := out.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, 0, fmt.Errorf("routing: element status %q", el.Status)
	}
	return el.Duration.Value / 60.0, el.Distance.Value / 1000.0, nil
}
