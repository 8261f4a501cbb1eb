// Package identity resolves requester priority from the external profile
// service. Priority is a read-only input to scoring; lookup failures
// degrade to priority 0 rather than failing the match.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

type PriorityResolver interface {
	// RequesterPriority returns the rider's priority level, 0 if unknown.
	RequesterPriority(ctx context.Context, riderID string) int
}

// HTTPClient resolves priority from the identity service's user endpoint.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPClient{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) RequesterPriority(ctx context.Context, riderID string) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/%s", c.BaseURL, riderID), nil)
	if err != nil {
		return 0
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0
	}
	var out struct {
		PriorityLevel int `json:"priority_level"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0
	}
	return out.PriorityLevel
}

// StaticResolver serves priorities from an in-memory table. Used when no
// identity service is configured, and in tests.
type StaticResolver struct {
	mu         sync.RWMutex
	priorities map[string]int
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{priorities: make(map[string]int)}
}

func (s *StaticResolver) Set(riderID string, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priorities[riderID] = priority
}

func (s *StaticResolver) RequesterPriority(_ context.Context, riderID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.priorities[riderID]
}
