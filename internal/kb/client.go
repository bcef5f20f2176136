// Package kb talks to the shared knowledge-base service that evidence
// entries may cite. Lookups are best-effort: when the KB is unreachable
// or a resource is missing, evidence stays usable and is marked
// unverified rather than rejected.
package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verification states for an evidence entry's KB reference.
const (
	StatusVerified   = "verified"
	StatusRetracted  = "retracted"
	StatusUnverified = "unverified"
)

// Resource is the subset of a KB record that evidence cares about.
type Resource struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// Lookup resolves KB resource IDs.
type Lookup interface {
	Resolve(ctx context.Context, resourceID string) (Resource, error)
}

// Client is an HTTP client for the KB service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a KB client. baseURL is the service root, without
// a trailing slash.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Resolve fetches a resource by ID. A 404 comes back as StatusUnverified
// with no error; transport failures return an error so callers can
// decide to degrade.
func (c *Client) Resolve(ctx context.Context, resourceID string) (Resource, error) {
	endpoint := c.baseURL + "/api/resources/" + url.PathEscape(resourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Resource{}, fmt.Errorf("build kb request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Resource{}, fmt.Errorf("kb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Resource{ID: resourceID, Status: StatusUnverified}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Resource{}, fmt.Errorf("kb returned status %d", resp.StatusCode)
	}

	var r Resource
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Resource{}, fmt.Errorf("decode kb response: %w", err)
	}
	if r.ID == "" {
		r.ID = resourceID
	}
	if r.Status == "" {
		r.Status = StatusVerified
	}
	return r, nil
}
