// Package hass talks to a Home Assistant instance: REST for state
// reads and service calls, WebSocket for the state_changed event
// stream the watcher is built on.
package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

// DefaultTimeout bounds a single REST call.
const DefaultTimeout = 10 * time.Second

var (
	// ErrUnauthorized indicates the access token was rejected.
	ErrUnauthorized = errors.New("home assistant rejected the access token")

	// ErrEntityNotFound indicates the entity does not exist.
	ErrEntityNotFound = errors.New("entity not found")
)

// State is an entity state as returned by the REST API.
type State struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// Client is an authenticated Home Assistant API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the instance at baseURL.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EntityState fetches the current state of an entity.
func (c *Client) EntityState(ctx context.Context, entityID string) (*State, error) {
	url := fmt.Sprintf("%s/api/states/%s", c.baseURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create state request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch entity state: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	default:
		return nil, fmt.Errorf("home assistant returned status %d", resp.StatusCode)
	}

	var state State
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("decode entity state: %w", err)
	}
	return &state, nil
}

// CallService invokes a Home Assistant service, e.g. light.turn_on.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal service data: %w", err)
	}

	url := fmt.Sprintf("%s/api/services/%s/%s", c.baseURL, domain, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create service request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call service %s.%s: %w", domain, service, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("service %s.%s returned status %d", domain, service, resp.StatusCode)
	}
	return nil
}

// AbsoluteURL resolves an entity_picture path against the instance URL.
func (c *Client) AbsoluteURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// Snapshot maps an entity state onto the media snapshot the rest of
// the daemon consumes. Relative artwork paths are made absolute.
func (c *Client) Snapshot(s *State) media.Snapshot {
	snap := media.Snapshot{
		EntityID:    s.EntityID,
		State:       s.State,
		Title:       attrString(s.Attributes, "media_title"),
		Artist:      attrString(s.Attributes, "media_artist"),
		Album:       attrString(s.Attributes, "media_album_name"),
		ContentID:   attrString(s.Attributes, "media_content_id"),
		ContentType: attrString(s.Attributes, "media_content_type"),
		AppName:     attrString(s.Attributes, "app_name"),
		ArtworkURL:  c.AbsoluteURL(attrString(s.Attributes, "entity_picture")),
		Duration:    attrDuration(s.Attributes, "media_duration"),
		Position:    attrDuration(s.Attributes, "media_position"),
	}
	if raw := attrString(s.Attributes, "media_position_updated_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			snap.PositionAt = ts
		}
	}
	if snap.PositionAt.IsZero() {
		snap.PositionAt = time.Now()
	}
	return snap
}

func attrString(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func attrDuration(attrs map[string]any, key string) time.Duration {
	switch v := attrs[key].(type) {
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	}
	return 0
}
