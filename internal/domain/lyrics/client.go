// Package lyrics fetches time-coded lyrics and picks the line to show
// for a given playback position.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the public textyl lyrics API.
	DefaultBaseURL = "https://api.textyl.co/api/lyrics"

	// DefaultTimeout bounds a single lyrics lookup.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrNotFound indicates no lyrics exist for the track.
	ErrNotFound = errors.New("lyrics not found")

	// ErrTemporaryFailure indicates the lyrics service is unavailable.
	ErrTemporaryFailure = errors.New("lyrics service temporarily unavailable")
)

// strip everything but letters, digits, whitespace and hyphens
var sanitizeRe = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

// Line is a single time-coded lyrics line.
type Line struct {
	Seconds int    `json:"seconds"`
	Text    string `json:"lyrics"`
}

// Client fetches synced lyrics over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the lyrics API endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a lyrics client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the time-coded lines for a track, sorted by timestamp.
func (c *Client) Fetch(ctx context.Context, artist, title string) ([]Line, error) {
	artist = sanitize(artist)
	title = sanitize(title)
	if artist == "" || title == "" {
		return nil, ErrNotFound
	}

	url := fmt.Sprintf("%s/%s/%s", c.baseURL, artist, title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create lyrics request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch lyrics: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusBadGateway:
		return nil, ErrTemporaryFailure
	default:
		return nil, fmt.Errorf("lyrics API returned status %d", resp.StatusCode)
	}

	var lines []Line
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		// The API answers plain text when it has nothing.
		return nil, ErrNotFound
	}
	if len(lines) == 0 {
		return nil, ErrNotFound
	}

	log.Debug().
		Str("artist", artist).
		Str("title", title).
		Int("lines", len(lines)).
		Msg("Fetched synced lyrics")

	return lines, nil
}

// sanitize prepares a path segment the way the API expects: drop
// punctuation, collapse whitespace into hyphens.
func sanitize(s string) string {
	s = sanitizeRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return strings.Join(strings.Fields(s), "-")
}
