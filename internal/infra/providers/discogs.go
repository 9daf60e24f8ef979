package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

const (
	// DefaultDiscogsBaseURL is the Discogs API base URL
	DefaultDiscogsBaseURL = "https://api.discogs.com"

	// DefaultDiscogsTimeout for HTTP requests
	DefaultDiscogsTimeout = 10 * time.Second
)

// Discogs searches the Discogs release database for album cover images.
type Discogs struct {
	token      string
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// DiscogsOption is a functional option for configuring the Discogs source.
type DiscogsOption func(*Discogs)

// WithDiscogsBaseURL sets a custom base URL (useful for testing).
func WithDiscogsBaseURL(url string) DiscogsOption {
	return func(d *Discogs) {
		d.baseURL = url
	}
}

// WithDiscogsHTTPClient sets a custom HTTP client.
func WithDiscogsHTTPClient(client *http.Client) DiscogsOption {
	return func(d *Discogs) {
		d.httpClient = client
	}
}

// NewDiscogs creates a Discogs artwork source.
func NewDiscogs(token, userAgent string, opts ...DiscogsOption) *Discogs {
	d := &Discogs{
		token:     token,
		baseURL:   DefaultDiscogsBaseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: DefaultDiscogsTimeout,
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Discogs) Name() string     { return "discogs" }
func (d *Discogs) Configured() bool { return d.token != "" }

type discogsSearchResponse struct {
	Results []struct {
		Title      string `json:"title"`
		CoverImage string `json:"cover_image"`
	} `json:"results"`
}

// ImageURL searches for a release matching artist and album and returns
// the first result carrying a cover image.
func (d *Discogs) ImageURL(ctx context.Context, snap media.Snapshot) (string, error) {
	if !d.Configured() {
		return "", artwork.ErrNoCredentials
	}
	if snap.Artist == "" || snap.Album == "" {
		return "", artwork.ErrNotFound
	}

	params := url.Values{}
	params.Set("type", "release")
	params.Set("artist", snap.Artist)
	params.Set("release_title", snap.Album)
	params.Set("format", "album")

	reqURL := fmt.Sprintf("%s/database/search?%s", d.baseURL, params.Encode())

	log.Debug().
		Str("artist", snap.Artist).
		Str("album", snap.Album).
		Msg("Searching Discogs for release")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Discogs token="+d.token)
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusNotFound:
		return "", artwork.ErrNotFound
	case http.StatusTooManyRequests:
		log.Warn().Msg("Discogs rate limit exceeded")
		return "", artwork.ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "", artwork.ErrTemporaryFailure
	default:
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var searchResp discogsSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	for _, result := range searchResp.Results {
		if result.CoverImage != "" {
			log.Debug().
				Str("title", result.Title).
				Msg("Found Discogs release")
			return result.CoverImage, nil
		}
	}

	return "", artwork.ErrNotFound
}
