package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

const (
	// DefaultMBBaseURL is the MusicBrainz API base URL
	DefaultMBBaseURL = "https://musicbrainz.org/ws/2"

	// DefaultCAABaseURL is the Cover Art Archive base URL
	DefaultCAABaseURL = "https://coverartarchive.org"

	// DefaultMBRateLimit is 1 request per second (MusicBrainz guideline)
	DefaultMBRateLimit = 1

	// DefaultMBTimeout for HTTP requests
	DefaultMBTimeout = 30 * time.Second
)

// MusicBrainz resolves album art by searching MusicBrainz for the
// release group and fetching its front cover from the Cover Art Archive.
// It needs no credentials, only an opt-in and a proper User-Agent.
type MusicBrainz struct {
	enabled    bool
	baseURL    string
	caaBaseURL string
	userAgent  string
	httpClient *http.Client
	limiter    *rateLimiter
}

// MBOption is a functional option for configuring the MusicBrainz source.
type MBOption func(*MusicBrainz)

// WithMBBaseURL sets a custom MusicBrainz base URL (useful for testing).
func WithMBBaseURL(url string) MBOption {
	return func(m *MusicBrainz) {
		m.baseURL = url
	}
}

// WithCAABaseURL sets a custom Cover Art Archive base URL (useful for testing).
func WithCAABaseURL(url string) MBOption {
	return func(m *MusicBrainz) {
		m.caaBaseURL = url
	}
}

// WithMBHTTPClient sets a custom HTTP client.
func WithMBHTTPClient(client *http.Client) MBOption {
	return func(m *MusicBrainz) {
		m.httpClient = client
	}
}

// NewMusicBrainz creates a MusicBrainz/Cover Art Archive artwork source.
func NewMusicBrainz(enabled bool, userAgent string, opts ...MBOption) *MusicBrainz {
	m := &MusicBrainz{
		enabled:    enabled,
		baseURL:    DefaultMBBaseURL,
		caaBaseURL: DefaultCAABaseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{
			Timeout: DefaultMBTimeout,
		},
		limiter: newRateLimiter(DefaultMBRateLimit),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MusicBrainz) Name() string     { return "musicbrainz" }
func (m *MusicBrainz) Configured() bool { return m.enabled }

type mbReleaseGroupResponse struct {
	ReleaseGroups []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Score int    `json:"score"`
	} `json:"release-groups"`
}

type caaResponse struct {
	Images []struct {
		Front bool   `json:"front"`
		Image string `json:"image"`
	} `json:"images"`
}

// ImageURL searches for the release group and returns the front cover
// image URL from the Cover Art Archive.
func (m *MusicBrainz) ImageURL(ctx context.Context, snap media.Snapshot) (string, error) {
	if !m.enabled {
		return "", artwork.ErrNoCredentials
	}
	if snap.Artist == "" || snap.Album == "" {
		return "", artwork.ErrNotFound
	}

	rgid, err := m.searchReleaseGroup(ctx, snap.Artist, snap.Album)
	if err != nil {
		return "", err
	}
	if rgid == "" {
		return "", artwork.ErrNotFound
	}

	return m.frontCoverURL(ctx, rgid)
}

// searchReleaseGroup searches for a release group by artist and album name.
func (m *MusicBrainz) searchReleaseGroup(ctx context.Context, artist, album string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	// Build search query using Lucene syntax
	query := fmt.Sprintf(`artist:"%s" AND releasegroup:"%s"`, escapeLucene(artist), escapeLucene(album))

	reqURL := fmt.Sprintf("%s/release-group?query=%s&fmt=json&limit=1",
		m.baseURL, url.QueryEscape(query))

	log.Debug().
		Str("artist", artist).
		Str("album", album).
		Str("url", reqURL).
		Msg("Searching MusicBrainz for release group")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusTooManyRequests:
		log.Warn().Msg("MusicBrainz rate limit exceeded")
		return "", artwork.ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		log.Warn().Int("status", resp.StatusCode).Msg("MusicBrainz temporary error")
		return "", artwork.ErrTemporaryFailure
	default:
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var searchResp mbReleaseGroupResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(searchResp.ReleaseGroups) == 0 {
		log.Debug().
			Str("artist", artist).
			Str("album", album).
			Msg("No MusicBrainz release groups found")
		return "", nil
	}

	rg := searchResp.ReleaseGroups[0]
	log.Debug().
		Str("rgid", rg.ID).
		Int("score", rg.Score).
		Msg("Found MusicBrainz release group")
	return rg.ID, nil
}

// frontCoverURL fetches the Cover Art Archive index for a release group
// and returns the front image URL.
func (m *MusicBrainz) frontCoverURL(ctx context.Context, rgid string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/release-group/%s", m.caaBaseURL, rgid)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusNotFound:
		log.Debug().Str("rgid", rgid).Msg("No cover art in archive")
		return "", artwork.ErrNotFound
	case http.StatusTooManyRequests:
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

	var coverResp caaResponse
	if err := json.Unmarshal(body, &coverResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	for _, img := range coverResp.Images {
		if img.Front && img.Image != "" {
			return img.Image, nil
		}
	}

	return "", artwork.ErrNotFound
}

// escapeLucene escapes special characters in a Lucene query.
func escapeLucene(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		`+`, `\+`,
		`-`, `\-`,
		`!`, `\!`,
		`(`, `\(`,
		`)`, `\)`,
		`{`, `\{`,
		`}`, `\}`,
		`[`, `\[`,
		`]`, `\]`,
		`^`, `\^`,
		`~`, `\~`,
		`*`, `\*`,
		`?`, `\?`,
		`:`, `\:`,
		`/`, `\/`,
	)
	return replacer.Replace(s)
}
