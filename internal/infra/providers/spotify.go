package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

const (
	// DefaultSpotifyBaseURL is the Spotify Web API base URL
	DefaultSpotifyBaseURL = "https://api.spotify.com/v1"

	// DefaultSpotifyTokenURL is the client-credentials token endpoint
	DefaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultSpotifyTimeout for HTTP requests
	DefaultSpotifyTimeout = 10 * time.Second

	// tokenExpiryBuffer refreshes the token slightly before it expires
	tokenExpiryBuffer = 60 * time.Second
)

// SpotifyClient searches Spotify for track matches and keeps the artist
// image and first album match from the last search as secondary
// fallback sources.
type SpotifyClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	httpClient   *http.Client

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time

	sideMu             sync.Mutex
	artistImageURL     string
	firstAlbumImageURL string
}

// SpotifyOption is a functional option for configuring the Spotify client.
type SpotifyOption func(*SpotifyClient)

// WithSpotifyBaseURL sets a custom API base URL (useful for testing).
func WithSpotifyBaseURL(url string) SpotifyOption {
	return func(c *SpotifyClient) {
		c.baseURL = url
	}
}

// WithSpotifyTokenURL sets a custom token endpoint (useful for testing).
func WithSpotifyTokenURL(url string) SpotifyOption {
	return func(c *SpotifyClient) {
		c.tokenURL = url
	}
}

// WithSpotifyHTTPClient sets a custom HTTP client.
func WithSpotifyHTTPClient(client *http.Client) SpotifyOption {
	return func(c *SpotifyClient) {
		c.httpClient = client
	}
}

// NewSpotifyClient creates a Spotify client with client-credentials auth.
func NewSpotifyClient(clientID, clientSecret string, opts ...SpotifyOption) *SpotifyClient {
	c := &SpotifyClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      DefaultSpotifyBaseURL,
		tokenURL:     DefaultSpotifyTokenURL,
		httpClient: &http.Client{
			Timeout: DefaultSpotifyTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Configured reports whether client credentials are set.
func (c *SpotifyClient) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// token returns a valid access token, requesting a new one when expired.
func (c *SpotifyClient) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	if !c.Configured() {
		return "", artwork.ErrNoCredentials
	}

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, body)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request status: %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}

	expiresIn := time.Duration(tokenResp.ExpiresIn) * time.Second
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(expiresIn - tokenExpiryBuffer)

	log.Debug().Msg("Obtained Spotify access token")
	return c.accessToken, nil
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []struct {
			Album struct {
				ID     string `json:"id"`
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
			Artists []struct {
				ID string `json:"id"`
			} `json:"artists"`
		} `json:"items"`
	} `json:"tracks"`
}

// searchTrack looks up the best track match and returns its album image
// URL. Artist image and first album match are stored as side results.
func (c *SpotifyClient) searchTrack(ctx context.Context, snap media.Snapshot) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}

	query := fmt.Sprintf("artist:%s track:%s", snap.Artist, snap.Title)
	if snap.Album != "" {
		query += " album:" + snap.Album
	}

	reqURL := fmt.Sprintf("%s/search?q=%s&type=track&limit=1", c.baseURL, url.QueryEscape(query))

	log.Debug().
		Str("artist", snap.Artist).
		Str("title", snap.Title).
		Msg("Searching Spotify for track")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success
	case http.StatusUnauthorized:
		// Token may have been revoked; drop it so the next call refreshes.
		c.tokenMu.Lock()
		c.accessToken = ""
		c.tokenMu.Unlock()
		return "", fmt.Errorf("unauthorized")
	case http.StatusTooManyRequests:
		return "", artwork.ErrRateLimited
	default:
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var searchResp spotifySearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(searchResp.Tracks.Items) == 0 {
		c.setSideResults("", "")
		return "", artwork.ErrNotFound
	}

	item := searchResp.Tracks.Items[0]

	albumImage := ""
	if len(item.Album.Images) > 0 {
		albumImage = item.Album.Images[0].URL
	}

	artistImage := ""
	if len(item.Artists) > 0 && item.Artists[0].ID != "" {
		artistImage = c.artistImage(ctx, token, item.Artists[0].ID)
	}

	c.setSideResults(artistImage, albumImage)

	if albumImage == "" {
		return "", artwork.ErrNotFound
	}
	return albumImage, nil
}

// artistImage fetches the artist's primary image. Failures only cost
// the secondary fallback, so they are swallowed.
func (c *SpotifyClient) artistImage(ctx context.Context, token, artistID string) string {
	reqURL := fmt.Sprintf("%s/artists/%s", c.baseURL, artistID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("artistID", artistID).Msg("Spotify artist lookup failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var artistResp struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&artistResp); err != nil {
		return ""
	}
	if len(artistResp.Images) == 0 {
		return ""
	}
	return artistResp.Images[0].URL
}

func (c *SpotifyClient) setSideResults(artistImage, firstAlbumImage string) {
	c.sideMu.Lock()
	c.artistImageURL = artistImage
	c.firstAlbumImageURL = firstAlbumImage
	c.sideMu.Unlock()
}

func (c *SpotifyClient) sideResults() (artistImage, firstAlbumImage string) {
	c.sideMu.Lock()
	defer c.sideMu.Unlock()
	return c.artistImageURL, c.firstAlbumImageURL
}

// SpotifyAlbum is the primary Spotify source: best track match album art.
type SpotifyAlbum struct {
	client *SpotifyClient
}

// NewSpotifyAlbum creates the primary Spotify album source.
func NewSpotifyAlbum(client *SpotifyClient) *SpotifyAlbum {
	return &SpotifyAlbum{client: client}
}

func (p *SpotifyAlbum) Name() string     { return "spotify" }
func (p *SpotifyAlbum) Configured() bool { return p.client.Configured() }

func (p *SpotifyAlbum) ImageURL(ctx context.Context, snap media.Snapshot) (string, error) {
	if snap.Artist == "" || snap.Title == "" {
		return "", artwork.ErrNotFound
	}
	return p.client.searchTrack(ctx, snap)
}

// SpotifyArtist serves the artist image captured by the last track search.
// It sits near the end of the chain as a lower quality fallback.
type SpotifyArtist struct {
	client *SpotifyClient
}

// NewSpotifyArtist creates the artist-image fallback source.
func NewSpotifyArtist(client *SpotifyClient) *SpotifyArtist {
	return &SpotifyArtist{client: client}
}

func (p *SpotifyArtist) Name() string     { return "spotify_artist" }
func (p *SpotifyArtist) Configured() bool { return p.client.Configured() }

func (p *SpotifyArtist) ImageURL(ctx context.Context, snap media.Snapshot) (string, error) {
	artistImage, _ := p.client.sideResults()
	if artistImage == "" {
		return "", artwork.ErrNotFound
	}
	return artistImage, nil
}

// SpotifyFirstAlbum serves the first album image captured by the last
// track search, even when that album was rejected as the primary match.
type SpotifyFirstAlbum struct {
	client *SpotifyClient
}

// NewSpotifyFirstAlbum creates the first-album-match fallback source.
func NewSpotifyFirstAlbum(client *SpotifyClient) *SpotifyFirstAlbum {
	return &SpotifyFirstAlbum{client: client}
}

func (p *SpotifyFirstAlbum) Name() string     { return "spotify_first_album" }
func (p *SpotifyFirstAlbum) Configured() bool { return p.client.Configured() }

func (p *SpotifyFirstAlbum) ImageURL(ctx context.Context, snap media.Snapshot) (string, error) {
	_, firstAlbum := p.client.sideResults()
	if firstAlbum == "" {
		return "", artwork.ErrNotFound
	}
	return firstAlbum, nil
}
