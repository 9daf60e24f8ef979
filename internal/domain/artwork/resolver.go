package artwork

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

const (
	// MaxImageSize is the maximum image size to download (10MB)
	MaxImageSize = 10 * 1024 * 1024

	// DefaultFetchTimeout for downloading a resolved image URL
	DefaultFetchTimeout = 15 * time.Second

	// SourcePlayer marks artwork supplied directly by the media player
	SourcePlayer = "player"

	// SourceCache marks artwork served from the local cache
	SourceCache = "cache"
)

// Resolver finds artwork for a media snapshot.
// Resolution order:
// 1. Check cache (keyed by artist/album)
// 2. Player-supplied artwork URL
// 3. Fallback chain: spotify, discogs, lastfm, tidal, musicbrainz,
//    spotify artist image, spotify first album match
// 4. Generated image (terminal, always produces a URL)
// The chain only runs for music; generation also covers TV and radio.
type Resolver struct {
	chain      []Provider
	generator  Provider
	cache      Cache
	httpClient *http.Client
	userAgent  string

	forceMu sync.RWMutex
	forceAI bool
}

// Option is a functional option for configuring the resolver.
type Option func(*Resolver)

// WithCache sets the artwork cache.
func WithCache(c Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithHTTPClient sets a custom HTTP client for image downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = client
	}
}

// WithUserAgent sets the User-Agent used for image downloads.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) {
		r.userAgent = ua
	}
}

// WithForceGenerated makes the resolver skip all real sources and
// always use the generated image provider.
func WithForceGenerated(force bool) Option {
	return func(r *Resolver) {
		r.forceAI = force
	}
}

// NewResolver creates a resolver with the given fallback chain and
// terminal generator. Chain order is fixed at construction.
func NewResolver(chain []Provider, generator Provider, opts ...Option) *Resolver {
	r := &Resolver{
		chain:     chain,
		generator: generator,
		httpClient: &http.Client{
			Timeout: DefaultFetchTimeout,
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// SetForceGenerated toggles generation-only mode at runtime, for
// display modes that request generated artwork.
func (r *Resolver) SetForceGenerated(force bool) {
	r.forceMu.Lock()
	r.forceAI = force
	r.forceMu.Unlock()
}

func (r *Resolver) forceGenerated() bool {
	r.forceMu.RLock()
	defer r.forceMu.RUnlock()
	return r.forceAI
}

// Resolve finds and downloads artwork for the snapshot.
// Returns ErrNoArtwork when every source is exhausted.
func (r *Resolver) Resolve(ctx context.Context, snap media.Snapshot) (*Resolved, error) {
	key := CacheKey(snap)

	if r.cache != nil && !r.forceGenerated() {
		if art, ok := r.cache.Get(key); ok {
			log.Debug().Str("key", key).Str("origin", art.Source).Msg("Artwork cache hit")
			cached := *art
			cached.Source = SourceCache
			return &cached, nil
		}
	}

	if r.forceGenerated() {
		return r.generate(ctx, snap, key)
	}

	// Player-supplied artwork always wins; no source is consulted.
	if snap.ArtworkURL != "" {
		art, err := r.fetch(ctx, snap.ArtworkURL, SourcePlayer)
		if err == nil {
			r.store(key, art)
			return art, nil
		}
		log.Warn().Err(err).Str("url", snap.ArtworkURL).Msg("Player artwork fetch failed, trying fallbacks")
	}

	// Fallback chain applies to music only; TV and radio go straight
	// to generation.
	if snap.Kind() == media.KindMusic {
		for _, p := range r.chain {
			if !p.Configured() {
				log.Debug().Str("source", p.Name()).Msg("Artwork source not configured, skipping")
				continue
			}

			url, err := p.ImageURL(ctx, snap)
			if err != nil {
				if errors.Is(err, ErrNoCredentials) || errors.Is(err, ErrNotFound) {
					log.Debug().Str("source", p.Name()).Msg("Artwork source has no image")
				} else if ctx.Err() != nil {
					return nil, ctx.Err()
				} else {
					log.Debug().Err(err).Str("source", p.Name()).Msg("Artwork source failed, skipping")
				}
				continue
			}
			if url == "" {
				continue
			}

			art, err := r.fetch(ctx, url, p.Name())
			if err != nil {
				log.Debug().Err(err).Str("source", p.Name()).Str("url", url).Msg("Artwork download failed, skipping")
				continue
			}

			log.Info().Str("source", p.Name()).Str("artist", snap.Artist).Str("title", snap.Title).Msg("Artwork resolved")
			r.store(key, art)
			return art, nil
		}
	}

	return r.generate(ctx, snap, key)
}

func (r *Resolver) generate(ctx context.Context, snap media.Snapshot, key string) (*Resolved, error) {
	if r.generator == nil || !r.generator.Configured() {
		return nil, ErrNoArtwork
	}

	url, err := r.generator.ImageURL(ctx, snap)
	if err != nil || url == "" {
		log.Warn().Err(err).Msg("Artwork generation failed")
		return nil, ErrNoArtwork
	}

	art, err := r.fetch(ctx, url, r.generator.Name())
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Generated artwork download failed")
		return nil, ErrNoArtwork
	}

	// Generated images are track-specific; only cache when forced so
	// repeated renders of the same track stay stable.
	if r.forceGenerated() {
		r.store(key, art)
	}
	return art, nil
}

func (r *Resolver) store(key string, art *Resolved) {
	if r.cache == nil || key == "" {
		return
	}
	if err := r.cache.Put(key, art); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache artwork")
	}
}

// fetch downloads an image URL with a size cap and MIME detection.
func (r *Resolver) fetch(ctx context.Context, url, source string) (*Resolved, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Success - read the image
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return nil, ErrTemporaryFailure
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = DetectMimeType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("not an image: %s", mimeType)
	}

	return &Resolved{
		Source:     source,
		URL:        url,
		Data:       data,
		MimeType:   mimeType,
		ResolvedAt: time.Now(),
	}, nil
}

// CacheKey derives a stable cache key from the media identity.
// Title is included for radio streams that have no album.
func CacheKey(snap media.Snapshot) string {
	if snap.Artist == "" && snap.Album == "" && snap.Title == "" {
		return ""
	}
	id := strings.ToLower(snap.Artist) + "\x00" + strings.ToLower(snap.Album)
	if snap.Album == "" {
		id += "\x00" + strings.ToLower(snap.Title)
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(id)))
}
