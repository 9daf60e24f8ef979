package providers

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shkh/lastfm-go/lastfm"

	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

// lastfmSizeOrder lists image sizes from most to least preferred.
var lastfmSizeOrder = []string{"mega", "extralarge", "large", "medium"}

// Lastfm fetches album images from the Last.fm album.getInfo endpoint.
type Lastfm struct {
	apiKey string
	api    *lastfm.Api
}

// NewLastfm creates a Last.fm artwork source.
func NewLastfm(apiKey, apiSecret string) *Lastfm {
	l := &Lastfm{apiKey: apiKey}
	if apiKey != "" {
		l.api = lastfm.New(apiKey, apiSecret)
	}
	return l
}

func (l *Lastfm) Name() string     { return "lastfm" }
func (l *Lastfm) Configured() bool { return l.apiKey != "" }

// ImageURL looks up the album and returns the largest available image.
func (l *Lastfm) ImageURL(ctx context.Context, snap media.Snapshot) (string, error) {
	if !l.Configured() {
		return "", artwork.ErrNoCredentials
	}
	if snap.Artist == "" || snap.Album == "" {
		return "", artwork.ErrNotFound
	}

	log.Debug().
		Str("artist", snap.Artist).
		Str("album", snap.Album).
		Msg("Fetching album info from Last.fm")

	info, err := l.api.Album.GetInfo(lastfm.P{
		"artist": snap.Artist,
		"album":  snap.Album,
	})
	if err != nil {
		// The library folds "album not found" into a generic error;
		// either way the chain just moves on.
		log.Debug().Err(err).Str("album", snap.Album).Msg("Last.fm lookup failed")
		return "", artwork.ErrNotFound
	}

	for _, size := range lastfmSizeOrder {
		for _, img := range info.Images {
			if img.Size == size && img.Url != "" {
				return img.Url, nil
			}
		}
	}

	return "", artwork.ErrNotFound
}
