package providers

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

// Tidal is a stub source. The TIDAL API requires a full OAuth device
// flow that is not wired up yet, so configured credentials keep the
// slot in the chain but never yield an image.
// TODO: implement the TIDAL OAuth device flow and album search.
type Tidal struct {
	clientID     string
	clientSecret string
}

// NewTidal creates the TIDAL artwork source stub.
func NewTidal(clientID, clientSecret string) *Tidal {
	return &Tidal{clientID: clientID, clientSecret: clientSecret}
}

func (t *Tidal) Name() string     { return "tidal" }
func (t *Tidal) Configured() bool { return t.clientID != "" && t.clientSecret != "" }

func (t *Tidal) ImageURL(ctx context.Context, snap media.Snapshot) (string, error) {
	if !t.Configured() {
		return "", artwork.ErrNoCredentials
	}
	log.Debug().Msg("TIDAL source is not implemented, skipping")
	return "", artwork.ErrNotFound
}
