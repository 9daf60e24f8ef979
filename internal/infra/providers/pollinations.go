package providers

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

const (
	// DefaultPollinationsBaseURL is the Pollinations image generation endpoint
	DefaultPollinationsBaseURL = "https://image.pollinations.ai"

	// canvas size requested from the generator
	generatedSize = 64
)

// Pollinations generates artwork from a text prompt describing the
// current media. It is the terminal source in the chain: given any
// prompt it always produces a URL.
type Pollinations struct {
	mu      sync.RWMutex
	model   string // "turbo" or "flux"
	baseURL string
}

// PollinationsOption is a functional option for the generated source.
type PollinationsOption func(*Pollinations)

// WithPollinationsBaseURL sets a custom base URL (useful for testing).
func WithPollinationsBaseURL(url string) PollinationsOption {
	return func(p *Pollinations) {
		p.baseURL = url
	}
}

// NewPollinations creates the generated-artwork source.
func NewPollinations(model string, opts ...PollinationsOption) *Pollinations {
	if model != "turbo" && model != "flux" {
		model = "turbo"
	}
	p := &Pollinations{
		model:   model,
		baseURL: DefaultPollinationsBaseURL,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Pollinations) Name() string     { return "generated" }
func (p *Pollinations) Configured() bool { return true }

// SetModel switches the generation model at runtime. Unknown models
// are ignored.
func (p *Pollinations) SetModel(model string) {
	if model != "turbo" && model != "flux" {
		return
	}
	p.mu.Lock()
	p.model = model
	p.mu.Unlock()
}

// ImageURL builds the generation URL for the media's prompt.
func (p *Pollinations) ImageURL(ctx context.Context, snap media.Snapshot) (string, error) {
	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()

	prompt := snap.AIPrompt()
	genURL := fmt.Sprintf("%s/prompt/%s?model=%s&width=%d&height=%d&nologo=true",
		p.baseURL, url.PathEscape(prompt), model, generatedSize, generatedSize)

	log.Debug().Str("prompt", prompt).Str("model", model).Msg("Built generated artwork URL")
	return genURL, nil
}
