// Package wled pushes artwork colors to WLED LED controllers via
// their JSON state API. Every configured controller is addressed
// independently; one unreachable strip never blocks the others.
package wled

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single controller update.
const DefaultTimeout = 5 * time.Second

// Settings are the effect parameters applied when no artwork color is
// available, plus the speed and intensity used for every update.
type Settings struct {
	Brightness int // 0-255
	EffectID   int
	PaletteID  int
	Speed      int
	Intensity  int
}

// Client drives one or more WLED controllers.
type Client struct {
	targets    []string
	settings   Settings
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

// WithTargets overrides the state URLs, mainly for tests.
func WithTargets(urls []string) Option {
	return func(c *Client) {
		c.targets = urls
	}
}

// NewClient creates a client addressing the given controller IPs.
func NewClient(ips []string, settings Settings, opts ...Option) *Client {
	c := &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, ip := range ips {
		if ip == "" {
			continue
		}
		c.targets = append(c.targets, fmt.Sprintf("http://%s/json/state", ip))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether any controller is addressed.
func (c *Client) Configured() bool {
	return len(c.targets) > 0
}

type segment struct {
	ID        int     `json:"id"`
	Colors    [][]int `json:"col,omitempty"`
	Effect    *int    `json:"fx,omitempty"`
	Palette   *int    `json:"pal,omitempty"`
	Speed     int     `json:"sx"`
	Intensity int     `json:"ix"`
}

type state struct {
	On         bool      `json:"on"`
	Brightness int       `json:"bri,omitempty"`
	Segments   []segment `json:"seg,omitempty"`
}

// SyncColors lights every controller with the artwork palette. The
// first color drives the segment; a solid color disables the running
// effect. Brightness of zero falls back to the configured level.
func (c *Client) SyncColors(ctx context.Context, colors [][3]uint8, brightness int) error {
	if brightness <= 0 {
		brightness = c.settings.Brightness
	}

	seg := segment{
		ID:        0,
		Speed:     c.settings.Speed,
		Intensity: c.settings.Intensity,
	}
	if len(colors) > 0 {
		for _, col := range colors {
			seg.Colors = append(seg.Colors, []int{int(col[0]), int(col[1]), int(col[2])})
		}
		seg.Effect = intPtr(0)
		seg.Palette = intPtr(0)
	} else {
		seg.Effect = intPtr(c.settings.EffectID)
		seg.Palette = intPtr(c.settings.PaletteID)
	}

	return c.apply(ctx, state{On: true, Brightness: brightness, Segments: []segment{seg}})
}

// Off turns every controller off.
func (c *Client) Off(ctx context.Context) error {
	return c.apply(ctx, state{On: false})
}

// apply posts the state to each controller, continuing past failures.
func (c *Client) apply(ctx context.Context, s state) error {
	if len(c.targets) == 0 {
		return nil
	}

	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal wled state: %w", err)
	}

	var errs []error
	for _, target := range c.targets {
		if err := c.post(ctx, target, body); err != nil {
			log.Warn().Err(err).Str("target", target).Msg("WLED update failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create wled request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post wled state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("wled returned status %d", resp.StatusCode)
	}
	return nil
}

func intPtr(v int) *int {
	return &v
}
