package engine

import (
	"strings"
	"sync"

	"github.com/pixoobridge/pixoobridge/internal/config"
	"github.com/pixoobridge/pixoobridge/internal/domain/render"
)

// Features are the display toggles a mode string expands into.
type Features struct {
	ShowLyrics      bool
	ShowClock       bool
	ShowTemperature bool
	ShowText        bool // device-rendered artist/title overlay
	TextBackground  bool
	BurnedText      bool // text baked into the frame instead
	SpecialMode     bool
	ForceAI         bool
	AIModel         string
}

// parseDisplayMode expands a mode string into feature toggles.
// "default" restores the configured baseline; any other mode starts
// from a clean slate and enables features by keyword.
func parseDisplayMode(mode string, defaults Features) Features {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m == "" || m == "default" {
		return defaults
	}

	f := Features{AIModel: defaults.AIModel}

	if strings.Contains(m, "lyrics") {
		f.ShowLyrics = true
	}
	if strings.Contains(m, "special mode") {
		f.SpecialMode = true
	}
	if strings.Contains(m, "clock") {
		f.ShowClock = true
	}
	if strings.Contains(m, "temperature") {
		f.ShowTemperature = true
	}
	if strings.Contains(m, "text") {
		f.ShowText = true
	}
	if strings.Contains(m, "background") {
		f.TextBackground = true
	}
	if strings.Contains(m, "burned") {
		f.BurnedText = true
	}
	if strings.Contains(m, "ai generation") {
		f.ForceAI = true
		if strings.Contains(m, "flux") {
			f.AIModel = "flux"
		} else if strings.Contains(m, "turbo") {
			f.AIModel = "turbo"
		}
	}

	switch m {
	case "album art only", "clean":
		f = Features{AIModel: defaults.AIModel}
	case "lyrics only":
		f = Features{ShowLyrics: true, AIModel: defaults.AIModel}
	}

	// A text background without any widget or text to back is noise.
	if !f.ShowClock && !f.ShowTemperature && !f.ShowText {
		f.TextBackground = false
	}

	return f
}

// Settings is the runtime-adjustable display state, shared between the
// engine and the control transport.
type Settings struct {
	mu           sync.RWMutex
	enabled      bool
	fullControl  bool
	displayMode  string
	crop         render.CropMode
	lyricsOffset int
	features     Features
	defaults     Features
}

// NewSettings derives the initial settings from configuration.
func NewSettings(cfg *config.Config) *Settings {
	defaults := Features{
		ShowLyrics:      cfg.Lyrics.Enabled,
		ShowClock:       cfg.Display.Clock,
		ShowTemperature: cfg.Display.Temperature,
		ShowText:        cfg.Display.ShowText,
		TextBackground:  cfg.Display.TextBackground,
		BurnedText:      cfg.Display.Burned,
		SpecialMode:     cfg.Display.SpecialMode,
		ForceAI:         cfg.AI.Force,
		AIModel:         cfg.AI.Model,
	}
	s := &Settings{
		enabled:      true,
		fullControl:  cfg.Pixoo.FullControl,
		crop:         render.ParseCropMode(cfg.Display.CropMode),
		lyricsOffset: cfg.Lyrics.SyncOffset,
		defaults:     defaults,
	}
	s.setDisplayModeLocked(cfg.Display.Mode)
	return s
}

func (s *Settings) setDisplayModeLocked(mode string) {
	if mode == "" {
		mode = "default"
	}
	s.displayMode = mode
	s.features = parseDisplayMode(mode, s.defaults)
}

// SetDisplayMode switches the display mode.
func (s *Settings) SetDisplayMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setDisplayModeLocked(mode)
}

// SetCropMode switches the artwork crop mode.
func (s *Settings) SetCropMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crop = render.ParseCropMode(mode)
}

// SetLyricsOffset adjusts the lyrics timing, clamped to the valid range.
func (s *Settings) SetLyricsOffset(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lyricsOffset = config.ClampLyricsOffset(seconds)
}

// SetEnabled toggles display updates entirely.
func (s *Settings) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// SetFullControl toggles ownership of the display when idle.
func (s *Settings) SetFullControl(full bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullControl = full
}

// Enabled reports whether display updates run at all.
func (s *Settings) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// FullControl reports whether the daemon owns the display when idle.
func (s *Settings) FullControl() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fullControl
}

// Features returns the current feature toggles.
func (s *Settings) Features() Features {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features
}

// CropMode returns the current crop mode.
func (s *Settings) CropMode() render.CropMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crop
}

// LyricsOffset returns the current lyrics offset in seconds.
func (s *Settings) LyricsOffset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lyricsOffset
}

// DisplayMode returns the active mode string.
func (s *Settings) DisplayMode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayMode
}
