// Package engine orchestrates the display pipeline: it debounces
// player events, resolves artwork, renders frames and fans the result
// out to the device, the WLED strips and the light entities.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/config"
	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/lyrics"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
	"github.com/pixoobridge/pixoobridge/internal/domain/render"
	"github.com/pixoobridge/pixoobridge/internal/infra/pixoo"
)

const (
	// debounceWindow collapses the burst of state events a track
	// change produces into one display update.
	debounceWindow = 500 * time.Millisecond

	// pausedOffDelay is how long a pause lasts before the display
	// falls back to the idle screen.
	pausedOffDelay = 5 * time.Second

	// frameSpeed is the GIF frame speed sent to the device.
	frameSpeed = 100

	// lyricsTick drives the lyrics position re-evaluation.
	lyricsTick = time.Second

	overlayTextID = 1
	lyricsTextID  = 2
	textSpeed     = 80
	textY         = 48
)

// Device is the subset of the display protocol the engine drives.
type Device interface {
	PushFrame(ctx context.Context, gifBase64 string, speed int) error
	ShowText(ctx context.Context, t pixoo.Text) error
	ClearText(ctx context.Context) error
	ShowItems(ctx context.Context, items pixoo.Items) error
	SetBrightness(ctx context.Context, brightness int) error
}

// ArtworkResolver finds artwork for a snapshot.
type ArtworkResolver interface {
	Resolve(ctx context.Context, snap media.Snapshot) (*artwork.Resolved, error)
	SetForceGenerated(force bool)
}

// ColorSync mirrors the artwork palette onto LED strips.
type ColorSync interface {
	SyncColors(ctx context.Context, colors [][3]uint8, brightness int) error
	Off(ctx context.Context) error
	Configured() bool
}

// LightSync mirrors the artwork average color onto light entities.
type LightSync interface {
	On(ctx context.Context, rgb [3]uint8, brightness int) error
	Off(ctx context.Context) error
	Configured() bool
}

// LyricsSource fetches time-coded lyrics for a track.
type LyricsSource interface {
	Fetch(ctx context.Context, artist, title string) ([]lyrics.Line, error)
}

// Status is the externally visible engine state.
type Status struct {
	Enabled       bool   `json:"enabled"`
	FullControl   bool   `json:"fullControl"`
	DisplayMode   string `json:"displayMode"`
	CropMode      string `json:"cropMode"`
	LyricsOffset  int    `json:"lyricsOffset"`
	PlayerState   string `json:"playerState"`
	Artist        string `json:"artist"`
	Title         string `json:"title"`
	Album         string `json:"album"`
	ArtworkSource string `json:"artworkSource"`
}

// Engine runs the display update pipeline.
type Engine struct {
	cfg      *config.Config
	settings *Settings
	device   Device
	resolver ArtworkResolver
	wled     ColorSync
	lights   LightSync
	lyrics   LyricsSource

	localArt    func(ctx context.Context, snap media.Snapshot) ([]byte, error)
	temperature func(ctx context.Context) string
	onStatus    func(Status)

	mu     sync.Mutex
	cancel context.CancelFunc
	last   media.Snapshot
	source string
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*Engine)

// WithLyricsSource enables the synced lyrics display.
func WithLyricsSource(src LyricsSource) EngineOption {
	return func(e *Engine) {
		e.lyrics = src
	}
}

// WithColorSync enables WLED palette sync.
func WithColorSync(ws ColorSync) EngineOption {
	return func(e *Engine) {
		e.wled = ws
	}
}

// WithLightSync enables light entity color sync.
func WithLightSync(ls LightSync) EngineOption {
	return func(e *Engine) {
		e.lights = ls
	}
}

// WithLocalArtwork supplies player-local artwork bytes, tried before
// any network source. Used for MPD embedded covers.
func WithLocalArtwork(fn func(ctx context.Context, snap media.Snapshot) ([]byte, error)) EngineOption {
	return func(e *Engine) {
		e.localArt = fn
	}
}

// WithTemperatureSource supplies an external temperature reading for
// the device widget.
func WithTemperatureSource(fn func(ctx context.Context) string) EngineOption {
	return func(e *Engine) {
		e.temperature = fn
	}
}

// WithStatusListener is called after every display update, for
// pushing status to connected clients.
func WithStatusListener(fn func(Status)) EngineOption {
	return func(e *Engine) {
		e.onStatus = fn
	}
}

// New creates the engine.
func New(cfg *config.Config, settings *Settings, device Device, resolver ArtworkResolver, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:      cfg,
		settings: settings,
		device:   device,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings exposes the runtime-adjustable state, for the transport.
func (e *Engine) Settings() *Settings {
	return e.settings
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	last := e.last
	source := e.source
	e.mu.Unlock()

	return Status{
		Enabled:       e.settings.Enabled(),
		FullControl:   e.settings.FullControl(),
		DisplayMode:   e.settings.DisplayMode(),
		CropMode:      e.settings.CropMode().String(),
		LyricsOffset:  e.settings.LyricsOffset(),
		PlayerState:   last.State,
		Artist:        last.Artist,
		Title:         last.Title,
		Album:         last.Album,
		ArtworkSource: source,
	}
}

// Refresh re-renders the current state, used after settings changes.
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	last := e.last
	e.mu.Unlock()
	if last.EntityID == "" {
		return
	}
	e.dispatch(ctx, last)
}

// Run consumes player snapshots until the context ends.
func (e *Engine) Run(ctx context.Context, changes <-chan media.Snapshot) error {
	if err := e.device.SetBrightness(ctx, e.cfg.Pixoo.Brightness); err != nil {
		log.Warn().Err(err).Msg("Setting device brightness failed")
	}

	deb := newUpdateDebouncer(debounceWindow, func(snap media.Snapshot) {
		e.dispatch(ctx, snap)
	})
	defer deb.Stop()

	for {
		select {
		case <-ctx.Done():
			e.cancelCurrent()
			return ctx.Err()
		case snap, ok := <-changes:
			if !ok {
				e.cancelCurrent()
				return nil
			}
			deb.Trigger(snap)
		}
	}
}

// dispatch supersedes the running update and starts a new one.
func (e *Engine) dispatch(parent context.Context, snap media.Snapshot) {
	uctx, cancel := context.WithCancel(parent)

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = cancel
	e.last = snap
	e.mu.Unlock()

	go e.handleUpdate(uctx, snap)
}

func (e *Engine) cancelCurrent() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
}

func (e *Engine) handleUpdate(ctx context.Context, snap media.Snapshot) {
	if !e.settings.Enabled() {
		return
	}

	f := e.settings.Features()
	e.resolver.SetForceGenerated(f.ForceAI)

	defer e.notifyStatus()

	switch {
	case snap.Playing():
		e.renderPlaying(ctx, snap, f)
	case snap.State == "paused":
		// A short pause should not blank the screen.
		select {
		case <-ctx.Done():
			return
		case <-time.After(pausedOffDelay):
		}
		e.renderIdle(ctx, f)
	default:
		e.renderIdle(ctx, f)
	}
}

// renderIdle handles stopped/off playback: lights out, and the screen
// blanked with optional widgets when the daemon owns the display.
func (e *Engine) renderIdle(ctx context.Context, f Features) {
	e.setSource("")
	e.lightsOff(ctx)

	if !e.settings.FullControl() {
		log.Debug().Msg("Playback idle, leaving the display alone")
		return
	}

	frame, err := render.BlackFrame()
	if err != nil {
		log.Error().Err(err).Msg("Building idle frame failed")
		return
	}
	if err := e.device.PushFrame(ctx, frame, frameSpeed); err != nil {
		log.Warn().Err(err).Msg("Pushing idle frame failed")
		return
	}
	if err := e.device.ClearText(ctx); err != nil {
		log.Debug().Err(err).Msg("Clearing device text failed")
	}
	e.applyWidgets(ctx, f, "#FFFFFF")
}

func (e *Engine) renderPlaying(ctx context.Context, snap media.Snapshot, f Features) {
	data, source := e.artworkFor(ctx, snap)
	if data == nil {
		if ctx.Err() != nil {
			return
		}
		e.renderNoArtwork(ctx, snap, f)
		return
	}

	frame, err := render.Process(data, e.renderOptions(snap, f))
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("Artwork processing failed")
		return
	}
	if ctx.Err() != nil {
		return
	}

	if err := e.device.PushFrame(ctx, frame.GIFBase64, frameSpeed); err != nil {
		log.Error().Err(err).Msg("Pushing frame failed")
		return
	}
	e.setSource(source)

	e.applyWidgets(ctx, f, frame.FontColor)
	e.applyText(ctx, snap, f, frame.FontColor)
	e.syncLights(ctx, frame)

	log.Info().
		Str("artist", snap.Artist).
		Str("title", snap.Title).
		Str("source", source).
		Msg("Display updated")

	if f.ShowLyrics && e.lyrics != nil && snap.Artist != "" && snap.Title != "" {
		e.lyricsLoop(ctx, snap, frame.FontColor)
	}
}

// artworkFor returns the raw artwork bytes and their source, trying
// player-local artwork before the resolver.
func (e *Engine) artworkFor(ctx context.Context, snap media.Snapshot) ([]byte, string) {
	if e.localArt != nil && snap.ArtworkURL == "" && !e.settings.Features().ForceAI {
		if data, err := e.localArt(ctx, snap); err == nil && len(data) > 0 {
			return data, artwork.SourcePlayer
		}
	}

	art, err := e.resolver.Resolve(ctx, snap)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("artist", snap.Artist).Str("title", snap.Title).Msg("No artwork resolved")
		}
		return nil, ""
	}
	return art.Data, art.Source
}

// renderNoArtwork blanks the screen and, when configured, shows the
// track info as text so the display is not just dark.
func (e *Engine) renderNoArtwork(ctx context.Context, snap media.Snapshot, f Features) {
	e.setSource("")
	e.lightsOff(ctx)

	frame, err := render.BlackFrame()
	if err != nil {
		return
	}
	if err := e.device.PushFrame(ctx, frame, frameSpeed); err != nil {
		log.Warn().Err(err).Msg("Pushing fallback frame failed")
		return
	}
	e.applyWidgets(ctx, f, "#FFFFFF")

	if e.cfg.Display.TVIcon && snap.Kind() == media.KindTV {
		name := snap.AppName
		if name == "" {
			name = "TV"
		}
		err := e.device.ShowText(ctx, pixoo.Text{
			ID: overlayTextID, X: 0, Y: textY,
			Font: e.cfg.Lyrics.Font, Speed: textSpeed,
			Text: name, Color: "#FFFFFF",
		})
		if err != nil {
			log.Debug().Err(err).Msg("Showing TV label failed")
		}
		return
	}

	if e.cfg.Display.InfoFallback && snap.Title != "" {
		text := e.overlayText(snap)
		err := e.device.ShowText(ctx, pixoo.Text{
			ID: overlayTextID, X: 0, Y: textY,
			Font: e.cfg.Lyrics.Font, Speed: textSpeed,
			Text: text, Color: "#FFFFFF",
		})
		if err != nil {
			log.Debug().Err(err).Msg("Showing fallback text failed")
		}
	}
}

func (e *Engine) renderOptions(snap media.Snapshot, f Features) render.Options {
	opts := render.Options{
		Crop:           e.settings.CropMode(),
		Sharpness:      e.cfg.Display.Sharpness,
		Contrast:       e.cfg.Display.Contrast,
		Colors:         e.cfg.Display.Colors,
		Kernel:         e.cfg.Display.Kernel,
		SpecialMode:    f.SpecialMode,
		SpecialCompact: f.SpecialMode && (f.ShowClock || f.ShowTemperature),
		TextBackground: f.TextBackground,
		FontColor:      e.cfg.Display.FontColor,
	}
	if f.BurnedText {
		opts.OverlayText = e.overlayText(snap)
	}
	return opts
}

func (e *Engine) overlayText(snap media.Snapshot) string {
	title := snap.Title
	if e.cfg.Display.CleanTitle {
		title = snap.CleanTitle()
	}
	if snap.Artist == "" {
		return title
	}
	return snap.Artist + " - " + title
}

// applyWidgets shows or clears the clock/temperature widgets.
func (e *Engine) applyWidgets(ctx context.Context, f Features, fontColor string) {
	if !f.ShowClock && !f.ShowTemperature {
		if err := e.device.ShowItems(ctx, pixoo.Items{}); err != nil {
			log.Debug().Err(err).Msg("Clearing device widgets failed")
		}
		return
	}

	items := pixoo.Items{
		Clock:       f.ShowClock,
		ClockRight:  e.cfg.Display.ClockAlign == "right",
		Temperature: f.ShowTemperature,
		FontColor:   fontColor,
	}
	if f.ShowTemperature && e.temperature != nil {
		items.TempReading = e.temperature(ctx)
	}
	if err := e.device.ShowItems(ctx, items); err != nil {
		log.Warn().Err(err).Msg("Showing device widgets failed")
	}
}

// applyText shows the device-rendered track text, unless lyrics or
// burned text already cover it.
func (e *Engine) applyText(ctx context.Context, snap media.Snapshot, f Features, fontColor string) {
	if !f.ShowText || f.BurnedText || f.ShowLyrics {
		if err := e.device.ClearText(ctx); err != nil {
			log.Debug().Err(err).Msg("Clearing device text failed")
		}
		return
	}

	err := e.device.ShowText(ctx, pixoo.Text{
		ID: overlayTextID, X: 0, Y: textY,
		Font: e.cfg.Lyrics.Font, Speed: textSpeed,
		Text: e.overlayText(snap), Color: fontColor,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Showing device text failed")
	}
}

func (e *Engine) syncLights(ctx context.Context, frame *render.Frame) {
	if e.lights != nil && e.lights.Configured() {
		if err := e.lights.On(ctx, frame.AvgColor, frame.Brightness); err != nil {
			log.Warn().Err(err).Msg("Light sync failed")
		}
	}
	if e.wled != nil && e.wled.Configured() {
		if err := e.wled.SyncColors(ctx, paletteRGB(frame.Palette), frame.Brightness); err != nil {
			log.Warn().Err(err).Msg("WLED sync failed")
		}
	}
}

func (e *Engine) lightsOff(ctx context.Context) {
	if e.lights != nil && e.lights.Configured() {
		if err := e.lights.Off(ctx); err != nil {
			log.Debug().Err(err).Msg("Light off failed")
		}
	}
	if e.wled != nil && e.wled.Configured() {
		if err := e.wled.Off(ctx); err != nil {
			log.Debug().Err(err).Msg("WLED off failed")
		}
	}
}

// lyricsLoop shows the current lyrics line until the update is
// superseded or the track position runs out.
func (e *Engine) lyricsLoop(ctx context.Context, snap media.Snapshot, fontColor string) {
	lines, err := e.lyrics.Fetch(ctx, snap.Artist, snap.CleanTitle())
	if err != nil {
		log.Debug().Err(err).Str("artist", snap.Artist).Str("title", snap.Title).Msg("No lyrics")
		return
	}

	tl := lyrics.NewTimeline(lines, e.settings.LyricsOffset())
	if tl.Empty() {
		return
	}

	ticker := time.NewTicker(lyricsTick)
	defer ticker.Stop()

	current := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			line, visible := tl.LineAt(snap.EstimatedPosition(time.Now()))
			switch {
			case visible && line != current:
				err := e.device.ShowText(ctx, pixoo.Text{
					ID: lyricsTextID, X: 0, Y: textY,
					Font: e.cfg.Lyrics.Font, Speed: textSpeed,
					Text: line, Color: fontColor,
				})
				if err != nil {
					log.Debug().Err(err).Msg("Showing lyrics line failed")
					continue
				}
				current = line
			case !visible && current != "":
				if err := e.device.ClearText(ctx); err == nil {
					current = ""
				}
			}
		}
	}
}

func (e *Engine) setSource(source string) {
	e.mu.Lock()
	e.source = source
	e.mu.Unlock()
}

func (e *Engine) notifyStatus() {
	if e.onStatus != nil {
		e.onStatus(e.Status())
	}
}

// paletteRGB parses the palette hex strings into RGB triplets.
func paletteRGB(palette []string) [][3]uint8 {
	var out [][3]uint8
	for _, hex := range palette {
		c, err := colorful.Hex(hex)
		if err != nil {
			continue
		}
		r, g, b := c.RGB255()
		out = append(out, [3]uint8{r, g, b})
	}
	return out
}
