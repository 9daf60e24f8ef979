// Package config loads and validates the daemon configuration from TOML.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

// Lyrics sync offset bounds, in seconds.
const (
	MinLyricsOffset = -10
	MaxLyricsOffset = 10
)

var (
	ipv4Re = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	hexRe  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)
)

type Config struct {
	Server Server `koanf:"server"`
	Pixoo  Pixoo  `koanf:"pixoo"`
	Media  Media  `koanf:"media"`

	Spotify     Spotify     `koanf:"spotify"`
	Discogs     Discogs     `koanf:"discogs"`
	Lastfm      Lastfm      `koanf:"lastfm"`
	Tidal       Tidal       `koanf:"tidal"`
	MusicBrainz MusicBrainz `koanf:"musicbrainz"`
	AI          AI          `koanf:"ai"`

	Display Display `koanf:"display"`
	Lyrics  Lyrics  `koanf:"lyrics"`
	WLED    WLED    `koanf:"wled"`
	Lights  Lights  `koanf:"lights"`
	Cache   Cache   `koanf:"cache"`
}

// Server holds the HTTP/Socket.io listener settings.
type Server struct {
	Port string `koanf:"port"`
}

// Pixoo holds the target device settings.
type Pixoo struct {
	IP          string `koanf:"ip"`
	FullControl bool   `koanf:"full_control"` // own the screen when playback stops
	Brightness  int    `koanf:"brightness"`   // 0-100
}

// Media selects and configures the media source.
type Media struct {
	Source string `koanf:"source"` // "hass" or "mpd"
	Hass   Hass   `koanf:"hass"`
	MPD    MPD    `koanf:"mpd"`
}

// Hass holds Home Assistant API access settings.
type Hass struct {
	URL               string `koanf:"url"`   // e.g. "http://homeassistant.local:8123"
	Token             string `koanf:"token"` // long-lived access token
	Entity            string `koanf:"entity"`
	TemperatureEntity string `koanf:"temperature_entity"`
}

// MPD holds MPD connection settings.
type MPD struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
}

// Spotify holds client-credentials API access.
type Spotify struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

// Discogs holds the personal access token.
type Discogs struct {
	Token string `koanf:"token"`
}

// Lastfm holds Last.fm API access.
type Lastfm struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// Tidal holds TIDAL API access.
type Tidal struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

// MusicBrainz toggles the credential-free MusicBrainz/Cover Art Archive lookup.
type MusicBrainz struct {
	Enabled bool `koanf:"enabled"`
}

// AI configures generated-artwork fallback.
type AI struct {
	Model string `koanf:"model"` // "turbo" or "flux"
	Force bool   `koanf:"force"` // always generate, ignore real artwork
}

// Display holds rendering options for the 64x64 canvas.
type Display struct {
	Mode           string `koanf:"mode"`      // display mode string, "default" keeps these toggles
	CropMode       string `koanf:"crop_mode"` // "none", "crop", "extra"
	Sharpness      bool   `koanf:"sharpness"`
	Contrast       bool   `koanf:"contrast"`
	Colors         bool   `koanf:"colors"` // saturation boost
	Kernel         bool   `koanf:"kernel"` // kernel sharpen pass
	ShowText       bool   `koanf:"show_text"`
	Burned         bool   `koanf:"burned"` // burn text into the frame instead of device overlay
	CleanTitle     bool   `koanf:"clean_title"`
	TextBackground bool   `koanf:"text_background"`
	FontColor      string `koanf:"font_color"` // "#RGB"/"#RRGGBB", empty = automatic
	Clock          bool   `koanf:"clock"`
	ClockAlign     string `koanf:"clock_align"` // "left" or "right"
	Temperature    bool   `koanf:"temperature"`
	SpecialMode    bool   `koanf:"special_mode"`
	InfoFallback   bool   `koanf:"info_fallback"` // show artist/title text when no artwork
	TVIcon         bool   `koanf:"tv_icon"`
}

// Lyrics configures the synced-lyrics display.
type Lyrics struct {
	Enabled    bool `koanf:"enabled"`
	Font       int  `koanf:"font"`
	SyncOffset int  `koanf:"sync_offset"` // seconds, clamped to [-10, 10]
}

// WLED configures the color push to WLED controllers.
type WLED struct {
	IPs             string `koanf:"ips"` // comma separated IPv4 list
	Brightness      int    `koanf:"brightness"`
	Effect          int    `koanf:"effect"`
	Palette         int    `koanf:"palette"`
	EffectSpeed     int    `koanf:"effect_speed"`
	EffectIntensity int    `koanf:"effect_intensity"`
}

// Lights configures Home Assistant light sync.
type Lights struct {
	Entities []string `koanf:"entities"`
}

// Cache configures the local artwork cache.
type Cache struct {
	Dir        string `koanf:"dir"`
	MaxEntries int    `koanf:"max_entries"`
}

// Load reads the TOML config at path, applies defaults and normalizes
// the fields that the rest of the daemon relies on being valid.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: Server{Port: "3002"},
		Pixoo:  Pixoo{Brightness: 70},
		Media: Media{
			Source: "hass",
			MPD:    MPD{Host: "localhost", Port: 6600},
		},
		AI: AI{Model: "turbo"},
		Display: Display{
			Mode:       "default",
			CropMode:   "none",
			ShowText:   false,
			CleanTitle: true,
			ClockAlign: "right",
		},
		Lyrics: Lyrics{Font: 190},
		WLED: WLED{
			Brightness:      255,
			Effect:          38,
			Palette:         0,
			EffectSpeed:     60,
			EffectIntensity: 128,
		},
		Cache: Cache{MaxEntries: 25},
	}
}

func (c *Config) normalize() {
	c.Media.Source = strings.ToLower(strings.TrimSpace(c.Media.Source))
	c.Media.Hass.URL = strings.TrimSuffix(c.Media.Hass.URL, "/")
	c.Display.ClockAlign = strings.ToLower(strings.TrimSpace(c.Display.ClockAlign))
	c.AI.Model = strings.ToLower(strings.TrimSpace(c.AI.Model))

	// An invalid custom font color falls back to automatic selection.
	if c.Display.FontColor != "" && !hexRe.MatchString(c.Display.FontColor) {
		log.Warn().Str("color", c.Display.FontColor).Msg("Invalid font color, using automatic")
		c.Display.FontColor = ""
	}

	c.Lyrics.SyncOffset = ClampLyricsOffset(c.Lyrics.SyncOffset)

	if c.Pixoo.Brightness < 0 {
		c.Pixoo.Brightness = 0
	}
	if c.Pixoo.Brightness > 100 {
		c.Pixoo.Brightness = 100
	}
	if c.WLED.Brightness < 0 {
		c.WLED.Brightness = 0
	}
	if c.WLED.Brightness > 255 {
		c.WLED.Brightness = 255
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 25
	}
}

func (c *Config) validate() error {
	if c.Pixoo.IP == "" {
		return fmt.Errorf("pixoo.ip is required")
	}
	switch c.Media.Source {
	case "hass":
		if c.Media.Hass.URL == "" || c.Media.Hass.Token == "" || c.Media.Hass.Entity == "" {
			return fmt.Errorf("media.hass requires url, token and entity")
		}
	case "mpd":
		if c.Media.MPD.Host == "" {
			return fmt.Errorf("media.mpd requires host")
		}
	default:
		return fmt.Errorf("media.source must be \"hass\" or \"mpd\", got %q", c.Media.Source)
	}
	if c.AI.Model != "turbo" && c.AI.Model != "flux" {
		return fmt.Errorf("ai.model must be \"turbo\" or \"flux\", got %q", c.AI.Model)
	}
	return nil
}

// WLEDTargets parses the comma separated WLED IP list, trimming whitespace
// around each entry and dropping anything that is not a dotted IPv4 address.
func (c *Config) WLEDTargets() []string {
	return ParseWLEDIPs(c.WLED.IPs)
}

// ParseWLEDIPs splits a comma separated IP list into validated addresses.
func ParseWLEDIPs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		ip := strings.TrimSpace(part)
		if ip == "" {
			continue
		}
		if !ipv4Re.MatchString(ip) {
			log.Warn().Str("ip", ip).Msg("Ignoring invalid WLED address")
			continue
		}
		out = append(out, ip)
	}
	return out
}

// ClampLyricsOffset bounds a lyrics sync offset to [-10, 10] seconds.
func ClampLyricsOffset(sec int) int {
	if sec < MinLyricsOffset {
		return MinLyricsOffset
	}
	if sec > MaxLyricsOffset {
		return MaxLyricsOffset
	}
	return sec
}

// ValidHexColor reports whether s is a #RGB or #RRGGBB color.
func ValidHexColor(s string) bool {
	return hexRe.MatchString(s)
}
