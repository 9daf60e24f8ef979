// Package media defines the immutable snapshot of the media player state
// that flows through the display pipeline.
package media

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind classifies what the player is showing.
type Kind string

const (
	KindMusic Kind = "music"
	KindTV    Kind = "tv"
	KindRadio Kind = "radio"
	KindOff   Kind = "off"
)

var bracketRe = regexp.MustCompile(`\s*\[.*?\]|\s*\(.*?\)`)

var tvApps = []string{"netflix", "plex", "hbo", "disney", "youtube", "tvheadend"}

// Snapshot is a point-in-time view of the watched media player.
// Producers build one per state change; consumers never mutate it.
type Snapshot struct {
	EntityID    string
	State       string // "playing", "paused", "idle", "off", ...
	Title       string
	Artist      string
	Album       string
	ArtworkURL  string // player-supplied artwork, may be empty
	ContentID   string
	ContentType string // "music", "tvshow", "channel", ...
	AppName     string // e.g. "Spotify", "Netflix"

	Duration   time.Duration
	Position   time.Duration
	PositionAt time.Time // when Position was reported
}

// Playing reports whether the player is actively playing.
func (s Snapshot) Playing() bool {
	return s.State == "playing"
}

// Active reports whether the player is in a state worth mirroring.
func (s Snapshot) Active() bool {
	switch s.State {
	case "playing", "paused", "buffering":
		return true
	}
	return false
}

// Kind classifies the current media as TV, radio or music.
func (s Snapshot) Kind() Kind {
	if !s.Active() {
		return KindOff
	}

	app := strings.ToLower(s.AppName)
	title := strings.ToLower(s.Title)

	isTV := false
	switch s.ContentType {
	case "tvshow", "movie", "episode", "channel":
		isTV = true
	}
	if !isTV {
		for _, a := range tvApps {
			if app != "" && strings.Contains(app, a) {
				isTV = true
				break
			}
		}
	}

	isRadio := (s.ContentType == "radio" || s.ContentType == "music") &&
		(strings.Contains(title, "radio") || strings.Contains(title, "fm") ||
			strings.Contains(title, "am") || strings.Contains(app, "tunein"))

	// TV apps can also carry radio streams; TuneIn is the tiebreaker.
	if isTV && isRadio && !strings.Contains(app, "tunein") {
		isRadio = false
	}

	switch {
	case isTV:
		return KindTV
	case isRadio:
		return KindRadio
	default:
		return KindMusic
	}
}

// IsSpotify reports whether the media comes from Spotify.
func (s Snapshot) IsSpotify() bool {
	return strings.Contains(strings.ToLower(s.ContentID), "spotify") ||
		strings.Contains(strings.ToLower(s.AppName), "spotify")
}

// CleanTitle strips bracketed expressions and collapses whitespace,
// e.g. "Song (Remastered 2011) [Live]" becomes "Song".
func (s Snapshot) CleanTitle() string {
	return CleanTitle(s.Title)
}

// CleanTitle strips bracketed expressions and extra spaces from a title.
func CleanTitle(title string) string {
	if title == "" {
		return ""
	}
	title = strings.TrimSpace(bracketRe.ReplaceAllString(title, ""))
	return strings.Join(strings.Fields(title), " ")
}

// EstimatedPosition extrapolates the playback position to now, assuming
// playback continued since the snapshot was reported.
func (s Snapshot) EstimatedPosition(now time.Time) time.Duration {
	if !s.Playing() || s.PositionAt.IsZero() {
		return s.Position
	}
	pos := s.Position + now.Sub(s.PositionAt)
	if s.Duration > 0 && pos > s.Duration {
		pos = s.Duration
	}
	return pos
}

// AIPrompt builds a generation prompt describing the current media.
func (s Snapshot) AIPrompt() string {
	switch {
	case s.Kind() == KindTV && s.Title != "":
		prompt := s.Title
		if s.AppName != "" && !strings.Contains(s.Title, s.AppName) {
			prompt += ", " + s.AppName
		}
		return prompt + ", movie poster style, cinematic lighting, high detail"
	case s.Kind() == KindRadio && s.Title != "":
		return s.Title + ", radio, music broadcast, vibrant colors"
	case s.Artist != "" && s.Title != "":
		prompt := fmt.Sprintf("%s - %s, album cover art, high detail, iconic", s.Artist, s.Title)
		if s.Album != "" && !strings.Contains(s.Title, s.Album) {
			prompt += ", " + s.Album
		}
		return prompt
	case s.Title != "":
		return s.Title + ", abstract art, music visualization"
	default:
		return "abstract colorful music visualization"
	}
}
