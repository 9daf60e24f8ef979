package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

func TestPollinationsImageURL(t *testing.T) {
	p := NewPollinations("flux")

	snap := media.Snapshot{
		State:       "playing",
		ContentType: "music",
		Artist:      "Radiohead",
		Title:       "Karma Police",
	}

	url, err := p.ImageURL(context.Background(), snap)
	if err != nil {
		t.Fatalf("ImageURL failed: %v", err)
	}

	if !strings.HasPrefix(url, DefaultPollinationsBaseURL+"/prompt/") {
		t.Errorf("Unexpected URL prefix: %q", url)
	}
	if !strings.Contains(url, "model=flux") {
		t.Errorf("Expected flux model in URL: %q", url)
	}
	if !strings.Contains(url, "width=64&height=64") {
		t.Errorf("Expected 64x64 canvas in URL: %q", url)
	}
	if !strings.Contains(url, "nologo=true") {
		t.Errorf("Expected nologo in URL: %q", url)
	}
	if strings.Contains(url, " ") {
		t.Errorf("Prompt must be escaped: %q", url)
	}
}

func TestPollinationsInvalidModelFallsBack(t *testing.T) {
	p := NewPollinations("dalle")

	url, err := p.ImageURL(context.Background(), media.Snapshot{Title: "x"})
	if err != nil {
		t.Fatalf("ImageURL failed: %v", err)
	}
	if !strings.Contains(url, "model=turbo") {
		t.Errorf("Expected fallback to turbo model: %q", url)
	}
}

func TestPollinationsAlwaysConfigured(t *testing.T) {
	if !NewPollinations("turbo").Configured() {
		t.Error("Generated source should always be configured")
	}
}

func TestTidalStub(t *testing.T) {
	unconfigured := NewTidal("", "")
	if unconfigured.Configured() {
		t.Error("TIDAL without credentials should not be configured")
	}
	if _, err := unconfigured.ImageURL(context.Background(), media.Snapshot{}); err != artwork.ErrNoCredentials {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}

	configured := NewTidal("id", "secret")
	if !configured.Configured() {
		t.Error("TIDAL with credentials should be configured")
	}
	if _, err := configured.ImageURL(context.Background(), media.Snapshot{Artist: "A", Album: "B"}); err != artwork.ErrNotFound {
		t.Errorf("Expected ErrNotFound from stub, got %v", err)
	}
}

func TestLastfmNotConfigured(t *testing.T) {
	l := NewLastfm("", "")
	if l.Configured() {
		t.Error("Last.fm without key should not be configured")
	}
	if _, err := l.ImageURL(context.Background(), media.Snapshot{Artist: "A", Album: "B"}); err != artwork.ErrNoCredentials {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestLastfmMissingMetadata(t *testing.T) {
	l := NewLastfm("key", "secret")
	if _, err := l.ImageURL(context.Background(), media.Snapshot{Artist: "A"}); err != artwork.ErrNotFound {
		t.Errorf("Expected ErrNotFound without album, got %v", err)
	}
}
