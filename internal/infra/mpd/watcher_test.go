package mpd

import (
	"testing"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

func TestNewClient(t *testing.T) {
	client := NewClient("localhost", 6600, "")

	if client == nil {
		t.Error("NewClient should return a non-nil client")
	}
}

func TestClientConnectFailure(t *testing.T) {
	// Wrong port, nothing listens there.
	client := NewClient("localhost", 16600, "")

	err := client.Connect()
	if err == nil {
		t.Error("Connect should fail for non-existent server")
		client.Close()
	}
}

func TestClientPingWithoutConnect(t *testing.T) {
	client := NewClient("localhost", 6600, "")

	err := client.Ping()
	if err == nil {
		t.Error("Ping should fail when not connected")
	}
}

func TestSnapshotFromPlaying(t *testing.T) {
	now := time.Now()
	status := mpd.Attrs{
		"state":    "play",
		"elapsed":  "42.500",
		"duration": "261.000",
	}
	song := mpd.Attrs{
		"Title":  "Karma Police",
		"Artist": "Radiohead",
		"Album":  "OK Computer",
		"file":   "music/Radiohead/OK Computer/06 Karma Police.flac",
	}

	snap := snapshotFrom(status, song, now)

	if snap.State != "playing" {
		t.Errorf("State = %q, want playing", snap.State)
	}
	if snap.Title != "Karma Police" || snap.Artist != "Radiohead" || snap.Album != "OK Computer" {
		t.Errorf("unexpected metadata: %+v", snap)
	}
	if snap.Position != 42500*time.Millisecond {
		t.Errorf("Position = %v", snap.Position)
	}
	if snap.Duration != 261*time.Second {
		t.Errorf("Duration = %v", snap.Duration)
	}
	if snap.ContentID != "music/Radiohead/OK Computer/06 Karma Police.flac" {
		t.Errorf("ContentID = %q", snap.ContentID)
	}
	if !snap.Playing() {
		t.Error("expected Playing")
	}
}

func TestSnapshotFromStates(t *testing.T) {
	tests := []struct {
		mpdState string
		want     string
	}{
		{"play", "playing"},
		{"pause", "paused"},
		{"stop", "off"},
		{"", "off"},
	}
	for _, tt := range tests {
		snap := snapshotFrom(mpd.Attrs{"state": tt.mpdState}, mpd.Attrs{}, time.Now())
		if snap.State != tt.want {
			t.Errorf("state %q mapped to %q, want %q", tt.mpdState, snap.State, tt.want)
		}
	}
}

func TestSnapshotFromMissingDurations(t *testing.T) {
	snap := snapshotFrom(mpd.Attrs{"state": "play"}, mpd.Attrs{"Title": "x"}, time.Now())
	if snap.Position != 0 || snap.Duration != 0 {
		t.Errorf("missing elapsed/duration should map to zero, got %v/%v", snap.Position, snap.Duration)
	}
}
