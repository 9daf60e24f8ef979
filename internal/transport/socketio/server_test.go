package socketio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pixoobridge/pixoobridge/internal/config"
	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/engine"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
	"github.com/pixoobridge/pixoobridge/internal/infra/pixoo"
)

type nopDevice struct{}

func (nopDevice) PushFrame(context.Context, string, int) error { return nil }
func (nopDevice) ShowText(context.Context, pixoo.Text) error   { return nil }
func (nopDevice) ClearText(context.Context) error              { return nil }
func (nopDevice) ShowItems(context.Context, pixoo.Items) error { return nil }
func (nopDevice) SetBrightness(context.Context, int) error     { return nil }

type nopResolver struct{}

func (nopResolver) Resolve(context.Context, media.Snapshot) (*artwork.Resolved, error) {
	return nil, artwork.ErrNoArtwork
}

func (nopResolver) SetForceGenerated(bool) {}

func testEngine() *engine.Engine {
	cfg := &config.Config{
		Pixoo:   config.Pixoo{IP: "192.168.1.50", Brightness: 70, FullControl: true},
		Display: config.Display{Mode: "default", CropMode: "crop"},
	}
	return engine.New(cfg, engine.NewSettings(cfg), nopDevice{}, nopResolver{})
}

func TestNewServer(t *testing.T) {
	s, err := NewServer(testEngine())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if s == nil {
		t.Fatal("server is nil")
	}
	defer s.Close()

	if s.limiter == nil {
		t.Error("connection limiter not wired")
	}
}

func TestServeHTTPHandshake(t *testing.T) {
	s, err := NewServer(testEngine())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/socket.io/?EIO=4&transport=polling", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code == http.StatusNotFound {
		t.Errorf("handshake returned %d", rec.Code)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	eng := testEngine()
	s, err := NewServer(eng)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer s.Close()

	// Must not panic with an empty client set, and the dedupe must
	// swallow the repeat.
	status := eng.Status()
	s.BroadcastStatus(status)
	s.BroadcastStatus(status)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastStatus == nil || *s.lastStatus != status {
		t.Error("last broadcast status not recorded")
	}
}

func TestClose(t *testing.T) {
	s, err := NewServer(testEngine())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
