package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

func TestDiscogsImageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/database/search" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Discogs token=tok123" {
			t.Errorf("Unexpected auth header: %q", r.Header.Get("Authorization"))
		}
		q := r.URL.Query()
		if q.Get("type") != "release" || q.Get("format") != "album" {
			t.Errorf("Unexpected query params: %v", q)
		}
		if q.Get("artist") != "Radiohead" || q.Get("release_title") != "OK Computer" {
			t.Errorf("Unexpected search terms: %v", q)
		}
		w.Write([]byte(`{"results": [
			{"title": "Radiohead - OK Computer", "cover_image": ""},
			{"title": "Radiohead - OK Computer", "cover_image": "https://img.discogs.com/cover.jpg"}
		]}`))
	}))
	defer srv.Close()

	d := NewDiscogs("tok123", "test/1.0", WithDiscogsBaseURL(srv.URL))

	url, err := d.ImageURL(context.Background(), media.Snapshot{Artist: "Radiohead", Album: "OK Computer"})
	if err != nil {
		t.Fatalf("ImageURL failed: %v", err)
	}
	if url != "https://img.discogs.com/cover.jpg" {
		t.Errorf("Expected first result with cover image, got %q", url)
	}
}

func TestDiscogsNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	d := NewDiscogs("tok123", "test/1.0", WithDiscogsBaseURL(srv.URL))

	_, err := d.ImageURL(context.Background(), media.Snapshot{Artist: "Nobody", Album: "Nothing"})
	if err != artwork.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDiscogsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewDiscogs("tok123", "test/1.0", WithDiscogsBaseURL(srv.URL))

	_, err := d.ImageURL(context.Background(), media.Snapshot{Artist: "A", Album: "B"})
	if err != artwork.ErrRateLimited {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}
}

func TestDiscogsNotConfigured(t *testing.T) {
	d := NewDiscogs("", "test/1.0")

	if d.Configured() {
		t.Error("Source without token should not be configured")
	}

	_, err := d.ImageURL(context.Background(), media.Snapshot{Artist: "A", Album: "B"})
	if err != artwork.ErrNoCredentials {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestDiscogsMissingMetadata(t *testing.T) {
	d := NewDiscogs("tok123", "test/1.0")

	_, err := d.ImageURL(context.Background(), media.Snapshot{Artist: "A"})
	if err != artwork.ErrNotFound {
		t.Errorf("Expected ErrNotFound without album, got %v", err)
	}
}
