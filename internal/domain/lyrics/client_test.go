package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Radiohead", "Radiohead"},
		{"AC/DC", "ACDC"},
		{"Don't Stop Me Now", "Dont-Stop-Me-Now"},
		{"  Karma   Police  ", "Karma-Police"},
		{"Sigur Rós", "Sigur-Rós"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := sanitize(tt.in); got != tt.want {
			t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFetchSuccess(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode([]Line{
			{Seconds: 12, Text: "This is what you'll get"},
			{Seconds: 18, Text: "When you mess with us"},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	lines, err := client.Fetch(context.Background(), "Radiohead", "Karma Police")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if gotPath != "/Radiohead/Karma-Police" {
		t.Errorf("request path = %q, want /Radiohead/Karma-Police", gotPath)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Seconds != 12 || lines[0].Text != "This is what you'll get" {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Fetch(context.Background(), "Nobody", "Nothing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchPlainTextBody(t *testing.T) {
	// The public API answers 200 with a text message when it has no
	// lyrics for the track.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("No lyrics available"))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Fetch(context.Background(), "Nobody", "Nothing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchTemporaryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	_, err := client.Fetch(context.Background(), "Radiohead", "Creep")
	if !errors.Is(err, ErrTemporaryFailure) {
		t.Errorf("expected ErrTemporaryFailure, got %v", err)
	}
}

func TestFetchEmptyMetadata(t *testing.T) {
	client := NewClient()
	if _, err := client.Fetch(context.Background(), "", "Creep"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for empty artist, got %v", err)
	}
	if _, err := client.Fetch(context.Background(), "!!!", "!!!"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unsanitizable metadata, got %v", err)
	}
}
