// Package artwork resolves display artwork for the current media through
// an ordered chain of fallback sources.
package artwork

import (
	"context"
	"errors"
	"time"

	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

// Common errors
var (
	// ErrNotFound indicates a source has no artwork for this media (try the next one)
	ErrNotFound = errors.New("artwork not found")

	// ErrNoCredentials indicates a source is not configured and must be skipped silently
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrNoArtwork indicates every source was exhausted without a usable image
	ErrNoArtwork = errors.New("no artwork from any source")

	// ErrRateLimited indicates a source rejected the request for rate limiting
	ErrRateLimited = errors.New("rate limited")

	// ErrTemporaryFailure indicates a transient source failure
	ErrTemporaryFailure = errors.New("temporary failure")
)

// Provider is a single artwork source in the fallback chain.
type Provider interface {
	// Name identifies the source in logs and status reports.
	Name() string

	// Configured reports whether the source has the credentials it needs.
	// Unconfigured sources are skipped without counting as failures.
	Configured() bool

	// ImageURL returns a fetchable image URL for the given media.
	// Returns ErrNotFound when the source has nothing for this media.
	ImageURL(ctx context.Context, snap media.Snapshot) (string, error)
}

// Resolved is a fetched artwork image ready for processing.
type Resolved struct {
	Source     string
	URL        string
	Data       []byte
	MimeType   string
	ResolvedAt time.Time
}

// Cache stores resolved artwork keyed by media identity.
type Cache interface {
	Get(key string) (*Resolved, bool)
	Put(key string, art *Resolved) error
}

// DetectMimeType detects the MIME type from image data magic bytes.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return "application/octet-stream"
	}

	// JPEG: starts with FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}

	// PNG: starts with 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return "image/png"
	}

	// GIF: starts with GIF87a or GIF89a
	if data[0] == 'G' && data[1] == 'I' && data[2] == 'F' && data[3] == '8' {
		return "image/gif"
	}

	// WebP: starts with RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return "image/webp"
	}

	return "application/octet-stream"
}

// ExtensionForMime returns the file extension for a MIME type.
func ExtensionForMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
