package mpd

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/domain/media"
)

// retry wait after a failed idle connection
const reconnectDelay = 5 * time.Second

// Watcher turns MPD player events into media snapshots.
type Watcher struct {
	client *Client
	out    chan media.Snapshot
}

// NewWatcher creates a watcher on top of an MPD client.
func NewWatcher(client *Client) *Watcher {
	return &Watcher{
		client: client,
		out:    make(chan media.Snapshot, 8),
	}
}

// Changes returns the stream of media snapshots.
func (w *Watcher) Changes() <-chan media.Snapshot {
	return w.out
}

// Artwork returns the embedded or directory artwork for the snapshot's
// track, identified by its content ID (the MPD file URI).
func (w *Watcher) Artwork(_ context.Context, snap media.Snapshot) ([]byte, error) {
	return w.client.EmbeddedArt(snap.ContentID)
}

// Run subscribes to player subsystem events and emits a snapshot for
// every change until the context ends. The channel from Changes is
// closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.out)

	for {
		err := w.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("MPD idle connection dropped, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// session runs one idle connection lifecycle.
func (w *Watcher) session(ctx context.Context) error {
	events, err := w.client.WatchEvents("player")
	if err != nil {
		return err
	}

	// Seed with the current state.
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			w.client.Close()
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return errors.New("idle connection closed")
			}
			w.poll(ctx)
		}
	}
}

// poll fetches status and current song and emits a snapshot.
func (w *Watcher) poll(ctx context.Context) {
	status, err := w.client.Status()
	if err != nil {
		log.Warn().Err(err).Msg("MPD status failed")
		return
	}
	song, err := w.client.CurrentSong()
	if err != nil {
		log.Warn().Err(err).Msg("MPD currentsong failed")
		return
	}

	snap := snapshotFrom(status, song, time.Now())
	select {
	case w.out <- snap:
	case <-ctx.Done():
	}
}

// snapshotFrom maps MPD status and song attributes onto a snapshot.
func snapshotFrom(status, song mpd.Attrs, now time.Time) media.Snapshot {
	snap := media.Snapshot{
		EntityID:    "mpd",
		Title:       song["Title"],
		Artist:      song["Artist"],
		Album:       song["Album"],
		ContentID:   song["file"],
		ContentType: "music",
		PositionAt:  now,
	}

	switch status["state"] {
	case "play":
		snap.State = "playing"
	case "pause":
		snap.State = "paused"
	default:
		snap.State = "off"
	}

	if v, err := strconv.ParseFloat(status["elapsed"], 64); err == nil {
		snap.Position = time.Duration(v * float64(time.Second))
	}
	if v, err := strconv.ParseFloat(status["duration"], 64); err == nil {
		snap.Duration = time.Duration(v * float64(time.Second))
	}

	return snap
}
