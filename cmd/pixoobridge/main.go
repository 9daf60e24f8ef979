// Package main is the entry point for the pixoobridge daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pixoobridge/pixoobridge/internal/config"
	"github.com/pixoobridge/pixoobridge/internal/domain/artwork"
	"github.com/pixoobridge/pixoobridge/internal/domain/engine"
	"github.com/pixoobridge/pixoobridge/internal/domain/lights"
	"github.com/pixoobridge/pixoobridge/internal/domain/lyrics"
	"github.com/pixoobridge/pixoobridge/internal/domain/media"
	"github.com/pixoobridge/pixoobridge/internal/infra/cache"
	"github.com/pixoobridge/pixoobridge/internal/infra/hass"
	"github.com/pixoobridge/pixoobridge/internal/infra/mpd"
	"github.com/pixoobridge/pixoobridge/internal/infra/pixoo"
	"github.com/pixoobridge/pixoobridge/internal/infra/providers"
	"github.com/pixoobridge/pixoobridge/internal/infra/wled"
	"github.com/pixoobridge/pixoobridge/internal/transport/socketio"
	"github.com/pixoobridge/pixoobridge/internal/version"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "pixoobridge.toml", "Path to the TOML config file")
	port := flag.String("port", "", "HTTP server port (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Pixoo64 Album Art Bridge")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log.Info().
		Str("port", cfg.Server.Port).
		Str("pixoo", cfg.Pixoo.IP).
		Str("media_source", cfg.Media.Source).
		Bool("full_control", cfg.Pixoo.FullControl).
		Int("wled_targets", len(cfg.WLEDTargets())).
		Int("light_entities", len(cfg.Lights.Entities)).
		Msg("Configuration")

	// Artwork cache
	userAgent := version.Name + "/" + version.Version
	store := openCache(cfg)

	// Artwork sources, tried in order until one produces an image
	spotify := providers.NewSpotifyClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
	chain := []artwork.Provider{
		providers.NewSpotifyAlbum(spotify),
		providers.NewDiscogs(cfg.Discogs.Token, userAgent),
		providers.NewLastfm(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret),
		providers.NewTidal(cfg.Tidal.ClientID, cfg.Tidal.ClientSecret),
		providers.NewMusicBrainz(cfg.MusicBrainz.Enabled, userAgent),
		providers.NewSpotifyArtist(spotify),
		providers.NewSpotifyFirstAlbum(spotify),
	}
	generator := providers.NewPollinations(cfg.AI.Model)

	resolverOpts := []artwork.Option{
		artwork.WithUserAgent(userAgent),
		artwork.WithForceGenerated(cfg.AI.Force),
	}
	if store != nil {
		resolverOpts = append(resolverOpts, artwork.WithCache(store))
	}
	resolver := artwork.NewResolver(chain, generator, resolverOpts...)

	// Display device
	device := pixoo.NewClient(cfg.Pixoo.IP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Media source: Home Assistant WebSocket or MPD idle
	changes := make(chan media.Snapshot, 8)
	var engineOpts []engine.EngineOption
	var hassClient *hass.Client

	switch cfg.Media.Source {
	case "hass":
		hassClient = hass.NewClient(cfg.Media.Hass.URL, cfg.Media.Hass.Token)
		watcher := hass.NewWatcher(hassClient, cfg.Media.Hass.Entity)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Home Assistant watcher stopped")
			}
		}()
		go func() {
			defer close(changes)
			for change := range watcher.Changes() {
				changes <- hassClient.Snapshot(change.State)
			}
		}()
		if entity := cfg.Media.Hass.TemperatureEntity; entity != "" {
			engineOpts = append(engineOpts, engine.WithTemperatureSource(temperatureSource(hassClient, entity)))
		}
	case "mpd":
		mpdClient := mpd.NewClient(cfg.Media.MPD.Host, cfg.Media.MPD.Port, cfg.Media.MPD.Password)
		defer mpdClient.Close()
		watcher := mpd.NewWatcher(mpdClient)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("MPD watcher stopped")
			}
		}()
		go func() {
			defer close(changes)
			for snap := range watcher.Changes() {
				changes <- snap
			}
		}()
		engineOpts = append(engineOpts, engine.WithLocalArtwork(watcher.Artwork))
	}

	// Light and LED sync
	if targets := cfg.WLEDTargets(); len(targets) > 0 {
		engineOpts = append(engineOpts, engine.WithColorSync(wled.NewClient(targets, wled.Settings{
			Brightness: cfg.WLED.Brightness,
			EffectID:   cfg.WLED.Effect,
			PaletteID:  cfg.WLED.Palette,
			Speed:      cfg.WLED.EffectSpeed,
			Intensity:  cfg.WLED.EffectIntensity,
		})))
	}
	if hassClient != nil && len(cfg.Lights.Entities) > 0 {
		engineOpts = append(engineOpts, engine.WithLightSync(lights.NewController(hassClient, cfg.Lights.Entities)))
	}
	if cfg.Lyrics.Enabled {
		engineOpts = append(engineOpts, engine.WithLyricsSource(lyrics.NewClient()))
	}

	// Status pushes go out over Socket.io; the server is built right
	// after the engine, so route through the variable.
	var socketServer *socketio.Server
	engineOpts = append(engineOpts, engine.WithStatusListener(func(status engine.Status) {
		if socketServer != nil {
			socketServer.BroadcastStatus(status)
		}
	}))

	eng := engine.New(cfg, engine.NewSettings(cfg), device, resolver, engineOpts...)

	socketServer, err = socketio.NewServer(eng)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	go func() {
		if err := eng.Run(ctx, changes); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Display engine stopped")
		}
	}()

	// Setup HTTP server
	mux := http.NewServeMux()

	// Socket.io endpoint
	mux.Handle("/socket.io/", socketServer)

	// Health check: verify the device answers on its HTTP API
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		reqCtx, reqCancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer reqCancel()
		if _, err := device.Channel(reqCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","device":"unreachable"}`))
			return
		}
		w.Write([]byte(`{"status":"ok","device":"connected"}`))
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.GetInfo())
	})

	// Engine status (REST fallback for the Socket.io push)
	mux.HandleFunc("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eng.Status())
	})

	// Start HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+cfg.Server.Port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	log.Info().Msg("Server stopped")
}

// openCache opens the artwork cache, falling back to running without
// one when the database cannot be opened.
func openCache(cfg *config.Config) *cache.Store {
	dir := cfg.Cache.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "pixoobridge")
	}

	db := cache.NewDB(filepath.Join(dir, cache.DefaultDBName))
	if err := db.Open(); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Artwork cache unavailable, continuing without it")
		return nil
	}
	return cache.NewStore(db, dir, cfg.Cache.MaxEntries)
}

// temperatureSource reads a Home Assistant sensor and formats it for
// the device widget, e.g. "21°C". Empty when the sensor is unreadable.
func temperatureSource(client *hass.Client, entityID string) func(ctx context.Context) string {
	return func(ctx context.Context) string {
		state, err := client.EntityState(ctx, entityID)
		if err != nil {
			log.Debug().Err(err).Str("entity", entityID).Msg("Temperature sensor unavailable")
			return ""
		}
		if state.State == "" || state.State == "unknown" || state.State == "unavailable" {
			return ""
		}
		unit, _ := state.Attributes["unit_of_measurement"].(string)
		if unit == "" {
			unit = "°C"
		}
		return state.State + strings.TrimSpace(unit)
	}
}
