/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_panel/internal/api"
	"github.com/friendsincode/grimnir_panel/internal/assetstore"
	"github.com/friendsincode/grimnir_panel/internal/config"
	"github.com/friendsincode/grimnir_panel/internal/coordination"
	"github.com/friendsincode/grimnir_panel/internal/db"
	"github.com/friendsincode/grimnir_panel/internal/eventbus"
	"github.com/friendsincode/grimnir_panel/internal/events"
	"github.com/friendsincode/grimnir_panel/internal/logbuffer"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/panel"
	"github.com/friendsincode/grimnir_panel/internal/playback"
	"github.com/friendsincode/grimnir_panel/internal/playback/speaker"
	"github.com/friendsincode/grimnir_panel/internal/snapshot"
	"github.com/friendsincode/grimnir_panel/internal/telemetry"
)

const openTimeout = 30 * time.Second

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	logBuffer *logbuffer.Buffer
	bus       events.Broker
	panel     *panel.Panel
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("grimnir-panel-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(timeoutMiddleware(60 * time.Second))

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Uploads can be large, so only the header read is bounded.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		// The event stream is long-lived; other routes are bounded by the
		// timeout middleware.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src 'self' data: https:; media-src 'self'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds ordinary requests. WebSocket upgrades, payload
// downloads and multipart uploads are exempt.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipTimeout(r) {
				next.ServeHTTP(w, r)
				return
			}
			timeout.ServeHTTP(w, r)
		})
	}
}

func skipTimeout(r *http.Request) bool {
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return true
	}
	return strings.HasSuffix(r.URL.Path, "/payload")
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	store, err := assetstore.Open(ctx, s.cfg, database, s.logger)
	if err != nil {
		return err
	}

	kv, err := snapshot.Open(s.cfg, database, s.logger)
	if err != nil {
		return err
	}
	s.DeferClose(kv.Close)

	bus, closers := eventbus.Open(s.cfg, s.logger)
	s.bus = bus
	for _, c := range closers {
		s.DeferClose(c)
	}

	device, err := OpenDevice(s.cfg, s.logger)
	if err != nil {
		return err
	}

	p := panel.New(store, kv, s.logger, panel.Options{
		Location:       s.cfg.Location(),
		Tick:           s.cfg.SchedulerTick,
		Device:         device,
		ExternalPlayer: OpenExternalPlayer(s.cfg, s.logger),
		Bus:            bus,
		Defaults: models.PanelSettings{
			PauseOtherMedia:   s.cfg.PauseOtherMedia,
			ShowNotifications: s.cfg.ShowNotifications,
			UseMediaSession:   s.cfg.UseMediaSession,
		},
	})
	if err := p.Open(ctx); err != nil {
		_ = device.Close()
		return fmt.Errorf("open panel: %w", err)
	}
	s.panel = p
	s.DeferClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return p.Close(ctx)
	})

	s.api = api.New(p, bus, s.logger, api.Options{
		JWTSecret:      []byte(s.cfg.JWTSigningKey),
		AuthRequired:   s.cfg.AuthRequired,
		MaxUploadBytes: s.cfg.MaxUploadSizeBytes(),
		LogBuffer:      s.logBuffer,
	})
	return nil
}

// OpenDevice returns the configured audio output.
func OpenDevice(cfg *config.Config, logger zerolog.Logger) (playback.Device, error) {
	switch cfg.AudioOutput {
	case config.AudioOutputSimulated:
		logger.Info().Msg("using simulated audio output")
		return playback.NewSimulatedDevice(nil), nil
	case config.AudioOutputSpeaker, "":
		buffer := time.Duration(cfg.DeviceBufferMilli) * time.Millisecond
		dev, err := speaker.New(cfg.DeviceSampleRate, buffer, logger)
		if err != nil {
			return nil, fmt.Errorf("open speaker: %w", err)
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("unsupported audio output %q", cfg.AudioOutput)
	}
}

// OpenExternalPlayer returns the configured player to pause around
// announcements.
func OpenExternalPlayer(cfg *config.Config, logger zerolog.Logger) coordination.ExternalPlayer {
	switch cfg.ExternalPlayer {
	case config.ExternalPlayerSpotify:
		return coordination.NewSpotify(coordination.SpotifyConfig{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RefreshToken: cfg.SpotifyRefreshToken,
			AccessToken:  cfg.SpotifyAccessToken,
			APIBase:      cfg.SpotifyAPIBase,
			TokenURL:     cfg.SpotifyTokenURL,
			Timeout:      cfg.ExternalTimeout,
		}, logger)
	default:
		return coordination.Noop{}
	}
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// LogBuffer returns the server's log buffer for attaching to zerolog.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.panel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("panel loop exited")
		}
	}()

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	health := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
	s.router.Get("/health", health)
	s.router.Get("/healthz", health)

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
