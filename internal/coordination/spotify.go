/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package coordination

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/friendsincode/grimnir_panel/internal/telemetry"
)

const (
	DefaultSpotifyAPIBase  = "https://api.spotify.com"
	DefaultSpotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// SpotifyConfig holds credentials for the Spotify Web API. A refresh token
// is exchanged for access tokens as needed.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	APIBase      string
	TokenURL     string
	Timeout      time.Duration
}

// Spotify pauses and resumes the user's active Spotify device.
type Spotify struct {
	client  *http.Client
	apiBase string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewSpotify builds an OAuth2 client for the Web API.
func NewSpotify(cfg SpotifyConfig, logger zerolog.Logger) *Spotify {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultSpotifyTokenURL
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
	})

	return NewSpotifyWithClient(oauth2.NewClient(ctx, ts), cfg.APIBase, cfg.Timeout, logger)
}

// NewSpotifyWithClient uses an already authorized client.
func NewSpotifyWithClient(client *http.Client, apiBase string, timeout time.Duration, logger zerolog.Logger) *Spotify {
	if apiBase == "" {
		apiBase = DefaultSpotifyAPIBase
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Spotify{
		client:  client,
		apiBase: strings.TrimRight(apiBase, "/"),
		timeout: timeout,
		logger:  logger.With().Str("component", "spotify").Logger(),
	}
}

func (s *Spotify) Name() string { return "spotify" }

func (s *Spotify) RequestPause(ctx context.Context) bool {
	return s.call(ctx, "pause", "/v1/me/player/pause")
}

func (s *Spotify) RequestResume(ctx context.Context) bool {
	return s.call(ctx, "resume", "/v1/me/player/play")
}

func (s *Spotify) call(ctx context.Context, action, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "coordination", "spotify."+action)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.apiBase+path, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn().Err(err).Str("action", action).Msg("build request")
		telemetry.ExternalPlayerCallsTotal.WithLabelValues(action, "error").Inc()
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn().Err(err).Str("action", action).Msg("spotify request failed")
		telemetry.ExternalPlayerCallsTotal.WithLabelValues(action, "error").Inc()
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	telemetry.AddSpanAttributes(span, map[string]any{"http.status_code": resp.StatusCode})

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		telemetry.ExternalPlayerCallsTotal.WithLabelValues(action, "ok").Inc()
		s.logger.Debug().Str("action", action).Msg("spotify request succeeded")
		return true
	case resp.StatusCode == http.StatusForbidden:
		telemetry.ExternalPlayerCallsTotal.WithLabelValues(action, "noop").Inc()
		s.logger.Info().Str("action", action).Msg("nothing active on spotify or premium required")
		return false
	case resp.StatusCode == http.StatusNotFound:
		telemetry.ExternalPlayerCallsTotal.WithLabelValues(action, "noop").Inc()
		s.logger.Info().Str("action", action).Msg("no active spotify device")
		return false
	default:
		telemetry.ExternalPlayerCallsTotal.WithLabelValues(action, "error").Inc()
		s.logger.Warn().
			Str("action", action).
			Err(fmt.Errorf("unexpected status %d", resp.StatusCode)).
			Msg("spotify request failed")
		return false
	}
}
