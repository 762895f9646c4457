/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "grimnir_panel"

var (
	// Scheduler
	SchedulerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_total",
		Help:      "Schedule evaluation ticks.",
	})
	SchedulerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_errors_total",
		Help:      "Schedule firings that could not start playback, by reason.",
	}, []string{"reason"})
	SchedulerFiringsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_firings_total",
		Help:      "Schedule rules fired.",
	})
	SchedulerRepeatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_repeats_total",
		Help:      "Repeat sequence transitions, by outcome.",
	}, []string{"outcome"})

	// Playback
	PlaybackStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_starts_total",
		Help:      "Playback start attempts, by result.",
	}, []string{"result"})
	PlaybackState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "playback_state",
		Help:      "1 for the engine's current state, 0 otherwise.",
	}, []string{"state"})

	// Catalog
	CatalogAssets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_assets",
		Help:      "Catalog entries, split by whether a payload is attached.",
	}, []string{"status"})
	CatalogRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_rejected_files_total",
		Help:      "Uploaded files rejected before processing, by reason.",
	}, []string{"reason"})

	// Asset store
	AssetStoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "asset_store_operation_duration_seconds",
		Help:      "Asset store operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"backend", "operation"})
	AssetStoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "asset_store_errors_total",
		Help:      "Asset store failures.",
	}, []string{"backend", "operation"})

	// Snapshot persistence
	SnapshotWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_writes_total",
		Help:      "Metadata snapshot writes, by result.",
	}, []string{"result"})

	// External coordination
	ExternalPlayerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "external_player_calls_total",
		Help:      "External player pause/resume requests, by action and result.",
	}, []string{"action", "result"})

	// API
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP requests served.",
	}, []string{"method", "endpoint", "status"})
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_active_connections",
		Help:      "In-flight HTTP requests.",
	})
	EventStreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "event_stream_clients",
		Help:      "Connected WebSocket event stream clients.",
	})

	// Database
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "database_query_duration_seconds",
		Help:      "Database operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "table"})
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "database_errors_total",
		Help:      "Database operation failures.",
	}, []string{"operation", "type"})
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "database_connections_active",
		Help:      "Open database connections.",
	})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
