package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/reddit-digest-bot/internal/store"
)

// Digest delivery outcomes recorded on the digests_sent metric.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	subscriptionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reddit_bot_subscriptions_total",
		Help: "Total number of subscriptions in the database",
	})

	digestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reddit_bot_digests_sent_total",
		Help: "Total number of digest delivery attempts",
	}, []string{"status"})

	deliveryDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reddit_bot_delivery_duration_seconds",
		Help:    "Duration of digest delivery pipeline runs in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(subscriptionsTotal)
	prometheus.MustRegister(digestsTotal)
	prometheus.MustRegister(deliveryDurationSeconds)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// Server handles HTTP requests for health checks and metrics
type Server struct {
	store     store.Store
	router    *http.ServeMux
	server    *http.Server
	startTime time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(store store.Store) *Server {
	s := &Server{
		store:     store,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth returns JSON with status, database connectivity, and uptime
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("unhealthy: %v", err)
	}

	uptime := time.Since(s.startTime).Round(time.Second).String()

	status := "healthy"
	if dbStatus != "healthy" {
		status = "unhealthy"
	}

	response := HealthResponse{
		Status:   status,
		Database: dbStatus,
		Uptime:   uptime,
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode health response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// UpdateSubscriptionCount updates the subscriptions_total metric
func UpdateSubscriptionCount(count int) {
	subscriptionsTotal.Set(float64(count))
}

// RecordDigest records the outcome of one digest delivery attempt
func RecordDigest(status string) {
	digestsTotal.WithLabelValues(status).Inc()
}

// ObserveDeliveryDuration records the duration of a delivery pipeline run
func ObserveDeliveryDuration(duration time.Duration) {
	deliveryDurationSeconds.Observe(duration.Seconds())
}
