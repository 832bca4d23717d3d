package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionsMatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethours_sessions_matched_total",
			Help: "Total sessions reconstructed from events",
		},
		[]string{"query"},
	)

	SessionsExcluded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethours_sessions_excluded_total",
			Help: "Sessions whose hours were dropped from totals",
		},
		[]string{"query", "reason"},
	)

	// Event store metrics
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleethours_fetch_duration_seconds",
			Help:    "Event fetch duration per location in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"location"},
	)

	FetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethours_fetch_errors_total",
			Help: "Event fetch failures per location",
		},
		[]string{"location"},
	)

	// Identity metrics
	NameCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleethours_name_cache_hits_total",
			Help: "Display name cache hits",
		},
	)

	NameCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleethours_name_cache_misses_total",
			Help: "Display name cache misses",
		},
	)

	// Report metrics
	ReportsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethours_reports_generated_total",
			Help: "Reports generated",
		},
		[]string{"kind", "status"},
	)

	ReportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleethours_report_duration_seconds",
			Help:    "Report generation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SessionsMatched,
		SessionsExcluded,
		FetchDuration,
		FetchErrors,
		NameCacheHits,
		NameCacheMisses,
		ReportsGenerated,
		ReportDuration,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler exposes the server's mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
