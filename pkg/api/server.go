// Package api serves the marketplace HTTP API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/metrics"
	"github.com/sigweihq/beatmarket/pkg/pinning"
	"github.com/sigweihq/beatmarket/pkg/processor"
	"github.com/sigweihq/beatmarket/pkg/store"
)

// Config wires the server's collaborators. Pinner may be nil, in which case
// uploads answer 503.
type Config struct {
	Store        store.Store
	Processor    *processor.PurchaseProcessor
	Pinner       pinning.Pinner
	Registry     *chains.Registry
	DefaultChain chains.ChainID
	Logger       *slog.Logger
	Metrics      metrics.Recorder
	Gatherer     prometheus.Gatherer
}

// Server holds the HTTP handlers
type Server struct {
	store        store.Store
	processor    *processor.PurchaseProcessor
	pinner       pinning.Pinner
	registry     *chains.Registry
	defaultChain chains.ChainID
	logger       *slog.Logger
	metrics      metrics.Recorder
	gatherer     prometheus.Gatherer
	validate     *validator.Validate
	now          func() time.Time
}

// NewServer creates a server from cfg
func NewServer(cfg Config) *Server {
	s := &Server{
		store:        cfg.Store,
		processor:    cfg.Processor,
		pinner:       cfg.Pinner,
		registry:     cfg.Registry,
		defaultChain: cfg.DefaultChain,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		gatherer:     cfg.Gatherer,
		validate:     validator.New(),
		now:          time.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.NoopRecorder{}
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	return s
}

// Router returns the routes of the API
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware, s.metricsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/beats", s.handleCreateBeat).Methods(http.MethodPost)
	api.HandleFunc("/beats", s.handleListBeats).Methods(http.MethodGet)
	api.HandleFunc("/beats/{id}", s.handleGetBeat).Methods(http.MethodGet)
	api.HandleFunc("/purchase", s.handlePurchase).Methods(http.MethodPost)
	api.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/chains", s.handleListChains).Methods(http.MethodGet)
	api.HandleFunc("/chains/{id}", s.handleGetChain).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}
