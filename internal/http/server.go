package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/eta"
	"github.com/example/ride-dispatch/internal/identity"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/payments"
	"github.com/example/ride-dispatch/internal/registry"
	"github.com/example/ride-dispatch/internal/rides"
)

type Server struct {
	Engine   *dispatch.Engine
	Registry registry.Registry
	Rides    rides.Store
	Kafka    *ingest.KafkaProducer
	WSReg    *dispatch.WSRegistry

	cfg    config.ServerConfig
	logger *slog.Logger
	mux    *mux.Router
}

// New wires the dispatch engine and its collaborators from config. External
// backends (Redis, Postgres, Kafka, routing, Stripe) are selected by the
// presence of their settings; everything falls back to in-process variants.
func New(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var reg registry.Registry
	if cfg.RedisAddr != "" {
		reg = registry.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		reg = registry.NewMemory()
	}

	var store rides.Store
	if cfg.PGDSN != "" {
		ps, err := rides.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		store = ps
	} else {
		store = rides.NewMemoryStore()
	}

	var routing eta.Estimator
	if cfg.RoutingURL != "" {
		routing = eta.NewRoutingClient(cfg.RoutingURL, cfg.RoutingAPIKey, cfg.RoutingTimeout)
	}
	var cache *eta.Cache
	if cfg.EtaCacheTTL > 0 {
		cache = eta.NewCache(cfg.EtaCacheTTL)
	}
	provider := eta.NewProvider(routing, cache, logger)

	var ident identity.PriorityResolver
	if cfg.IdentityURL != "" {
		ident = identity.NewHTTPClient(cfg.IdentityURL, 2*time.Second)
	} else {
		ident = identity.NewStaticResolver()
	}

	wsreg := dispatch.NewWSRegistry()

	engine := dispatch.NewEngine(reg, store, provider, ident, logger)
	if cfg.PushEndpoint != "" {
		engine.Notifier = dispatch.NewPushNotifier(cfg.PushEndpoint, cfg.PushKey, wsreg)
	} else {
		engine.Notifier = wsreg
	}
	if cfg.StripeAPIKey != "" {
		engine.Fares = payments.NewStripeProcessor(cfg.StripeAPIKey, cfg.FareCurrency)
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	s := &Server{
		Engine:   engine,
		Registry: reg,
		Rides:    store,
		Kafka:    kp,
		WSReg:    wsreg,
		cfg:      cfg,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/rides", s.handleSubmitRide).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/rides", s.handleListRides).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}", s.handleGetRide).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/cancel", s.handleCancelRide).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/start", s.handleStartRide).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/rides/{ride_id}/complete", s.handleCompleteRide).Methods(http.MethodPost)

	s.mux.HandleFunc("/api/v1/drivers", s.handleUpsertDriver).Methods(http.MethodPost)
	s.mux.HandleFunc("/api/v1/drivers", s.handleListDrivers).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/drivers/{driver_id}", s.handleGetDriver).Methods(http.MethodGet)
	s.mux.HandleFunc("/api/v1/drivers/{driver_id}/status", s.handleDriverStatus).Methods(http.MethodPatch)
	s.mux.HandleFunc("/api/v1/drivers/{driver_id}/location", s.handleDriverLocation).Methods(http.MethodPatch)

	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Run serves until ctx is cancelled, then drains with the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.Kafka != nil {
		_ = s.Kafka.Close()
	}
	return nil
}
