package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/atriumhq/atrium/api/pkg/allocation"
	"github.com/atriumhq/atrium/api/pkg/auth"
	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/prediction"
	"github.com/atriumhq/atrium/api/pkg/simulation"
	"github.com/atriumhq/atrium/api/pkg/store"
	"github.com/atriumhq/atrium/api/pkg/system"
	"github.com/atriumhq/atrium/api/pkg/workflow"
)

// AtriumAPIServer owns the HTTP surface: routing, authentication and the
// translation between wire DTOs and the service layer.
type AtriumAPIServer struct {
	Cfg       *config.ServerConfig
	Store     store.Store
	Predictor *prediction.Predictor
	Allocator *allocation.Allocator
	Simulator *simulation.Simulator
	Workflow  *workflow.Workflow

	authenticator *auth.Authenticator
	router        *mux.Router
}

func NewServer(
	cfg *config.ServerConfig,
	s store.Store,
	predictor *prediction.Predictor,
	allocator *allocation.Allocator,
	simulator *simulation.Simulator,
	wf *workflow.Workflow,
) *AtriumAPIServer {
	apiServer := &AtriumAPIServer{
		Cfg:           cfg,
		Store:         s,
		Predictor:     predictor,
		Allocator:     allocator,
		Simulator:     simulator,
		Workflow:      wf,
		authenticator: auth.NewAuthenticator(cfg),
	}
	apiServer.router = apiServer.registerRoutes()
	return apiServer
}

func (s *AtriumAPIServer) registerRoutes() *mux.Router {
	router := mux.NewRouter()

	// public surface
	router.HandleFunc("/", s.dashboardHandler).Methods(http.MethodGet)
	router.HandleFunc("/dashboard", s.dashboardHandler).Methods(http.MethodGet)
	router.HandleFunc("/login", system.Wrapper(s.login)).Methods(http.MethodPost)
	router.HandleFunc("/demo_context", system.Wrapper(s.demoContext)).Methods(http.MethodGet)

	// bearer-guarded surface
	protected := router.NewRoute().Subrouter()
	protected.Use(s.bearerMiddleware)
	protected.HandleFunc("/predict_availability", system.Wrapper(s.predictAvailability)).Methods(http.MethodPost)
	protected.HandleFunc("/optimize_allocation", system.Wrapper(s.optimizeAllocation)).Methods(http.MethodPost)
	protected.HandleFunc("/simulate", system.Wrapper(s.simulate)).Methods(http.MethodPost)
	protected.HandleFunc("/predict", system.Wrapper(s.predictWorkflow)).Methods(http.MethodPost)
	protected.HandleFunc("/allocate", system.Wrapper(s.allocatePreview)).Methods(http.MethodPost)
	protected.HandleFunc("/approve", system.Wrapper(s.approve)).Methods(http.MethodPost)
	protected.HandleFunc("/metrics", system.Wrapper(s.metrics)).Methods(http.MethodGet)
	protected.HandleFunc("/requests", system.Wrapper(s.createRequest)).Methods(http.MethodPost)
	protected.HandleFunc("/retrain", system.Wrapper(s.retrain)).Methods(http.MethodPost)
	protected.HandleFunc("/model_metadata", system.Wrapper(s.modelMetadata)).Methods(http.MethodGet)

	return router
}

// ListenAndServe blocks until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *AtriumAPIServer) ListenAndServe(ctx context.Context) error {
	address := net.JoinHostPort(s.Cfg.WebServer.Host, fmt.Sprintf("%d", s.Cfg.WebServer.Port))
	srv := &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("address", address).Msg("http server listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
