package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/powercast/powercast/pkg/chat"
	"github.com/powercast/powercast/pkg/external"
	"github.com/powercast/powercast/pkg/forecast"
	"github.com/powercast/powercast/pkg/grid"
	"github.com/powercast/powercast/pkg/learning"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
	"github.com/powercast/powercast/pkg/upload"
)

const (
	demoUserID     = "demo-user"
	serviceName    = "powercast"
	serviceVersion = "1.0.0"
)

type contextKey string

const userIDContextKey contextKey = "userID"

// tokenVerifier validates an OIDC ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server handles the HTTP API of Powercast.
type Server struct {
	storage   storage.Database
	forecasts *forecast.Service
	learning  *learning.System
	assistant *chat.Assistant
	external  *external.Services
	grid      *grid.Service
	uploads   *upload.Processor

	listenAddr     string
	httpServer     *http.Server
	serverName     string
	corsOrigins    []string
	verifyToken    tokenVerifier
	allowAnonymous bool
	seedDemo       bool
	flushInterval  time.Duration

	// rng drives suggestion generation; nil uses the global source.
	rng *rand.Rand
	now func() time.Time
}

// Deps are the services the Server exposes.
type Deps struct {
	Storage   storage.Database
	Forecasts *forecast.Service
	Learning  *learning.System
	Assistant *chat.Assistant
	External  *external.Services
}

func newServer(d Deps) *Server {
	return &Server{
		storage:    d.Storage,
		forecasts:  d.Forecasts,
		learning:   d.Learning,
		assistant:  d.Assistant,
		external:   d.External,
		grid:       grid.NewService(d.Forecasts.Generator(), nil),
		uploads:    upload.NewProcessor(d.Storage, d.Learning),
		serverName: serviceName,
		now:        time.Now,
	}
}

// Configured initializes the Server with its dependencies and registers the
// HTTP flags.
func Configured(d Deps) *Server {
	srv := newServer(d)
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	oidcIssuer := lflag.String("oidc-issuer", "https://accounts.google.com", "Issuer of the ID tokens accepted as bearer tokens")
	oidcAudience := lflag.String("oidc-audience", "", "Audience of the ID tokens to validate (empty to act as demo-user)")
	allowAnonymous := lflag.Bool("allow-anonymous", false, "Serve requests without a bearer token as demo-user when OIDC is configured")
	corsOrigins := lflag.String("cors-origins", "*", "comma-delimited list of allowed CORS origins")
	seedDemo := lflag.Bool("seed-demo", false, "Seed the demo fleet for demo-user on startup")
	flushInterval := lflag.Duration("event-flush-interval", time.Minute, "Interval between retries of storing buffered forecast events (0 disables)")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.allowAnonymous = *allowAnonymous
		srv.seedDemo = *seedDemo
		srv.flushInterval = *flushInterval
		for _, o := range strings.Split(*corsOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				srv.corsOrigins = append(srv.corsOrigins, o)
			}
		}
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), *oidcIssuer)
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("issuer", *oidcIssuer), slog.Any("error", err))
				os.Exit(1)
			}
			srv.verifyToken = provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	s.handle(apiMux, "POST /api/forecast", s.handlePlantForecast)
	s.handle(apiMux, "POST /api/chat", s.handleChat)

	s.handle(apiMux, "GET /api/v1/forecast", s.handleForecast)
	s.handle(apiMux, "GET /api/v1/forecast/all", s.handleForecastAll)
	s.handle(apiMux, "GET /api/v1/forecast/accuracy", s.handleForecastAccuracy)

	s.handle(apiMux, "GET /api/v1/grid/status", s.handleGridStatus)
	s.handle(apiMux, "GET /api/v1/grid/reserves", s.handleGridReserves)
	s.handle(apiMux, "GET /api/v1/grid/uncertainty", s.handleGridUncertainty)
	s.handle(apiMux, "GET /api/v1/grid/optimization", s.handleGridOptimization)
	s.handle(apiMux, "GET /api/v1/grid/prices", s.handleGridPrices)
	s.handle(apiMux, "GET /api/v1/grid/load", s.handleGridLoad)
	s.handle(apiMux, "GET /api/v1/weather/current", s.handleWeatherCurrent)
	s.handle(apiMux, "GET /api/v1/weather/forecast", s.handleWeatherForecast)

	s.handle(apiMux, "GET /api/v1/assets", s.handleListAssets)
	s.handle(apiMux, "GET /api/v1/assets/summary/by-type", s.handleAssetSummary)
	s.handle(apiMux, "GET /api/v1/assets/{id}", s.handleGetAsset)
	s.handle(apiMux, "GET /api/v1/assets/{id}/forecast", s.handleAssetForecast)

	s.handle(apiMux, "GET /api/v1/scenarios", s.handleScenarios)
	s.handle(apiMux, "GET /api/v1/scenarios/heatmap", s.handleHeatmap)
	s.handle(apiMux, "GET /api/v1/scenarios/optimization-strategies", s.handleStrategies)

	s.handle(apiMux, "GET /api/v1/patterns", s.handlePatterns)
	s.handle(apiMux, "GET /api/v1/patterns/library", s.handlePatternLibrary)
	s.handle(apiMux, "GET /api/v1/patterns/{id}", s.handleGetPattern)

	s.handle(apiMux, "GET /api/v1/plants", s.handleListPlants)
	s.handle(apiMux, "POST /api/v1/plants", s.handleCreatePlant)
	s.handle(apiMux, "GET /api/v1/plants/{id}", s.handleGetPlant)
	s.handle(apiMux, "PATCH /api/v1/plants/{id}", s.handleUpdatePlant)
	s.handle(apiMux, "DELETE /api/v1/plants/{id}", s.handleDeletePlant)
	s.handle(apiMux, "GET /api/v1/plants/{id}/forecast", s.handlePlantStoredForecast)
	s.handle(apiMux, "GET /api/v1/plants/{id}/metrics", s.handlePlantMetrics)

	s.handle(apiMux, "GET /api/v1/optimization", s.handleListSuggestions)
	s.handle(apiMux, "GET /api/v1/optimization/summary", s.handleSuggestionSummary)
	s.handle(apiMux, "POST /api/v1/optimization/generate", s.handleGenerateSuggestions)
	s.handle(apiMux, "GET /api/v1/optimization/{id}", s.handleGetSuggestion)
	s.handle(apiMux, "PATCH /api/v1/optimization/{id}/apply", s.handleApplySuggestion)
	s.handle(apiMux, "PATCH /api/v1/optimization/{id}/dismiss", s.handleDismissSuggestion)
	s.handle(apiMux, "DELETE /api/v1/optimization/{id}", s.handleDeleteSuggestion)

	s.handle(apiMux, "GET /api/v1/data", s.handleListUploads)
	s.handle(apiMux, "POST /api/v1/data/validate", s.handleValidateUpload)
	s.handle(apiMux, "POST /api/v1/data", s.handleCreateUpload)
	s.handle(apiMux, "GET /api/v1/data/{id}", s.handleGetUpload)
	s.handle(apiMux, "DELETE /api/v1/data/{id}", s.handleDeleteUpload)

	s.handle(apiMux, "GET /api/v1/learning/health", s.handleLearningHealth)
	s.handle(apiMux, "GET /api/v1/learning/forecasts", s.handleLearningForecasts)
	s.handle(apiMux, "GET /api/v1/learning/forecasts/{id}", s.handleLearningForecast)
	s.handle(apiMux, "GET /api/v1/learning/errors", s.handleLearningErrors)
	s.handle(apiMux, "GET /api/v1/learning/pending-analysis", s.handlePendingAnalysis)
	s.handle(apiMux, "POST /api/v1/learning/evaluate", s.handleEvaluate)
	s.handle(apiMux, "GET /api/v1/learning/rules", s.handleLearningRules)
	s.handle(apiMux, "GET /api/v1/learning/explain/{forecast_id}", s.handleExplainForecast)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.userMiddleware(apiMux))
	s.handle(mux, "GET /api/v1/config", s.handleConfig)
	s.handle(mux, "GET /health", s.handleHealth)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return s.recoveryMiddleware(s.revisionMiddleware(c.Handler(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))))
}

func (s *Server) getUserID(r *http.Request) string {
	if userID, ok := r.Context().Value(userIDContextKey).(string); ok {
		return userID
	}
	// we want to have a stack trace when this happens
	panic("no userID in context")
}

// Run seeds the demo fleet when requested, then starts the HTTP server and
// blocks until the context is canceled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	if s.seedDemo {
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		if err := storage.SeedDemo(ctx, s.storage, demoUserID, rng); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
		log.Ctx(ctx).InfoContext(ctx, "seeded demo data", slog.String("userID", demoUserID))
	}

	if s.flushInterval > 0 {
		go s.learning.Logger.FlushEvery(ctx, s.flushInterval)
	}

	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{Error: msg})
}

// writeJSONErrorDetails writes an error with structured details, such as
// the validation result of an upload.
func writeJSONErrorDetails(w http.ResponseWriter, msg string, details any, code int) {
	writeJSON(w, code, struct {
		Error   string `json:"error"`
		Details any    `json:"details"`
	}{Error: msg, Details: details})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

type healthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend := "not_configured"
	if s.forecasts.BackendConfigured() {
		backend = "configured"
	}
	chatStatus := "not_configured"
	if s.assistant.Enabled() {
		chatStatus = "configured"
	}
	weather := "simulated"
	if s.external.Weather.Live() {
		weather = "real"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   serviceVersion,
		Timestamp: s.now().UTC(),
		Services: map[string]string{
			"forecast_backend": backend,
			"chat":             chatStatus,
			"weather_api":      weather,
			"grid_api":         "simulated",
			"learning":         s.learning.Health().Status,
		},
	})
}

type configResponse struct {
	Version          string   `json:"version"`
	Revision         string   `json:"revision"`
	AuthRequired     bool     `json:"auth_required"`
	ChatEnabled      bool     `json:"chat_enabled"`
	ForecastBackend  bool     `json:"forecast_backend"`
	LiveWeather      bool     `json:"live_weather"`
	EventSinks       []string `json:"event_sinks"`
	DefaultRegion    string   `json:"default_region"`
	MaxHorizonHours  int      `json:"max_horizon_hours"`
	IntervalMinutes  int      `json:"interval_minutes"`
	SupportedUploads []string `json:"supported_uploads"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	sinks := s.learning.Sinks.Names()
	if sinks == nil {
		sinks = []string{}
	}
	writeJSON(w, http.StatusOK, configResponse{
		Version:          serviceVersion,
		Revision:         s.serverName,
		AuthRequired:     s.verifyToken != nil && !s.allowAnonymous,
		ChatEnabled:      s.assistant.Enabled(),
		ForecastBackend:  s.forecasts.BackendConfigured(),
		LiveWeather:      s.external.Weather.Live(),
		EventSinks:       sinks,
		DefaultRegion:    upload.DefaultRegion,
		MaxHorizonHours:  types.MaxHorizon,
		IntervalMinutes:  types.IntervalMinutes,
		SupportedUploads: []string{".csv"},
	})
}
