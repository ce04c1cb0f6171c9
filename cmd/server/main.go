package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/aquamonitor/internal/featureflags"
	"github.com/yourorg/aquamonitor/internal/feed"
	"github.com/yourorg/aquamonitor/internal/handler"
	"github.com/yourorg/aquamonitor/internal/infrastructure/logger"
	"github.com/yourorg/aquamonitor/internal/infrastructure/pwned"
	"github.com/yourorg/aquamonitor/internal/infrastructure/redis"
	"github.com/yourorg/aquamonitor/internal/lookup"
	"github.com/yourorg/aquamonitor/internal/observability/metrics"
	"github.com/yourorg/aquamonitor/internal/observability/tracing"
	"github.com/yourorg/aquamonitor/internal/repository"
	"github.com/yourorg/aquamonitor/internal/security"
	"github.com/yourorg/aquamonitor/internal/security/audit"
	"github.com/yourorg/aquamonitor/internal/security/auth"
	"github.com/yourorg/aquamonitor/internal/security/middleware"
	"github.com/yourorg/aquamonitor/internal/security/ratelimit"
	"github.com/yourorg/aquamonitor/internal/service"
	"github.com/yourorg/aquamonitor/internal/worker"
	"github.com/yourorg/aquamonitor/pkg/cache"
	"github.com/yourorg/aquamonitor/pkg/config"
	"github.com/yourorg/aquamonitor/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting AquaMonitor server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "aquamonitor", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Initialize Redis client
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 5. Initialize Postgres pool
	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 6. Initialize repositories
	userRepo := repository.NewPostgresUserRepository(db, log)
	passwordRepo := repository.NewPostgresPasswordRepository(db, log)
	aquariumRepo := repository.NewPostgresAquariumRepository(db, log)
	measurementRepo := repository.NewPostgresMeasurementRepository(db, log)
	waterChangeRepo := repository.NewPostgresWaterChangeRepository(db, log)

	// 7. Initialize services
	breachChecker := pwned.NewClient(cfg.PwnedBaseURL, cfg.PwnedTimeout, redisClient, log)
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenIssuer)
	authService := service.NewAuthService(userRepo, passwordRepo, breachChecker, tokenManager, cfg.TokenDuration, log)
	lookupService := lookup.NewService(db, cache.New(), 10*time.Minute, log)
	broker := feed.NewBroker(log)

	// 7a. Security components
	authz := security.NewAuthorizationService(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	auditLogger := audit.NewLogger(log)

	// 8. Initialize handlers
	authHandler := handler.NewAuthHandler(authService, auditLogger, log)
	userHandler := handler.NewUserHandler(authService, userRepo, authz, auditLogger, log)
	aquariumHandler := handler.NewAquariumHandler(aquariumRepo, auditLogger, log)
	measurementHandler := handler.NewMeasurementHandler(measurementRepo, aquariumRepo, broker, auditLogger, log)
	if featureflags.Enabled("strict_kind_check") {
		// Reject measurement kinds missing from the lookup table.
		measurementHandler.RequireKnownKinds(lookupService)
		log.Info("strict measurement kind check enabled")
	}
	waterChangeHandler := handler.NewWaterChangeHandler(waterChangeRepo, aquariumRepo, auditLogger, log)
	lookupHandler := handler.NewLookupHandler(lookupService, log)
	liveFeedHandler := handler.NewLiveFeedHandler(broker, aquariumRepo, cfg.CORSAllowedOrigins, log)
	healthHandler := handler.NewHealthHandler(pool, redisClient, log)

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/token", authHandler.Token)

	mux.HandleFunc("POST /api/users", userHandler.Register)
	mux.HandleFunc("GET /api/users/{userID}", userHandler.Get)
	mux.HandleFunc("PUT /api/users/{userID}", userHandler.Update)
	mux.HandleFunc("DELETE /api/users/{userID}", userHandler.Delete)
	mux.HandleFunc("POST /api/users/{userID}/password", userHandler.ChangePassword)
	mux.HandleFunc("GET /api/users/{userID}/passwords", userHandler.PasswordHistory)

	mux.HandleFunc("GET /api/aquariums", aquariumHandler.List)
	mux.HandleFunc("POST /api/aquariums", aquariumHandler.Create)
	mux.HandleFunc("GET /api/aquariums/{aquariumID}", aquariumHandler.Get)
	mux.HandleFunc("PUT /api/aquariums/{aquariumID}", aquariumHandler.Update)
	mux.HandleFunc("DELETE /api/aquariums/{aquariumID}", aquariumHandler.Delete)

	mux.HandleFunc("GET /api/aquariums/{aquariumID}/measurements", measurementHandler.List)
	mux.HandleFunc("POST /api/aquariums/{aquariumID}/measurements", measurementHandler.Create)
	mux.HandleFunc("GET /api/aquariums/{aquariumID}/measurements/{measurementID}", measurementHandler.Get)
	mux.HandleFunc("PUT /api/aquariums/{aquariumID}/measurements/{measurementID}", measurementHandler.Update)
	mux.HandleFunc("DELETE /api/aquariums/{aquariumID}/measurements/{measurementID}", measurementHandler.Delete)

	mux.HandleFunc("GET /api/aquariums/{aquariumID}/waterchanges", waterChangeHandler.List)
	mux.HandleFunc("POST /api/aquariums/{aquariumID}/waterchanges", waterChangeHandler.Create)
	mux.HandleFunc("GET /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}", waterChangeHandler.Get)
	mux.HandleFunc("PUT /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}", waterChangeHandler.Update)
	mux.HandleFunc("DELETE /api/aquariums/{aquariumID}/waterchanges/{waterChangeID}", waterChangeHandler.Delete)

	mux.HandleFunc("GET /api/lookups/units", lookupHandler.Units)
	mux.HandleFunc("GET /api/lookups/measurementkinds", lookupHandler.MeasurementKinds)

	mux.Handle("GET /ws/aquariums/{aquariumID}/measurements", liveFeedHandler)

	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// Authenticate first so the limiter and audit log see the caller's
	// identity, then rate limit, then record mutations.
	authedMux := middleware.JWTMiddleware(tokenManager, log)(
		middleware.RateLimitMiddleware(rateLimiter, cfg.AuthRateLimit, log)(
			middleware.ValidateJSONContentType(log)(
				middleware.LimitBodySize(1<<20)(
					middleware.AuditMiddleware(auditLogger)(mux),
				),
			),
		),
	)

	// CORS sits outside auth so preflights answer without credentials
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, If-Match")
		w.Header().Set("Access-Control-Expose-Headers", "ETag")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		authedMux.ServeHTTP(w, r)
	})

	rootHandler := withRequestID(otelhttp.NewHandler(metrics.HTTPMetricsMiddleware(handlerWithCORS), "api"), log)

	// 10. Start stale aquarium monitor in background
	staleMonitor := worker.NewStaleMonitor(aquariumRepo, log, cfg.StaleCheckInterval, cfg.StaleThreshold)
	go staleMonitor.Start(ctx)

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Duration("token_duration", cfg.TokenDuration),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop stale monitor
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
