package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/d-castillo/trimbook/libs/config"
	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/libs/httpx"
	"github.com/d-castillo/trimbook/libs/kafkax"
	otelx "github.com/d-castillo/trimbook/libs/otel"
	"github.com/d-castillo/trimbook/libs/outbox"
	"github.com/d-castillo/trimbook/libs/runtime"
	"github.com/d-castillo/trimbook/services/identity-service/internal/audit"
	"github.com/d-castillo/trimbook/services/identity-service/internal/handlers"
	"github.com/d-castillo/trimbook/services/identity-service/internal/migrations"
	"github.com/d-castillo/trimbook/services/identity-service/internal/sessions"
	"github.com/d-castillo/trimbook/services/identity-service/internal/storage"
)

const serviceName = "identity-service"

func main() {
	logger := runtime.NewLogger(serviceName)
	ctx, stop := runtime.SignalContext()
	defer stop()

	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}
	brokers := config.String("KAFKA_BROKERS", "localhost:9092")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		logger.Error("otel setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	if err := migrations.Apply(databaseURL); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	users := storage.NewUserRepository(pool)
	sess := sessions.NewRepository(pool, config.Seconds("REFRESH_TTL_SECONDS", 30*24*time.Hour))
	auditRepo := audit.NewRepository(pool, logger)
	outboxRepo := outbox.NewRepository(pool)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	authHandler := handlers.NewAuthHandler(users, sess, auditRepo, outboxRepo, logger, jwtSecret,
		config.Seconds("ACCESS_TOKEN_TTL_SECONDS", 15*time.Minute))

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /auth/me", authHandler.Me)

	handler := otelhttp.NewHandler(httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(10*time.Second),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}),
		httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 60), time.Minute).Middleware(),
	), serviceName)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "port", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
