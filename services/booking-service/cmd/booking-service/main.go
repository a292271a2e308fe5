package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/d-castillo/trimbook/libs/config"
	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/libs/grpcx"
	"github.com/d-castillo/trimbook/libs/httpx"
	"github.com/d-castillo/trimbook/libs/inbox"
	"github.com/d-castillo/trimbook/libs/kafkax"
	otelx "github.com/d-castillo/trimbook/libs/otel"
	"github.com/d-castillo/trimbook/libs/outbox"
	"github.com/d-castillo/trimbook/libs/runtime"
	"github.com/d-castillo/trimbook/services/booking-service/internal/consumer"
	"github.com/d-castillo/trimbook/services/booking-service/internal/handlers"
	"github.com/d-castillo/trimbook/services/booking-service/internal/migrations"
	"github.com/d-castillo/trimbook/services/booking-service/internal/rating"
	"github.com/d-castillo/trimbook/services/booking-service/internal/storage"
	"github.com/d-castillo/trimbook/services/booking-service/internal/sweeper"
)

const serviceName = "booking-service"

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
	redisAddr := config.String("REDIS_ADDR", "")
	directoryGRPCAddr := config.String("DIRECTORY_GRPC_ADDR", "")
	port, err := config.Port("PORT", "8082")
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

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
	}

	appointments := storage.NewAppointmentRepository(pool)
	reviews := storage.NewReviewRepository(pool)
	replica := storage.NewReplicaRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)
	ratingCache := rating.NewCache(rdb, config.Seconds("RATING_CACHE_TTL_SECONDS", 5*time.Minute), logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	projector := consumer.NewDirectoryProjector(replica, logger)
	for _, topic := range consumer.Topics {
		c := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
			Brokers: brokers,
			GroupID: serviceName,
			Topic:   topic,
		}, projector.Handle)
		go c.Run(ctx)
	}

	sw := sweeper.New(pool, appointments, outboxRepo, logger, config.Seconds("COMPLETION_SWEEP_SECONDS", time.Minute))
	go sw.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(appointments, replica, outboxRepo, logger, jwtSecret)
	reviewHandler := handlers.NewReviewHandler(appointments, reviews, outboxRepo, ratingCache, logger, jwtSecret)

	readyChecks := []runtime.ReadyCheck{
		{Name: "postgres", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	if directoryGRPCAddr != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "directory", Check: grpcx.HealthReadyCheck(directoryGRPCAddr)})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("POST /appointments", bookingHandler.Reserve)
	mux.HandleFunc("GET /appointments", bookingHandler.List)
	mux.HandleFunc("POST /appointments/{id}/confirm", bookingHandler.Confirm)
	mux.HandleFunc("POST /appointments/{id}/cancel", bookingHandler.Cancel)
	mux.HandleFunc("POST /appointments/{id}/complete", bookingHandler.Complete)
	mux.HandleFunc("GET /appointments/{id}/review", reviewHandler.GetForAppointment)
	mux.HandleFunc("POST /reviews", reviewHandler.Submit)
	mux.HandleFunc("GET /providers/{id}/slots", bookingHandler.Slots)
	mux.HandleFunc("GET /providers/{id}/reviews", reviewHandler.ListByProvider)
	mux.HandleFunc("GET /providers/{id}/rating", reviewHandler.Rating)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(15 * time.Second),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}),
	}
	if rdb != nil {
		limiter := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute, serviceName)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		middlewares = append(middlewares, httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 120), time.Minute).Middleware())
	}

	handler := otelhttp.NewHandler(httpx.Chain(mux, middlewares...), serviceName)

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
