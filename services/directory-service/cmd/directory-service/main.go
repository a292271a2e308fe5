package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/d-castillo/trimbook/libs/config"
	"github.com/d-castillo/trimbook/libs/db"
	"github.com/d-castillo/trimbook/libs/grpcx"
	"github.com/d-castillo/trimbook/libs/httpx"
	"github.com/d-castillo/trimbook/libs/inbox"
	"github.com/d-castillo/trimbook/libs/kafkax"
	otelx "github.com/d-castillo/trimbook/libs/otel"
	"github.com/d-castillo/trimbook/libs/outbox"
	"github.com/d-castillo/trimbook/libs/runtime"
	"github.com/d-castillo/trimbook/services/directory-service/internal/consumer"
	"github.com/d-castillo/trimbook/services/directory-service/internal/handlers"
	"github.com/d-castillo/trimbook/services/directory-service/internal/migrations"
	"github.com/d-castillo/trimbook/services/directory-service/internal/storage"
)

const serviceName = "directory-service"

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
	port, err := config.Port("PORT", "8081")
	if err != nil {
		logger.Error("config error", "error", err)
		os.Exit(1)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9081")
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

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	projector := consumer.NewIdentityProjector(repo, logger)
	c := kafkax.NewConsumer(logger, inboxRepo, kafkax.ConsumerConfig{
		Brokers: brokers,
		GroupID: serviceName,
		Topic:   consumer.TopicUserRegistered,
	}, projector.Handle)
	go c.Run(ctx)

	// gRPC health endpoint, used by peers to gate their readiness.
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerRequestIDInterceptor()),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server error", "error", err)
		}
	}()

	directoryHandler := handlers.NewDirectoryHandler(repo, outboxRepo, logger, jwtSecret)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "postgres", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	mux.HandleFunc("GET /providers", directoryHandler.ListProviders)
	mux.HandleFunc("GET /providers/{id}", directoryHandler.GetProvider)
	mux.HandleFunc("GET /providers/{id}/services", directoryHandler.ListServices)
	mux.HandleFunc("GET /providers/{id}/windows", directoryHandler.ListWindows)
	mux.HandleFunc("GET /providers/{id}/settings", directoryHandler.GetSettings)
	mux.HandleFunc("POST /services", directoryHandler.CreateService)
	mux.HandleFunc("POST /windows", directoryHandler.CreateWindow)
	mux.HandleFunc("PUT /settings", directoryHandler.UpdateSettings)

	handler := otelhttp.NewHandler(httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}),
	), serviceName)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "port", port, "grpc_port", grpcPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
