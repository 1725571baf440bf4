package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	api "parkwise-booking-core/internal/api/grpc"
	"parkwise-booking-core/internal/api/grpc/interceptor"
	httpapi "parkwise-booking-core/internal/api/http"
	"parkwise-booking-core/internal/app"
	"parkwise-booking-core/internal/config"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/security"
	"parkwise-booking-core/internal/telemetry"
)

var version = "dev"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting ParkWise booking core...", "version", version, "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "grpc_address", cfg.GetGRPCAddress(), "http_address", cfg.GetHTTPAddress(), "storage", cfg.Storage.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Telemetry.Environment,
		SampleRatio: cfg.Telemetry.SampleRatio,
		Version:     version,
	})
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	infra, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize infrastructure", "error", err)
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	defer infra.Close()
	svcs := infra.Services()

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)
	authInterceptor := interceptor.NewAuthInterceptor(tokenManager)

	// Set up gRPC server
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
		log.Fatalf("Failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.Recovery(),
			interceptor.Logging(),
			authInterceptor.Unary(),
		),
	)
	api.RegisterReservationServer(grpcServer, api.NewReservationHandler(svcs.Reservation, svcs.Payment, svcs.Availability))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(api.ReservationServiceName, healthpb.HealthCheckResponse_SERVING)

	// Set up HTTP server
	router := httpapi.NewRouter(
		httpapi.NewBookingHandler(svcs.Reservation, svcs.Payment, svcs.Availability),
		tokenManager,
		httpapi.NewRateLimiter(cfg.RateLimit),
	)
	httpServer := &http.Server{
		Addr:              cfg.GetHTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "address", cfg.GetGRPCAddress())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetHTTPAddress())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server error", "error", err)
	}

	// Graceful shutdown
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		logger.Warn("gRPC graceful stop timed out, forcing")
		grpcServer.Stop()
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
