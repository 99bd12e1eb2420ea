// Package main runs the Salesforce plugin gRPC server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/nucleus/ucl-salesforce/internal/audit"
	"github.com/nucleus/ucl-salesforce/internal/auth"
	"github.com/nucleus/ucl-salesforce/internal/config"
	"github.com/nucleus/ucl-salesforce/internal/dataset"
	"github.com/nucleus/ucl-salesforce/internal/gateway"
	"github.com/nucleus/ucl-salesforce/internal/logging"
	"github.com/nucleus/ucl-salesforce/internal/plugin"
	_ "github.com/nucleus/ucl-salesforce/pkg/connector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	port := flag.Int("port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logging.New("ucl-salesforce", logging.Options{})
		boot.Fatal().Err(err).Msg("load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	logger := logging.New("ucl-salesforce", cfg.Logging)
	ctx := logging.WithContext(context.Background(), logger)

	datasets, closeDatasets, err := dataset.Open(ctx, cfg.Dataset)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Dataset.Backend).Msg("open dataset backend")
	}
	defer closeDatasets()

	sink, closeAudit, err := audit.Open(ctx, cfg.Audit.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open audit sink")
	}
	defer closeAudit()

	addr := cfg.Server.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("failed to listen")
		os.Exit(1)
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor(logger),
			recoveryInterceptor(logger),
			auth.UnaryInterceptor(cfg.Auth),
		),
	)

	svc := gateway.NewService(nil, logger,
		plugin.WithConnection(cfg.Salesforce.Apply),
		plugin.WithDatasetWriter(datasets),
		plugin.WithAudit(sink),
	)
	gateway.RegisterPluginServiceServer(server, svc)

	healthSvc := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthSvc)
	healthSvc.SetServingStatus(gateway.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(server)

	go func() {
		logger.Info().Str("addr", addr).Msg("plugin server listening")
		if err := server.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthSvc.SetServingStatus(gateway.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn().Msg("timeout, forcing stop")
		server.Stop()
	case <-stopped:
		logger.Info().Msg("server stopped gracefully")
	}
}

// loggingInterceptor logs each RPC call and attaches the logger to the
// request context.
func loggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(logger.WithContext(ctx), req)

		event := logger.Info()
		if err != nil {
			event = logger.Warn().Err(err).Str("code", status.Code(err).String())
		}
		event.Str("method", info.FullMethod).Dur("duration", time.Since(start)).Msg("rpc")
		return resp, err
	}
}

// recoveryInterceptor recovers from panics.
func recoveryInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Str("method", info.FullMethod).Str("panic", fmt.Sprint(r)).Msg("panic in handler")
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}
