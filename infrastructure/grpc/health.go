// Package grpc exposes the admin surface of the relay: the standard gRPC health service.
package grpc

import (
	"chat-relay/errors"
	"log/slog"
	"net"

	grpclog "github.com/mama165/sdk-go/grpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service key of the relay. The empty key reports the whole server.
const ServiceName = "chat-relay"

type AdminServer struct {
	log    *slog.Logger
	server *gogrpc.Server
	health *health.Server
}

// NewAdminServer starts NOT_SERVING until SetServing is called.
func NewAdminServer(log *slog.Logger) *AdminServer {
	server := gogrpc.NewServer(gogrpc.ChainUnaryInterceptor(grpclog.UnaryLoggingInterceptor(log)))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &AdminServer{log: log, server: server, health: healthServer}
}

// Serve blocks until the listener fails or Shutdown is called.
func (a *AdminServer) Serve(listener net.Listener) error {
	a.log.Info("Starting admin gRPC server", "address", listener.Addr().String())
	if err := a.server.Serve(listener); err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (a *AdminServer) SetServing() {
	a.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

// Shutdown flips every status to NOT_SERVING, then stops the server gracefully.
func (a *AdminServer) Shutdown() {
	a.health.Shutdown()
	a.server.GracefulStop()
	a.log.Info("Admin gRPC server stopped")
}
