package grpc

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func startAdminServer(t *testing.T) (*AdminServer, grpc_health_v1.HealthClient) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	admin := NewAdminServer(logs.GetLoggerFromLevel(slog.LevelDebug))
	serveErr := make(chan error, 1)
	go func() { serveErr <- admin.Serve(listener) }()

	conn, err := gogrpc.NewClient(listener.Addr().String(), gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		admin.Shutdown()
		require.NoError(t, <-serveErr)
	})
	return admin, grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, client grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestAdminServer_Reports_Serving_After_Startup(t *testing.T) {
	req := require.New(t)
	admin, client := startAdminServer(t)

	// Given a server that has not finished starting
	req.Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, ""))

	// When startup completes
	admin.SetServing()

	// Then both the server and the relay service are healthy
	req.Equal(grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ""))
	req.Equal(grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ServiceName))
}
