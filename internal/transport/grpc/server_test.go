package transportgrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/pulsesparkai/my-old-space/internal/infra/config"
	"github.com/pulsesparkai/my-old-space/internal/infra/security"
	grpcinterceptors "github.com/pulsesparkai/my-old-space/internal/transport/grpc/interceptors"
)

func startTestServer(t *testing.T, registry *prometheus.Registry) (*Server, healthpb.HealthClient) {
	t.Helper()

	metrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("grpc metrics: %v", err)
	}

	srv := NewServer(ServerDependencies{
		Verifier: security.NewTokenVerifier(config.AuthSettings{JWTSecret: "grpc-test-secret"}),
		Metrics:  metrics,
		Logger:   zaptest.NewLogger(t),
	})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return srv, healthpb.NewHealthClient(conn)
}

func TestHealthCheckIsPublicAndServing(t *testing.T) {
	registry := prometheus.NewRegistry()
	srv, client := startTestServer(t, registry)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp *healthpb.HealthCheckResponse
	var err error
	for i := 0; i < 50; i++ {
		resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}

	srv.SetServing(false)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %s", resp.GetStatus())
	}

	if count, err := testutil.GatherAndCount(registry, "profiles_grpc_requests_total"); err != nil || count == 0 {
		t.Fatalf("expected gRPC request metrics to be recorded")
	}
}
