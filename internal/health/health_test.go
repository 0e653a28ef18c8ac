package health

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/GriffinCanCode/vadrec/internal/resilience"
)

func newTestClient(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthTracksBreaker(t *testing.T) {
	s := New()
	c := newTestClient(t, s)

	if got := check(t, c, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall = %v", got)
	}
	if got := check(t, c, ExchangeService); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("exchange = %v", got)
	}

	tests := []struct {
		state resilience.State
		want  healthpb.HealthCheckResponse_ServingStatus
	}{
		{resilience.Open, healthpb.HealthCheckResponse_NOT_SERVING},
		{resilience.HalfOpen, healthpb.HealthCheckResponse_SERVING},
		{resilience.Open, healthpb.HealthCheckResponse_NOT_SERVING},
		{resilience.Closed, healthpb.HealthCheckResponse_SERVING},
	}
	for _, tt := range tests {
		s.SetExchangeState(tt.state)
		if got := check(t, c, ExchangeService); got != tt.want {
			t.Errorf("after %v: exchange = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestHealthUnknownService(t *testing.T) {
	c := newTestClient(t, New())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: "nope"}); err == nil {
		t.Error("unknown service should fail")
	}
}
