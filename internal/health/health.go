// Package health serves the standard gRPC health protocol. The
// vadrec.exchange service tracks the transcription circuit breaker.
package health

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/vadrec/internal/resilience"
	"github.com/GriffinCanCode/vadrec/internal/trace"
)

// ExchangeService is the health service name for transcription availability.
const ExchangeService = "vadrec.exchange"

// Server is a gRPC server exposing grpc.health.v1.Health.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
}

// New creates a server reporting SERVING for the process and the exchange.
func New() *Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ExchangeService, healthpb.HealthCheckResponse_SERVING)
	return &Server{grpc: gs, health: hs}
}

// SetExchangeState maps a breaker state onto the exchange service status.
// Only an open breaker is reported as NOT_SERVING; a half-open breaker is
// accepting probes.
func (s *Server) SetExchangeState(st resilience.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if st == resilience.Open {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ExchangeService, status)
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("health server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains connections.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
