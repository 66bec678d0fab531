// Package handler serves grpc.health.v1 backed by a readiness checker.
package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the service name clients may ask about besides the empty (whole server) name.
const ServiceName = "otp.v1.OTPService"

const watchInterval = 5 * time.Second

// ReadinessChecker is implemented by health.Checker.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// Server implements the standard gRPC health service for Kubernetes, load balancers, and CI.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker  ReadinessChecker
	interval time.Duration
}

// NewServer returns a health server. A nil checker always reports SERVING.
func NewServer(checker ReadinessChecker) *Server {
	return &Server{checker: checker, interval: watchInterval}
}

// Check reports SERVING when every readiness probe passes and NOT_SERVING otherwise.
// Probe failures are a status, not an RPC error.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !known(req.GetService()) {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	return &healthpb.HealthCheckResponse{Status: s.status(ctx)}, nil
}

// Watch streams the status once immediately and again whenever it changes.
func (s *Server) Watch(req *healthpb.HealthCheckRequest, stream healthpb.Health_WatchServer) error {
	if !known(req.GetService()) {
		return stream.Send(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVICE_UNKNOWN})
	}
	ctx := stream.Context()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		if cur := s.status(ctx); cur != last {
			if err := stream.Send(&healthpb.HealthCheckResponse{Status: cur}); err != nil {
				return err
			}
			last = cur
		}
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	if s.checker == nil {
		return healthpb.HealthCheckResponse_SERVING
	}
	if err := s.checker.Check(ctx); err != nil {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

func known(service string) bool {
	return service == "" || service == ServiceName
}
