// Package server assembles the gRPC server that exposes service health.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthhandler "otp-verification-service/internal/health/handler"
	"otp-verification-service/internal/server/interceptors"
)

// Deps holds the dependencies of the gRPC server.
type Deps struct {
	// Readiness backs grpc.health.v1. If nil, health always reports SERVING.
	Readiness healthhandler.ReadinessChecker
	Logger    *zap.Logger
	// Reflection registers the reflection service (for grpcurl); enable outside production only.
	Reflection bool
}

// healthMethods are polled by probes and not logged.
var healthMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
}

// NewGRPCServer returns a server with OTel instrumentation, request logging and the health service registered.
func NewGRPCServer(deps Deps) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.LoggingUnary(deps.Logger, healthMethods)),
	)
	RegisterServices(s, deps)
	if deps.Reflection {
		reflection.Register(s)
	}
	return s
}

// RegisterServices registers the health service with s.
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.Readiness))
}
