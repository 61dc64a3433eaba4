package server

import (
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GraphServiceName is the service name reported by the gRPC health check.
const GraphServiceName = "dyngraph.Graph"

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the health service and reflection, and marks the graph service SERVING.
func NewGRPCServer(s *GraphServer) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoveryInterceptor, LoggingInterceptor),
		grpc.ChainStreamInterceptor(StreamRecoveryInterceptor, StreamLoggingInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(GraphServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(srv)

	return srv
}

// Drain flips every health status to NOT_SERVING ahead of a shutdown.
func (s *GraphServer) Drain() {
	s.health.Shutdown()
}
