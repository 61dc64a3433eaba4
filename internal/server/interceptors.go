package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor counts every unary RPC by status code and logs failures
// at error level, successes at debug.
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	observeRPC(info.FullMethod, start, err)
	return resp, err
}

// StreamLoggingInterceptor is LoggingInterceptor for streaming RPCs such as
// the health Watch call. The duration covers the whole stream.
func StreamLoggingInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	observeRPC(info.FullMethod, start, err)
	return err
}

func observeRPC(method string, start time.Time, err error) {
	code := status.Code(err)
	rpcRequests.WithLabelValues(method, code.String()).Inc()
	attrs := []any{"method", method, "code", code.String(), "duration", time.Since(start)}
	if err != nil && code != codes.Canceled {
		slog.Error("rpc failed", append(attrs, "error", err)...)
		return
	}
	slog.Debug("rpc completed", attrs...)
}

// RecoveryInterceptor turns a handler panic into codes.Internal and logs the
// stack.
func RecoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer recoverRPC(info.FullMethod, &err)
	return handler(ctx, req)
}

// StreamRecoveryInterceptor is RecoveryInterceptor for streaming RPCs.
func StreamRecoveryInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer recoverRPC(info.FullMethod, &err)
	return handler(srv, ss)
}

func recoverRPC(method string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	slog.Error("panic in gRPC handler",
		"method", method,
		"panic", fmt.Sprint(r),
		"stack", string(debug.Stack()))
	*err = status.Error(codes.Internal, "internal server error")
}
