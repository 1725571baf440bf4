package interceptor

import (
	"context"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"parkwise-booking-core/internal/logger"
)

// Recovery converts a handler panic into an Internal status.
func Recovery() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "gRPC handler panicked", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// Logging records method, status code and duration of every unary call.
func Logging() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		args := []any{"method", info.FullMethod, "code", code.String(), "duration_ms", time.Since(start).Milliseconds()}
		switch code {
		case codes.OK:
			logger.InfoContext(ctx, "gRPC call", args...)
		case codes.Internal, codes.Unknown, codes.DataLoss:
			logger.ErrorContext(ctx, "gRPC call failed", append(args, "error", err)...)
		default:
			logger.WarnContext(ctx, "gRPC call rejected", append(args, "error", err)...)
		}
		return resp, err
	}
}
