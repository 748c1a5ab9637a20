package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// NewServer returns a gRPC server whose unary calls get a default deadline.
func NewServer(requestTimeout time.Duration, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(requestTimeout)),
	}, opts...)
	return grpc.NewServer(opts...)
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// Shutdown stops s gracefully, forcing a hard stop once timeout elapses.
func Shutdown(log zerolog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info().Dur("timeout", timeout).Msg("shutting down grpc server")

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info().Msg("grpc server stopped")
	case <-timer.C:
		log.Warn().Msg("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
