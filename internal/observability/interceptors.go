// Package observability provides gRPC interceptors for metrics and logging.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"ai-voice-tutor/internal/observability/metrics"
)

// SessionState reports the tutor session a call observed.
type SessionState func() (id, status string)

// Interceptors record gRPC calls along with the session state they saw.
type Interceptors struct {
	metrics *metrics.Metrics
	state   SessionState
	logger  zerolog.Logger
}

// NewInterceptors returns interceptors recording to m. state may be nil.
func NewInterceptors(m *metrics.Metrics, state SessionState) *Interceptors {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Interceptors{metrics: m, state: state, logger: log.Logger}
}

// Unary returns the unary interceptor. Health checks also log the service
// that was asked about.
func (i *Interceptors) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		ev := i.record(ctx, info.FullMethod, err, time.Since(start), zerolog.DebugLevel)
		if r, ok := req.(interface{ GetService() string }); ok {
			ev = ev.Str("healthService", r.GetService())
		}
		ev.Msg("gRPC unary call")

		return resp, err
	}
}

// Stream returns the stream interceptor. Health Watch streams are
// long-lived, so only their completion is recorded.
func (i *Interceptors) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()

		err := handler(srv, ss)

		i.record(ss.Context(), info.FullMethod, err, time.Since(start), zerolog.InfoLevel).
			Bool("success", err == nil).
			Msg("gRPC stream completed")

		return err
	}
}

// record counts the call and starts its log event. Failed calls log at warn.
func (i *Interceptors) record(ctx context.Context, method string, err error, d time.Duration, level zerolog.Level) *zerolog.Event {
	code := status.Code(err)
	i.metrics.RecordGRPC(method, code.String(), d.Seconds())

	if code != codes.OK && code != codes.Canceled {
		level = zerolog.WarnLevel
	}
	ev := i.logger.WithLevel(level).
		Str("method", method).
		Str("code", code.String()).
		Dur("duration", d)
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ev = ev.Str("peer", p.Addr.String())
	}
	if i.state != nil {
		id, st := i.state()
		ev = ev.Str("sessionStatus", st)
		if id != "" {
			ev = ev.Str("sessionId", id)
		}
	}
	return ev
}
