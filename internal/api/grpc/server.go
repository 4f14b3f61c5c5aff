// Package grpcapi exposes the tutor session over the standard gRPC health
// protocol.
package grpcapi

import (
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"ai-voice-tutor/internal/observability"
	"ai-voice-tutor/internal/service/session"
)

// ServiceName is the health service entry that tracks the session.
const ServiceName = "ai.tutor.Session"

// Server keeps the health status of ServiceName in step with the session.
type Server struct {
	health *health.Server
	cancel func()
	done   chan struct{}
}

// Register installs health and reflection services on g and starts
// following sess.
func Register(g *grpc.Server, sess *session.Session) *Server {
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	updates, cancel := sess.Subscribe()
	s := &Server{health: hs, cancel: cancel, done: make(chan struct{})}
	go s.follow(updates)
	return s
}

// ServingStatus maps a session status to a health status.
func ServingStatus(st session.Status) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if st == session.StatusError {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

// SessionState lets the gRPC interceptors log the state of sess.
func SessionState(sess *session.Session) observability.SessionState {
	return func() (string, string) {
		return sess.ID(), sess.Status().String()
	}
}

func (s *Server) follow(updates <-chan session.Snapshot) {
	defer close(s.done)

	last := grpc_health_v1.HealthCheckResponse_UNKNOWN
	for snap := range updates {
		next := ServingStatus(snap.Status)
		if next == last {
			continue
		}
		last = next
		s.health.SetServingStatus(ServiceName, next)
		log.Info().
			Str("service", ServiceName).
			Str("status", next.String()).
			Str("sessionStatus", snap.Status.String()).
			Msg("Health status changed")
	}
}

// Shutdown stops following the session and marks every service NOT_SERVING.
func (s *Server) Shutdown() {
	s.cancel()
	<-s.done
	s.health.Shutdown()
}
