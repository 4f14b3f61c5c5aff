package grpcapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"ai-voice-tutor/internal/language"
	"ai-voice-tutor/internal/observability"
	"ai-voice-tutor/internal/observability/metrics"
	"ai-voice-tutor/internal/service/capture"
	"ai-voice-tutor/internal/service/session"
)

type deniedMic struct{}

func (deniedMic) Open(ctx context.Context) (capture.Stream, error) {
	return nil, &capture.PermissionError{Err: errors.New("denied")}
}

func TestServingStatus(t *testing.T) {
	tests := []struct {
		status session.Status
		want   grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{session.StatusIdle, grpc_health_v1.HealthCheckResponse_SERVING},
		{session.StatusConnecting, grpc_health_v1.HealthCheckResponse_SERVING},
		{session.StatusSpeaking, grpc_health_v1.HealthCheckResponse_SERVING},
		{session.StatusError, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := ServingStatus(tt.status); got != tt.want {
				t.Errorf("ServingStatus(%s) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}

func TestHealth_TracksSession(t *testing.T) {
	native, _ := language.Lookup("en-US")
	target, _ := language.Lookup("es-ES")
	sess := session.New(session.NewConfig(native, target), session.Deps{
		Microphone: deniedMic{},
		Logger:     zerolog.Nop(),
	})

	lis := bufconn.Listen(1 << 20)
	ic := observability.NewInterceptors(metrics.DefaultMetrics, SessionState(sess))
	g := grpc.NewServer(
		grpc.UnaryInterceptor(ic.Unary()),
		grpc.StreamInterceptor(ic.Stream()),
	)
	srv := Register(g, sess)
	go g.Serve(lis)
	defer g.Stop()
	defer srv.Shutdown()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	waitFor := func(want grpc_health_v1.HealthCheckResponse_ServingStatus) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
			cancel()
			if err == nil && resp.Status == want {
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("expected %s, last response %v err %v", want, resp, err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	waitFor(grpc_health_v1.HealthCheckResponse_SERVING)

	// Microphone denied: the session fails.
	_ = sess.StartSession(context.Background())
	waitFor(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	sess.EndSession()
	waitFor(grpc_health_v1.HealthCheckResponse_SERVING)
}
