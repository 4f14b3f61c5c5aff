package commands

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	grpcapi "ai-voice-tutor/internal/api/grpc"
	"ai-voice-tutor/internal/app"
	httpapi "ai-voice-tutor/internal/http"
	"ai-voice-tutor/internal/observability"
)

var autoStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tutor service",
	Long: `Run the tutor service.

Endpoints:
  HTTP_PORT     session control API and websocket (/v1/session/...)
  GRPC_PORT     gRPC health (service "ai.tutor.Session") and reflection
  METRICS_PORT  Prometheus /metrics, /healthz, /readyz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		initLogging(cfg, false)

		application, err := app.New(cfg)
		if err != nil {
			return err
		}
		if err := application.Start(); err != nil {
			return err
		}
		defer application.Shutdown()

		// Observability server
		obs := observability.NewServer(":"+cfg.Service.MetricsPort, application.Ready)
		obs.Start()

		// gRPC health
		lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
		if err != nil {
			return err
		}
		interceptors := observability.NewInterceptors(application.Metrics, grpcapi.SessionState(application.Session))
		server := grpc.NewServer(
			grpc.UnaryInterceptor(interceptors.Unary()),
			grpc.StreamInterceptor(interceptors.Stream()),
		)
		health := grpcapi.Register(server, application.Session)

		go func() {
			log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC server started")
			if err := server.Serve(lis); err != nil {
				log.Error().Err(err).Msg("gRPC serve failed")
			}
		}()

		// Session API
		httpServer := &http.Server{
			Addr:              ":" + cfg.Service.HTTPPort,
			Handler:           httpapi.NewRouter(application),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("port", cfg.Service.HTTPPort).Msg("HTTP server started")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP server error")
			}
		}()

		if autoStart {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Live.ConnectTimeout)
			if err := application.Session.StartSession(ctx); err != nil {
				log.Error().Err(err).Msg("Initial session failed to start")
			}
			cancel()
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Info().Msg("Shutting down")
		health.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
		if err := obs.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Observability shutdown incomplete")
		}
		server.GracefulStop()
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoStart, "start", false, "start a session immediately")
	rootCmd.AddCommand(serveCmd)
}
