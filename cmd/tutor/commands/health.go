package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "ai-voice-tutor/internal/api/grpc"
)

var healthAddr string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the gRPC health of a running service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := grpc.NewClient(healthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client := grpc_health_v1.NewHealthClient(conn)
		for _, service := range []string{"", grpcapi.ServiceName} {
			resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
			if err != nil {
				return fmt.Errorf("health check %q: %w", service, err)
			}
			name := service
			if name == "" {
				name = "(server)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", name, resp.GetStatus())
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().StringVar(&healthAddr, "addr", "localhost:50051", "service gRPC address")
	rootCmd.AddCommand(healthCmd)
}
