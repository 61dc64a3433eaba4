package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/dyngraph/internal/server"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the graph service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")

		out := map[string]string{}
		status, err := graphClient.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		out["status"] = status

		if grpcAddr != "" {
			grpcStatus, err := grpcHealth(cmd.Context(), grpcAddr)
			if err != nil {
				return fmt.Errorf("checking gRPC health: %w", err)
			}
			out["grpc"] = grpcStatus
		}

		if jsonOutput {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
		} else {
			fmt.Printf("Health: %s\n", status)
			if g, ok := out["grpc"]; ok {
				fmt.Printf("gRPC:   %s\n", g)
			}
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		if g, ok := out["grpc"]; ok && g != healthpb.HealthCheckResponse_SERVING.String() {
			return fmt.Errorf("gRPC not serving: %s", g)
		}
		return nil
	},
}

// grpcHealth asks the service's gRPC health endpoint about the graph service.
func grpcHealth(ctx context.Context, addr string) (string, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: server.GraphServiceName})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}

func init() {
	healthCmd.Flags().String("grpc", "", "also check the gRPC health endpoint at this address")
}
