package grpcx

import (
	"context"
	"errors"
	"fmt"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReadyCheck returns a /readyz check that dials the standard gRPC health
// service at addr. Each invocation opens a short-lived connection; the check is
// only run on readiness probes, so connection churn is negligible.
func HealthReadyCheck(addr string) func(context.Context) error {
	return func(ctx context.Context) error {
		if addr == "" {
			return errors.New("grpc addr not configured")
		}
		conn, err := Dial(ctx, addr, DialOptions{Timeout: 2 * time.Second})
		if err != nil {
			return err
		}
		defer func() { _ = conn.Close() }()

		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("grpc health status %s", resp.GetStatus())
		}
		return nil
	}
}
