package grpcx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthProberTracksChecks(t *testing.T) {
	srv := health.NewServer()
	healthy := true
	check := runtime.ReadyCheck{Name: "db", Check: func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}}
	p := NewHealthProber(srv, "salon.v1", time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)), check)

	p.probe(context.Background())
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "salon.v1"})
	if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v (err=%v)", resp.GetStatus(), err)
	}

	healthy = false
	p.probe(context.Background())
	resp, _ = srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", resp.Status)
	}
}
