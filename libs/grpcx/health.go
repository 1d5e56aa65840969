package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthProber mirrors /readyz onto grpc.health.v1 so mesh probes and
// Kubernetes gRPC probes see the same dependency state.
type HealthProber struct {
	server   *health.Server
	service  string
	checks   []runtime.ReadyCheck
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthProber(server *health.Server, service string, interval time.Duration, logger *slog.Logger, checks ...runtime.ReadyCheck) *HealthProber {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthProber{server: server, service: service, checks: checks, interval: interval, logger: logger}
}

// Run probes until ctx is done, then reports NOT_SERVING so load balancers
// drain the instance before the listener closes.
func (p *HealthProber) Run(ctx context.Context) {
	p.probe(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *HealthProber) probe(ctx context.Context) {
	if err := runtime.CheckAll(ctx, p.checks...); err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("health probe failed", "err", err)
		}
		p.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	p.set(healthpb.HealthCheckResponse_SERVING)
}

func (p *HealthProber) set(status healthpb.HealthCheckResponse_ServingStatus) {
	p.server.SetServingStatus("", status)
	if p.service != "" {
		p.server.SetServingStatus(p.service, status)
	}
}
