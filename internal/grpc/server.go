package grpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer builds the internal gRPC server. An empty serviceToken leaves the
// server unauthenticated.
func NewServer(serviceToken string, location *service.Location, healthServer *health.Server) (*grpc.Server, error) {
	var opts []grpc.ServerOption
	if serviceToken != "" {
		interceptor, err := NewServiceAuthUnaryInterceptor(serviceToken)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.UnaryInterceptor(interceptor))
	}
	server := grpc.NewServer(opts...)
	server.RegisterService(&LocationQueryServiceDesc, NewLocationQueryServer(location))
	healthpb.RegisterHealthServer(server, healthServer)
	return server, nil
}

// HealthReporter keeps the gRPC health status in step with database reachability.
type HealthReporter struct {
	health   *health.Server
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

func NewHealthReporter(healthServer *health.Server, pinger Pinger, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{
		health:   healthServer,
		pinger:   pinger,
		interval: interval,
		timeout:  2 * time.Second,
		log:      logging.With("grpc"),
	}
}

func (h *HealthReporter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		h.check(ctx)
		select {
		case <-ctx.Done():
			h.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *HealthReporter) String() string {
	return "grpc-health-reporter"
}

func (h *HealthReporter) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	if err := h.pinger.Ping(pingCtx); err != nil {
		if ctx.Err() == nil {
			h.log.Warn().Err(err).Msg("database ping failed")
		}
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
}

func (h *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(LocationQueryServiceName, status)
}
