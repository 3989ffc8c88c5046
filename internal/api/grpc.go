package api

import (
	"context"
	"errors"
	"fmt"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/dreamcity/orderflow-monitor/internal/query"
)

// ServiceName is the health-check service that tracks the dashboard snapshot.
const ServiceName = "flowwatch.Dashboard"

// HealthServer exposes grpc.health.v1 and reflection for probes. The dashboard
// service stays NOT_SERVING until a snapshot has been loaded.
type HealthServer struct {
	srv      *grpc.Server
	health   *health.Server
	listener net.Listener
}

func NewHealthServer(addr string, opts ...grpc.ServerOption) (*HealthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	srv := grpc.NewServer(append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}, opts...)...)

	hs := &HealthServer{srv: srv, health: health.NewServer(), listener: lis}
	healthpb.RegisterHealthServer(srv, hs.health)
	reflection.Register(srv)
	grpc_prometheus.Register(srv)
	hs.SetServing(false)
	return hs, nil
}

// SetServing flips both the overall and the dashboard service status.
func (s *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Track is an OnRefresh hook: any published snapshot means the dashboard can serve.
func (s *HealthServer) Track(snap *query.Snapshot) {
	s.SetServing(snap != nil)
}

// Serve blocks until Stop. A graceful stop is not reported as an error.
func (s *HealthServer) Serve() error {
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop drains in-flight RPCs, forcing the stop once ctx expires.
func (s *HealthServer) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-ctx.Done():
		s.srv.Stop()
	case <-done:
	}
}

func (s *HealthServer) Addr() string {
	return s.listener.Addr().String()
}
