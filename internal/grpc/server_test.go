package grpc

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/model"
	"github.com/shahdkhalaf/graduation-project/internal/service"
	"github.com/shahdkhalaf/graduation-project/internal/service/servicetest"
)

const testToken = "svc-token"

func startServer(t *testing.T, token string) (*grpc.ClientConn, *servicetest.Store, *health.Server) {
	t.Helper()
	store := servicetest.NewStore()
	healthServer := health.NewServer()
	server, err := NewServer(token, service.NewLocation(store, nil, false), healthServer)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	listener := bufconn.Listen(1 << 20)
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, store, healthServer
}

func TestGetLatestLocation(t *testing.T) {
	conn, store, _ := startServer(t, testToken)
	a := store.AddUser("a@example.com")
	b := store.AddUser("b@example.com")
	if _, err := store.AppendLocation(context.Background(), model.LocationReport{FromUserID: a.ID, ToUserID: b.ID, Latitude: 30.04, Longitude: 31.23}); err != nil {
		t.Fatalf("append: %v", err)
	}

	client := NewLocationQueryClient(conn)
	ctx := WithServiceToken(context.Background(), testToken)
	resp, err := client.GetLatestLocation(ctx, b.ID)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	fields := resp.AsMap()
	if fields["from_user_id"] != float64(a.ID) || fields["latitude"] != 30.04 || fields["longitude"] != 31.23 {
		t.Fatalf("unexpected location %v", fields)
	}
	if fields["timestamp"] == "" {
		t.Fatalf("expected timestamp")
	}

	_, err = client.GetLatestLocation(ctx, a.ID)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if st, _ := status.FromError(err); st.Message() != "location_not_found" {
		t.Fatalf("expected location_not_found, got %q", st.Message())
	}

	_, err = client.GetLatestLocation(ctx, 0)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestServiceTokenRequired(t *testing.T) {
	conn, store, _ := startServer(t, testToken)
	user := store.AddUser("a@example.com")
	client := NewLocationQueryClient(conn)

	_, err := client.GetLatestLocation(context.Background(), user.ID)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	_, err = client.GetLatestLocation(WithServiceToken(context.Background(), "wrong"), user.ID)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestHealthSkipsServiceToken(t *testing.T) {
	conn, _, healthServer := startServer(t, testToken)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %s", resp.GetStatus())
	}
}

func TestNoTokenConfigured(t *testing.T) {
	conn, _, _ := startServer(t, "")
	_, err := NewLocationQueryClient(conn).GetLatestLocation(context.Background(), 42)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected open server to reach the handler, got %v", err)
	}
}

func TestNewServiceAuthUnaryInterceptorRequiresToken(t *testing.T) {
	if _, err := NewServiceAuthUnaryInterceptor(""); err == nil {
		t.Fatalf("expected empty token to fail")
	}
}

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	return p.err
}

func TestHealthReporterTracksDatabase(t *testing.T) {
	healthServer := health.NewServer()
	pinger := &fakePinger{err: errors.New("connection refused")}
	reporter := NewHealthReporter(healthServer, pinger, time.Hour)

	reporter.check(context.Background())
	resp, err := healthServer.Check(context.Background(), &healthpb.HealthCheckRequest{Service: LocationQueryServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected not serving, got %s", resp.GetStatus())
	}

	pinger.err = nil
	reporter.check(context.Background())
	resp, err = healthServer.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %s", resp.GetStatus())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := reporter.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestHealthReporterLogsPingFailure(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "info", Output: &buf})
	defer logging.Init(logging.Config{})

	reporter := NewHealthReporter(health.NewServer(), &fakePinger{err: errors.New("connection refused")}, time.Hour)
	reporter.check(context.Background())

	out := buf.String()
	if !strings.Contains(out, `"component":"grpc"`) || !strings.Contains(out, "database ping failed") {
		t.Fatalf("expected grpc component warning, got %s", out)
	}
}
