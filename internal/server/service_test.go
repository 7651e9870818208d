package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
)

func dialBufconn(t *testing.T, svc RedactorServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s, _ := NewGRPCServer(svc)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGetStats_OverGRPC(t *testing.T) {
	svc := NewRedactorService(fixedStats{Total: 4, Success: 1, Error: 2, Rejected: 1}, &fakeLedger{}, nil)
	conn := dialBufconn(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := GetStats(ctx, conn)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	daemon := out.GetFields()["daemon"].GetStructValue().GetFields()
	if daemon["total"].GetNumberValue() != 4 || daemon["rejected"].GetNumberValue() != 1 {
		t.Errorf("daemon = %v", daemon)
	}
	ledger := out.GetFields()["ledger"].GetStructValue().GetFields()
	if ledger["success"].GetNumberValue() != 9 {
		t.Errorf("ledger = %v", ledger)
	}
}

func TestGetStats_WithoutLedger(t *testing.T) {
	out, err := NewRedactorService(fixedStats(pipeline.StatsSnapshot{Skipped: 2}), nil, nil).
		GetStats(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if _, ok := out.GetFields()["ledger"]; ok {
		t.Error("ledger field present without a ledger")
	}
	if got := out.GetFields()["daemon"].GetStructValue().GetFields()["skipped"].GetNumberValue(); got != 2 {
		t.Errorf("skipped = %v", got)
	}
}

func TestHealth_OverGRPC(t *testing.T) {
	conn := dialBufconn(t, NewRedactorService(fixedStats{}, nil, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: RedactorServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v", resp.GetStatus())
	}
}
