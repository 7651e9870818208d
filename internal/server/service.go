package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/pipeline"
)

const (
	RedactorServiceName = "redactor.v1.Redactor"
	getStatsMethod      = "/" + RedactorServiceName + "/GetStats"
)

// RedactorServer is the gRPC surface of the daemon. Responses use the
// well-known Struct type so no generated code is needed.
type RedactorServer interface {
	GetStats(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

var redactorServiceDesc = grpc.ServiceDesc{
	ServiceName: RedactorServiceName,
	HandlerType: (*RedactorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStats", Handler: getStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "redactor/v1/redactor.proto",
}

func getStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RedactorServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStatsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RedactorServer).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterRedactorServer registers srv on s.
func RegisterRedactorServer(s grpc.ServiceRegistrar, srv RedactorServer) {
	s.RegisterService(&redactorServiceDesc, srv)
}

// GetStats calls the daemon's GetStats over conn.
func GetStats(ctx context.Context, conn grpc.ClientConnInterface, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, getStatsMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type RedactorService struct {
	stats  StatsSource
	ledger Ledger
	logger *slog.Logger
}

// NewRedactorService serves daemon counters and, when ledger is non-nil,
// the ledger totals.
func NewRedactorService(stats StatsSource, ledger Ledger, logger *slog.Logger) *RedactorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedactorService{stats: stats, ledger: ledger, logger: logger}
}

func (s *RedactorService) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	fields := map[string]any{"daemon": statsMap(s.stats.Stats())}
	if s.ledger != nil {
		ls, err := s.ledger.Stats(ctx, "")
		if err != nil {
			s.logger.Warn("ledger stats failed", "error", err)
			return nil, common.GRPCError(err)
		}
		fields["ledger"] = statsMap(ls)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, common.InternalErrorf("encode stats: %v", err)
	}
	return out, nil
}

func statsMap(s pipeline.StatsSnapshot) map[string]any {
	return map[string]any{
		"total":    s.Total,
		"success":  s.Success,
		"no_match": s.NoMatch,
		"error":    s.Error,
		"rejected": s.Rejected,
		"skipped":  s.Skipped,
	}
}

// NewGRPCServer builds a server with the redactor and health services
// registered and reflection enabled.
func NewGRPCServer(svc RedactorServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(opts...)
	RegisterRedactorServer(s, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RedactorServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(s)
	return s, hs
}
