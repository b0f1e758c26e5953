package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/shahdkhalaf/graduation-project/internal/apperr"
	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/model"
	"github.com/shahdkhalaf/graduation-project/internal/service"
)

const (
	LocationQueryServiceName = "tracker.v1.LocationQuery"
	GetLatestLocationMethod  = "/" + LocationQueryServiceName + "/GetLatestLocation"
)

// LocationQueryService answers latest-location reads for other backend services.
// Messages are well-known protobuf types, so no generated code is needed.
type LocationQueryService interface {
	GetLatestLocation(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
}

var LocationQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: LocationQueryServiceName,
	HandlerType: (*LocationQueryService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetLatestLocation", Handler: getLatestLocationHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tracker/v1/location.proto",
}

func getLatestLocationHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LocationQueryService).GetLatestLocation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetLatestLocationMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LocationQueryService).GetLatestLocation(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

type LocationQueryServer struct {
	location *service.Location
}

func NewLocationQueryServer(location *service.Location) *LocationQueryServer {
	return &LocationQueryServer{location: location}
}

func (s *LocationQueryServer) GetLatestLocation(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	report, err := s.location.Latest(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	resp, err := locationStruct(report)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode location")
	}
	return resp, nil
}

func locationStruct(report model.LocationReport) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"id":           report.ID,
		"from_user_id": report.FromUserID,
		"to_user_id":   report.ToUserID,
		"latitude":     report.Latitude,
		"longitude":    report.Longitude,
		"timestamp":    report.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func toStatus(ctx context.Context, err error) error {
	code := codes.Internal
	switch apperr.KindOf(err) {
	case apperr.KindInvalidArgument:
		code = codes.InvalidArgument
	case apperr.KindUnauthenticated:
		code = codes.Unauthenticated
	case apperr.KindForbidden:
		code = codes.PermissionDenied
	case apperr.KindConflict:
		code = codes.AlreadyExists
	case apperr.KindNotFound:
		code = codes.NotFound
	case apperr.KindUnavailable:
		code = codes.Unavailable
	}
	if code == codes.Internal || code == codes.Unavailable {
		logging.Ctx(ctx).Error().Err(err).Msg("grpc request failed")
	}
	return status.Error(code, apperr.CodeOf(err))
}

// LocationQueryClient calls tracker.v1.LocationQuery.
type LocationQueryClient struct {
	cc grpc.ClientConnInterface
}

func NewLocationQueryClient(cc grpc.ClientConnInterface) *LocationQueryClient {
	return &LocationQueryClient{cc: cc}
}

func (c *LocationQueryClient) GetLatestLocation(ctx context.Context, userID int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetLatestLocationMethod, wrapperspb.Int64(userID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
