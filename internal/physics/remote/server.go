package remote

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "simstate.physics.v1.Backend"

// #region service
type backendService interface {
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ContactPoints(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LinkWorldPose(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BodyPose(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BodyAABB(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(call func(backendService, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(backendService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(backendService), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*backendService)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(backendService.Step, "Step"),
		unaryHandler(backendService.ContactPoints, "ContactPoints"),
		unaryHandler(backendService.LinkWorldPose, "LinkWorldPose"),
		unaryHandler(backendService.BodyPose, "BodyPose"),
		unaryHandler(backendService.BodyAABB, "BodyAABB"),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "simstate/physics/v1/backend.proto",
}
// #endregion service

// #region server
// Server exposes a physics.Backend over gRPC. Calls are serialized.
type Server struct {
	mu      sync.Mutex
	backend physics.Backend
}

// NewServer wraps backend.
func NewServer(backend physics.Backend) *Server {
	return &Server{backend: backend}
}

// Register adds the service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

func (s *Server) Step(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Step(); err != nil {
		return nil, status.Errorf(codes.Internal, "step: %v", err)
	}
	return &structpb.Struct{}, nil
}

func (s *Server) ContactPoints(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := bodyField(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	points, err := s.backend.ContactPoints(id)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "contact points %d: %v", id, err)
	}
	return contactsReply(points), nil
}

func (s *Server) LinkWorldPose(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := bodyField(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	link := in.GetFields()["link"].GetStringValue()
	s.mu.Lock()
	defer s.mu.Unlock()
	pose, ok, err := s.backend.LinkWorldPose(id, link)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "link pose %d/%s: %v", id, link, err)
	}
	return poseReply(pose, ok), nil
}

func (s *Server) BodyPose(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := bodyField(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pose, ok, err := s.backend.BodyPose(id)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "body pose %d: %v", id, err)
	}
	return poseReply(pose, ok), nil
}

func (s *Server) BodyAABB(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := bodyField(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	box, ok, err := s.backend.BodyAABB(id)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "body aabb %d: %v", id, err)
	}
	return aabbReply(box, ok), nil
}
// #endregion server
