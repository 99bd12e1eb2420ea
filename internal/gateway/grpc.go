package gateway

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ucl.salesforce.v1.PluginService"

const (
	methodListPlugins   = "/" + ServiceName + "/ListPlugins"
	methodExecute       = "/" + ServiceName + "/Execute"
	methodListActions   = "/" + ServiceName + "/ListActions"
	methodExecuteAction = "/" + ServiceName + "/ExecuteAction"
)

// PluginServiceServer is the server API. Messages are structpb.Struct so
// the service needs no generated code.
type PluginServiceServer interface {
	ListPlugins(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExecuteAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPluginServiceServer registers srv on s.
func RegisterPluginServiceServer(s grpc.ServiceRegistrar, srv PluginServiceServer) {
	s.RegisterService(&pluginServiceDesc, srv)
}

var pluginServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PluginServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPlugins", Handler: unaryHandler(methodListPlugins, PluginServiceServer.ListPlugins)},
		{MethodName: "Execute", Handler: unaryHandler(methodExecute, PluginServiceServer.Execute)},
		{MethodName: "ListActions", Handler: unaryHandler(methodListActions, PluginServiceServer.ListActions)},
		{MethodName: "ExecuteAction", Handler: unaryHandler(methodExecuteAction, PluginServiceServer.ExecuteAction)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ucl/salesforce/v1/plugin_service.proto",
}

type unaryMethod func(PluginServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PluginServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PluginServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PluginServiceClient is the client API.
type PluginServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPluginServiceClient wraps a connection.
func NewPluginServiceClient(cc grpc.ClientConnInterface) *PluginServiceClient {
	return &PluginServiceClient{cc: cc}
}

func (c *PluginServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PluginServiceClient) ListPlugins(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListPlugins, in, opts...)
}

func (c *PluginServiceClient) Execute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodExecute, in, opts...)
}

func (c *PluginServiceClient) ListActions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListActions, in, opts...)
}

func (c *PluginServiceClient) ExecuteAction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodExecuteAction, in, opts...)
}
