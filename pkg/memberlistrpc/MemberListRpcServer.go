package memberlistrpc

import "context"

import "google.golang.org/grpc"


//=========================================== Member List RPC Server


/*
	the server side of the membership service, implemented by any process
	that carries the MEMBERSHIP service and accepts server list dissemination
	from the coordinator

	the service descriptor is built by hand since the corpus has no generated
	stubs; handlers decode through whatever codec the caller negotiated
*/

type MembershipServer interface {
	UpdateServerList(ctx context.Context, list *ServerList) (*UpdateServerListResponse, error)
	Ping(ctx context.Context, req *PingRequest) (*PingResponse, error)
}

var MembershipServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MembershipServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "UpdateServerList",
			Handler: updateServerListHandler,
		},
		{
			MethodName: "Ping",
			Handler: pingHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
	Metadata: "memberlistrpc",
}

func RegisterMembershipServer(srv *grpc.Server, impl MembershipServer) {
	srv.RegisterService(&MembershipServiceDesc, impl)
}

func updateServerListHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ServerList)
	if err := dec(in); err != nil { return nil, err }
	if interceptor == nil { return srv.(MembershipServer).UpdateServerList(ctx, in) }

	info := &grpc.UnaryServerInfo{
		Server: srv,
		FullMethod: UpdateServerListMethod,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MembershipServer).UpdateServerList(ctx, req.(*ServerList))
	}

	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil { return nil, err }
	if interceptor == nil { return srv.(MembershipServer).Ping(ctx, in) }

	info := &grpc.UnaryServerInfo{
		Server: srv,
		FullMethod: PingMethod,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(MembershipServer).Ping(ctx, req.(*PingRequest))
	}

	return interceptor(ctx, in, info, handler)
}
