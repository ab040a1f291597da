package memberlistrpc

import "context"

import "google.golang.org/grpc"


//=========================================== Member List RPC Client


type MembershipClient struct {
	conn *grpc.ClientConn
}

func NewMembershipClient(conn *grpc.ClientConn) *MembershipClient {
	return &MembershipClient{
		conn: conn,
	}
}

func (client *MembershipClient) UpdateServerList(ctx context.Context, list *ServerList) (*UpdateServerListResponse, error) {
	resp := new(UpdateServerListResponse)

	err := client.conn.Invoke(ctx, UpdateServerListMethod, list, resp, grpc.CallContentSubtype(JsonCodecName))
	if err != nil { return nil, err }

	return resp, nil
}

func (client *MembershipClient) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {
	resp := new(PingResponse)

	err := client.conn.Invoke(ctx, PingMethod, req, resp, grpc.CallContentSubtype(JsonCodecName))
	if err != nil { return nil, err }

	return resp, nil
}
