package transport

import "context"
import "errors"
import "time"

import "github.com/sirgallo/clusterlist/pkg/connpool"
import "github.com/sirgallo/clusterlist/pkg/memberlistrpc"


//=========================================== Transport Types


/*
	UpdateRpc is one in flight server list dissemination to one follower

	IsReady never blocks; Wait blocks until the rpc terminates and returns
	the follower's confirmed server list version; Cancel aborts the rpc, the
	caller is still expected to report a terminal version to the coordinator
*/

type UpdateRpc interface {
	IsReady() bool
	Wait() (uint64, error)
	Cancel()
}

/*
	Transport sends membership traffic to followers addressed by their
	opaque service locator

	CloseConnections drops any cached connections to a locator, called when
	the coordinator forces the server behind it down so stale sockets are
	not reused by a later incarnation at the same address
*/

type Transport interface {
	SendUpdate(serviceLocator string, list *memberlistrpc.ServerList) (UpdateRpc, error)
	Ping(serviceLocator string, timeout time.Duration) error
	CloseConnections(serviceLocator string) error
}

/*
	returned by Wait when the follower's membership service reported the
	target server is no longer up; the dispatcher absorbs this and reverts
	the entry to its pre rpc version
*/

var ErrServerNotUp = errors.New("target server not up")

type GrpcTransportOpts struct {
	ConnectionPool *connpool.ConnectionPool
}

type GrpcTransport struct {
	ConnectionPool *connpool.ConnectionPool
}

type grpcUpdateRpc struct {
	done chan struct{}
	cancel context.CancelFunc
	version uint64
	err error
}

const NAME = "Transport"
