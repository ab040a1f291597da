package transport

import "context"
import "net"
import "time"

import "google.golang.org/grpc/codes"
import "google.golang.org/grpc/status"

import "github.com/sirgallo/clusterlist/pkg/logger"
import "github.com/sirgallo/clusterlist/pkg/memberlistrpc"


//=========================================== Grpc Transport


var Log = clog.NewCustomLog(NAME)


func NewGrpcTransport(opts GrpcTransportOpts) *GrpcTransport {
	return &GrpcTransport{
		ConnectionPool: opts.ConnectionPool,
	}
}

/*
	Send Update:
		1.) split the service locator and pull a pooled connection
		2.) fire the rpc on its own goroutine with a cancellable context
		3.) hand back a handle the dispatcher polls with IsReady and reaps
			with Wait

		a follower that answers with Success false is reported as
		ErrServerNotUp; transport level failures surface as their grpc error
*/

func (transport *GrpcTransport) SendUpdate(serviceLocator string, list *memberlistrpc.ServerList) (UpdateRpc, error) {
	host, port, splitErr := net.SplitHostPort(serviceLocator)
	if splitErr != nil { return nil, splitErr }

	conn, connErr := transport.ConnectionPool.GetConnection(host, ":" + port)
	if connErr != nil { return nil, connErr }

	ctx, cancel := context.WithCancel(context.Background())

	rpc := &grpcUpdateRpc{
		done: make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(rpc.done)

		client := memberlistrpc.NewMembershipClient(conn)

		resp, rpcErr := client.UpdateServerList(ctx, list)

		if rpcErr != nil {
			if status.Code(rpcErr) == codes.FailedPrecondition {
				rpc.err = ErrServerNotUp
			} else { rpc.err = rpcErr }

			return
		}

		if !resp.Success {
			rpc.version = resp.CurrentVersion
			rpc.err = ErrServerNotUp
			return
		}

		rpc.version = resp.CurrentVersion
		transport.ConnectionPool.PutConnection(host, conn)
	}()

	return rpc, nil
}

/*
	Ping:
		synchronous liveness probe with a hard deadline, used by the
		coordinator to verify a suspected failure before forcing the server
		down
*/

func (transport *GrpcTransport) Ping(serviceLocator string, timeout time.Duration) error {
	host, port, splitErr := net.SplitHostPort(serviceLocator)
	if splitErr != nil { return splitErr }

	conn, connErr := transport.ConnectionPool.GetConnection(host, ":" + port)
	if connErr != nil { return connErr }

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := memberlistrpc.NewMembershipClient(conn)

	_, pingErr := client.Ping(ctx, &memberlistrpc.PingRequest{})
	if pingErr != nil { return pingErr }

	transport.ConnectionPool.PutConnection(host, conn)
	return nil
}

/*
	Close Connections:
		tear down every pooled connection to a dead follower's host
*/

func (transport *GrpcTransport) CloseConnections(serviceLocator string) error {
	host, _, splitErr := net.SplitHostPort(serviceLocator)
	if splitErr != nil { return splitErr }

	_, closeErr := transport.ConnectionPool.CloseConnections(host)
	if closeErr != nil {
		Log.Warn("error closing connections to", serviceLocator, ":", closeErr.Error())
		return closeErr
	}

	return nil
}


//========================================== update rpc handle


func (rpc *grpcUpdateRpc) IsReady() bool {
	select {
		case <- rpc.done:
			return true
		default:
			return false
	}
}

func (rpc *grpcUpdateRpc) Wait() (uint64, error) {
	<- rpc.done
	return rpc.version, rpc.err
}

func (rpc *grpcUpdateRpc) Cancel() {
	rpc.cancel()
	<- rpc.done
}
