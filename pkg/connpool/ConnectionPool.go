package connpool

import "errors"

import "google.golang.org/grpc"
import "google.golang.org/grpc/connectivity"
import "google.golang.org/grpc/credentials/insecure"


//=========================================== Connection Pool


/*
	the connection pool reuses grpc client connections per follower address,
	so the dispatcher does not redial for every server list update

	the pool has the following structure:
		{
			[key: address/host]: Array<connections>
		}
*/

func NewConnectionPool(opts ConnectionPoolOpts) *ConnectionPool {
	return &ConnectionPool{
		maxConn: opts.MaxConn,
	}
}

/*
	Get Connection:
		1.) load connections for the particular host/address
		2.) if the address was loaded from the thread safe map:
			if the total connections in the map has reached the max connections
			specified --> throw max connections error
			otherwise return the first non null connection that is ready
		3.) if no usable connection exists, dial the host, store the new
			connection under the address and return it
*/

func (cp *ConnectionPool) GetConnection(addr string, port string) (*grpc.ClientConn, error) {
	connections, loaded := cp.connections.Load(addr)
	if loaded {
		if len(connections.([]*grpc.ClientConn)) >= cp.maxConn { return nil, errors.New("max connections reached") }

		for _, conn := range connections.([]*grpc.ClientConn) {
			if conn != nil && conn.GetState() == connectivity.Ready { return conn, nil }
		}
	}

	newConn, connErr := grpc.Dial(addr + port, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if connErr != nil { return nil, connErr }

	emptyConns, loaded := cp.connections.LoadOrStore(addr, []*grpc.ClientConn{newConn})
	if loaded {
		connections := emptyConns.([]*grpc.ClientConn)
		cp.connections.Store(addr, append(connections, newConn))
	}

	return newConn, nil
}

/*
	Put Connection:
		return a connection to the pool; if the pool does not own it, close it
*/

func (cp *ConnectionPool) PutConnection(addr string, connection *grpc.ClientConn) (bool, error) {
	connections, loaded := cp.connections.Load(addr)
	if loaded {
		for _, conn := range connections.([]*grpc.ClientConn) {
			if conn == connection { return true, nil }
		}
	}

	closeErr := connection.Close()
	if closeErr != nil { return false, closeErr }

	return false, nil
}

/*
	Close Connections:
		close and drop every pooled connection for a host, used when a
		follower is forced down so stale sockets are not reused on re-enlist
*/

func (cp *ConnectionPool) CloseConnections(addr string) (bool, error) {
	connections, loaded := cp.connections.Load(addr)
	if loaded {
		for _, conn := range connections.([]*grpc.ClientConn) {
			closeErr := conn.Close()
			if closeErr != nil { return false, closeErr }
		}

		cp.connections.Delete(addr)
	}

	return true, nil
}
