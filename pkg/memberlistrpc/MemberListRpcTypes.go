package memberlistrpc

import "github.com/sirgallo/clusterlist/pkg/server"


//=========================================== Member List RPC Types


type ServerListType string

const (
	FullList ServerListType = "FULL_LIST"
	Update ServerListType = "UPDATE"
)

/*
	one serialized server record as members see it, enough to route requests
	and pick replication targets but nothing coordinator internal
*/

type ServerListEntry struct {
	ServerId server.ServerId
	Services server.ServiceMask
	ServiceLocator string
	Status server.ServerStatus
	ExpectedReadMBytesPerSec uint32
	ReplicationId uint64
}

/*
	the outbound membership message: either a FULL_LIST enumerating every
	live entry matching the member's service filter, or an UPDATE carrying
	only the delta sealed at VersionNumber
*/

type ServerList struct {
	VersionNumber uint64
	Type ServerListType
	Servers []ServerListEntry
}

type UpdateServerListResponse struct {
	CurrentVersion uint64
	Success bool
}

type PingRequest struct {
	CallerId server.ServerId
}

type PingResponse struct {
	Acked bool
}


const ServiceName = "memberlistrpc.MembershipService"
const UpdateServerListMethod = "/" + ServiceName + "/UpdateServerList"
const PingMethod = "/" + ServiceName + "/Ping"
