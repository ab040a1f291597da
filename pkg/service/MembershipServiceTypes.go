package service

import "time"

import "github.com/sirgallo/clusterlist/pkg/connpool"
import "github.com/sirgallo/clusterlist/pkg/coordinator"
import "github.com/sirgallo/clusterlist/pkg/httpservice"
import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/recovery"
import "github.com/sirgallo/clusterlist/pkg/tracker"


type MembershipPortOpts struct {
	Admin int
}

type MembershipServiceOpts struct {
	Ports MembershipPortOpts

	// bolt journal path for single node deployments; ignored when
	// EtcdEndpoints is set and the replicated journal is used instead
	JournalPath string
	EtcdEndpoints []string

	ConnPoolOpts connpool.ConnectionPoolOpts
	RpcTimeout time.Duration
}

type MembershipService struct {
	Coordinator *coordinator.CoordinatorServerList
	Journal journal.ConsensusLog
	Trackers *tracker.Registry
	Recovery *recovery.QueuedRecoveryManager

	HTTPService *httpservice.HTTPService
}

const NAME = "Membership"
