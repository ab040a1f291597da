package coordinator

import "errors"
import "sync"
import "time"

import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/memberlistrpc"
import "github.com/sirgallo/clusterlist/pkg/recovery"
import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/tracker"
import "github.com/sirgallo/clusterlist/pkg/transport"


//=========================================== Coordinator Types


/*
	Entry is the authoritative record for one enlisted server, the member
	visible details plus the coordinator only dissemination and journal state

	ServerListVersion is the last version this follower is known to hold;
	IsBeingUpdated is the version currently in flight to it (0 = none)
*/

type Entry struct {
	server.ServerDetails

	MasterRecoveryInfo server.MasterRecoveryInfo

	ServerListVersion uint64
	IsBeingUpdated uint64

	ServerInfoLogId journal.EntryId
	ServerUpdateLogId journal.EntryId
}

/*
	serverSlot is one persistent position in the list; the slot survives
	entry destruction and nextGenerationNumber keeps re-assignments of the
	same index from ever colliding with an earlier ServerId
*/

type serverSlot struct {
	nextGenerationNumber uint32
	entry *Entry
}

/*
	rotating cursor state for the update eligibility scan

	minVersion tracks the minimum version any follower still needs, so the
	update log can be pruned each time the cursor wraps past index 0
*/

type scanState struct {
	searchIndex int
	minVersion uint64
	noUpdatesFound bool
}

/*
	updateSlot is one position in the dispatcher's adaptive pool, optionally
	carrying an in flight rpc to one follower
*/

type updateSlot struct {
	serverId server.ServerId
	serviceLocator string
	originalVersion uint64
	list *memberlistrpc.ServerList
	rpc transport.UpdateRpc
	startTime time.Time
}

type CoordinatorServerListOpts struct {
	Journal journal.ConsensusLog
	Transport transport.Transport
	Trackers *tracker.Registry
	Recovery recovery.RecoveryManager

	// 0 = infinite
	RpcTimeout time.Duration
}

type CoordinatorServerList struct {
	mutex sync.Mutex
	hasUpdatesOrStop *sync.Cond
	listUpToDate *sync.Cond

	journal journal.ConsensusLog
	transport transport.Transport
	trackers *tracker.Registry
	recovery recovery.RecoveryManager

	slots []serverSlot
	numberOfMasters uint32
	numberOfBackups uint32

	version uint64
	update []memberlistrpc.ServerListEntry
	updates []memberlistrpc.ServerList

	concurrentRPCs int
	rpcTimeout time.Duration
	stopUpdater bool
	updaterRunning bool
	updaterDone chan struct{}

	lastScan scanState
	nextReplicationId uint64

	// short circuits the hint ping so tests can force a server down
	ForceServerDownForTesting bool
}

var ErrUnknownServer = errors.New("unknown server id")
var ErrIndexOutOfRange = errors.New("index beyond server list length")
var ErrServerDown = errors.New("server already down")


const DefaultConcurrentRPCs = 5
const PingTimeout = 250 * time.Millisecond
const ReplicationGroupSize = 3

const NAME = "Coordinator"
