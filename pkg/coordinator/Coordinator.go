package coordinator

import "fmt"
import "sync"

import "github.com/sirgallo/clusterlist/pkg/logger"
import "github.com/sirgallo/clusterlist/pkg/memberlistrpc"
import "github.com/sirgallo/clusterlist/pkg/recovery"
import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/tracker"


//=========================================== Coordinator Server List


var Log = clog.NewCustomLog(NAME)

/*
	Coordinator Server List
		the authoritative membership view of the cluster: assigns server
		identities, tracks status transitions, forms replication groups,
		journals every mutation to the external consensus log and
		disseminates a monotonically versioned view to every member that
		carries the membership service

		a single coarse mutex guards the slot array, the update buffer and
		log, the version and the scan cursor; public mutators hold it for
		their whole body and internal *Locked forms assume it

		the background updater starts immediately and can be halted and
		restarted at any time
*/

func NewCoordinatorServerList(opts CoordinatorServerListOpts) *CoordinatorServerList {
	trackers := opts.Trackers
	if trackers == nil { trackers = tracker.NewRegistry() }

	recoveryManager := opts.Recovery
	if recoveryManager == nil { recoveryManager = recovery.NewQueuedRecoveryManager() }

	csl := &CoordinatorServerList{
		journal: opts.Journal,
		transport: opts.Transport,
		trackers: trackers,
		recovery: recoveryManager,
		concurrentRPCs: DefaultConcurrentRPCs,
		rpcTimeout: opts.RpcTimeout,
		stopUpdater: true,
		nextReplicationId: 1,
	}

	csl.hasUpdatesOrStop = sync.NewCond(&csl.mutex)
	csl.listUpToDate = sync.NewCond(&csl.mutex)

	csl.StartUpdater()

	return csl
}


//========================================== read side


/*
	returns a copy of the entry for the given server id
*/

func (csl *CoordinatorServerList) Get(serverId server.ServerId) (Entry, error) {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	entry, getErr := csl.getEntryLocked(serverId)
	if getErr != nil { return Entry{}, getErr }

	return *entry, nil
}

/*
	returns a copy of the entry at the given list position, or nil if the
	position is unoccupied
*/

func (csl *CoordinatorServerList) GetByIndex(index int) (*Entry, error) {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	if index < 0 || index >= len(csl.slots) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	if csl.slots[index].entry == nil { return nil, nil }

	entryCopy := *csl.slots[index].entry
	return &entryCopy, nil
}

/*
	version of the most recently committed update
*/

func (csl *CoordinatorServerList) Version() uint64 {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.version
}

/*
	current adaptive size of the dispatcher slot pool
*/

func (csl *CoordinatorServerList) ConcurrentRPCs() int {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.concurrentRPCs
}

/*
	number of valid indexes in the list, occupied or not
*/

func (csl *CoordinatorServerList) Size() int {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return len(csl.slots)
}

/*
	masters currently up; crashed and removed servers are not counted
*/

func (csl *CoordinatorServerList) MasterCount() uint32 {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.numberOfMasters
}

func (csl *CoordinatorServerList) BackupCount() uint32 {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.numberOfBackups
}

/*
	position of the first up master at or after startIndex, -1 if none
*/

func (csl *CoordinatorServerList) NextMasterIndex(startIndex int) int {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.nextOfLocked(server.MasterService, startIndex)
}

func (csl *CoordinatorServerList) NextBackupIndex(startIndex int) int {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.nextOfLocked(server.BackupService, startIndex)
}

/*
	serialize the current list as a FULL_LIST for members carrying any of
	the filter services
*/

func (csl *CoordinatorServerList) Serialize(services server.ServiceMask) *memberlistrpc.ServerList {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.serializeLocked(services)
}


//========================================== helper methods


func (csl *CoordinatorServerList) igetLocked(serverId server.ServerId) *Entry {
	index := int(serverId.Index)
	if index < len(csl.slots) && csl.slots[index].entry != nil {
		entry := csl.slots[index].entry
		if entry.ServerId.Equals(serverId) { return entry }
	}

	return nil
}

func (csl *CoordinatorServerList) getEntryLocked(serverId server.ServerId) (*Entry, error) {
	entry := csl.igetLocked(serverId)
	if entry == nil { return nil, fmt.Errorf("%w: %s", ErrUnknownServer, serverId.String()) }

	return entry, nil
}

func (csl *CoordinatorServerList) nextOfLocked(service server.ServiceMask, startIndex int) int {
	if startIndex < 0 { startIndex = 0 }

	for i := startIndex; i < len(csl.slots); i++ {
		entry := csl.slots[i].entry
		if entry != nil && entry.Status == server.Up && entry.Services.Has(service) { return i }
	}

	return -1
}

func (csl *CoordinatorServerList) serializeLocked(services server.ServiceMask) *memberlistrpc.ServerList {
	list := &memberlistrpc.ServerList{
		VersionNumber: csl.version,
		Type: memberlistrpc.FullList,
	}

	for i := range csl.slots {
		entry := csl.slots[i].entry
		if entry == nil { continue }

		if entry.Services.HasAny(services) { list.Servers = append(list.Servers, entry.serialize()) }
	}

	return list
}

func (entry *Entry) serialize() memberlistrpc.ServerListEntry {
	readSpeed := uint32(0)
	if entry.IsBackup() { readSpeed = entry.ExpectedReadMBytesPerSec }

	return memberlistrpc.ServerListEntry{
		ServerId: entry.ServerId,
		Services: entry.Services,
		ServiceLocator: entry.ServiceLocator,
		Status: entry.Status,
		ExpectedReadMBytesPerSec: readSpeed,
		ReplicationId: entry.ReplicationId,
	}
}
