package coordinator

import "fmt"

import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/telemetry"
import "github.com/sirgallo/clusterlist/pkg/tracker"
import "github.com/sirgallo/clusterlist/pkg/utils"


//=========================================== Coordinator Mutators


/*
	Enlist Server:
		admit a server into the cluster and return its new identity

		if the enlisting server claims to replace an id that is still alive,
		the old incarnation is forced down first; the removal must be staged
		before the addition so members apply the tombstone for the old id
		before they see the replacing one

		the enlistment itself is a two phase journaled operation, see
		CoordinatorOps
*/

func (csl *CoordinatorServerList) EnlistServer(replacesId server.ServerId, serviceMask server.ServiceMask, readSpeed uint32, serviceLocator string) (server.ServerId, error) {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	if csl.igetLocked(replacesId) != nil {
		Log.Warn(
			serviceLocator, "is enlisting claiming to replace server id", replacesId.String(),
			"which is still in the server list, taking its word for it and assuming the old server has failed",
		)

		downErr := csl.forceServerDownLocked(replacesId)
		if downErr != nil { return utils.GetZero[server.ServerId](), downErr }
	}

	op := &enlistServerOp{
		csl: csl,
		serviceMask: serviceMask,
		readSpeed: readSpeed,
		serviceLocator: serviceLocator,
	}

	newServerId, enlistErr := op.execute()
	if enlistErr != nil { return utils.GetZero[server.ServerId](), enlistErr }

	if replacesId.IsValid() {
		Log.Info("newly enlisted server", newServerId.String(), "replaces server", replacesId.String())
	}

	csl.commitUpdateLocked()
	return newServerId, nil
}

/*
	Add:
		install an entry with an already assigned server id and disseminate
		it; used directly by recovery replay, normal enlistment goes through
		EnlistServer
*/

func (csl *CoordinatorServerList) Add(serverId server.ServerId, serviceLocator string, serviceMask server.ServiceMask, readSpeed uint32) {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	csl.addLocked(serverId, serviceLocator, serviceMask, readSpeed)
	csl.commitUpdateLocked()
}

/*
	Crashed:
		mark a server as crashed while it is being recovered; replicas held
		for its recovery are retained so the entry stays in the list

		a no-op if the server is already crashed; calling this on a removed
		server is an error
*/

func (csl *CoordinatorServerList) Crashed(serverId server.ServerId) error {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	crashedErr := csl.crashedLocked(serverId)
	if crashedErr != nil { return crashedErr }

	csl.commitUpdateLocked()
	return nil
}

/*
	Remove:
		drop a server that is no longer part of the cluster (crashed and
		fully recovered); the entry is destroyed but the slot persists with
		its next generation number advanced
*/

func (csl *CoordinatorServerList) Remove(serverId server.ServerId) error {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	removeErr := csl.removeLocked(serverId)
	if removeErr != nil { return removeErr }

	csl.commitUpdateLocked()
	return nil
}

/*
	Hint Server Down:
		a member reported the server unreachable; verify with a bounded ping
		before believing it

		returns true if the server is (now) down, false on a false alarm
*/

func (csl *CoordinatorServerList) HintServerDown(serverId server.ServerId) (bool, error) {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	entry := csl.igetLocked(serverId)
	if entry == nil || entry.Status != server.Up {
		Log.Info("spurious crash report on unknown server id", serverId.String())
		return true, nil
	}

	Log.Info("checking server id", serverId.String(), "at", entry.ServiceLocator)
	if !csl.verifyServerFailure(serverId, entry.ServiceLocator) { return false, nil }

	Log.Warn("server id", serverId.String(), "has crashed, notifying the cluster and starting recovery")

	downErr := csl.forceServerDownLocked(serverId)
	if downErr != nil { return false, downErr }

	csl.commitUpdateLocked()
	return true, nil
}

/*
	Set Master Recovery Info:
		replace the opaque metadata master recovery needs for this server;
		journaled two phase so exactly one ServerUpdate record stays live
		per server
*/

func (csl *CoordinatorServerList) SetMasterRecoveryInfo(serverId server.ServerId, recoveryInfo server.MasterRecoveryInfo) error {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	op := &setMasterRecoveryInfoOp{
		csl: csl,
		serverId: serverId,
		recoveryInfo: recoveryInfo,
	}

	return op.execute()
}

/*
	Generate Unique Id:
		assign a fresh ServerId for a later Add; never index 0
*/

func (csl *CoordinatorServerList) GenerateUniqueId() server.ServerId {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.generateUniqueIdLocked()
}


//========================================== internal, lock assumed


func (csl *CoordinatorServerList) addLocked(serverId server.ServerId, serviceLocator string, serviceMask server.ServiceMask, readSpeed uint32) {
	index := int(serverId.Index)

	// during coordinator recovery add is not preceded by generateUniqueId,
	// so the list might not have a slot for this index yet
	csl.growSlotsLocked(index + 1)

	slot := &csl.slots[index]
	slot.nextGenerationNumber = serverId.Generation + 1
	slot.entry = &Entry{
		ServerDetails: server.ServerDetails{
			ServerId: serverId,
			ServiceLocator: serviceLocator,
			Services: serviceMask,
			Status: server.Up,
		},
	}

	if serviceMask.Has(server.MasterService) { csl.numberOfMasters++ }

	if serviceMask.Has(server.BackupService) {
		csl.numberOfBackups++
		slot.entry.ExpectedReadMBytesPerSec = readSpeed
	}

	csl.publishCountsLocked()
	csl.stageEntryLocked(slot.entry)

	csl.trackers.NotifyAll(tracker.ServerChange{
		Event: tracker.ServerAdded,
		Details: slot.entry.ServerDetails,
	})
}

func (csl *CoordinatorServerList) crashedLocked(serverId server.ServerId) error {
	entry, getErr := csl.getEntryLocked(serverId)
	if getErr != nil { return getErr }

	if entry.Status == server.Crashed { return nil }
	if entry.Status == server.Down { return fmt.Errorf("%w: %s", ErrServerDown, serverId.String()) }

	if entry.IsMaster() { csl.numberOfMasters-- }
	if entry.IsBackup() { csl.numberOfBackups-- }

	entry.Status = server.Crashed

	csl.publishCountsLocked()
	csl.stageEntryLocked(entry)

	csl.trackers.NotifyAll(tracker.ServerChange{
		Event: tracker.ServerCrashed,
		Details: entry.ServerDetails,
	})

	return nil
}

func (csl *CoordinatorServerList) removeLocked(serverId server.ServerId) error {
	crashedErr := csl.crashedLocked(serverId)
	if crashedErr != nil { return crashedErr }

	entry := csl.igetLocked(serverId)

	// the entry is destroyed almost immediately, but setting the state gets
	// the serialized update message's status field correct
	entry.Status = server.Down
	csl.stageEntryLocked(entry)

	removed := *entry
	csl.slots[serverId.Index].entry = nil

	csl.trackers.NotifyAll(tracker.ServerChange{
		Event: tracker.ServerRemoved,
		Details: removed.ServerDetails,
	})

	return nil
}

/*
	first free index at or above 1, growing the list when full; index 0 is
	reserved and never returned
*/

func (csl *CoordinatorServerList) firstFreeIndexLocked() int {
	index := 1
	for index < len(csl.slots) {
		if csl.slots[index].entry == nil { break }
		index++
	}

	csl.growSlotsLocked(index + 1)
	return index
}

func (csl *CoordinatorServerList) growSlotsLocked(size int) {
	for len(csl.slots) < size {
		csl.slots = append(csl.slots, serverSlot{})
	}
}

func (csl *CoordinatorServerList) generateUniqueIdLocked() server.ServerId {
	index := csl.firstFreeIndexLocked()

	slot := &csl.slots[index]
	serverId := server.ServerId{ Index: uint32(index), Generation: slot.nextGenerationNumber }
	slot.nextGenerationNumber++

	// placeholder reserving the slot until Add fills in the real details
	slot.entry = &Entry{
		ServerDetails: server.ServerDetails{
			ServerId: serverId,
			Status: server.Up,
		},
	}

	return serverId
}

func (csl *CoordinatorServerList) stageEntryLocked(entry *Entry) {
	csl.update = append(csl.update, entry.serialize())
}

func (csl *CoordinatorServerList) verifyServerFailure(serverId server.ServerId, serviceLocator string) bool {
	if csl.ForceServerDownForTesting { return true }

	pingErr := csl.transport.Ping(serviceLocator, PingTimeout)
	if pingErr == nil {
		Log.Info("false positive for server id", serverId.String(), "at", serviceLocator)
		return false
	}

	Log.Warn("verified host failure: id", serverId.String(), "at", serviceLocator)
	return true
}

func (csl *CoordinatorServerList) publishCountsLocked() {
	telemetry.Masters.Set(float64(csl.numberOfMasters))
	telemetry.Backups.Set(float64(csl.numberOfBackups))
}
