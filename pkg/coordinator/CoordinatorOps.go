package coordinator

import "fmt"

import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/utils"


//=========================================== Coordinator Journaled Ops


/*
	every mutating operation that must survive a coordinator crash follows
	the same two phase pattern:

		execute  — journal a tentative record, then fall through to complete
		complete — apply the effect in memory and journal/invalidate the
		           records that supersede the tentative one

	normal operation runs execute; coordinator recovery replays complete
	only, fed the entry id of the journaled record
*/

type journaledOp interface {
	complete(entryId journal.EntryId) error
}

var _ journaledOp = (*enlistServerOp)(nil)
var _ journaledOp = (*forceServerDownOp)(nil)
var _ journaledOp = (*setMasterRecoveryInfoOp)(nil)


//========================================== enlist server


type enlistServerOp struct {
	csl *CoordinatorServerList
	newServerId server.ServerId
	serviceMask server.ServiceMask
	readSpeed uint32
	serviceLocator string
}

/*
	journal ServerEnlisting with a freshly assigned id; the placeholder
	entry reserves the slot so a concurrent enlistment cannot take the index
*/

func (op *enlistServerOp) execute() (server.ServerId, error) {
	csl := op.csl

	op.newServerId = csl.generateUniqueIdLocked()

	state := journal.ServerInformation{
		EntryType: journal.ServerEnlistingEntry,
		ServerId: op.newServerId,
		ServiceMask: op.serviceMask,
		ReadSpeed: op.readSpeed,
		ServiceLocator: op.serviceLocator,
	}

	entryId, appendErr := journal.AppendRecord[journal.ServerInformation](csl.journal, state, nil)
	if appendErr != nil { return utils.GetZero[server.ServerId](), appendErr }

	csl.setServerInfoLogIdLocked(op.newServerId, entryId)
	Log.Debug("journal: ServerEnlisting entryId:", entryId)

	completeErr := op.complete(entryId)
	if completeErr != nil { return utils.GetZero[server.ServerId](), completeErr }

	return op.newServerId, nil
}

/*
	install the entry, form replication groups if a backup joined, then
	journal ServerEnlisted invalidating the provisional record
*/

func (op *enlistServerOp) complete(entryId journal.EntryId) error {
	csl := op.csl

	csl.addLocked(op.newServerId, op.serviceLocator, op.serviceMask, op.readSpeed)

	entry := csl.igetLocked(op.newServerId)

	Log.Info(
		"enlisting new server at", op.serviceLocator,
		"server id", op.newServerId.String(),
		"supporting services:", entry.Services,
	)

	if entry.IsBackup() {
		Log.Debug("backup at id", op.newServerId.String(), "has", op.readSpeed, "MB/s read")
		csl.createReplicationGroupLocked()
	}

	state := journal.ServerInformation{
		EntryType: journal.ServerEnlistedEntry,
		ServerId: op.newServerId,
		ServiceMask: op.serviceMask,
		ReadSpeed: op.readSpeed,
		ServiceLocator: op.serviceLocator,
	}

	newEntryId, appendErr := journal.AppendRecord[journal.ServerInformation](csl.journal, state, []journal.EntryId{entryId})
	if appendErr != nil { return appendErr }

	csl.setServerInfoLogIdLocked(op.newServerId, newEntryId)
	Log.Debug("journal: ServerEnlisted entryId:", newEntryId)

	return nil
}


//========================================== force server down


type forceServerDownOp struct {
	csl *CoordinatorServerList
	serverId server.ServerId
}

func (op *forceServerDownOp) execute() error {
	state := journal.ForceServerDown{
		EntryType: journal.ForceServerDownEntry,
		ServerId: op.serverId,
	}

	entryId, appendErr := journal.AppendRecord[journal.ForceServerDown](op.csl.journal, state, nil)
	if appendErr != nil { return appendErr }

	Log.Debug("journal: ForceServerDown entryId:", entryId)

	return op.complete(entryId)
}

/*
	0.) an unknown server invalidates the ForceServerDown record and
		surfaces UnknownServer without mutating anything
	1.) capture the entry's journal references and details before mutating
	2.) mark it crashed; a server with no master service gets removed
		immediately since no recovery will run for it
	3.) notify master recovery, dissolve its replication group and try to
		form a new one from the remaining free backups
	4.) invalidate the superseded records; a removed non master takes its
		enlist record and the ForceServerDown itself with it, while a
		crashed master keeps both live so a restarted coordinator replays
		back to the same crashed-awaiting-recovery state
*/

func (op *forceServerDownOp) complete(entryId journal.EntryId) error {
	csl := op.csl

	entry, getErr := csl.getEntryLocked(op.serverId)
	if getErr != nil {
		Log.Warn("force server down: server does not exist:", op.serverId.String())

		invalidateErr := csl.journal.Invalidate([]journal.EntryId{entryId})
		if invalidateErr != nil { Log.Error("unable to invalidate orphaned ForceServerDown record:", invalidateErr.Error()) }

		return getErr
	}

	serverInfoLogId := entry.ServerInfoLogId
	serverUpdateLogId := entry.ServerUpdateLogId
	details := entry.ServerDetails

	crashedErr := csl.crashedLocked(op.serverId)
	if crashedErr != nil { return crashedErr }

	// the host is gone, drop any pooled connections so a replacement
	// enlisting at the same address starts on fresh sockets
	closeErr := csl.transport.CloseConnections(details.ServiceLocator)
	if closeErr != nil { Log.Warn("unable to close connections to", details.ServiceLocator, ":", closeErr.Error()) }

	var invalidates []journal.EntryId
	if serverUpdateLogId != 0 { invalidates = append(invalidates, serverUpdateLogId) }

	if !details.Services.Has(server.MasterService) {
		invalidates = append(invalidates, serverInfoLogId, entryId)

		removeErr := csl.removeLocked(op.serverId)
		if removeErr != nil { return removeErr }
	}

	csl.recovery.StartMasterRecovery(details)

	csl.removeReplicationGroupLocked(details.ReplicationId)
	csl.createReplicationGroupLocked()

	return csl.journal.Invalidate(invalidates)
}

func (csl *CoordinatorServerList) forceServerDownLocked(serverId server.ServerId) error {
	op := &forceServerDownOp{
		csl: csl,
		serverId: serverId,
	}

	return op.execute()
}


//========================================== set master recovery info


type setMasterRecoveryInfoOp struct {
	csl *CoordinatorServerList
	serverId server.ServerId
	recoveryInfo server.MasterRecoveryInfo
}

/*
	build the new ServerUpdate record, preserving fields of any prior record
	for this server, and append it invalidating the prior entry id
*/

func (op *setMasterRecoveryInfoOp) execute() error {
	csl := op.csl

	oldEntryId := journal.EntryId(0)
	if entry := csl.igetLocked(op.serverId); entry != nil { oldEntryId = entry.ServerUpdateLogId }

	serverUpdate := journal.ServerUpdate{
		EntryType: journal.ServerUpdateEntry,
		ServerId: op.serverId,
	}

	var invalidates []journal.EntryId

	if oldEntryId != 0 {
		prior, readErr := journal.ReadRecord[journal.ServerUpdate](csl.journal, oldEntryId)
		if readErr != nil { return readErr }

		serverUpdate = *prior
		invalidates = append(invalidates, oldEntryId)
	}

	serverUpdate.MasterRecoveryInfo = op.recoveryInfo

	newEntryId, appendErr := journal.AppendRecord[journal.ServerUpdate](csl.journal, serverUpdate, invalidates)
	if appendErr != nil { return appendErr }

	return op.complete(newEntryId)
}

/*
	apply the new recovery info in memory; if the server vanished between
	the append and now, invalidate the record just written and surface
	UnknownServer without mutating anything
*/

func (op *setMasterRecoveryInfoOp) complete(entryId journal.EntryId) error {
	csl := op.csl

	entry := csl.igetLocked(op.serverId)
	if entry == nil {
		Log.Warn("set master recovery info: server does not exist:", op.serverId.String())

		invalidateErr := csl.journal.Invalidate([]journal.EntryId{entryId})
		if invalidateErr != nil { Log.Error("unable to invalidate orphaned ServerUpdate record:", invalidateErr.Error()) }

		return fmt.Errorf("%w: %s", ErrUnknownServer, op.serverId.String())
	}

	entry.ServerUpdateLogId = entryId
	entry.MasterRecoveryInfo = op.recoveryInfo

	return nil
}


//========================================== recovery replay entry points


/*
	Enlist Server Recover:
		replay of a ServerEnlisting record: the coordinator crashed after
		journaling the provisional record but before completing; re-create
		the slot with the original server id and run complete only
*/

func (csl *CoordinatorServerList) EnlistServerRecover(state *journal.ServerInformation, entryId journal.EntryId) error {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	Log.Debug("enlistServerRecover for server id:", state.ServerId.String())

	op := &enlistServerOp{
		csl: csl,
		newServerId: state.ServerId,
		serviceMask: state.ServiceMask,
		readSpeed: state.ReadSpeed,
		serviceLocator: state.ServiceLocator,
	}

	completeErr := op.complete(entryId)
	if completeErr != nil { return completeErr }

	csl.commitUpdateLocked()
	return nil
}

/*
	Enlisted Server Recover:
		replay of a ServerEnlisted record: the enlistment fully completed
		before the crash, so just re-install the entry with its original id
		and re-issue a cluster update
*/

func (csl *CoordinatorServerList) EnlistedServerRecover(state *journal.ServerInformation, entryId journal.EntryId) error {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	Log.Debug("enlistedServerRecover for server id:", state.ServerId.String())

	csl.addLocked(state.ServerId, state.ServiceLocator, state.ServiceMask, state.ReadSpeed)
	csl.setServerInfoLogIdLocked(state.ServerId, entryId)

	if state.ServiceMask.Has(server.BackupService) { csl.createReplicationGroupLocked() }

	csl.commitUpdateLocked()
	return nil
}

/*
	Force Server Down Recover:
		replay of a ForceServerDown record, complete phase only
*/

func (csl *CoordinatorServerList) ForceServerDownRecover(state *journal.ForceServerDown, entryId journal.EntryId) error {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	Log.Debug("forceServerDownRecover for server id:", state.ServerId.String())

	op := &forceServerDownOp{
		csl: csl,
		serverId: state.ServerId,
	}

	completeErr := op.complete(entryId)
	if completeErr != nil { return completeErr }

	csl.commitUpdateLocked()
	return nil
}

/*
	Set Master Recovery Info Recover:
		replay of a ServerUpdate record, complete phase only; an unknown
		server invalidates the record and surfaces UnknownServer
*/

func (csl *CoordinatorServerList) SetMasterRecoveryInfoRecover(state *journal.ServerUpdate, entryId journal.EntryId) error {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	Log.Debug("setMasterRecoveryInfoRecover for server id:", state.ServerId.String())

	op := &setMasterRecoveryInfoOp{
		csl: csl,
		serverId: state.ServerId,
		recoveryInfo: state.MasterRecoveryInfo,
	}

	return op.complete(entryId)
}


//========================================== helper methods


func (csl *CoordinatorServerList) setServerInfoLogIdLocked(serverId server.ServerId, entryId journal.EntryId) {
	if entry := csl.igetLocked(serverId); entry != nil { entry.ServerInfoLogId = entryId }
}
