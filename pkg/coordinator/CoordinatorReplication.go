package coordinator

import "github.com/sirgallo/clusterlist/pkg/server"


//=========================================== Coordinator Replication Groups


/*
	Create Replication Group:
		collect every up backup not yet assigned to a replication group;
		while at least a full group remains, peel one off and assign it a
		fresh monotonically increasing group id

		leftover backups keep group 0 until enough free peers enlist
*/

func (csl *CoordinatorServerList) createReplicationGroupLocked() {
	var freeBackups []server.ServerId

	for i := range csl.slots {
		entry := csl.slots[i].entry
		if entry != nil && entry.IsBackup() && entry.Status == server.Up && entry.ReplicationId == 0 {
			freeBackups = append(freeBackups, entry.ServerId)
		}
	}

	for len(freeBackups) >= ReplicationGroupSize {
		group := freeBackups[:ReplicationGroupSize]
		freeBackups = freeBackups[ReplicationGroupSize:]

		csl.assignReplicationGroupLocked(csl.nextReplicationId, group)
		csl.nextReplicationId++
	}
}

/*
	Remove Replication Group:
		reset group membership for every backup in the group; the full
		member set is collected before any reassignment so a partially
		cleared group is never rescanned

		group 0 is the unassigned default and cannot be removed
*/

func (csl *CoordinatorServerList) removeReplicationGroupLocked(groupId uint64) {
	if groupId == 0 { return }

	var group []server.ServerId

	for i := range csl.slots {
		entry := csl.slots[i].entry
		if entry != nil && entry.IsBackup() && entry.ReplicationId == groupId {
			group = append(group, entry.ServerId)
		}
	}

	if len(group) != 0 { csl.assignReplicationGroupLocked(0, group) }
}

/*
	Assign Replication Group:
		set the replication id on every listed backup and stage the change
		for dissemination; returns false without rolling back if any member
		is gone
*/

func (csl *CoordinatorServerList) assignReplicationGroupLocked(replicationId uint64, group []server.ServerId) bool {
	for _, backupId := range group {
		if csl.igetLocked(backupId) == nil { return false }
		csl.setReplicationIdLocked(backupId, replicationId)
	}

	return true
}

/*
	only up servers take replication assignments; crashed backups keep their
	old group id until they are forced down or removed
*/

func (csl *CoordinatorServerList) setReplicationIdLocked(serverId server.ServerId, replicationId uint64) {
	entry := csl.igetLocked(serverId)
	if entry == nil || entry.Status != server.Up { return }

	entry.ReplicationId = replicationId
	csl.stageEntryLocked(entry)
}
