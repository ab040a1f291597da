package coordinator

import "errors"
import "time"

import "github.com/sirgallo/clusterlist/pkg/memberlistrpc"
import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/telemetry"
import "github.com/sirgallo/clusterlist/pkg/transport"


//=========================================== Coordinator Updater


/*
	Start Updater:
		spin up the background updater goroutine if it is not already
		running and nudge it to look for work; safe to call repeatedly

		the updater logs any panic at the goroutine boundary and repanics;
		callers blocked in Sync will hang if that happens, which an external
		watchdog is expected to observe
*/

func (csl *CoordinatorServerList) StartUpdater() {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	if !csl.updaterRunning {
		csl.stopUpdater = false
		csl.updaterRunning = true
		csl.updaterDone = make(chan struct{})

		go func() {
			defer func() {
				if r := recover(); r != nil {
					Log.Error("fatal error in coordinator server list updater:", r)
					panic(r)
				}
			}()

			csl.updateLoop()
		}()
	}

	csl.hasUpdatesOrStop.Signal()
}

/*
	Halt Updater:
		signal stop, wake the updater and join it; pending rpcs are
		cancelled and the cluster is left out of date

		to force a synchronization point before halting, call Sync first
*/

func (csl *CoordinatorServerList) HaltUpdater() {
	csl.mutex.Lock()

	if !csl.updaterRunning {
		csl.mutex.Unlock()
		return
	}

	csl.stopUpdater = true
	done := csl.updaterDone
	csl.hasUpdatesOrStop.Signal()
	csl.mutex.Unlock()

	<- done

	csl.mutex.Lock()
	csl.updaterRunning = false
	csl.mutex.Unlock()
}

/*
	Sync:
		block until every up entry carrying the membership service holds the
		current version with nothing in flight
*/

func (csl *CoordinatorServerList) Sync() {
	csl.StartUpdater()

	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	for !csl.isClusterUpToDateLocked() {
		csl.listUpToDate.Wait()
	}
}

/*
	Update Loop:
		updateSlots holds every slot ever allocated and only grows; inUse
		and free are index lists over it

		the pool aims for just enough slots that by the time one full pass
		over inUse completes, the rpcs started on the previous pass have
		finished: grow by one when every slot stayed busy for a whole pass,
		give one back (with a slack of one to avoid thrash) when the pool
		runs consistently below load
*/

func (csl *CoordinatorServerList) updateLoop() {
	defer close(csl.updaterDone)

	var updateSlots []*updateSlot
	var inUse []int
	var free []int

	csl.mutex.Lock()
	concurrent := csl.concurrentRPCs
	csl.mutex.Unlock()

	for i := 0; i < concurrent; i++ {
		updateSlots = append(updateSlots, &updateSlot{})
		inUse = append(inUse, i)
	}

	for !csl.shouldStop() {
		lastFreePos := -1
		liveRpcs := 0

		for pos, slotIdx := range inUse {
			if csl.dispatchRpc(updateSlots[slotIdx]) {
				liveRpcs++
			} else { lastFreePos = pos }
		}

		if len(inUse) == liveRpcs && lastFreePos == -1 {
			// every slot stayed busy, expand
			if len(free) == 0 {
				updateSlots = append(updateSlots, &updateSlot{})
				free = append(free, len(updateSlots) - 1)
			}

			csl.adjustConcurrentRPCs(1)
			inUse = append(inUse, free[0])
			free = free[1:]
		} else if liveRpcs + 1 < len(inUse) && lastFreePos != -1 {
			// contract
			csl.adjustConcurrentRPCs(-1)
			free = append(free, inUse[lastFreePos])
			inUse = append(inUse[:lastFreePos], inUse[lastFreePos + 1:]...)
		}

		// with nothing in flight, wait for more updates
		if liveRpcs == 0 {
			csl.mutex.Lock()

			for !csl.hasUpdatesLocked() && !csl.stopUpdater {
				csl.listUpToDate.Broadcast()
				csl.hasUpdatesOrStop.Wait()
			}

			csl.mutex.Unlock()
		}
	}

	// stopping: cancel everything in flight and revert the entries
	for _, slotIdx := range inUse {
		slot := updateSlots[slotIdx]
		if slot.rpc != nil {
			slot.rpc.Cancel()
			slot.rpc = nil

			telemetry.InFlightUpdates.Dec()
			csl.updateEntryVersion(slot.serverId, slot.originalVersion)
		}
	}
}

/*
	Dispatch Rpc:
		1.) reap a completed rpc: on success the follower advances to the
			version it reports back, on ServerNotUp (or any transport failure) the
			entry reverts to its pre rpc version so the scan reconsiders it
		2.) cancel an rpc that outlived the timeout, reverting the same way
		3.) with the slot empty, try to load the next eligible update and
			fire it

		returns true while the slot still holds a live rpc
*/

func (csl *CoordinatorServerList) dispatchRpc(slot *updateSlot) bool {
	if slot.rpc != nil {
		if slot.rpc.IsReady() {
			newVersion, rpcErr := slot.rpc.Wait()

			telemetry.InFlightUpdates.Dec()
			telemetry.UpdateRpcDuration.Observe(time.Since(slot.startTime).Seconds())

			if rpcErr != nil {
				newVersion = slot.originalVersion

				if errors.Is(rpcErr, transport.ErrServerNotUp) {
					Log.Info(
						"async update to", slot.serverId.String(),
						"occurred during/after it was crashed/downed in the server list",
					)

					telemetry.UpdatesSentTotal.WithLabelValues(string(slot.list.Type), "not_up").Inc()
				} else {
					Log.Warn("update to", slot.serverId.String(), "failed:", rpcErr.Error())
					telemetry.UpdatesSentTotal.WithLabelValues(string(slot.list.Type), "error").Inc()
				}
			} else {
				telemetry.UpdatesSentTotal.WithLabelValues(string(slot.list.Type), "ok").Inc()
			}

			slot.rpc = nil
			csl.updateEntryVersion(slot.serverId, newVersion)
		} else if csl.rpcTimeout > 0 && time.Since(slot.startTime) > csl.rpcTimeout {
			Log.Info("server list update to", slot.serverId.String(), "timed out, trying again later")

			slot.rpc.Cancel()
			slot.rpc = nil

			telemetry.InFlightUpdates.Dec()
			telemetry.UpdatesSentTotal.WithLabelValues(string(slot.list.Type), "timeout").Inc()

			csl.updateEntryVersion(slot.serverId, slot.originalVersion)
		}
	}

	if slot.rpc != nil { return true }

	if !csl.loadNextUpdate(slot) { return false }

	rpc, sendErr := csl.transport.SendUpdate(slot.serviceLocator, slot.list)
	if sendErr != nil {
		Log.Warn("failed to send update to", slot.serverId.String(), ":", sendErr.Error())
		csl.updateEntryVersion(slot.serverId, slot.originalVersion)
		return false
	}

	slot.rpc = rpc
	slot.startTime = time.Now()
	telemetry.InFlightUpdates.Inc()

	return true
}

/*
	Has Updates:
		rotating cursor over the slot array looking for an up membership
		entry that is behind the current version with nothing in flight

		every time the cursor wraps past index 0 the update log is pruned up
		to the minimum version any follower still needs; a full loop with no
		hit caches noUpdatesFound until a commit or a version rollback
		invalidates it
*/

func (csl *CoordinatorServerList) hasUpdatesLocked() bool {
	if csl.lastScan.noUpdatesFound || len(csl.slots) == 0 { return false }

	i := csl.lastScan.searchIndex
	for {
		if i == 0 {
			csl.pruneUpdatesLocked(csl.lastScan.minVersion)
			csl.lastScan.minVersion = 0
		}

		if entry := csl.slots[i].entry; entry != nil {
			if entry.Services.Has(server.MembershipService) && entry.Status == server.Up {
				entryMinVersion := entry.ServerListVersion
				if entryMinVersion == 0 { entryMinVersion = entry.IsBeingUpdated }

				if csl.lastScan.minVersion == 0 || (entryMinVersion > 0 && entryMinVersion < csl.lastScan.minVersion) {
					csl.lastScan.minVersion = entryMinVersion
				}

				if entry.ServerListVersion != csl.version && entry.IsBeingUpdated == 0 {
					csl.lastScan.searchIndex = i
					csl.lastScan.noUpdatesFound = false
					return true
				}
			}
		}

		i = (i + 1) % len(csl.slots)
		if i == csl.lastScan.searchIndex { break }
	}

	csl.lastScan.noUpdatesFound = true
	return false
}

/*
	Load Next Update:
		fill the slot with the message for the entry the scan stopped on and
		advance the cursor

		a follower with no list yet gets a FULL_LIST at the current version;
		otherwise the update log record at serverListVersion + 1 is picked,
		which must exist since the log is gap free from the minimum follower
		version
*/

func (csl *CoordinatorServerList) loadNextUpdate(slot *updateSlot) bool {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	if !csl.hasUpdatesLocked() { return false }

	// lastScan.searchIndex was positioned by hasUpdatesLocked
	entry := csl.slots[csl.lastScan.searchIndex].entry
	csl.lastScan.searchIndex = (csl.lastScan.searchIndex + 1) % len(csl.slots)

	slot.serverId = entry.ServerId
	slot.serviceLocator = entry.ServiceLocator
	slot.originalVersion = entry.ServerListVersion

	if entry.ServerListVersion == 0 {
		slot.list = csl.serializeLocked(server.MasterService | server.BackupService)
		entry.IsBeingUpdated = csl.version
	} else {
		head := csl.updates[0].VersionNumber
		targetVersion := entry.ServerListVersion + 1

		record := csl.updates[int(targetVersion - head)]
		slot.list = &record
		entry.IsBeingUpdated = targetVersion
	}

	return true
}

/*
	Update Entry Version:
		terminal event for every rpc, success or abort; updates to server
		ids that no longer exist are ignored silently since the server may
		have been removed mid flight

		a rollback below the current version re-arms the eligibility scan
*/

func (csl *CoordinatorServerList) updateEntryVersion(serverId server.ServerId, version uint64) {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	entry := csl.igetLocked(serverId)
	if entry == nil { return }

	Log.Debug("server", serverId.String(), "updated", entry.ServerListVersion, "->", version)

	entry.ServerListVersion = version
	entry.IsBeingUpdated = 0

	if version < csl.version { csl.lastScan.noUpdatesFound = false }
}

/*
	Commit Update:
		seal the buffered mutations into one versioned update record and
		wake the updater; an empty buffer commits nothing and does not
		advance the version
*/

func (csl *CoordinatorServerList) commitUpdateLocked() {
	if len(csl.update) == 0 { return }

	csl.version++

	record := memberlistrpc.ServerList{
		VersionNumber: csl.version,
		Type: memberlistrpc.Update,
		Servers: csl.update,
	}

	csl.updates = append(csl.updates, record)
	csl.update = nil
	csl.lastScan.noUpdatesFound = false

	telemetry.ServerListVersion.Set(float64(csl.version))

	csl.hasUpdatesOrStop.Signal()
}

/*
	Prune Updates:
		drop records no follower needs anymore from the front of the update
		log; an empty log means the whole cluster is caught up
*/

func (csl *CoordinatorServerList) pruneUpdatesLocked(version uint64) {
	for len(csl.updates) > 0 && csl.updates[0].VersionNumber <= version {
		csl.updates = csl.updates[1:]
	}

	if len(csl.updates) == 0 { csl.listUpToDate.Broadcast() }
}

func (csl *CoordinatorServerList) isClusterUpToDateLocked() bool {
	for i := range csl.slots {
		entry := csl.slots[i].entry
		if entry == nil { continue }

		if entry.Services.Has(server.MembershipService) && entry.Status == server.Up {
			if entry.ServerListVersion != csl.version || entry.IsBeingUpdated > 0 { return false }
		}
	}

	return true
}


//========================================== helper methods


func (csl *CoordinatorServerList) shouldStop() bool {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	return csl.stopUpdater
}

func (csl *CoordinatorServerList) adjustConcurrentRPCs(delta int) {
	csl.mutex.Lock()
	defer csl.mutex.Unlock()

	csl.concurrentRPCs += delta
	telemetry.ConcurrentRpcSlots.Set(float64(csl.concurrentRPCs))
}
