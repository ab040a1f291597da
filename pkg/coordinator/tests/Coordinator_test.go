package coordinatortests

import "errors"
import "testing"

import "github.com/sirgallo/clusterlist/pkg/coordinator"
import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/recovery"
import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/tracker"


func setupCoordinator(mJournal *MockJournal, mTransport *MockTransport, trackers *tracker.Registry) *coordinator.CoordinatorServerList {
	return coordinator.NewCoordinatorServerList(coordinator.CoordinatorServerListOpts{
		Journal: mJournal,
		Transport: mTransport,
		Trackers: trackers,
	})
}

func TestGenerateUniqueIdNeverIssuesIndexZero(t *testing.T) {
	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), nil)
	defer csl.HaltUpdater()

	for i := 0; i < 10; i++ {
		serverId := csl.GenerateUniqueId()
		if serverId.Index == 0 {
			t.Errorf("generated id with reserved index 0: %s", serverId.String())
		}
	}
}

func TestGenerationAdvancesAcrossSlotReuse(t *testing.T) {
	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), nil)
	defer csl.HaltUpdater()

	firstId, enlistErr := csl.EnlistServer(server.ServerId{}, server.BackupService, 100, "backup1:6001")
	if enlistErr != nil { t.Fatalf("enlist failed: %v", enlistErr) }

	expectedFirst := server.ServerId{ Index: 1, Generation: 0 }
	t.Logf("actual id: %s, expected id: %s", firstId.String(), expectedFirst.String())
	if !firstId.Equals(expectedFirst) {
		t.Errorf("actual id not equal to expected: actual(%s), expected(%s)", firstId.String(), expectedFirst.String())
	}

	crashErr := csl.Crashed(firstId)
	if crashErr != nil { t.Fatalf("crashed failed: %v", crashErr) }

	removeErr := csl.Remove(firstId)
	if removeErr != nil { t.Fatalf("remove failed: %v", removeErr) }

	if _, getErr := csl.Get(firstId); !errors.Is(getErr, coordinator.ErrUnknownServer) {
		t.Errorf("removed server still resolvable, expected UnknownServer, got: %v", getErr)
	}

	secondId, enlistErr := csl.EnlistServer(server.ServerId{}, server.BackupService, 100, "backup2:6001")
	if enlistErr != nil { t.Fatalf("enlist failed: %v", enlistErr) }

	if secondId.Index != firstId.Index {
		t.Errorf("expected freed slot %d to be reused, got index %d", firstId.Index, secondId.Index)
	}

	if secondId.Generation <= firstId.Generation {
		t.Errorf("generation did not advance across reuse: first(%d), second(%d)", firstId.Generation, secondId.Generation)
	}
}

func TestEnlistLeavesSingleLiveJournalRecord(t *testing.T) {
	mJournal := NewMockJournal()
	csl := setupCoordinator(mJournal, NewMockTransport(), nil)
	defer csl.HaltUpdater()

	_, enlistErr := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master1:6001")
	if enlistErr != nil { t.Fatalf("enlist failed: %v", enlistErr) }

	enlisting := mJournal.TotalLiveOfType(journal.ServerEnlistingEntry)
	enlisted := mJournal.TotalLiveOfType(journal.ServerEnlistedEntry)

	t.Logf("live enlisting: %d, live enlisted: %d", enlisting, enlisted)
	if enlisting != 0 {
		t.Errorf("provisional ServerEnlisting record not invalidated: %d live", enlisting)
	}

	if enlisted != 1 {
		t.Errorf("expected exactly 1 live ServerEnlisted record, got %d", enlisted)
	}
}

func TestEnlistThreeBackupsFormsReplicationGroup(t *testing.T) {
	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), nil)
	defer csl.HaltUpdater()

	speeds := []uint32{100, 200, 300}
	var ids []server.ServerId

	for i, speed := range speeds {
		serverId, enlistErr := csl.EnlistServer(server.ServerId{}, server.BackupService, speed, "backup:600" + string(rune('1' + i)))
		if enlistErr != nil { t.Fatalf("enlist failed: %v", enlistErr) }

		ids = append(ids, serverId)
	}

	if csl.MasterCount() != 0 {
		t.Errorf("expected 0 masters, got %d", csl.MasterCount())
	}

	if csl.BackupCount() != 3 {
		t.Errorf("expected 3 backups, got %d", csl.BackupCount())
	}

	for i, serverId := range ids {
		entry, getErr := csl.Get(serverId)
		if getErr != nil { t.Fatalf("get failed: %v", getErr) }

		t.Logf("backup %s replication id: %d, read speed: %d", serverId.String(), entry.ReplicationId, entry.ExpectedReadMBytesPerSec)
		if entry.ReplicationId != 1 {
			t.Errorf("backup %s not in replication group 1: %d", serverId.String(), entry.ReplicationId)
		}

		if entry.ExpectedReadMBytesPerSec != speeds[i] {
			t.Errorf("read speed mismatch on %s: actual(%d), expected(%d)", serverId.String(), entry.ExpectedReadMBytesPerSec, speeds[i])
		}
	}
}

func TestCountsExcludeCrashedServers(t *testing.T) {
	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), nil)
	defer csl.HaltUpdater()

	masterId, _ := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master1:6001")
	backupId, _ := csl.EnlistServer(server.ServerId{}, server.BackupService, 100, "backup1:6001")

	crashErr := csl.Crashed(masterId)
	if crashErr != nil { t.Fatalf("crashed failed: %v", crashErr) }

	if csl.MasterCount() != 0 {
		t.Errorf("crashed master still counted: %d", csl.MasterCount())
	}

	if csl.BackupCount() != 1 {
		t.Errorf("expected backup count 1, got %d", csl.BackupCount())
	}

	// crashed twice is a no-op and must not decrement again
	crashErr = csl.Crashed(masterId)
	if crashErr != nil { t.Fatalf("repeat crashed failed: %v", crashErr) }

	if csl.MasterCount() != 0 {
		t.Errorf("repeat crash changed master count: %d", csl.MasterCount())
	}

	entry, getErr := csl.Get(masterId)
	if getErr != nil { t.Fatalf("crashed master should remain in the list: %v", getErr) }

	if entry.Status != server.Crashed {
		t.Errorf("expected status CRASHED, got %s", entry.Status)
	}

	_ = backupId
}

func TestTrackerReceivesLifecycleEvents(t *testing.T) {
	trackers := tracker.NewRegistry()
	eTracker := tracker.NewEventTracker()
	trackers.Register(eTracker)

	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), trackers)
	defer csl.HaltUpdater()

	serverId, enlistErr := csl.EnlistServer(server.ServerId{}, server.BackupService, 100, "backup1:6001")
	if enlistErr != nil { t.Fatalf("enlist failed: %v", enlistErr) }

	csl.Crashed(serverId)
	csl.Remove(serverId)

	expectedEvents := []tracker.ServerChangeEvent{tracker.ServerAdded, tracker.ServerCrashed, tracker.ServerRemoved}

	for _, expected := range expectedEvents {
		change := <- eTracker.Changes

		t.Logf("actual event: %s, expected event: %s", change.Event, expected)
		if change.Event != expected {
			t.Errorf("actual event not equal to expected: actual(%s), expected(%s)", change.Event, expected)
		}

		if !change.Details.ServerId.Equals(serverId) {
			t.Errorf("event for wrong server: actual(%s), expected(%s)", change.Details.ServerId.String(), serverId.String())
		}
	}
}

func TestCommitWithEmptyBufferDoesNotAdvanceVersion(t *testing.T) {
	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), nil)
	defer csl.HaltUpdater()

	serverId, _ := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master1:6001")
	versionAfterEnlist := csl.Version()

	csl.Crashed(serverId)
	versionAfterCrash := csl.Version()

	if versionAfterCrash != versionAfterEnlist + 1 {
		t.Errorf("crash should advance version by 1: before(%d), after(%d)", versionAfterEnlist, versionAfterCrash)
	}

	// repeat crash stages nothing, so the empty commit must not bump the version
	csl.Crashed(serverId)

	if csl.Version() != versionAfterCrash {
		t.Errorf("empty commit advanced version: before(%d), after(%d)", versionAfterCrash, csl.Version())
	}
}

func TestHintServerDownFalseAlarm(t *testing.T) {
	mTransport := NewMockTransport()
	csl := setupCoordinator(NewMockJournal(), mTransport, nil)
	defer csl.HaltUpdater()

	serverId, _ := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master1:6001")
	versionBefore := csl.Version()

	// ping succeeds, so the hint is a false alarm
	down, hintErr := csl.HintServerDown(serverId)
	if hintErr != nil { t.Fatalf("hint failed: %v", hintErr) }

	if down {
		t.Errorf("responsive server reported down")
	}

	entry, getErr := csl.Get(serverId)
	if getErr != nil { t.Fatalf("get failed: %v", getErr) }

	if entry.Status != server.Up {
		t.Errorf("false alarm mutated status: %s", entry.Status)
	}

	if csl.Version() != versionBefore {
		t.Errorf("false alarm committed an update: before(%d), after(%d)", versionBefore, csl.Version())
	}
}

func TestHintServerDownOnUnknownServerIsNoOp(t *testing.T) {
	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), nil)
	defer csl.HaltUpdater()

	down, hintErr := csl.HintServerDown(server.ServerId{ Index: 42, Generation: 7 })
	if hintErr != nil { t.Fatalf("hint failed: %v", hintErr) }

	if !down {
		t.Errorf("hint on unknown server should report down")
	}
}

func TestForceDownMasterStaysCrashedAwaitingRecovery(t *testing.T) {
	mJournal := NewMockJournal()
	recoveryManager := recovery.NewQueuedRecoveryManager()

	csl := coordinator.NewCoordinatorServerList(coordinator.CoordinatorServerListOpts{
		Journal: mJournal,
		Transport: NewMockTransport(),
		Recovery: recoveryManager,
	})
	defer csl.HaltUpdater()

	csl.ForceServerDownForTesting = true

	masterId, _ := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master1:6001")

	down, hintErr := csl.HintServerDown(masterId)
	if hintErr != nil { t.Fatalf("hint failed: %v", hintErr) }

	if !down {
		t.Errorf("forced down master not reported down")
	}

	// a master awaits external recovery, the entry must survive as CRASHED
	entry, getErr := csl.Get(masterId)
	if getErr != nil { t.Fatalf("crashed master dropped from the list: %v", getErr) }

	if entry.Status != server.Crashed {
		t.Errorf("expected status CRASHED, got %s", entry.Status)
	}

	crashed := <- recoveryManager.CrashedMasters
	if !crashed.ServerId.Equals(masterId) {
		t.Errorf("recovery notified for wrong server: %s", crashed.ServerId.String())
	}

	liveForceDowns := mJournal.TotalLiveOfType(journal.ForceServerDownEntry)
	t.Logf("live ForceServerDown records: %d", liveForceDowns)
	if liveForceDowns != 1 {
		t.Errorf("expected exactly 1 live ForceServerDown record until recovery completes, got %d", liveForceDowns)
	}
}

func TestForceDownBackupIsRemovedAndGroupDissolved(t *testing.T) {
	mTransport := NewMockTransport()
	csl := setupCoordinator(NewMockJournal(), mTransport, nil)
	defer csl.HaltUpdater()

	csl.ForceServerDownForTesting = true

	var ids []server.ServerId
	for i := 0; i < 3; i++ {
		serverId, _ := csl.EnlistServer(server.ServerId{}, server.BackupService, 100, "backup:600" + string(rune('1' + i)))
		ids = append(ids, serverId)
	}

	down, hintErr := csl.HintServerDown(ids[0])
	if hintErr != nil { t.Fatalf("hint failed: %v", hintErr) }

	if !down {
		t.Errorf("forced down backup not reported down")
	}

	// no recovery runs for a pure backup, the slot must clear immediately
	if _, getErr := csl.Get(ids[0]); !errors.Is(getErr, coordinator.ErrUnknownServer) {
		t.Errorf("forced down backup still in list: %v", getErr)
	}

	// its replication group dissolves and too few free backups remain to reform
	for _, survivorId := range ids[1:] {
		entry, getErr := csl.Get(survivorId)
		if getErr != nil { t.Fatalf("get failed: %v", getErr) }

		if entry.ReplicationId != 0 {
			t.Errorf("survivor %s still in dissolved group: %d", survivorId.String(), entry.ReplicationId)
		}
	}

	// pooled connections to the dead host are dropped
	mTransport.Mutex.Lock()
	defer mTransport.Mutex.Unlock()

	if len(mTransport.Closed) != 1 || mTransport.Closed[0] != "backup:6001" {
		t.Errorf("connections to forced down server not closed: %v", mTransport.Closed)
	}
}

func TestSetMasterRecoveryInfoKeepsLatestAndOneRecord(t *testing.T) {
	mJournal := NewMockJournal()
	csl := setupCoordinator(mJournal, NewMockTransport(), nil)
	defer csl.HaltUpdater()

	masterId, _ := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master1:6001")

	setErr := csl.SetMasterRecoveryInfo(masterId, server.MasterRecoveryInfo("info-x"))
	if setErr != nil { t.Fatalf("set recovery info failed: %v", setErr) }

	setErr = csl.SetMasterRecoveryInfo(masterId, server.MasterRecoveryInfo("info-y"))
	if setErr != nil { t.Fatalf("set recovery info failed: %v", setErr) }

	entry, getErr := csl.Get(masterId)
	if getErr != nil { t.Fatalf("get failed: %v", getErr) }

	if string(entry.MasterRecoveryInfo) != "info-y" {
		t.Errorf("latest recovery info not applied: %s", string(entry.MasterRecoveryInfo))
	}

	liveUpdates := mJournal.TotalLiveOfType(journal.ServerUpdateEntry)
	t.Logf("live ServerUpdate records: %d", liveUpdates)
	if liveUpdates != 1 {
		t.Errorf("expected exactly 1 live ServerUpdate record, got %d", liveUpdates)
	}
}

func TestSetMasterRecoveryInfoOnUnknownServer(t *testing.T) {
	mJournal := NewMockJournal()
	csl := setupCoordinator(mJournal, NewMockTransport(), nil)
	defer csl.HaltUpdater()

	setErr := csl.SetMasterRecoveryInfo(server.ServerId{ Index: 9, Generation: 0 }, server.MasterRecoveryInfo("info"))

	if !errors.Is(setErr, coordinator.ErrUnknownServer) {
		t.Errorf("expected UnknownServer, got: %v", setErr)
	}

	// the record journaled before the failure was detected must be invalidated
	if live := mJournal.TotalLiveOfType(journal.ServerUpdateEntry); live != 0 {
		t.Errorf("orphaned ServerUpdate record left live: %d", live)
	}
}

func TestSerializeFiltersByService(t *testing.T) {
	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), nil)
	defer csl.HaltUpdater()

	masterId, _ := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master1:6001")
	backupId, _ := csl.EnlistServer(server.ServerId{}, server.BackupService, 100, "backup1:6001")

	masterOnly := csl.Serialize(server.MasterService)
	if len(masterOnly.Servers) != 1 || !masterOnly.Servers[0].ServerId.Equals(masterId) {
		t.Errorf("master filter returned wrong entries: %+v", masterOnly.Servers)
	}

	full := csl.Serialize(server.MasterService | server.BackupService)
	if len(full.Servers) != 2 {
		t.Errorf("expected 2 entries in full serialization, got %d", len(full.Servers))
	}

	if full.Type != "FULL_LIST" {
		t.Errorf("expected FULL_LIST type, got %s", full.Type)
	}

	if full.VersionNumber != csl.Version() {
		t.Errorf("serialization version mismatch: actual(%d), expected(%d)", full.VersionNumber, csl.Version())
	}

	_ = backupId
}

func TestNextIndexScansSkipCrashedServers(t *testing.T) {
	csl := setupCoordinator(NewMockJournal(), NewMockTransport(), nil)
	defer csl.HaltUpdater()

	firstMaster, _ := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master1:6001")
	secondMaster, _ := csl.EnlistServer(server.ServerId{}, server.MasterService, 0, "master2:6001")

	if next := csl.NextMasterIndex(0); next != int(firstMaster.Index) {
		t.Errorf("expected first master at index %d, got %d", firstMaster.Index, next)
	}

	csl.Crashed(firstMaster)

	if next := csl.NextMasterIndex(0); next != int(secondMaster.Index) {
		t.Errorf("scan did not skip crashed master: got %d, expected %d", next, secondMaster.Index)
	}

	if next := csl.NextBackupIndex(0); next != -1 {
		t.Errorf("expected no backups, got index %d", next)
	}
}
