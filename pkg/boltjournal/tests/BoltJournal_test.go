package boltjournaltests

import "path/filepath"
import "testing"

import "github.com/sirgallo/clusterlist/pkg/boltjournal"
import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/server"


func setupJournal(t *testing.T) *boltjournal.BoltJournal {
	t.Helper()

	bJournal, journalErr := boltjournal.NewBoltJournal(boltjournal.BoltJournalOpts{
		DBPath: filepath.Join(t.TempDir(), "journal.db"),
	})

	if journalErr != nil { t.Fatalf("unable to create bolt journal: %v", journalErr) }

	t.Cleanup(func() { bJournal.Close() })
	return bJournal
}

func TestAppendAssignsMonotonicEntryIds(t *testing.T) {
	bJournal := setupJournal(t)

	var lastId journal.EntryId
	for i := 0; i < 5; i++ {
		entryId, appendErr := bJournal.Append([]byte("record"), nil)
		if appendErr != nil { t.Fatalf("append failed: %v", appendErr) }

		if entryId <= lastId {
			t.Errorf("entry ids not monotonically increasing: %d after %d", entryId, lastId)
		}

		lastId = entryId
	}
}

func TestAppendWithInvalidationSupersedesRecord(t *testing.T) {
	bJournal := setupJournal(t)

	provisional := journal.ServerInformation{
		EntryType: journal.ServerEnlistingEntry,
		ServerId: server.ServerId{ Index: 1, Generation: 0 },
		ServiceMask: server.BackupService,
		ReadSpeed: 100,
		ServiceLocator: "backup1:6001",
	}

	provisionalId, appendErr := journal.AppendRecord[journal.ServerInformation](bJournal, provisional, nil)
	if appendErr != nil { t.Fatalf("append failed: %v", appendErr) }

	final := provisional
	final.EntryType = journal.ServerEnlistedEntry

	finalId, appendErr := journal.AppendRecord[journal.ServerInformation](bJournal, final, []journal.EntryId{provisionalId})
	if appendErr != nil { t.Fatalf("append failed: %v", appendErr) }

	if _, readErr := bJournal.Read(provisionalId); readErr == nil {
		t.Errorf("invalidated record still readable: %d", provisionalId)
	}

	record, readErr := journal.ReadRecord[journal.ServerInformation](bJournal, finalId)
	if readErr != nil { t.Fatalf("read failed: %v", readErr) }

	if record.EntryType != journal.ServerEnlistedEntry {
		t.Errorf("wrong record read back: %s", record.EntryType)
	}

	total, totalErr := bJournal.Total()
	if totalErr != nil { t.Fatalf("total failed: %v", totalErr) }

	t.Logf("actual total: %d, expected total: %d", total, 1)
	if total != 1 {
		t.Errorf("actual total not equal to expected: actual(%d), expected(%d)", total, 1)
	}
}

func TestReadAllReturnsLiveEntriesInAppendOrder(t *testing.T) {
	bJournal := setupJournal(t)

	firstId, _ := bJournal.Append([]byte("first"), nil)
	secondId, _ := bJournal.Append([]byte("second"), nil)
	thirdId, _ := bJournal.Append([]byte("third"), nil)

	invalidateErr := bJournal.Invalidate([]journal.EntryId{secondId})
	if invalidateErr != nil { t.Fatalf("invalidate failed: %v", invalidateErr) }

	entries, readErr := bJournal.ReadAll()
	if readErr != nil { t.Fatalf("read all failed: %v", readErr) }

	if len(entries) != 2 {
		t.Fatalf("expected 2 live entries, got %d", len(entries))
	}

	if entries[0].EntryId != firstId || entries[1].EntryId != thirdId {
		t.Errorf("entries out of order: %d, %d", entries[0].EntryId, entries[1].EntryId)
	}

	if string(entries[0].Data) != "first" || string(entries[1].Data) != "third" {
		t.Errorf("payload mismatch: %s, %s", entries[0].Data, entries[1].Data)
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	bJournal, journalErr := boltjournal.NewBoltJournal(boltjournal.BoltJournalOpts{ DBPath: dbPath })
	if journalErr != nil { t.Fatalf("unable to create bolt journal: %v", journalErr) }

	entryId, _ := bJournal.Append([]byte("durable"), nil)
	bJournal.Close()

	reopened, reopenErr := boltjournal.NewBoltJournal(boltjournal.BoltJournalOpts{ DBPath: dbPath })
	if reopenErr != nil { t.Fatalf("unable to reopen bolt journal: %v", reopenErr) }
	defer reopened.Close()

	data, readErr := reopened.Read(entryId)
	if readErr != nil { t.Fatalf("read after reopen failed: %v", readErr) }

	if string(data) != "durable" {
		t.Errorf("payload mismatch after reopen: %s", data)
	}

	// sequence continues past the previous incarnation
	nextId, _ := reopened.Append([]byte("next"), nil)
	if nextId <= entryId {
		t.Errorf("entry id reused after reopen: %d after %d", nextId, entryId)
	}
}
