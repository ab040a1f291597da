package boltjournal

import "encoding/binary"
import "errors"
import "os"
import "path/filepath"

import bolt "go.etcd.io/bbolt"

import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/logger"


//=========================================== Bolt Journal


var Log = clog.NewCustomLog(NAME)

/*
	Bolt Journal
		a single node implementation of the consensus log interface, used for
		development and tests; production deployments point the coordinator at
		the replicated etcd journal instead

		1.) open the db at the provided path, or under the home directory if
			none was given
		2.) create the journal bucket if it does not already exist

		entry ids come from the bucket sequence, so they are monotonically
		increasing and never reused, matching the external log's contract
*/

func NewBoltJournal(opts BoltJournalOpts) (*BoltJournal, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		homedir, homeErr := os.UserHomeDir()
		if homeErr != nil { return nil, homeErr }

		mkErr := os.MkdirAll(filepath.Join(homedir, SubDirectory), 0700)
		if mkErr != nil { return nil, mkErr }

		dbPath = filepath.Join(homedir, SubDirectory, FileName)
	}

	db, openErr := bolt.Open(dbPath, 0600, nil)
	if openErr != nil { return nil, openErr }

	journalTransaction := func(tx *bolt.Tx) error {
		bucketName := []byte(Bucket)
		_, createErr := tx.CreateBucketIfNotExists(bucketName)
		if createErr != nil { return createErr }

		return nil
	}

	bucketErr := db.Update(journalTransaction)
	if bucketErr != nil { return nil, bucketErr }

	return &BoltJournal{
		DBFile: dbPath,
		DB: db,
	}, nil
}

/*
	Append
		1.) take the next bucket sequence value as the new entry id
		2.) put the payload at that id
		3.) delete any invalidated entry ids in the same transaction, so a
			crash never leaves both a record and its superseded predecessors
*/

func (bJournal *BoltJournal) Append(data []byte, invalidates []journal.EntryId) (journal.EntryId, error) {
	var newEntryId journal.EntryId

	appendTransaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Bucket))

		seq, seqErr := bucket.NextSequence()
		if seqErr != nil { return seqErr }

		putErr := bucket.Put(encodeEntryId(journal.EntryId(seq)), data)
		if putErr != nil { return putErr }

		for _, entryId := range invalidates {
			if entryId == 0 { continue }

			delErr := bucket.Delete(encodeEntryId(entryId))
			if delErr != nil { return delErr }
		}

		newEntryId = journal.EntryId(seq)
		return nil
	}

	appendErr := bJournal.DB.Update(appendTransaction)
	if appendErr != nil { return 0, appendErr }

	return newEntryId, nil
}

func (bJournal *BoltJournal) Read(entryId journal.EntryId) ([]byte, error) {
	var data []byte

	readTransaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Bucket))

		val := bucket.Get(encodeEntryId(entryId))
		if val == nil { return errors.New("journal entry not found") }

		data = append([]byte{}, val...)
		return nil
	}

	readErr := bJournal.DB.View(readTransaction)
	if readErr != nil { return nil, readErr }

	return data, nil
}

/*
	ReadAll
		cursor over the bucket in key order, which is append order since ids
		are big endian encoded sequence values
*/

func (bJournal *BoltJournal) ReadAll() ([]journal.LogEntry, error) {
	var entries []journal.LogEntry

	readTransaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Bucket))

		return bucket.ForEach(func(key, val []byte) error {
			entries = append(entries, journal.LogEntry{
				EntryId: decodeEntryId(key),
				Data: append([]byte{}, val...),
			})

			return nil
		})
	}

	readErr := bJournal.DB.View(readTransaction)
	if readErr != nil { return nil, readErr }

	return entries, nil
}

func (bJournal *BoltJournal) Invalidate(entryIds []journal.EntryId) error {
	invalidateTransaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Bucket))

		for _, entryId := range entryIds {
			if entryId == 0 { continue }

			delErr := bucket.Delete(encodeEntryId(entryId))
			if delErr != nil { return delErr }
		}

		return nil
	}

	return bJournal.DB.Update(invalidateTransaction)
}

/*
	total live entries currently in the journal
*/

func (bJournal *BoltJournal) Total() (int, error) {
	total := 0

	totalTransaction := func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(Bucket))
		total = bucket.Stats().KeyN

		return nil
	}

	totalErr := bJournal.DB.View(totalTransaction)
	if totalErr != nil { return 0, totalErr }

	return total, nil
}

func (bJournal *BoltJournal) Close() error {
	return bJournal.DB.Close()
}


//========================================== helper methods


func encodeEntryId(entryId journal.EntryId) []byte {
	encoded := make([]byte, 8)
	binary.BigEndian.PutUint64(encoded, uint64(entryId))

	return encoded
}

func decodeEntryId(encoded []byte) journal.EntryId {
	return journal.EntryId(binary.BigEndian.Uint64(encoded))
}
