package boltjournal

import bolt "go.etcd.io/bbolt"


type BoltJournalOpts struct {
	DBPath string
}

type BoltJournal struct {
	DBFile string
	DB *bolt.DB
}

const SubDirectory = ".clusterlist"
const FileName = "journal.db"
const Bucket = "journal"

const NAME = "Bolt Journal"
