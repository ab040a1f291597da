package journal

import "github.com/sirgallo/clusterlist/pkg/server"


//=========================================== Journal Types


/*
	EntryId references one record in the consensus log; 0 means no record
*/

type EntryId uint64

/*
	ConsensusLog is the external replicated log the coordinator journals its
	mutations to; consensus itself happens behind this interface

	Append writes a record and atomically invalidates any superseded entry
	ids; Read returns the payload of a single live entry; ReadAll returns
	every live entry in append order for recovery replay
*/

type ConsensusLog interface {
	Append(data []byte, invalidates []EntryId) (EntryId, error)
	Read(entryId EntryId) ([]byte, error)
	ReadAll() ([]LogEntry, error)
	Invalidate(entryIds []EntryId) error
	Close() error
}

type LogEntry struct {
	EntryId EntryId
	Data []byte
}

/*
	journaled record shapes, dispatched by the EntryType tag on replay
*/

type ServerInformation struct {
	EntryType string
	ServerId server.ServerId
	ServiceMask server.ServiceMask
	ReadSpeed uint32
	ServiceLocator string
}

type ServerUpdate struct {
	EntryType string
	ServerId server.ServerId
	MasterRecoveryInfo server.MasterRecoveryInfo
}

type ForceServerDown struct {
	EntryType string
	ServerId server.ServerId
}

type TaggedRecord struct {
	EntryType string
}

const (
	ServerEnlistingEntry = "ServerEnlisting"
	ServerEnlistedEntry = "ServerEnlisted"
	ServerUpdateEntry = "ServerUpdate"
	ForceServerDownEntry = "ForceServerDown"
)
