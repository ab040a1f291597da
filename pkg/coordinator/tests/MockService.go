package coordinatortests

import "context"
import "errors"
import "sort"
import "sync"
import "time"

import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/memberlistrpc"
import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/transport"
import "github.com/sirgallo/clusterlist/pkg/utils"


//=========================================== Mock Journal


type MockJournal struct {
	mutex sync.Mutex
	nextEntryId journal.EntryId
	entries map[journal.EntryId][]byte
}

func NewMockJournal() *MockJournal {
	return &MockJournal{
		entries: make(map[journal.EntryId][]byte),
	}
}

func (mJournal *MockJournal) Append(data []byte, invalidates []journal.EntryId) (journal.EntryId, error) {
	mJournal.mutex.Lock()
	defer mJournal.mutex.Unlock()

	mJournal.nextEntryId++
	mJournal.entries[mJournal.nextEntryId] = data

	for _, entryId := range invalidates {
		delete(mJournal.entries, entryId)
	}

	return mJournal.nextEntryId, nil
}

func (mJournal *MockJournal) Read(entryId journal.EntryId) ([]byte, error) {
	mJournal.mutex.Lock()
	defer mJournal.mutex.Unlock()

	data, ok := mJournal.entries[entryId]
	if !ok { return nil, errors.New("journal entry not found") }

	return data, nil
}

func (mJournal *MockJournal) ReadAll() ([]journal.LogEntry, error) {
	mJournal.mutex.Lock()
	defer mJournal.mutex.Unlock()

	var ids []journal.EntryId
	for entryId := range mJournal.entries {
		ids = append(ids, entryId)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var entries []journal.LogEntry
	for _, entryId := range ids {
		entries = append(entries, journal.LogEntry{ EntryId: entryId, Data: mJournal.entries[entryId] })
	}

	return entries, nil
}

func (mJournal *MockJournal) Invalidate(entryIds []journal.EntryId) error {
	mJournal.mutex.Lock()
	defer mJournal.mutex.Unlock()

	for _, entryId := range entryIds {
		delete(mJournal.entries, entryId)
	}

	return nil
}

func (mJournal *MockJournal) Close() error { return nil }

func (mJournal *MockJournal) TotalLive() int {
	mJournal.mutex.Lock()
	defer mJournal.mutex.Unlock()

	return len(mJournal.entries)
}

/*
	count of live records carrying the given entry type tag
*/

func (mJournal *MockJournal) TotalLiveOfType(entryType string) int {
	mJournal.mutex.Lock()
	defer mJournal.mutex.Unlock()

	total := 0
	for _, data := range mJournal.entries {
		tag, tagErr := journal.EntryTypeOf(data)
		if tagErr == nil && tag == entryType { total++ }
	}

	return total
}


//=========================================== Mock Transport


/*
	scripted per follower behavior for dispatcher tests:
		default        --> rpcs complete immediately and succeed
		HangLocators   --> rpcs never complete until cancelled
		NotUpLocators  --> rpcs complete with ErrServerNotUp
		PingErr        --> non nil fails every liveness probe
*/

type MockTransport struct {
	Mutex sync.Mutex
	PingErr error
	HangLocators map[string]bool
	NotUpLocators map[string]bool

	Sent map[string][]*memberlistrpc.ServerList
	Cancelled int
	Closed []string
}

type mockUpdateRpc struct {
	mutex sync.Mutex
	transportRef *MockTransport
	ready bool
	version uint64
	err error
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		HangLocators: make(map[string]bool),
		NotUpLocators: make(map[string]bool),
		Sent: make(map[string][]*memberlistrpc.ServerList),
	}
}

func (mTransport *MockTransport) SendUpdate(serviceLocator string, list *memberlistrpc.ServerList) (transport.UpdateRpc, error) {
	mTransport.Mutex.Lock()
	defer mTransport.Mutex.Unlock()

	mTransport.Sent[serviceLocator] = append(mTransport.Sent[serviceLocator], list)

	rpc := &mockUpdateRpc{ transportRef: mTransport }

	if mTransport.HangLocators[serviceLocator] { return rpc, nil }

	rpc.ready = true
	if mTransport.NotUpLocators[serviceLocator] {
		rpc.err = transport.ErrServerNotUp
	} else { rpc.version = list.VersionNumber }

	return rpc, nil
}

func (mTransport *MockTransport) Ping(serviceLocator string, timeout time.Duration) error {
	return mTransport.PingErr
}

func (mTransport *MockTransport) CloseConnections(serviceLocator string) error {
	mTransport.Mutex.Lock()
	defer mTransport.Mutex.Unlock()

	mTransport.Closed = append(mTransport.Closed, serviceLocator)
	return nil
}

func (mTransport *MockTransport) SentTo(serviceLocator string) []*memberlistrpc.ServerList {
	mTransport.Mutex.Lock()
	defer mTransport.Mutex.Unlock()

	return append([]*memberlistrpc.ServerList{}, mTransport.Sent[serviceLocator]...)
}

func (mTransport *MockTransport) TotalCancelled() int {
	mTransport.Mutex.Lock()
	defer mTransport.Mutex.Unlock()

	return mTransport.Cancelled
}

func (rpc *mockUpdateRpc) IsReady() bool {
	rpc.mutex.Lock()
	defer rpc.mutex.Unlock()

	return rpc.ready
}

func (rpc *mockUpdateRpc) Wait() (uint64, error) {
	rpc.mutex.Lock()
	defer rpc.mutex.Unlock()

	return rpc.version, rpc.err
}

func (rpc *mockUpdateRpc) Cancel() {
	rpc.mutex.Lock()
	rpc.ready = true
	rpc.err = context.Canceled
	rpc.mutex.Unlock()

	rpc.transportRef.Mutex.Lock()
	rpc.transportRef.Cancelled++
	rpc.transportRef.Mutex.Unlock()
}


//=========================================== Mock Member


/*
	replays received server list messages the way a member applies them: a
	FULL_LIST resets local state, an UPDATE applies deltas in order, a DOWN
	entry is a tombstone
*/

type MockMember struct {
	Entries map[server.ServerId]memberlistrpc.ServerListEntry
	Version uint64
}

func NewMockMember() *MockMember {
	return &MockMember{
		Entries: make(map[server.ServerId]memberlistrpc.ServerListEntry),
	}
}

func (member *MockMember) Apply(list *memberlistrpc.ServerList) {
	if list.Type == memberlistrpc.FullList {
		member.Entries = make(map[server.ServerId]memberlistrpc.ServerListEntry)
	}

	for _, entry := range list.Servers {
		if entry.Status == server.Down {
			delete(member.Entries, entry.ServerId)
		} else { member.Entries[entry.ServerId] = entry }
	}

	member.Version = list.VersionNumber
}

/*
	compare the member's reconstructed state against a coordinator FULL_LIST
	serialization
*/

func (member *MockMember) Matches(list *memberlistrpc.ServerList) bool {
	if len(member.Entries) != len(list.Servers) { return false }

	for _, entry := range list.Servers {
		memberEntry, ok := member.Entries[entry.ServerId]
		if !ok { return false }

		memberEncoded, _ := utils.EncodeStructToString[memberlistrpc.ServerListEntry](memberEntry)
		listEncoded, _ := utils.EncodeStructToString[memberlistrpc.ServerListEntry](entry)

		if memberEncoded != listEncoded { return false }
	}

	return true
}
