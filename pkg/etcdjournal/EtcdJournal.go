package etcdjournal

import "context"
import "errors"
import "fmt"
import "strconv"
import "time"

import clientv3 "go.etcd.io/etcd/client/v3"
import "go.uber.org/zap"

import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/logger"


//=========================================== Etcd Journal


var Log = clog.NewCustomLog(NAME)

/*
	Etcd Journal
		the replicated implementation of the consensus log interface; etcd
		provides the linearizable append only log the coordinator journals
		its mutations to, so a restarted coordinator can replay live records

		entry ids are allocated through a compare and swap on a counter key,
		entries live under <prefix>/entries/<id> with ids zero padded so key
		order equals append order
*/

func NewEtcdJournal(opts EtcdJournalOpts) (*EtcdJournal, error) {
	dialTimeout := opts.DialTimeoutInSeconds
	if dialTimeout == 0 { dialTimeout = DefaultDialTimeoutInSeconds }

	keyPrefix := opts.KeyPrefix
	if keyPrefix == "" { keyPrefix = DefaultKeyPrefix }

	zapLogger, zapErr := zap.NewProduction()
	if zapErr != nil { return nil, zapErr }

	client, clientErr := clientv3.New(clientv3.Config{
		Endpoints: opts.Endpoints,
		DialTimeout: time.Duration(dialTimeout) * time.Second,
		Logger: zapLogger,
	})

	if clientErr != nil { return nil, clientErr }

	return &EtcdJournal{
		Client: client,
		KeyPrefix: keyPrefix,
	}, nil
}

/*
	Append
		1.) read the counter key and compute the next entry id
		2.) in one txn guarded by the counter's mod revision: bump the
			counter, put the new entry, delete invalidated entries
		3.) on a lost race, reread and retry
*/

func (eJournal *EtcdJournal) Append(data []byte, invalidates []journal.EntryId) (journal.EntryId, error) {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeoutInSeconds * time.Second)
	defer cancel()

	counterKey := eJournal.counterKey()

	for {
		getResp, getErr := eJournal.Client.Get(ctx, counterKey)
		if getErr != nil { return 0, getErr }

		var nextId journal.EntryId
		var counterCmp clientv3.Cmp

		if len(getResp.Kvs) == 0 {
			nextId = 1
			counterCmp = clientv3.Compare(clientv3.CreateRevision(counterKey), "=", 0)
		} else {
			current, parseErr := strconv.ParseUint(string(getResp.Kvs[0].Value), 10, 64)
			if parseErr != nil { return 0, parseErr }

			nextId = journal.EntryId(current + 1)
			counterCmp = clientv3.Compare(clientv3.ModRevision(counterKey), "=", getResp.Kvs[0].ModRevision)
		}

		ops := []clientv3.Op{
			clientv3.OpPut(counterKey, strconv.FormatUint(uint64(nextId), 10)),
			clientv3.OpPut(eJournal.entryKey(nextId), string(data)),
		}

		for _, entryId := range invalidates {
			if entryId == 0 { continue }
			ops = append(ops, clientv3.OpDelete(eJournal.entryKey(entryId)))
		}

		txnResp, txnErr := eJournal.Client.Txn(ctx).If(counterCmp).Then(ops...).Commit()
		if txnErr != nil { return 0, txnErr }

		if txnResp.Succeeded { return nextId, nil }

		Log.Warn("lost entry id race on append, retrying")
	}
}

func (eJournal *EtcdJournal) Read(entryId journal.EntryId) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeoutInSeconds * time.Second)
	defer cancel()

	getResp, getErr := eJournal.Client.Get(ctx, eJournal.entryKey(entryId))
	if getErr != nil { return nil, getErr }

	if len(getResp.Kvs) == 0 { return nil, errors.New("journal entry not found") }

	return getResp.Kvs[0].Value, nil
}

func (eJournal *EtcdJournal) ReadAll() ([]journal.LogEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeoutInSeconds * time.Second)
	defer cancel()

	prefix := eJournal.KeyPrefix + "/entries/"

	getResp, getErr := eJournal.Client.Get(
		ctx, prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
	)

	if getErr != nil { return nil, getErr }

	var entries []journal.LogEntry
	for _, kv := range getResp.Kvs {
		entryId, parseErr := strconv.ParseUint(string(kv.Key[len(prefix):]), 10, 64)
		if parseErr != nil { return nil, parseErr }

		entries = append(entries, journal.LogEntry{
			EntryId: journal.EntryId(entryId),
			Data: kv.Value,
		})
	}

	return entries, nil
}

func (eJournal *EtcdJournal) Invalidate(entryIds []journal.EntryId) error {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeoutInSeconds * time.Second)
	defer cancel()

	for _, entryId := range entryIds {
		if entryId == 0 { continue }

		_, delErr := eJournal.Client.Delete(ctx, eJournal.entryKey(entryId))
		if delErr != nil { return delErr }
	}

	return nil
}

func (eJournal *EtcdJournal) Close() error {
	return eJournal.Client.Close()
}


//========================================== helper methods


func (eJournal *EtcdJournal) counterKey() string {
	return eJournal.KeyPrefix + "/" + CounterKey
}

func (eJournal *EtcdJournal) entryKey(entryId journal.EntryId) string {
	return fmt.Sprintf("%s/entries/%020d", eJournal.KeyPrefix, uint64(entryId))
}
