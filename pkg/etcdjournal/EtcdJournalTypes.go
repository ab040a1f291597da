package etcdjournal

import clientv3 "go.etcd.io/etcd/client/v3"


type EtcdJournalOpts struct {
	Endpoints []string
	DialTimeoutInSeconds int
	KeyPrefix string
}

type EtcdJournal struct {
	Client *clientv3.Client
	KeyPrefix string
}

const DefaultKeyPrefix = "/clusterlist/journal"
const CounterKey = "next-entry-id"
const DefaultDialTimeoutInSeconds = 5
const RequestTimeoutInSeconds = 5

const NAME = "Etcd Journal"
