package service

import "github.com/sirgallo/clusterlist/pkg/boltjournal"
import "github.com/sirgallo/clusterlist/pkg/connpool"
import "github.com/sirgallo/clusterlist/pkg/coordinator"
import "github.com/sirgallo/clusterlist/pkg/etcdjournal"
import "github.com/sirgallo/clusterlist/pkg/httpservice"
import "github.com/sirgallo/clusterlist/pkg/journal"
import "github.com/sirgallo/clusterlist/pkg/logger"
import "github.com/sirgallo/clusterlist/pkg/recovery"
import "github.com/sirgallo/clusterlist/pkg/tracker"
import "github.com/sirgallo/clusterlist/pkg/transport"
import "github.com/sirgallo/clusterlist/pkg/utils"


//=========================================== Membership Service


var Log = clog.NewCustomLog(NAME)

/*
	initialize sub modules under the same membership service and link them

	the consensus journal is etcd when endpoints are configured, otherwise a
	local bolt journal for single node development
*/

func NewMembershipService(opts MembershipServiceOpts) *MembershipService {
	consensusLog := func () journal.ConsensusLog {
		if len(opts.EtcdEndpoints) > 0 {
			eJournal, etcdErr := etcdjournal.NewEtcdJournal(etcdjournal.EtcdJournalOpts{
				Endpoints: opts.EtcdEndpoints,
			})

			if etcdErr != nil { Log.Fatal("unable to connect to etcd journal:", etcdErr.Error()) }
			return eJournal
		}

		bJournal, boltErr := boltjournal.NewBoltJournal(boltjournal.BoltJournalOpts{
			DBPath: opts.JournalPath,
		})

		if boltErr != nil { Log.Fatal("unable to create or open bolt journal:", boltErr.Error()) }
		return bJournal
	}()

	pool := connpool.NewConnectionPool(opts.ConnPoolOpts)

	grpcTransport := transport.NewGrpcTransport(transport.GrpcTransportOpts{
		ConnectionPool: pool,
	})

	trackers := tracker.NewRegistry()
	recoveryManager := recovery.NewQueuedRecoveryManager()

	csl := coordinator.NewCoordinatorServerList(coordinator.CoordinatorServerListOpts{
		Journal: consensusLog,
		Transport: grpcTransport,
		Trackers: trackers,
		Recovery: recoveryManager,
		RpcTimeout: opts.RpcTimeout,
	})

	adminService := httpservice.NewHTTPService(&httpservice.HTTPServiceOpts{
		Port: opts.Ports.Admin,
		Coordinator: csl,
	})

	return &MembershipService{
		Coordinator: csl,
		Journal: consensusLog,
		Trackers: trackers,
		Recovery: recoveryManager,
		HTTPService: adminService,
	}
}

/*
	Start Membership Service:
		1.) replay the consensus journal so the server list reflects every
			mutation that survived the previous coordinator incarnation
		2.) start the admin http module

		--> the coordinator's background updater is already running from
		construction, so replayed entries begin disseminating immediately
*/

func (membership *MembershipService) StartMembershipService() {
	replayErr := membership.ReplayJournalOnStartup()
	if replayErr != nil { Log.Error("error on journal replay:", replayErr.Error()) }

	go membership.HTTPService.StartHTTPService()

	select {}
}

/*
	Replay Journal On Startup:
		read every live record in append order and dispatch it by its entry
		type tag to the matching recover operation (complete phase only)

		records that reference servers forced down since they were written
		surface UnknownServer; those are logged and skipped, the recover
		operations already invalidated them
*/

func (membership *MembershipService) ReplayJournalOnStartup() error {
	entries, readErr := membership.Journal.ReadAll()
	if readErr != nil { return readErr }

	for _, entry := range entries {
		entryType, typeErr := journal.EntryTypeOf(entry.Data)
		if typeErr != nil {
			Log.Warn("skipping undecodable journal entry:", entry.EntryId)
			continue
		}

		replayErr := membership.replayEntry(entryType, entry)
		if replayErr != nil {
			Log.Warn("replay of", entryType, "entry", entry.EntryId, "failed:", replayErr.Error())
		}
	}

	Log.Info("journal replay complete, total entries:", len(entries))
	return nil
}


//========================================== helper methods


func (membership *MembershipService) replayEntry(entryType string, entry journal.LogEntry) error {
	switch entryType {
		case journal.ServerEnlistingEntry:
			state, decErr := utils.DecodeBytesToStruct[journal.ServerInformation](entry.Data)
			if decErr != nil { return decErr }

			return membership.Coordinator.EnlistServerRecover(state, entry.EntryId)
		case journal.ServerEnlistedEntry:
			state, decErr := utils.DecodeBytesToStruct[journal.ServerInformation](entry.Data)
			if decErr != nil { return decErr }

			return membership.Coordinator.EnlistedServerRecover(state, entry.EntryId)
		case journal.ServerUpdateEntry:
			state, decErr := utils.DecodeBytesToStruct[journal.ServerUpdate](entry.Data)
			if decErr != nil { return decErr }

			return membership.Coordinator.SetMasterRecoveryInfoRecover(state, entry.EntryId)
		case journal.ForceServerDownEntry:
			state, decErr := utils.DecodeBytesToStruct[journal.ForceServerDown](entry.Data)
			if decErr != nil { return decErr }

			return membership.Coordinator.ForceServerDownRecover(state, entry.EntryId)
		default:
			Log.Warn("unknown journal entry type:", entryType)
			return nil
	}
}
