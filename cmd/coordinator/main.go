package main

import "os"
import "strings"

import "github.com/sirgallo/clusterlist/pkg/connpool"
import "github.com/sirgallo/clusterlist/pkg/logger"
import "github.com/sirgallo/clusterlist/pkg/service"


const NAME = "Main"
var Log = clog.NewCustomLog(NAME)


func main() {
	hostname, hostErr := os.Hostname()
	if hostErr != nil { Log.Fatal("unable to get hostname") }

	Log.Info("starting cluster membership coordinator on host:", hostname)

	var etcdEndpoints []string
	if endpoints := os.Getenv("ETCD_ENDPOINTS"); endpoints != "" {
		etcdEndpoints = strings.Split(endpoints, ",")
	}

	membershipOpts := service.MembershipServiceOpts{
		Ports: service.MembershipPortOpts{
			Admin: 8080,
		},
		JournalPath: os.Getenv("JOURNAL_PATH"),
		EtcdEndpoints: etcdEndpoints,
		ConnPoolOpts: connpool.ConnectionPoolOpts{ MaxConn: 10 },
	}

	membership := service.NewMembershipService(membershipOpts)

	go membership.StartMembershipService()

	select {}
}
