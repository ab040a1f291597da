package httpservice

import "github.com/gorilla/mux"

import "github.com/sirgallo/clusterlist/pkg/coordinator"
import "github.com/sirgallo/clusterlist/pkg/server"


//=========================================== HTTP Service Types


type HTTPServiceOpts struct {
	Port int
	Coordinator *coordinator.CoordinatorServerList
}

type HTTPService struct {
	Router *mux.Router
	Port string

	Coordinator *coordinator.CoordinatorServerList
}

type EnlistRequest struct {
	ReplacesId server.ServerId
	Services server.ServiceMask
	ReadSpeed uint32
	ServiceLocator string
}

type EnlistResponse struct {
	ServerId server.ServerId
}

type HintServerDownRequest struct {
	ServerId server.ServerId
}

type HintServerDownResponse struct {
	Down bool
}

type RecoveryInfoRequest struct {
	ServerId server.ServerId
	MasterRecoveryInfo server.MasterRecoveryInfo
}

type CountsResponse struct {
	Masters uint32
	Backups uint32
}

type ErrorResponse struct {
	Error string
}

const EnlistRoute = "/enlist"
const HintServerDownRoute = "/hintdown"
const RecoveryInfoRoute = "/recoveryinfo"
const ServersRoute = "/servers"
const ServerByIndexRoute = "/servers/{index}"
const CountsRoute = "/counts"
const SyncRoute = "/sync"
const MetricsRoute = "/metrics"

const NAME = "HTTP Service"
