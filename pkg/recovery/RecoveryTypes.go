package recovery

import "github.com/sirgallo/clusterlist/pkg/server"


type RecoveryManager interface {
	StartMasterRecovery(details server.ServerDetails)
}

type QueuedRecoveryManager struct {
	CrashedMasters chan server.ServerDetails
}

const CrashedMastersBuffSize = 256

const NAME = "Recovery"
