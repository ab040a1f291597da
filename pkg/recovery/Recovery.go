package recovery

import "github.com/sirgallo/clusterlist/pkg/logger"
import "github.com/sirgallo/clusterlist/pkg/server"


//=========================================== Recovery


var Log = clog.NewCustomLog(NAME)

/*
	the membership service only notifies the recovery subsystem when a master
	crashes; the recovery run itself, and the eventual remove() call once the
	master's log has been recovered, happen on the consumer side of the queue
*/

func NewQueuedRecoveryManager() *QueuedRecoveryManager {
	return &QueuedRecoveryManager{
		CrashedMasters: make(chan server.ServerDetails, CrashedMastersBuffSize),
	}
}

func (manager *QueuedRecoveryManager) StartMasterRecovery(details server.ServerDetails) {
	if !details.IsMaster() { return }

	Log.Warn("master crashed, queueing recovery for server:", details.ServerId.String())

	select {
		case manager.CrashedMasters <- details:
		default:
			Log.Error("recovery queue full, dropping crashed master:", details.ServerId.String())
	}
}
