package server


//=========================================== Server Types


/*
	a ServerId identifies one incarnation of a server: the index locates the
	slot in the coordinator server list, the generation distinguishes
	successive servers assigned to the same slot

	the zero index is reserved and never issued, so the zero value is invalid
*/

type ServerId struct {
	Index uint32
	Generation uint32
}

type ServiceMask uint32

const (
	MasterService ServiceMask = 1 << iota
	BackupService
	MembershipService
	PingService
)

type ServerStatus string

const (
	Up ServerStatus = "UP"
	Crashed ServerStatus = "CRASHED"
	Down ServerStatus = "DOWN"
)

/*
	opaque metadata the master recovery subsystem needs to safely recover a
	crashed master, carried but never interpreted by the membership service
*/

type MasterRecoveryInfo []byte

type ServerDetails struct {
	ServerId ServerId
	ServiceLocator string
	Services ServiceMask
	ExpectedReadMBytesPerSec uint32
	Status ServerStatus
	ReplicationId uint64
}
