package tracker

import "sync"

import "github.com/sirgallo/clusterlist/pkg/server"


//=========================================== Tracker Types


type ServerChangeEvent string

const (
	ServerAdded ServerChangeEvent = "SERVER_ADDED"
	ServerCrashed ServerChangeEvent = "SERVER_CRASHED"
	ServerRemoved ServerChangeEvent = "SERVER_REMOVED"
)

type ServerChange struct {
	Event ServerChangeEvent
	Details server.ServerDetails
}

/*
	a ServerTracker is a local observer of membership changes; changes are
	enqueued for every tracker first, then callbacks fire, so no tracker
	observes a partially applied mutation
*/

type ServerTracker interface {
	EnqueueChange(change ServerChange)
	FireCallback()
}

type Registry struct {
	mutex sync.Mutex
	trackers map[string]ServerTracker
}

type EventTracker struct {
	Id string
	Changes chan ServerChange
}

const EventTrackerBuffSize = 1024
