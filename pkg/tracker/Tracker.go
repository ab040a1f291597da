package tracker

import "github.com/google/uuid"


//=========================================== Tracker


func NewRegistry() *Registry {
	return &Registry{
		trackers: make(map[string]ServerTracker),
	}
}

/*
	register a tracker and return the handle used to unregister it later
*/

func (registry *Registry) Register(tracker ServerTracker) string {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	id := uuid.NewString()
	registry.trackers[id] = tracker

	return id
}

func (registry *Registry) Unregister(id string) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	delete(registry.trackers, id)
}

/*
	enqueue the change on every registered tracker, then fire all callbacks
*/

func (registry *Registry) NotifyAll(change ServerChange) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	for _, tracker := range registry.trackers {
		tracker.EnqueueChange(change)
	}

	for _, tracker := range registry.trackers {
		tracker.FireCallback()
	}
}


//========================================== event tracker


/*
	channel backed tracker for components that consume membership events on
	their own goroutine
*/

func NewEventTracker() *EventTracker {
	return &EventTracker{
		Id: uuid.NewString(),
		Changes: make(chan ServerChange, EventTrackerBuffSize),
	}
}

func (eTracker *EventTracker) EnqueueChange(change ServerChange) {
	select {
		case eTracker.Changes <- change:
		default:
	}
}

func (eTracker *EventTracker) FireCallback() {}
