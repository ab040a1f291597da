package trackertests

import "testing"

import "github.com/sirgallo/clusterlist/pkg/server"
import "github.com/sirgallo/clusterlist/pkg/tracker"


func TestRegisteredTrackerReceivesChanges(t *testing.T) {
	registry := tracker.NewRegistry()

	eTracker := tracker.NewEventTracker()
	registry.Register(eTracker)

	change := tracker.ServerChange{
		Event: tracker.ServerAdded,
		Details: server.ServerDetails{
			ServerId: server.ServerId{ Index: 1, Generation: 0 },
			ServiceLocator: "backup1:6001",
			Services: server.BackupService,
			Status: server.Up,
		},
	}

	registry.NotifyAll(change)

	received := <- eTracker.Changes

	t.Logf("actual event: %s, expected event: %s", received.Event, tracker.ServerAdded)
	if received.Event != tracker.ServerAdded {
		t.Errorf("actual event not equal to expected: actual(%s), expected(%s)", received.Event, tracker.ServerAdded)
	}

	if !received.Details.ServerId.Equals(change.Details.ServerId) {
		t.Errorf("change for wrong server: %s", received.Details.ServerId.String())
	}
}

func TestUnregisteredTrackerStopsReceiving(t *testing.T) {
	registry := tracker.NewRegistry()

	eTracker := tracker.NewEventTracker()
	id := registry.Register(eTracker)
	registry.Unregister(id)

	registry.NotifyAll(tracker.ServerChange{ Event: tracker.ServerCrashed })

	select {
		case change := <- eTracker.Changes:
			t.Errorf("unregistered tracker received change: %s", change.Event)
		default:
	}
}

func TestAllTrackersNotified(t *testing.T) {
	registry := tracker.NewRegistry()

	first := tracker.NewEventTracker()
	second := tracker.NewEventTracker()

	registry.Register(first)
	registry.Register(second)

	registry.NotifyAll(tracker.ServerChange{ Event: tracker.ServerRemoved })

	for _, eTracker := range []*tracker.EventTracker{first, second} {
		select {
			case change := <- eTracker.Changes:
				if change.Event != tracker.ServerRemoved {
					t.Errorf("wrong event delivered: %s", change.Event)
				}
			default:
				t.Errorf("tracker %s missed the change", eTracker.Id)
		}
	}
}
