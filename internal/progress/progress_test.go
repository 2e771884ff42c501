package progress

import (
	"context"
	"sync"
	"testing"
)

func TestTracker(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("run-1")
	tracker.SetTitle("Live Session")

	var receivedEvents []Event
	tracker.AddListener(func(event Event) {
		receivedEvents = append(receivedEvents, event)
	})

	tracker.Update(StageProbing, 10, "Probing")
	tracker.Update(StageThumbnail, 25, "Fetching thumbnail")

	if len(receivedEvents) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(receivedEvents))
	}
	if receivedEvents[1].Stage != StageThumbnail || receivedEvents[1].Progress != 25 {
		t.Errorf("Unexpected event %+v", receivedEvents[1])
	}
	if receivedEvents[0].RunID != "run-1" || receivedEvents[0].Title != "Live Session" {
		t.Errorf("Expected run id and title on events, got %+v", receivedEvents[0])
	}

	tracker.SetError(context.Canceled)

	state := tracker.Current()
	if state.Stage != StageError {
		t.Errorf("Expected error stage, got %s", state.Stage)
	}
	if state.Error != context.Canceled.Error() {
		t.Errorf("Expected error %v, got %s", context.Canceled, state.Error)
	}
	if state.Progress != 25 {
		t.Errorf("Expected progress to stay at 25, got %f", state.Progress)
	}
}

func TestCurrentWithoutError(t *testing.T) {
	tracker := NewTracker()

	state := tracker.Current()
	if state.Stage != StageInitializing {
		t.Errorf("Expected initializing stage, got %s", state.Stage)
	}
	if state.Error != "" {
		t.Errorf("Expected no error, got %s", state.Error)
	}
}

func TestStartResetsState(t *testing.T) {
	tracker := NewTracker()
	tracker.Start("first")
	tracker.SetTitle("Old")
	tracker.Update(StageConverting, 60, "Converting")
	tracker.SetError(context.DeadlineExceeded)

	tracker.Start("second")

	state := tracker.Current()
	if state.RunID != "second" || state.Stage != StageInitializing || state.Progress != 0 {
		t.Errorf("Expected reset state, got %+v", state)
	}
	if state.Title != "" || state.Error != "" {
		t.Errorf("Expected title and error cleared, got %+v", state)
	}
}

func TestListenerManagement(t *testing.T) {
	tracker := NewTracker()

	var receivedEvents []Event
	remove := tracker.AddListener(func(event Event) {
		receivedEvents = append(receivedEvents, event)
	})

	tracker.Update(StageConverting, 50, "Test")
	if len(receivedEvents) != 1 {
		t.Errorf("Expected 1 event, got %d", len(receivedEvents))
	}

	remove()

	tracker.Update(StageConverting, 75, "Test 2")
	if len(receivedEvents) != 1 {
		t.Errorf("Expected 1 event after removal, got %d", len(receivedEvents))
	}
}

func TestConcurrentUpdates(t *testing.T) {
	tracker := NewTracker()

	var mu sync.Mutex
	count := 0
	tracker.AddListener(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.Update(StageConverting, float64(40+i), "Converting")
			_ = tracker.Current()
		}(i)
	}
	wg.Wait()

	if count != 20 {
		t.Errorf("Expected 20 events, got %d", count)
	}
}
