// Package progress reports the stages of a running acquisition to listeners.
package progress

import (
	"sync"
	"time"
)

// Stage represents the current stage of an acquisition
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageProbing      Stage = "probing"
	StageThumbnail    Stage = "thumbnail"
	StageConverting   Stage = "converting"
	StageChapters     Stage = "chapters"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Event represents a progress event
type Event struct {
	RunID     string    `json:"runId,omitempty"`
	Stage     Stage     `json:"stage"`
	Progress  float64   `json:"progress"`
	Message   string    `json:"message"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Tracker holds the latest state of one acquisition and fans events out to
// its listeners. Listeners run synchronously on the reporting goroutine.
type Tracker struct {
	mu        sync.RWMutex
	runID     string
	stage     Stage
	progress  float64
	message   string
	title     string
	err       error
	nextID    int
	listeners map[int]func(Event)
}

func NewTracker() *Tracker {
	return &Tracker{
		stage:     StageInitializing,
		listeners: make(map[int]func(Event)),
	}
}

// AddListener registers listener and returns a function that removes it.
func (t *Tracker) AddListener(listener func(Event)) (remove func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.listeners[id] = listener

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// Start resets the tracker for a new run.
func (t *Tracker) Start(runID string) {
	t.mu.Lock()
	t.runID = runID
	t.stage = StageInitializing
	t.progress = 0
	t.message = ""
	t.title = ""
	t.err = nil
	t.mu.Unlock()
}

// SetTitle records the title of the item being acquired.
func (t *Tracker) SetTitle(title string) {
	t.mu.Lock()
	t.title = title
	t.mu.Unlock()
}

// Update moves the tracker to stage and notifies all listeners
func (t *Tracker) Update(stage Stage, progress float64, message string) {
	t.mu.Lock()
	t.stage = stage
	t.progress = progress
	t.message = message
	event := t.eventLocked()
	t.mu.Unlock()

	t.notify(event)
}

// SetError sets an error state and notifies all listeners
func (t *Tracker) SetError(err error) {
	t.mu.Lock()
	t.stage = StageError
	t.err = err
	t.message = err.Error()
	event := t.eventLocked()
	t.mu.Unlock()

	t.notify(event)
}

// Current returns the current progress state
func (t *Tracker) Current() Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.eventLocked()
}

func (t *Tracker) eventLocked() Event {
	event := Event{
		RunID:     t.runID,
		Stage:     t.stage,
		Progress:  t.progress,
		Message:   t.message,
		Title:     t.title,
		Timestamp: time.Now(),
	}
	if t.err != nil {
		event.Error = t.err.Error()
	}
	return event
}

func (t *Tracker) notify(event Event) {
	t.mu.RLock()
	listeners := make([]func(Event), 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}
