package metrics

import "time"

// Event is a single metrics data point.
type Event struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Observer receives metrics events from the engine and its subsystems.
type Observer interface {
	RecordEvent(ev Event)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(Event) {}

// Count records a counter-style event with value 1.
func Count(obs Observer, name string, tags map[string]string) {
	if obs == nil {
		return
	}
	obs.RecordEvent(Event{Name: name, Time: time.Now(), Value: 1, Tags: tags})
}

// Duration records an elapsed-time event in milliseconds.
func Duration(obs Observer, name string, elapsed time.Duration, tags map[string]string) {
	if obs == nil {
		return
	}
	obs.RecordEvent(Event{
		Name:  name,
		Time:  time.Now(),
		Value: float64(elapsed.Milliseconds()),
		Tags:  tags,
	})
}
