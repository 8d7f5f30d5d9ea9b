package deploy

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Observer receives structured events as the deployment progresses.
type Observer interface {
	// Printf emits an unstructured progress line.
	Printf(format string, v ...interface{})

	// Event emits a structured event.
	Event(event Event)

	// WithFields returns an Observer that stamps every event with the
	// given context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured deployment event.
type Event struct {
	Type      EventType
	Component string
	Message   string
	Resource  string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType represents the type of deployment event.
type EventType string

const (
	// EventComponentStarted indicates a component began deploying.
	EventComponentStarted EventType = "component.started"
	// EventComponentCompleted indicates a component deployed successfully.
	EventComponentCompleted EventType = "component.completed"
	// EventComponentSkipped indicates a component was already satisfied
	// or excluded from the run.
	EventComponentSkipped EventType = "component.skipped"
	// EventComponentFailed indicates a component failed.
	EventComponentFailed EventType = "component.failed"

	// EventResourceApplied indicates a cluster object was created or updated.
	EventResourceApplied EventType = "resource.applied"
	// EventResourceExists indicates a cluster object already matched.
	EventResourceExists EventType = "resource.exists"

	// EventWaiting indicates progress in a readiness wait.
	EventWaiting EventType = "waiting"
)

// ZerologObserver implements Observer on a zerolog logger.
type ZerologObserver struct {
	logger zerolog.Logger
	fields map[string]string
}

// NewObserver creates an Observer writing human-readable output to w.
func NewObserver(w io.Writer) *ZerologObserver {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
	return &ZerologObserver{logger: logger}
}

// NewJSONObserver creates an Observer emitting JSON lines to w.
func NewJSONObserver(w io.Writer) *ZerologObserver {
	return &ZerologObserver{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Printf implements Observer.
func (o *ZerologObserver) Printf(format string, v ...interface{}) {
	o.logger.Info().Msgf(format, v...)
}

// Event implements Observer.
func (o *ZerologObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	entry := o.logger.Info()
	if event.Type == EventComponentFailed {
		entry = o.logger.Error()
	}

	entry = entry.Str("event", string(event.Type))
	if event.Component != "" {
		entry = entry.Str("component", event.Component)
	}
	if event.Resource != "" {
		entry = entry.Str("resource", event.Resource)
	}
	for k, v := range o.fields {
		entry = entry.Str(k, v)
	}
	for k, v := range event.Fields {
		entry = entry.Str(k, v)
	}
	entry.Msg(event.Message)
}

// WithFields implements Observer.
func (o *ZerologObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZerologObserver{logger: o.logger, fields: merged}
}

// NopObserver discards everything. Used in tests.
type NopObserver struct{}

func (NopObserver) Printf(string, ...interface{})           {}
func (NopObserver) Event(Event)                             {}
func (n NopObserver) WithFields(map[string]string) Observer { return n }
