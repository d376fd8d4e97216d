package orchestrator

// Event represents an orchestrator lifecycle event.
// Minimal and stable: name + model path and optional fields.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// Event names.
const (
	EventBatchStart  = "batch_start"
	EventBatchEnd    = "batch_end"
	EventQueue       = "queue"
	EventState       = "state"
	EventLoad        = "load"
	EventReuse       = "reuse"
	EventUnload      = "unload"
	EventImage       = "image"
	EventImageFailed = "image_failed"
)

// EventPublisher receives events from the orchestrator. Implementations
// should be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
