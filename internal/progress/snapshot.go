package progress

import (
	"image"
	"time"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateRunning State = "running"
	StateError   State = "error"
)

// Snapshot is the read-only projection observers receive. Values are copied
// on publish; Preview is never mutated after it is published.
type Snapshot struct {
	State           State         `json:"state"`
	Message         string        `json:"message,omitempty"`
	Model           string        `json:"model,omitempty"`
	Step            int           `json:"step"`
	TotalSteps      int           `json:"total_steps"`
	QueueIndex      int           `json:"queue_index"`
	QueueTotal      int           `json:"queue_total"`
	LastStepLatency time.Duration `json:"last_step_latency_ns"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Preview         image.Image   `json:"-"`
}

// Ready is the idle snapshot carrying an optional message.
func Ready(msg string) Snapshot { return Snapshot{State: StateReady, Message: msg} }
