package graph

import "github.com/google/uuid"

// ProgressEvent describes the state of a layout run for live subscribers.
type ProgressEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	GraphID   uuid.UUID `json:"graph_id"`
	Status    string    `json:"status"`
	Iteration int       `json:"iteration,omitempty"`
	Total     int       `json:"total_iterations,omitempty"`
	Speed     float64   `json:"speed,omitempty"`
	MaxMove   float64   `json:"max_move,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// ProgressSink receives run lifecycle and iteration events. Publish must not
// block: the layout loop calls it synchronously.
type ProgressSink interface {
	Publish(ev ProgressEvent)
}

// NoopSink discards all events.
type NoopSink struct{}

func (NoopSink) Publish(ProgressEvent) {}
