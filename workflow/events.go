package workflow

import "time"

// EventType names a run progress event.
type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventNodeStarted  EventType = "node.started"
	EventNodeFinished EventType = "node.finished"
	EventRunFinished  EventType = "run.finished"
)

// Event reports progress of a run. Node events carry the node and its
// layer; run.finished carries the run status.
type Event struct {
	Type       EventType `json:"type"`
	RunID      string    `json:"run_id"`
	Pattern    Pattern   `json:"pattern"`
	Node       string    `json:"node,omitempty"`
	Layer      int       `json:"layer"`
	Status     string    `json:"status,omitempty"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Time       time.Time `json:"time"`
}

// Observer receives run events. OnEvent is called concurrently from node
// goroutines and must not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Observers fans each event out to every observer in order.
type Observers []Observer

// OnEvent implements Observer.
func (obs Observers) OnEvent(e Event) {
	for _, o := range obs {
		o.OnEvent(e)
	}
}
