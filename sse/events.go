package sse

// Event names written by the stream itself. Published messages carry their
// own event name.
const (
	// EventTypeConnected is sent once when a client subscribes.
	EventTypeConnected = "connected"
	// EventTypeMessage is used for messages published without a name.
	EventTypeMessage = "message"
)

// Publisher sends an event to every client whose pattern matches topic.
type Publisher interface {
	Publish(topic, event string, data []byte)
}
