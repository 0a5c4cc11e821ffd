// Package kafka publishes workflow run events to a Kafka topic.
//
// EventSink is a workflow.Observer and a lifecycle component. Events are
// JSON encoded, keyed by run ID so every event of a run lands on the same
// partition, and written asynchronously so node execution never waits on
// the broker.
package kafka
