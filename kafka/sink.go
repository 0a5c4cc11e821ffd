package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/agentflow/component"
	"github.com/kbukum/agentflow/logger"
	"github.com/kbukum/agentflow/observability"
	"github.com/kbukum/agentflow/workflow"
)

// messageWriter is the part of kafka-go's Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// EventSink publishes run events to Kafka. Events observed before Start or
// after Stop are dropped.
type EventSink struct {
	cfg  Config
	log  *logger.Logger
	dial func(*EventSink) (messageWriter, error)

	mu     sync.RWMutex
	writer messageWriter

	published  atomic.Int64
	failed     atomic.Int64
	lastFailed atomic.Bool
}

var (
	_ workflow.Observer     = (*EventSink)(nil)
	_ component.Component   = (*EventSink)(nil)
	_ component.Describable = (*EventSink)(nil)
)

// NewEventSink creates a sink for cfg. The writer is created on Start.
func NewEventSink(cfg Config, log *logger.Logger) (*EventSink, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka event sink config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}
	return &EventSink{cfg: cfg, log: log.WithComponent("kafka"), dial: newWriter}, nil
}

func newWriter(s *EventSink) (messageWriter, error) {
	transport, err := newTransport(&s.cfg)
	if err != nil {
		return nil, err
	}
	return &kafkago.Writer{
		Addr:      kafkago.TCP(s.cfg.Brokers...),
		Topic:     s.cfg.Topic,
		Transport: transport,
		// Hash keeps every event of a run on one partition, in order.
		Balancer:     &kafkago.Hash{},
		BatchSize:    s.cfg.BatchSize,
		BatchTimeout: ParseDuration(s.cfg.BatchTimeout),
		WriteTimeout: ParseDuration(s.cfg.WriteTimeout),
		RequiredAcks: kafkago.RequiredAcks(s.cfg.RequiredAcks),
		Compression:  compression(s.cfg.Compression),
		MaxAttempts:  s.cfg.Retries,
		Async:        true,
		Completion:   s.complete,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			s.log.Error("writer: "+fmt.Sprintf(msg, args...))
		}),
	}, nil
}

// Name implements component.Component.
func (s *EventSink) Name() string { return "kafka" }

// Start creates the writer.
func (s *EventSink) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		return nil
	}
	w, err := s.dial(s)
	if err != nil {
		return err
	}
	s.writer = w
	s.log.Info("Kafka event sink started", logger.Fields(
		"brokers", strings.Join(s.cfg.Brokers, ","),
		"topic", s.cfg.Topic,
		"compression", s.cfg.Compression,
	))
	return nil
}

// Stop flushes pending events and closes the writer.
func (s *EventSink) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	s.log.Info("Kafka event sink stopped", logger.Fields(
		"published", s.published.Load(),
		"failed", s.failed.Load(),
	))
	return err
}

// OnEvent implements workflow.Observer. The write is asynchronous; delivery
// failures are counted by the completion callback.
func (s *EventSink) OnEvent(e workflow.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.writer == nil {
		return
	}

	value, err := json.Marshal(e)
	if err != nil {
		s.log.Warn("could not encode run event", logger.MergeWithError(logger.Fields("run_id", e.RunID), err))
		return
	}
	msg := kafkago.Message{
		Key:   []byte(e.RunID),
		Value: value,
		Time:  e.Time,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := s.writer.WriteMessages(context.Background(), msg); err != nil {
		s.failed.Add(1)
		s.lastFailed.Store(true)
		s.log.Warn("could not queue run event", logger.MergeWithError(logger.Fields("run_id", e.RunID), err))
	}
}

// complete is the writer's completion callback for each batch.
func (s *EventSink) complete(msgs []kafkago.Message, err error) {
	if err != nil {
		s.failed.Add(int64(len(msgs)))
		s.lastFailed.Store(true)
		s.log.Warn("run events not delivered", logger.MergeWithError(logger.Fields("count", len(msgs)), err))
		return
	}
	s.published.Add(int64(len(msgs)))
	s.lastFailed.Store(false)
}

// Health is down before Start and degraded while the last batch failed.
func (s *EventSink) Health(_ context.Context) observability.Health {
	s.mu.RLock()
	started := s.writer != nil
	s.mu.RUnlock()

	h := observability.Health{
		Name:   s.Name(),
		Status: observability.HealthStatusUp,
		Details: map[string]string{
			"topic":     s.cfg.Topic,
			"published": strconv.FormatInt(s.published.Load(), 10),
			"failed":    strconv.FormatInt(s.failed.Load(), 10),
		},
	}
	switch {
	case !started:
		h.Status = observability.HealthStatusDown
		h.Message = "not started"
	case s.lastFailed.Load():
		h.Status = observability.HealthStatusDegraded
		h.Message = "last delivery failed"
	}
	return h
}

// Describe implements component.Describable.
func (s *EventSink) Describe() component.Description {
	return component.Description{
		Name:    "Kafka events",
		Type:    "messaging",
		Details: s.cfg.Topic + " @ " + strings.Join(s.cfg.Brokers, ","),
	}
}
