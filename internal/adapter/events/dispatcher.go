package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrBufferFull is returned by Publish when the delivery queue is full. The event is dropped.
	ErrBufferFull = errors.New("event buffer full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("event dispatcher closed")
)

// Message is one serialized event ready for a sink.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	EventType string
}

// Sink delivers messages to a transport.
type Sink interface {
	Write(ctx context.Context, msg Message) error
	Close() error
}

// NewSink builds the sink selected by cfg.Driver.
func NewSink(cfg config.EventsConfig, log zerolog.Logger) (Sink, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaSink(cfg.Brokers)
	case "log", "":
		return NewLogSink(log), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// Envelope is the wire form of every published event.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Dispatcher implements ports.EventPublisher. Publish only enqueues; Run delivers
// to the sink with bounded retries.
type Dispatcher struct {
	sink    Sink
	cfg     config.EventsConfig
	metrics ports.LedgerMetrics
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	done   chan struct{}
}

// NewDispatcher creates a dispatcher. Call Run in its own goroutine.
func NewDispatcher(sink Sink, cfg config.EventsConfig, metrics ports.LedgerMetrics, log zerolog.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Dispatcher{
		sink:    sink,
		cfg:     cfg,
		metrics: metrics,
		log:     log.With().Str("component", "events").Logger(),
		queue:   make(chan Message, cfg.BufferSize),
		done:    make(chan struct{}),
	}
}

// Publish serializes event and enqueues it without blocking.
func (d *Dispatcher) Publish(_ context.Context, event domain.Event) error {
	msg, err := d.encode(event)
	if err != nil {
		d.metrics.EventDropped()
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.EventDropped()
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		d.metrics.EventDropped()
		return ErrBufferFull
	}
}

func (d *Dispatcher) encode(event domain.Event) (Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", event.EventType(), err)
	}
	value, err := json.Marshal(Envelope{
		ID:         uuid.New(),
		Type:       event.EventType(),
		Key:        event.PartitionKey(),
		EnqueuedAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s envelope: %w", event.EventType(), err)
	}
	return Message{
		Topic:     d.cfg.TopicPrefix + event.EventType(),
		Key:       []byte(event.PartitionKey()),
		Value:     value,
		EventType: event.EventType(),
	}, nil
}

// Run delivers queued messages until Close drains the queue or ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case msg, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

// deliver retries a message with linear backoff.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		if err = d.sink.Write(ctx, msg); err == nil {
			return
		}
		d.log.Warn().Err(err).
			Str("event_type", msg.EventType).
			Int("attempt", attempt).
			Msg("event delivery failed")

		if attempt == d.cfg.MaxAttempts {
			break
		}
		select {
		case <-time.After(d.cfg.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			d.log.Error().Str("event_type", msg.EventType).Msg("event delivery abandoned on shutdown")
			d.metrics.EventDropped()
			return
		}
	}
	d.log.Error().Err(err).
		Str("event_type", msg.EventType).
		Str("key", string(msg.Key)).
		Msg("event delivery attempts exhausted")
	d.metrics.EventDropped()
}

// Close stops intake and waits for Run to drain the queue, then closes the sink.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return fmt.Errorf("draining events: %w", ctx.Err())
	}
	return d.sink.Close()
}
