// Package encodeevents publishes one Kafka message per served encode request.
package encodeevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
)

type Event struct {
	Format   string    `json:"format"`
	TypeName string    `json:"typeName,omitempty"`
	Version  string    `json:"version,omitempty"`
	Cell     string    `json:"cell,omitempty"`
	Key      string    `json:"key"`
	Bytes    int       `json:"bytes"`
	Cached   string    `json:"cached"`
	TS       time.Time `json:"ts"`
}

// Publisher hands events to an async producer from a bounded queue. Publish
// never blocks: a full queue drops the event.
type Publisher struct {
	topic   string
	log     *slog.Logger
	prod    sarama.AsyncProducer
	mu      sync.RWMutex
	closed  bool
	events  chan Event
	stopped chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("encodeevents: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, log), nil
}

// NewWithProducer starts a publisher on an existing producer and takes
// ownership of it.
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		log:     log,
		prod:    prod,
		events:  make(chan Event, queueSize),
		stopped: make(chan struct{}),
	}
	go p.run()
	go p.drainErrors()
	return p
}

func (p *Publisher) run() {
	defer close(p.stopped)
	for ev := range p.events {
		b, err := json.Marshal(ev)
		if err != nil {
			p.log.Warn("encodeevents: marshal", "err", err)
			observability.IncEvent("error")
			continue
		}
		p.prod.Input() <- &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(ev.Key),
			Value: sarama.ByteEncoder(b),
		}
		observability.IncEvent("sent")
	}
}

func (p *Publisher) drainErrors() {
	for err := range p.prod.Errors() {
		if err != nil {
			p.log.Warn("encodeevents: producer error", "err", err.Err, "topic", err.Msg.Topic)
			observability.IncEvent("error")
		}
	}
}

// Publish enqueues ev and reports whether it was accepted.
func (p *Publisher) Publish(ev Event) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	select {
	case p.events <- ev:
		return true
	default:
		observability.IncEvent("dropped")
		return false
	}
}

// Close flushes queued events and closes the producer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("encodeevents: close producer: %w", err)
	}
	return nil
}
