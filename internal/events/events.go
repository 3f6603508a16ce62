// Package events publishes query-audit events to Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// Event describes one completed item query. It carries shape, not data: no
// filter text or feature content leaves the process.
type Event struct {
	Collection     string    `json:"collection"`
	Format         string    `json:"format"`
	Offset         int       `json:"offset"`
	Limit          int       `json:"limit"`
	HasBBox        bool      `json:"has_bbox"`
	HasFilter      bool      `json:"has_filter"`
	NumberMatched  int       `json:"number_matched"`
	NumberReturned int       `json:"number_returned"`
	TS             time.Time `json:"ts"`
}

// sender abstracts the async producer input so tests can run without a
// broker.
type sender interface {
	send(*sarama.ProducerMessage)
	close() error
}

// Publisher queues events and ships them asynchronously. Publish never
// blocks the request path: a full queue drops the event.
type Publisher struct {
	topic   string
	events  chan Event
	prod    sender
	log     *slog.Logger
	stopped chan struct{}
}

type saramaSender struct {
	prod sarama.AsyncProducer
	log  *slog.Logger
}

func (s *saramaSender) send(msg *sarama.ProducerMessage) {
	s.prod.Input() <- msg
}

func (s *saramaSender) close() error {
	return s.prod.Close()
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	if queueSize <= 0 {
		queueSize = 1024
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}

	go func() {
		for err := range prod.Errors() {
			if err != nil {
				log.Warn("events producer error", "err", err)
			}
		}
	}()

	return newPublisher(topic, queueSize, &saramaSender{prod: prod, log: log}, log), nil
}

func newPublisher(topic string, queueSize int, s sender, log *slog.Logger) *Publisher {
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    s,
		log:     log,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Warn("events marshal", "err", err)
				continue
			}
			p.prod.send(&sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Collection),
				Value: sarama.ByteEncoder(b),
			})
		}
	}()

	return p
}

func (p *Publisher) Publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		// queue full; drop rather than stall the request
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped
	if err := p.prod.close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
