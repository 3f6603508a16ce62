package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

type fakeSender struct {
	mu   sync.Mutex
	msgs []*sarama.ProducerMessage
	gate chan struct{}
}

func (f *fakeSender) send(msg *sarama.ProducerMessage) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
}

func (f *fakeSender) close() error { return nil }

func (f *fakeSender) messages() []*sarama.ProducerMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sarama.ProducerMessage(nil), f.msgs...)
}

func TestPublisher_ShipsEvents(t *testing.T) {
	fs := &fakeSender{}
	p := newPublisher("audit", 8, fs, slog.Default())

	ev := Event{
		Collection:     "stations",
		Format:         "json",
		Limit:          10,
		HasBBox:        true,
		NumberMatched:  5,
		NumberReturned: 2,
		TS:             time.Now().UTC(),
	}
	p.Publish(ev)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	msgs := fs.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[0].Topic != "audit" {
		t.Fatalf("topic = %q", msgs[0].Topic)
	}
	key, err := msgs[0].Key.Encode()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if string(key) != "stations" {
		t.Fatalf("key = %q", key)
	}

	raw, err := msgs[0].Value.Encode()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var got Event
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Collection != "stations" || got.NumberMatched != 5 || !got.HasBBox {
		t.Fatalf("event = %+v", got)
	}
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	fs := &fakeSender{gate: make(chan struct{})}
	p := newPublisher("audit", 1, fs, slog.Default())

	// the worker blocks on the gated sender; the queue holds one more
	for i := 0; i < 10; i++ {
		p.Publish(Event{Collection: "c"})
	}
	close(fs.gate)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if n := len(fs.messages()); n > 2 {
		t.Fatalf("expected drops, got %d messages", n)
	}
}
