package transport

import (
	"sync"
)

// Memory is an in-process Bus. Retained messages are replayed to new
// subscribers, and delivery is synchronous on the publishing goroutine.
type Memory struct {
	mu       sync.Mutex
	subs     map[string][]Handler
	retained map[string][]byte
	closed   bool
}

// NewMemory returns an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{
		subs:     make(map[string][]Handler),
		retained: make(map[string][]byte),
	}
}

// Publish implements Publisher.
func (b *Memory) Publish(topic string, retained bool, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	data := append([]byte(nil), payload...)
	if retained {
		b.retained[topic] = data
	}
	handlers := append([]Handler(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, h := range handlers {
		h(topic, data)
	}
	return nil
}

// Subscribe implements Subscriber.
func (b *Memory) Subscribe(topic string, h Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.subs[topic] = append(b.subs[topic], h)
	last, ok := b.retained[topic]
	b.mu.Unlock()

	if ok {
		h(topic, last)
	}
	return nil
}

// Retained returns the retained payload for topic, if any.
func (b *Memory) Retained(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.retained[topic]
	return p, ok
}

// Close implements Bus.
func (b *Memory) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
