// Package transport provides notification-channel adapters: an
// in-process broker for embedded use and tests, and a NATS-backed one.
package transport

import (
	"context"
	"sync"

	"chatkit/contract"
)

// Broker is an in-process pub/sub. Handlers on the same channel receive
// payloads in publish order; there is no ordering across channels.
type Broker struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]contract.EventHandler
}

func NewBroker() *Broker {
	return &Broker{handlers: make(map[string]map[int]contract.EventHandler)}
}

func (b *Broker) Publish(ctx context.Context, channel string, payload map[string]any) error {
	b.mu.RLock()
	subscribers := make([]contract.EventHandler, 0, len(b.handlers[channel]))
	for _, handler := range b.handlers[channel] {
		subscribers = append(subscribers, handler)
	}
	b.mu.RUnlock()

	for _, handler := range subscribers {
		handler(payload)
	}
	return nil
}

func (b *Broker) Subscribe(channel string, handler contract.EventHandler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.handlers[channel]; !ok {
		b.handlers[channel] = make(map[int]contract.EventHandler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[channel][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[channel], id)
		if len(b.handlers[channel]) == 0 {
			delete(b.handlers, channel)
		}
	}, nil
}
