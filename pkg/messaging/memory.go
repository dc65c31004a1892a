package messaging

import (
	"context"
	"errors"
	"sync"
)

var ErrBrokerClosed = errors.New("broker is closed")

// MemoryBroker fans messages out to in-process subscribers. Slow subscribers
// block publishers until ctx is done.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
	buffer int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs:   make(map[string]map[chan []byte]struct{}),
		buffer: 64,
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBrokerClosed
	}
	for sub := range b.subs[channel] {
		msg := append([]byte(nil), message...)
		select {
		case sub <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}
	sub := make(chan []byte, b.buffer)
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.unsubscribe(channel, sub)
	}()
	return sub, nil
}

func (b *MemoryBroker) unsubscribe(channel string, sub chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[channel][sub]; !ok {
		return
	}
	delete(b.subs[channel], sub)
	close(sub)
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subs {
		for sub := range subs {
			close(sub)
		}
		delete(b.subs, channel)
	}
	return nil
}
