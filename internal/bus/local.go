package bus

import (
	"context"
	"errors"
	"sync"
)

const subscriberBuffer = 64

var errClosed = errors.New("bus closed")

type localSub struct {
	ch   chan []byte
	once sync.Once
}

func (s *localSub) close() {
	s.once.Do(func() { close(s.ch) })
}

// Local is an in-process bus. Slow subscribers drop messages once their
// buffer is full.
type Local struct {
	mu     sync.Mutex
	subs   map[string][]*localSub
	closed bool
	done   chan struct{}
}

func NewLocal() *Local {
	return &Local{subs: map[string][]*localSub{}, done: make(chan struct{})}
}

func (b *Local) Publish(ctx context.Context, topic string, payload []byte) Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Delivery{Result: Failed, Err: errClosed}
	}
	subs := b.subs[topic]
	if len(subs) == 0 {
		return Delivery{Result: NoReceiver}
	}

	delivered := 0
	for _, s := range subs {
		msg := append([]byte(nil), payload...)
		select {
		case s.ch <- msg:
			delivered++
		default:
		}
	}
	if delivered == 0 {
		return Delivery{Result: Failed, Err: errors.New("all subscriber buffers full")}
	}
	return Delivery{Result: Delivered, Receivers: delivered}
}

func (b *Local) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errClosed
	}
	s := &localSub{ch: make(chan []byte, subscriberBuffer)}
	b.subs[topic] = append(b.subs[topic], s)

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(topic, s)
		case <-b.done:
		}
	}()
	return s.ch, nil
}

func (b *Local) unsubscribe(topic string, target *localSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, s := range subs {
		if s == target {
			b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
	target.close()
}

func (b *Local) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	for _, subs := range b.subs {
		for _, s := range subs {
			s.close()
		}
	}
	b.subs = map[string][]*localSub{}
	return nil
}
