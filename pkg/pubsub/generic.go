// Package pubsub provides a minimal typed fan-out used to push live
// metric snapshots to in-process consumers. Delivery is synchronous:
// subscribers must keep draining their channel until they unsubscribe.
package pubsub

import (
	"sync"
)

type PubSub[T any] struct {
	mu   sync.Mutex
	subs map[string][]chan T
}

func NewPubSub[T any]() *PubSub[T] {
	return &PubSub[T]{
		subs: make(map[string][]chan T),
	}
}

func (ps *PubSub[T]) Subscribe(topic string) <-chan T {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ch := make(chan T)
	ps.subs[topic] = append(ps.subs[topic], ch)
	return ch
}

// Unsubscribe removes a previously subscribed channel and closes it.
func (ps *PubSub[T]) Unsubscribe(topic string, ch <-chan T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	subs := ps.subs[topic]
	for i, sub := range subs {
		if sub == ch {
			ps.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

func (ps *PubSub[T]) Publish(topic string, data T) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for _, ch := range ps.subs[topic] {
		ch <- data
	}
}
