// Package events is a small typed publish/subscribe channel.
//
// A Bus is owned by whoever constructs it (the server composition root) and
// handed explicitly to publishers and subscribers. There is no process-wide
// registry and no string event names.
package events

import (
	"slices"
	"sync"
)

// CrewExpChanged is published whenever a crew member gains experience.
type CrewExpChanged struct {
	CrewID    string `json:"crewId"`
	CrewName  string `json:"crewName"`
	NewExp    int    `json:"newExp"`
	NewLevel  int    `json:"newLevel"`
	ExpGained int    `json:"expGained"`
	LeveledUp bool   `json:"leveledUp"`
}

// Bus delivers values of type T to every current subscriber.
// The zero value is ready to use.
type Bus[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
}

// NewBus returns an empty bus.
func NewBus[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]func(T))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish calls every subscriber synchronously, in subscription order.
// Subscribers may subscribe or unsubscribe from inside their callback.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	fns := make(map[int]func(T), len(b.subs))
	for id, fn := range b.subs {
		ids = append(ids, id)
		fns[id] = fn
	}
	b.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id](v)
	}
}

// Len reports the number of current subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

