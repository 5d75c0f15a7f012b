// Package storage is the in-memory read cache sitting in front of the
// dual-store router. Feature code subscribes to change events instead of
// holding its own live entity lists.
package storage

import (
	"sync"

	"github.com/wurt83ow/poskeeper-client/pkg/models"
)

// Event describes one cache mutation.
type Event[T models.Entity] struct {
	Op     string // models.OpInsert, OpUpdate or OpDelete
	ID     string
	Entity T
}

// Cache keeps the latest known copy of each record, keyed by id. The
// router refreshes it on every successful write or read.
type Cache[T models.Entity] struct {
	mu   sync.RWMutex
	data map[string]T
	subs []func(Event[T])
}

func NewCache[T models.Entity]() *Cache[T] {
	return &Cache[T]{
		data: make(map[string]T),
	}
}

// Put stores the record and notifies subscribers.
func (c *Cache[T]) Put(entity T) {
	c.mu.Lock()
	_, existed := c.data[entity.EntityID()]
	c.data[entity.EntityID()] = entity
	subs := append([]func(Event[T]){}, c.subs...)
	c.mu.Unlock()

	op := models.OpInsert
	if existed {
		op = models.OpUpdate
	}
	event := Event[T]{Op: op, ID: entity.EntityID(), Entity: entity}
	for _, fn := range subs {
		fn(event)
	}
}

// Remove drops the record and notifies subscribers.
func (c *Cache[T]) Remove(id string) {
	c.mu.Lock()
	entity, existed := c.data[id]
	delete(c.data, id)
	subs := append([]func(Event[T]){}, c.subs...)
	c.mu.Unlock()

	if !existed {
		return
	}
	event := Event[T]{Op: models.OpDelete, ID: id, Entity: entity}
	for _, fn := range subs {
		fn(event)
	}
}

// Get returns the cached copy, if any.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entity, ok := c.data[id]
	return entity, ok
}

// Subscribe registers a callback invoked after every cache change.
// Callbacks run on the mutating goroutine and should return quickly.
func (c *Cache[T]) Subscribe(fn func(Event[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}
