/*
Package txcontext implements the narrow transaction-context capability
family handlers consume: get, set, delete, and add_event, all scoped to
a single transaction and committed atomically.

A Context buffers its writes, deletes, and events in memory while a
handler runs; Commit flushes the buffered write set to the backing Store
in one call so the store can make it atomic, and returns the buffered
events for the host to dispatch to the event projector. If a handler
fails with a txerror.Invalid, the host must discard the Context instead
of calling Commit — determinism comes from the host serializing
transactions, not from any locking in this package.
*/
package txcontext

import (
	"fmt"
	"sync"
)

// Store is the durable backing read/write surface a Context commits to.
// Get returns (nil, false, nil) for an absent address — absence is not an
// error.
type Store interface {
	Get(address string) ([]byte, bool, error)
	Set(entries map[string][]byte) error
	Delete(addresses []string) ([]string, error)
}

// Event is a single emitted event, queued for the projector.
type Event struct {
	Type       string
	Attributes map[string]string
	Data       []byte
}

// Context is a single transaction's view over a Store.
type Context struct {
	store Store

	mu      sync.Mutex
	writes  map[string][]byte
	deleted map[string]bool
	events  []Event
}

// New creates a Context bound to store.
func New(store Store) *Context {
	return &Context{
		store:   store,
		writes:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// Get reads the raw container at address, honoring any writes or deletes
// already buffered in this transaction before falling back to the store.
func (c *Context) Get(address string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleted[address] {
		return nil, false, nil
	}
	if data, ok := c.writes[address]; ok {
		return data, true, nil
	}
	return c.store.Get(address)
}

// Set buffers a multi-address write, scoped to this transaction.
func (c *Context) Set(entries map[string][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for address, data := range entries {
		delete(c.deleted, address)
		c.writes[address] = data
	}
	return nil
}

// Delete buffers removal of addresses and returns the subset that existed
// (in the store or in this transaction's own writes) at the time of the call.
func (c *Context) Delete(addresses []string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed []string
	for _, address := range addresses {
		if _, ok := c.writes[address]; ok {
			delete(c.writes, address)
			c.deleted[address] = true
			removed = append(removed, address)
			continue
		}
		if c.deleted[address] {
			continue
		}
		_, exists, err := c.store.Get(address)
		if err != nil {
			return nil, fmt.Errorf("txcontext: delete check %s: %w", address, err)
		}
		if exists {
			c.deleted[address] = true
			removed = append(removed, address)
		}
	}
	return removed, nil
}

// AddEvent queues an event for delivery to downstream projectors once the
// transaction commits.
func (c *Context) AddEvent(eventType string, attributes map[string]string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Event{Type: eventType, Attributes: attributes, Data: data})
}

// Commit flushes the buffered write and delete set to the backing store in
// a single call, then returns the events queued during the transaction.
// Callers must not reuse a Context after Commit.
func (c *Context) Commit() ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.deleted) > 0 {
		addrs := make([]string, 0, len(c.deleted))
		for addr := range c.deleted {
			addrs = append(addrs, addr)
		}
		if _, err := c.store.Delete(addrs); err != nil {
			return nil, fmt.Errorf("txcontext: commit deletes: %w", err)
		}
	}
	if len(c.writes) > 0 {
		if err := c.store.Set(c.writes); err != nil {
			return nil, fmt.Errorf("txcontext: commit writes: %w", err)
		}
	}
	return c.events, nil
}
