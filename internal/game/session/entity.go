// Package session provides durable player identities and the connection
// entities that carry events to them.
package session

import (
	"fmt"
	"sync"
)

// Event is a named message pushed to a single connection.
type Event struct {
	Name string
	Data any
}

// Conn is a live transport connection that can receive pushed events.
//
// Implementations MUST be safe for concurrent use and Push MUST NOT block.
type Conn interface {
	// ID returns the connection identifier, unique for the process lifetime.
	ID() string
	// Push enqueues an event for delivery to the connection.
	Push(evt Event) error
}

// Entity routes Push calls to a buffered Go channel drained by the
// transport writer. It implements Conn.
type Entity struct {
	id     string
	events chan Event
	mu     sync.Mutex
	closed bool
}

// NewEntity creates an Entity for the given connection ID.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Entity with an open events channel.
func NewEntity(id string, bufferSize int) *Entity {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Entity{
		id:     id,
		events: make(chan Event, bufferSize),
	}
}

// ID returns the connection identifier.
func (e *Entity) ID() string {
	return e.id
}

// Push sends evt to the events channel without blocking.
//
// Postcondition: evt is enqueued, or an error is returned if the entity is closed or full.
func (e *Entity) Push(evt Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("connection %s is closed", e.id)
	}
	select {
	case e.events <- evt:
		return nil
	default:
		return fmt.Errorf("connection %s event buffer full", e.id)
	}
}

// Events returns the read-only events channel.
// The transport write loop reads from this channel.
func (e *Entity) Events() <-chan Event {
	return e.events
}

// Close marks the entity as closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return an error.
func (e *Entity) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.closed = true
		close(e.events)
	}
	return nil
}

// IsClosed reports whether the entity has been closed.
func (e *Entity) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Drain returns every event currently buffered without blocking.
func (e *Entity) Drain() []Event {
	var out []Event
	for {
		select {
		case evt, ok := <-e.events:
			if !ok {
				return out
			}
			out = append(out, evt)
		default:
			return out
		}
	}
}
