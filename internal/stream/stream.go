// Package stream publishes audit events to an external topic. Publishing is
// best-effort from the caller's point of view: a failed publish is logged
// and never fails the execution that produced the event.
package stream

import (
	"context"
	"encoding/json"
	"sync"
)

// Publisher delivers one JSON-encoded event keyed by an identifier.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}

// Event is a published record as seen by in-process consumers.
type Event struct {
	Key   string
	Value []byte
}

// ChannelPublisher delivers events to an in-process channel. Used by tests
// and by embedded deployments without a broker.
type ChannelPublisher struct {
	C      chan Event
	mu     sync.Mutex
	closed bool
}

// NewChannelPublisher creates a publisher with a buffered channel.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{
		C: make(chan Event, buffer),
	}
}

func (p *ChannelPublisher) Publish(ctx context.Context, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	select {
	case p.C <- Event{Key: key, Value: value}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.C)
	}
	return nil
}
