package router

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"screen-capture/src/messages"
)

// subscriber holds the channel of one registered component
type subscriber struct {
	ch      chan messages.MessageEnvelope
	dropped atomic.Int64
}

// Router fans events out to registered components. Direct sends wait up to
// SendTimeout; broadcasts never block and drop events for full subscribers.
type Router struct {
	mu          sync.RWMutex
	subs        map[string]*subscriber
	ctx         context.Context
	cancel      context.CancelFunc
	logMessages bool

	SendTimeout time.Duration
}

// New creates a router
func New() *Router {
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		subs:        make(map[string]*subscriber),
		ctx:         ctx,
		cancel:      cancel,
		SendTimeout: 5 * time.Second,
	}
}

// Subscribe registers a component and returns its inbox
func (r *Router) Subscribe(name string, buffer int) (<-chan messages.MessageEnvelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return nil, fmt.Errorf("router is shut down")
	}
	if _, exists := r.subs[name]; exists {
		return nil, fmt.Errorf("component %s already subscribed", name)
	}
	s := &subscriber{ch: make(chan messages.MessageEnvelope, buffer)}
	r.subs[name] = s
	log.Printf("Router: subscribed %s (buffer %d)", name, buffer)
	return s.ch, nil
}

// Unsubscribe removes a component and closes its inbox
func (r *Router) Unsubscribe(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.subs[name]; ok {
		close(s.ch)
		delete(r.subs, name)
		log.Printf("Router: unsubscribed %s", name)
	}
}

// Send delivers an envelope to one component, or to all when To is "*"
func (r *Router) Send(env messages.MessageEnvelope) error {
	if env.To == "*" {
		r.Publish(env.From, env.Message)
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.logMessages {
		log.Printf("Router: %s -> %s: %s", env.From, env.To, env.Message.Type())
	}
	s, ok := r.subs[env.To]
	if !ok {
		return fmt.Errorf("component %s not found", env.To)
	}

	timer := time.NewTimer(r.SendTimeout)
	defer timer.Stop()
	select {
	case s.ch <- env:
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout sending %s to %s", env.Message.Type(), env.To)
	case <-r.ctx.Done():
		return fmt.Errorf("router is shutting down")
	}
}

// Publish broadcasts msg to every component except the sender
func (r *Router) Publish(from string, msg messages.Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.ctx.Err() != nil {
		return
	}
	if r.logMessages {
		log.Printf("Router: broadcast %s from %s", msg.Type(), from)
	}
	for name, s := range r.subs {
		if name == from {
			continue
		}
		select {
		case s.ch <- messages.MessageEnvelope{From: from, To: name, Message: msg}:
		default:
			if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
				log.Printf("Router: %s inbox full, dropped %d events", name, n)
			}
		}
	}
}

// Publisher returns a function publishing as component from
func (r *Router) Publisher(from string) func(messages.Message) {
	return func(msg messages.Message) { r.Publish(from, msg) }
}

// Subscribers returns the subscribed component names, sorted
func (r *Router) Subscribers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.subs))
	for name := range r.subs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Backlog returns the number of queued envelopes per component
func (r *Router) Backlog() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int, len(r.subs))
	for name, s := range r.subs {
		stats[name] = len(s.ch)
	}
	return stats
}

// SetMessageLogging enables or disables per-message logging
func (r *Router) SetMessageLogging(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logMessages = enabled
}

// Shutdown closes every inbox; later publishes are ignored
func (r *Router) Shutdown() {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.subs {
		close(s.ch)
		delete(r.subs, name)
	}
	log.Printf("Router: shutdown complete")
}

// WaitForMessage waits for a message of the given type, skipping others
func WaitForMessage(ch <-chan messages.MessageEnvelope, messageType string, timeout time.Duration) (messages.MessageEnvelope, error) {
	deadline := time.After(timeout)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return messages.MessageEnvelope{}, fmt.Errorf("channel closed waiting for %s", messageType)
			}
			if env.Message.Type() == messageType {
				return env, nil
			}
		case <-deadline:
			return messages.MessageEnvelope{}, fmt.Errorf("timeout waiting for message type %s", messageType)
		}
	}
}

// DrainChannel discards queued messages and returns how many were dropped
func DrainChannel(ch <-chan messages.MessageEnvelope) int {
	count := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return count
			}
			count++
		default:
			return count
		}
	}
}
