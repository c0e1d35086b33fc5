/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package events implements the in-process broadcast channel the playout
// engine publishes on. Subscribers (UI sync, loggers, now-playing exporters)
// receive events independently and never block the publisher.
package events

import (
	"sync"
	"time"
)

// Type enumerates playout event categories.
type Type string

const (
	TypeTrackStarted   Type = "track_started"
	TypeTrackFinished  Type = "track_finished"
	TypeSilenceSkipped Type = "silence_skipped"
	TypeLevelUpdate    Type = "level_update"
	TypeIntroStarted   Type = "intro_started"
	TypeError          Type = "error"
	TypeStateChanged   Type = "state_changed"
)

// Event is a single playout event. Fields are populated per type: track
// events carry index/artist/title, level updates carry RMS, errors carry
// Message.
type Event struct {
	Type           Type          `json:"type"`
	At             time.Time     `json:"at"`
	TrackIndex     int           `json:"track_index,omitempty"`
	Artist         string        `json:"artist,omitempty"`
	Title          string        `json:"title,omitempty"`
	PlayedDuration time.Duration `json:"played_duration,omitempty"`
	RMS            float64       `json:"rms,omitempty"`
	State          string        `json:"state,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// Subscriber receives events.
type Subscriber chan Event

// Bus implements a simple in-process pubsub. Publish never blocks: a
// subscriber that has fallen behind misses events rather than stalling the
// engine loop.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]Subscriber
	all    []Subscriber
	onDrop func(Type)
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Type][]Subscriber)}
}

// OnDrop registers a callback invoked whenever an event is dropped because a
// subscriber's buffer is full. Set it before the bus is in use.
func (b *Bus) OnDrop(fn func(Type)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = fn
}

// Subscribe registers a subscriber for the given event types. With no types
// it receives every event.
func (b *Bus) Subscribe(types ...Type) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(types) == 0 {
		b.all = append(b.all, ch)
		return ch
	}
	for _, t := range types {
		b.subs[t] = append(b.subs[t], ch)
	}
	return ch
}

// Publish sends the event to subscribers. The lock is held across the
// non-blocking sends so Unsubscribe cannot close a channel mid-delivery.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[event.Type] {
		b.send(sub, event)
	}
	for _, sub := range b.all {
		b.send(sub, event)
	}
}

func (b *Bus) send(sub Subscriber, event Event) {
	select {
	case sub <- event:
	default:
		if b.onDrop != nil {
			b.onDrop(event.Type)
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.subs {
		b.subs[t] = removeSub(subs, sub)
	}
	b.all = removeSub(b.all, sub)
	close(sub)
}

func removeSub(subs []Subscriber, target Subscriber) []Subscriber {
	for i, candidate := range subs {
		if candidate == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
