// Copyright 2016 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package event is a named pub/sub emitter used to publish monitor
// lifecycle events such as "peer.removed" to whatever collaborator
// (metrics, admin API, tests) wants to observe them, without the monitor
// importing those collaborators.
package event

import "sync"

// Emitter publishes named events with an arbitrary payload to any number
// of subscribers. It is not typed per channel, because the core only ever
// emits a handful of distinct event names with heterogeneous payloads.
type Emitter struct {
	mu   sync.RWMutex
	subs map[string][]chan interface{}
}

// NewEmitter returns a ready-to-use Emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[string][]chan interface{})}
}

// Subscribe registers a buffered channel for the named event. The returned
// function unsubscribes and closes the channel.
func (e *Emitter) Subscribe(name string) (<-chan interface{}, func()) {
	ch := make(chan interface{}, 16)
	e.mu.Lock()
	e.subs[name] = append(e.subs[name], ch)
	e.mu.Unlock()

	unsubscribe := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		list := e.subs[name]
		for i, c := range list {
			if c == ch {
				e.subs[name] = append(list[:i], list[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Emit publishes payload to every current subscriber of name. Slow or
// absent subscribers never block the emitter: delivery is best-effort and
// non-blocking, matching the fire-and-forget semantics the monitor expects
// from "peer.removed" notifications.
func (e *Emitter) Emit(name string, payload interface{}) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs[name] {
		select {
		case ch <- payload:
		default:
		}
	}
}
