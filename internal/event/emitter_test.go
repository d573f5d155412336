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

package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDeliversToSubscriber(t *testing.T) {
	e := NewEmitter()
	ch, unsubscribe := e.Subscribe("peer.removed")
	defer unsubscribe()

	e.Emit("peer.removed", "10.0.0.1")

	select {
	case payload := <-ch:
		assert.Equal(t, "10.0.0.1", payload)
	case <-time.After(time.Second):
		t.Fatal("expected payload was never delivered")
	}
}

func TestEmitIgnoresOtherEventNames(t *testing.T) {
	e := NewEmitter()
	ch, unsubscribe := e.Subscribe("peer.removed")
	defer unsubscribe()

	e.Emit("peer.added", "10.0.0.2")

	select {
	case payload := <-ch:
		t.Fatalf("unexpected payload on unrelated subscription: %v", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitWithNoSubscribersDoesNotBlock(t *testing.T) {
	e := NewEmitter()
	done := make(chan struct{})
	go func() {
		e.Emit("nothing.listening", 1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked with no subscribers")
	}
}

func TestEmitNeverBlocksOnFullSubscriberBuffer(t *testing.T) {
	e := NewEmitter()
	_, unsubscribe := e.Subscribe("flood")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ { // far more than the subscriber's buffer
			e.Emit("flood", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked once the subscriber channel filled up")
	}
}

func TestUnsubscribeStopsFurtherDelivery(t *testing.T) {
	e := NewEmitter()
	ch, unsubscribe := e.Subscribe("peer.removed")
	unsubscribe()

	e.Emit("peer.removed", "10.0.0.3")

	_, open := <-ch
	require.False(t, open, "channel should be closed after unsubscribe")
}
