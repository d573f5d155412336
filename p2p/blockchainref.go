// Copyright 2014 The go-probeum Authors
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

package p2p

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// ReferenceBlockchain is a minimal Blockchain implementation: the real
// block/transaction storage and chain logic are out of scope (spec.md
// §1), but the monitor still needs something to observe BlockPing records
// against. RecordObservation is meant to be called by whatever in-scope
// component receives inbound blocks over the wire, each time the same
// block is seen again, so broadcastBlock's hop-count decay has real data
// to read.
//
// The LRU cap bounds memory to recently-relevant blocks only; a block that
// scrolls out of the window was, by construction, broadcast long enough
// ago that further hop-count damping no longer matters.
type ReferenceBlockchain struct {
	ready int32 // atomic bool
	pings *lru.Cache
}

// NewReferenceBlockchain returns a Blockchain backed by an LRU of at most
// capacity recent BlockPing records.
func NewReferenceBlockchain(capacity int) *ReferenceBlockchain {
	cache, _ := lru.New(capacity)
	return &ReferenceBlockchain{pings: cache}
}

// SetReady flips the readiness flag broadcastBlock checks before sending
// anything.
func (b *ReferenceBlockchain) SetReady(ready bool) {
	v := int32(0)
	if ready {
		v = 1
	}
	atomic.StoreInt32(&b.ready, v)
}

// Ready implements Blockchain.
func (b *ReferenceBlockchain) Ready() bool { return atomic.LoadInt32(&b.ready) == 1 }

// RecordObservation bumps the ping count for block, initializing First on
// the first sighting and always refreshing Last.
func (b *ReferenceBlockchain) RecordObservation(block BlockHeader) BlockPing {
	now := time.Now()
	if cached, ok := b.pings.Get(block.ID); ok {
		ping := cached.(BlockPing)
		ping.Count++
		ping.Last = now
		b.pings.Add(block.ID, ping)
		return ping
	}
	ping := BlockPing{Block: block, Count: 1, First: now, Last: now}
	b.pings.Add(block.ID, ping)
	return ping
}

// GetBlockPing implements Blockchain.
func (b *ReferenceBlockchain) GetBlockPing(blockID string) (BlockPing, bool) {
	cached, ok := b.pings.Get(blockID)
	if !ok {
		return BlockPing{}, false
	}
	return cached.(BlockPing), true
}
