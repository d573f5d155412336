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
	"sync"
	"time"
)

func unixNow() int64 { return time.Now().Unix() }

// ReferenceState is a minimal State implementation: the chain/consensus
// state store itself is out of scope (spec.md §1), but the monitor needs
// something to ask for LastBlock and ForkedBlock.
type ReferenceState struct {
	mu     sync.RWMutex
	last   LastBlock
	forked *ForkedBlock
}

// NewReferenceState seeds the state with last as the initial chain head.
func NewReferenceState(last LastBlock) *ReferenceState {
	return &ReferenceState{last: last}
}

// SetLastBlock updates the chain head, e.g. after a local block import.
func (s *ReferenceState) SetLastBlock(last LastBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = last
}

// GetLastBlock implements State.
func (s *ReferenceState) GetLastBlock() LastBlock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// SetForkedBlock records which peer caused the most recent detected fork,
// read by RefreshPeersAfterFork. The record stays until SetForkedBlock is
// called again (nil clears it).
func (s *ReferenceState) SetForkedBlock(fb *ForkedBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forked = fb
}

// ForkedBlock implements State.
func (s *ReferenceState) ForkedBlock() *ForkedBlock {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forked
}

// ReferenceSlots is a minimal Slots implementation driven by a fixed
// slot duration and epoch, the way delegate-forging slot numbers are
// typically derived (out of scope per spec.md §1 beyond the interface).
type ReferenceSlots struct {
	epoch        int64
	slotDuration int64
	now          func() int64
}

// NewReferenceSlots returns Slots counting slotSeconds-wide slots since
// epochUnix.
func NewReferenceSlots(epochUnix int64, slotSeconds int64) *ReferenceSlots {
	return &ReferenceSlots{epoch: epochUnix, slotDuration: slotSeconds, now: unixNow}
}

// CurrentSlot implements Slots.
func (s *ReferenceSlots) CurrentSlot() uint64 {
	elapsed := s.now() - s.epoch
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / s.slotDuration)
}
