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

	mapset "github.com/deckarep/golang-set"
)

// Storage is the in-memory peer registry: an active set and a suspended
// set, keyed by IP, with the invariant that an IP is never in both at
// once (spec.md §3, §8 property 1). The two mapset.Set instances exist
// purely to make that invariant cheap to assert and to give O(1)
// membership checks independent of the backing maps below.
type Storage struct {
	mu sync.RWMutex

	peers          map[string]*Peer
	suspended      map[string]SuspendedPeer
	activeIPs      mapset.Set
	suspendedIPs   mapset.Set
}

// NewStorage returns an empty registry.
func NewStorage() *Storage {
	return &Storage{
		peers:        make(map[string]*Peer),
		suspended:    make(map[string]SuspendedPeer),
		activeIPs:    mapset.NewSet(),
		suspendedIPs: mapset.NewSet(),
	}
}

// SetPeer inserts or replaces the active peer record for p.IP. It never
// leaves an IP in both sets: a previous suspension for the same IP is
// cleared.
func (s *Storage) SetPeer(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.suspended, p.IP)
	s.suspendedIPs.Remove(p.IP)
	s.peers[p.IP] = p
	s.activeIPs.Add(p.IP)
}

// GetPeer returns the active peer for ip, or nil if there is none.
func (s *Storage) GetPeer(ip string) *Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers[ip]
}

// HasPeer reports whether ip is in the active set.
func (s *Storage) HasPeer(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeIPs.Contains(ip)
}

// ForgetPeer removes ip from the active set. Idempotent.
func (s *Storage) ForgetPeer(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, ip)
	s.activeIPs.Remove(ip)
}

// GetPeers returns a snapshot copy of the active peer set; callers may
// range over it while Storage is concurrently mutated.
func (s *Storage) GetPeers() []*Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Count returns the number of active peers.
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// SetSuspendedPeer moves sp.Peer.IP into the suspended set, removing it
// from the active set in the same step.
func (s *Storage) SetSuspendedPeer(sp SuspendedPeer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, sp.Peer.IP)
	s.activeIPs.Remove(sp.Peer.IP)
	s.suspended[sp.Peer.IP] = sp
	s.suspendedIPs.Add(sp.Peer.IP)
}

// GetSuspendedPeer returns the suspension record for ip and whether one
// exists.
func (s *Storage) GetSuspendedPeer(ip string) (SuspendedPeer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.suspended[ip]
	return sp, ok
}

// HasSuspendedPeer reports whether ip is currently suspended.
func (s *Storage) HasSuspendedPeer(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suspendedIPs.Contains(ip)
}

// GetSuspendedPeers returns a snapshot copy of the suspended set, keyed by
// IP.
func (s *Storage) GetSuspendedPeers() map[string]SuspendedPeer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]SuspendedPeer, len(s.suspended))
	for ip, sp := range s.suspended {
		out[ip] = sp
	}
	return out
}

// ForgetSuspendedPeer removes ip from the suspended set. Idempotent.
func (s *Storage) ForgetSuspendedPeer(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.suspended, ip)
	s.suspendedIPs.Remove(ip)
}
