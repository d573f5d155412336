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

// Package p2p implements the relay node's peer-to-peer network monitor:
// peer lifecycle management, network-state aggregation, fork detection and
// broadcast dispatch. It knows nothing about the wire codec or the block
// format; those are injected through the Communicator, Blockchain and State
// interfaces in collaborators.go.
package p2p

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// BlockHeader is the minimal block summary a peer reports about its chain
// head. The full block type lives in the (out of scope) blockchain layer;
// the monitor only ever needs height and id.
type BlockHeader struct {
	Height uint64 `json:"height"`
	ID     string `json:"id"`
}

// Status is what a successful ping/getStatus call returns.
type Status struct {
	Height         uint64      `json:"height"`
	CurrentSlot    uint64      `json:"currentSlot"`
	ForgingAllowed bool        `json:"forgingAllowed"`
	Header         BlockHeader `json:"header"`
}

// Verification records the outcome of a fork check against a peer: whether
// it disagrees with our chain, and the highest block height we both agree
// on. A nil *Verification means "not yet verified" and excludes the peer
// from fork-majority calculations (spec.md §3 invariants).
type Verification struct {
	Forked              bool
	HighestCommonHeight uint64
}

// PeerState is the mutable, probe-refreshed half of a Peer.
type PeerState struct {
	Height         uint64
	CurrentSlot    uint64
	ForgingAllowed bool
	Header         BlockHeader
	LastPinged     *time.Time
}

// Peer is one network participant, keyed by IP.
type Peer struct {
	mu sync.RWMutex

	IP      string
	Port    uint16
	Version string
	Nethash string

	state        PeerState
	verification *Verification
}

// NewPeer builds a Peer record from admission-time metadata. State fields
// are zero until the first successful ping.
func NewPeer(ip string, port uint16, version, nethash string) *Peer {
	return &Peer{IP: ip, Port: port, Version: version, Nethash: nethash}
}

// Addr returns the dialable "ip:port" string for this peer.
func (p *Peer) Addr() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(int(p.Port)))
}

// State returns a copy of the peer's current mutable state, safe to read
// without holding any lock afterward.
func (p *Peer) State() PeerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// HasState reports whether the peer has ever answered a probe.
func (p *Peer) HasState() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.LastPinged != nil
}

// SetState overwrites the peer's mutable state from a fresh Status reply.
// Serializing writes here is the extra discipline spec.md §5 calls for
// beyond the lastPinged cache: two concurrent probes of the same peer must
// not tear the struct.
func (p *Peer) SetState(s Status, pinged time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = PeerState{
		Height:         s.Height,
		CurrentSlot:    s.CurrentSlot,
		ForgingAllowed: s.ForgingAllowed,
		Header:         s.Header,
		LastPinged:     &pinged,
	}
}

// SetHeight is used by downloadBlocks to bump the peer's observed height
// without disturbing the rest of its cached state (spec.md §4.3).
func (p *Peer) SetHeight(height uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Height = height
}

// LastPinged returns the last successful probe time, or the zero value if
// the peer has never been probed.
func (p *Peer) LastPinged() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.state.LastPinged == nil {
		return time.Time{}
	}
	return *p.state.LastPinged
}

// SetVerification records the outcome of a fork check.
func (p *Peer) SetVerification(v *Verification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verification = v
}

// Verification returns the peer's current fork-check result, or nil if it
// has not been verified yet.
func (p *Peer) Verification() *Verification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.verification
}

// IsForked is true iff the peer has been verified and found to disagree
// with our chain.
func (p *Peer) IsForked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.verification != nil && p.verification.Forked
}

// SuspendReason enumerates why a peer was moved to the suspended set.
type SuspendReason string

const (
	ReasonUnresponsive   SuspendReason = "unresponsive"
	ReasonInvalidVersion SuspendReason = "invalid-version"
	ReasonBlacklisted    SuspendReason = "blacklisted"
	ReasonBadResponse    SuspendReason = "bad-response"
	ReasonForkCauser     SuspendReason = "forked-fork-causer"
)

// SuspendedPeer is a peer on timeout: retained so it is not re-accepted
// before Until, but excluded from probing and broadcast.
type SuspendedPeer struct {
	Peer   *Peer
	Until  time.Time
	Reason SuspendReason
}

func (s SuspendedPeer) String() string {
	return fmt.Sprintf("%s (%s until %s)", s.Peer.IP, s.Reason, s.Until.Format(time.RFC3339))
}

// BlockPing tracks how many times a given block has been re-observed
// locally, used to damp rebroadcast fan-out in broadcastBlock. Owned, per
// spec.md §3, by the blockchain collaborator; p2p only ever reads it
// through the Blockchain interface.
type BlockPing struct {
	Block BlockHeader
	Count uint
	First time.Time
	Last  time.Time
}

// NetworkState is an on-demand snapshot of aggregate peer knowledge.
type NetworkState struct {
	Height             uint64
	PBFTForgingStatus  float64
	PeersByHeader      map[BlockHeader]int
}

// NetworkStatus is the result of a fork check.
type NetworkStatus struct {
	Forked           bool
	BlocksToRollback uint64
}
