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
	"context"
	"fmt"
	"sync"
	"time"
)

// testLogger discards everything; the monitor and processor log heavily
// and tests don't want that noise attached to *testing.T output.
type testLogger struct{}

func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Debug(string, ...interface{}) {}

// testEmitter records every emitted event for assertions.
type testEmitter struct {
	mu     sync.Mutex
	events []string
}

func (e *testEmitter) Emit(name string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, name)
}

func (e *testEmitter) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev == name {
			n++
		}
	}
	return n
}

// fakeComm is a scriptable Communicator stand-in so monitor/processor
// tests never need a real network.
type fakeComm struct {
	mu sync.Mutex

	pingErr    map[string]error
	pingStatus map[string]Status
	peers      map[string][]SeedPeer
	downloads  map[string][]BlockHeader
	downloadErr map[string]error

	postBlockErr map[string]error
	postTxErr    map[string]error

	pingCalls      map[string]int
	postBlockCalls map[string]int
}

func newFakeComm() *fakeComm {
	return &fakeComm{
		pingErr:      make(map[string]error),
		pingStatus:   make(map[string]Status),
		peers:        make(map[string][]SeedPeer),
		downloads:    make(map[string][]BlockHeader),
		downloadErr:  make(map[string]error),
		postBlockErr: make(map[string]error),
		postTxErr:    make(map[string]error),
		pingCalls:    make(map[string]int),
		postBlockCalls: make(map[string]int),
	}
}

func (f *fakeComm) Ping(_ context.Context, p *Peer, _ time.Duration, _ bool) (Status, error) {
	f.mu.Lock()
	f.pingCalls[p.IP]++
	f.mu.Unlock()
	if err, ok := f.pingErr[p.IP]; ok {
		return Status{}, err
	}
	st := f.pingStatus[p.IP]
	p.SetState(st, time.Now())
	return st, nil
}

func (f *fakeComm) GetPeers(_ context.Context, p *Peer) ([]SeedPeer, error) {
	return f.peers[p.IP], nil
}

func (f *fakeComm) GetStatus(ctx context.Context, p *Peer) (Status, error) {
	return f.Ping(ctx, p, 0, true)
}

func (f *fakeComm) GetCommonBlocks(context.Context, *Peer, []string) (*BlockHeader, error) {
	return nil, nil
}

func (f *fakeComm) HasCommonBlocks(context.Context, *Peer, []string) (uint64, bool, error) {
	return 0, false, nil
}

func (f *fakeComm) DownloadBlocks(_ context.Context, p *Peer, _ uint64) ([]BlockHeader, error) {
	if err, ok := f.downloadErr[p.IP]; ok {
		return nil, err
	}
	return f.downloads[p.IP], nil
}

func (f *fakeComm) PostBlock(_ context.Context, p *Peer, _ BlockHeader) error {
	f.mu.Lock()
	f.postBlockCalls[p.IP]++
	f.mu.Unlock()
	return f.postBlockErr[p.IP]
}

func (f *fakeComm) PostTransactions(_ context.Context, p *Peer, _ []string) error {
	return f.postTxErr[p.IP]
}

// fakeState is a minimal State for monitor tests.
type fakeState struct {
	mu     sync.Mutex
	last   LastBlock
	forked *ForkedBlock
}

func (s *fakeState) GetLastBlock() LastBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *fakeState) ForkedBlock() *ForkedBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forked
}

// fakeChain is a minimal Blockchain for monitor tests.
type fakeChain struct {
	mu    sync.Mutex
	ready bool
	pings map[string]BlockPing
}

func newFakeChain() *fakeChain {
	return &fakeChain{ready: true, pings: make(map[string]BlockPing)}
}

func (c *fakeChain) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *fakeChain) GetBlockPing(id string) (BlockPing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pings[id]
	return p, ok
}

// fakeSlots always reports slot 0; fork/height tests don't care about
// timing.
type fakeSlots struct{}

func (fakeSlots) CurrentSlot() uint64 { return 0 }

func unresponsiveErr() error { return classify(KindUnresponsive, fmt.Errorf("no reply")) }
