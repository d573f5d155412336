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
	"time"
)

// Logger is the sink every component writes structured lines to. Satisfied
// by *rlog.Logger; kept as an interface here so the core never imports the
// logging package directly (spec.md design note: replace the global app
// container with explicit dependency injection).
type Logger interface {
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
}

// Emitter publishes named lifecycle events, satisfied by *event.Emitter.
type Emitter interface {
	Emit(name string, payload interface{})
}

// SeedPeer is a statically configured bootstrap peer, as read from
// AppConfig's "peers.list".
type SeedPeer struct {
	IP      string
	Port    uint16
	Version string
}

// Config is the slice of node configuration the monitor needs, injected
// rather than resolved through a process-wide service locator.
type Config struct {
	SeedPeers           []SeedPeer
	Nethash             string
	MinimumVersions     string // semver constraint, e.g. ">=2.0.0 <3.0.0"
	Blacklist           []string
	GlobalTimeout       time.Duration
	ColdStart           time.Duration
	MinimumNetworkReach int
	MaxPeersBroadcast   int
	MaxPeers            int
	NodeVersion         string // version given to configured seeds that have none (see populateSeedPeers)
}

// LastBlock is the chain head as reported by the blockchain collaborator.
type LastBlock struct {
	Height uint64
	ID     string
}

// State exposes the subset of chain/consensus state the monitor reads.
// ForkedBlock is non-nil when a prior fork check recorded which peer
// caused the rollback, consumed by refreshPeersAfterFork.
type State interface {
	GetLastBlock() LastBlock
	ForkedBlock() *ForkedBlock
}

// ForkedBlock names the peer whose report triggered a detected fork.
type ForkedBlock struct {
	IP string
}

// Blockchain exposes the block-ping bookkeeping used to damp rebroadcast
// fan-out, and whether the node is ready to participate in gossip at all.
type Blockchain interface {
	Ready() bool
	GetBlockPing(blockID string) (BlockPing, bool)
}

// Slots reports the current consensus slot number.
type Slots interface {
	CurrentSlot() uint64
}

// Transport is the out-of-scope wire-level layer (spec.md §1): a raw
// unary RPC call to a single peer, addressed as
// "<prefix>.<version>.<method>" over whatever socket/worker-pool
// implementation the node uses. Communicator (communicator.go) is the
// in-core façade built on top of it; the core never calls Transport
// methods directly except through that façade.
type Transport interface {
	GetStatus(ctx context.Context, p *Peer) (Status, error)
	GetPeers(ctx context.Context, p *Peer) ([]SeedPeer, error)
	GetCommonBlocks(ctx context.Context, p *Peer, ids []string) (*BlockHeader, error)
	DownloadBlocks(ctx context.Context, p *Peer, fromHeight uint64) ([]BlockHeader, error)
	PostBlock(ctx context.Context, p *Peer, block BlockHeader) error
	PostTransactions(ctx context.Context, p *Peer, txs []string) error
}

// Communicator is the in-core façade described in spec.md §4.3: unary
// operations over Transport, each with a default timeout and ping
// caching, updating peer state from replies.
type Communicator interface {
	Ping(ctx context.Context, p *Peer, timeout time.Duration, forcePing bool) (Status, error)
	GetPeers(ctx context.Context, p *Peer) ([]SeedPeer, error)
	GetStatus(ctx context.Context, p *Peer) (Status, error)
	GetCommonBlocks(ctx context.Context, p *Peer, ids []string) (*BlockHeader, error)
	HasCommonBlocks(ctx context.Context, p *Peer, ids []string) (uint64, bool, error)
	DownloadBlocks(ctx context.Context, p *Peer, fromHeight uint64) ([]BlockHeader, error)
	PostBlock(ctx context.Context, p *Peer, block BlockHeader) error
	PostTransactions(ctx context.Context, p *Peer, txs []string) error
}
