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

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// pingFreshness is how long a cached ping reply is considered good enough
// to skip a remote round trip (spec.md §4.3, "recentlyPinged").
const pingFreshness = 8 * time.Second

const maxGetPeersResults = 100

// communicator is the reference Communicator implementation: it wraps a
// Transport with the caching, timeout and state-update logic spec.md §4.3
// assigns to the core, plus a per-peer rate limiter so a flaky peer can't
// be re-dialed by unforced pings faster than globalTimeout intends; forced
// pings (forcePing) are never held back by the limiter.
type communicator struct {
	transport      Transport
	log            Logger
	globalTimeout  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewCommunicator builds the core's Communicator over transport.
func NewCommunicator(transport Transport, globalTimeout time.Duration, log Logger) Communicator {
	return &communicator{
		transport:     transport,
		log:           log,
		globalTimeout: globalTimeout,
		limiters:      make(map[string]*rate.Limiter),
	}
}

func (c *communicator) limiterFor(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[ip]
	if !ok {
		// One call per globalTimeout window, bursting to 2 so the initial
		// admission ping and the first scheduled probe don't contend.
		l = rate.NewLimiter(rate.Every(c.globalTimeout), 2)
		c.limiters[ip] = l
	}
	return l
}

func (c *communicator) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = c.globalTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Ping returns cached state if the peer answered within pingFreshness and
// forcePing is false; otherwise it issues a fresh getStatus call. An
// unforced ping that the peer's rate limiter rejects fails as unresponsive
// without a call.
func (c *communicator) Ping(ctx context.Context, p *Peer, timeout time.Duration, forcePing bool) (Status, error) {
	if !forcePing && c.recentlyPinged(p) {
		s := p.State()
		return Status{Height: s.Height, CurrentSlot: s.CurrentSlot, ForgingAllowed: s.ForgingAllowed, Header: s.Header}, nil
	}
	if !c.limiterFor(p.IP).Allow() && !forcePing {
		return Status{}, classify(KindUnresponsive, fmt.Errorf("rate limited"))
	}

	reqID := uuid.New().String()
	cctx, cancel := c.withTimeout(ctx, timeout)
	defer cancel()

	status, err := c.transport.GetStatus(cctx, p)
	if err != nil {
		if cctx.Err() != nil {
			c.log.Debug("ping timed out", "ip", p.IP, "req", reqID)
			return Status{}, classify(KindTimeout, err)
		}
		c.log.Debug("ping transport error", "ip", p.IP, "req", reqID, "err", err)
		return Status{}, classify(KindUnresponsive, err)
	}
	if !validStatus(status) {
		return Status{}, classify(KindBadResponse, fmt.Errorf("malformed status reply from %s", p.IP))
	}
	now := time.Now()
	p.SetState(status, now)
	return status, nil
}

func validStatus(s Status) bool {
	return s.Header.ID != ""
}

func (c *communicator) recentlyPinged(p *Peer) bool {
	last := p.LastPinged()
	if last.IsZero() {
		return false
	}
	return time.Since(last) < pingFreshness
}

func (c *communicator) GetStatus(ctx context.Context, p *Peer) (Status, error) {
	return c.Ping(ctx, p, c.globalTimeout, true)
}

func (c *communicator) GetPeers(ctx context.Context, p *Peer) ([]SeedPeer, error) {
	cctx, cancel := c.withTimeout(ctx, c.globalTimeout)
	defer cancel()
	list, err := c.transport.GetPeers(cctx, p)
	if err != nil {
		if cctx.Err() != nil {
			return nil, classify(KindTimeout, err)
		}
		return nil, classify(KindTransport, err)
	}
	if len(list) > maxGetPeersResults {
		list = list[:maxGetPeersResults]
	}
	return list, nil
}

func (c *communicator) GetCommonBlocks(ctx context.Context, p *Peer, ids []string) (*BlockHeader, error) {
	cctx, cancel := c.withTimeout(ctx, c.globalTimeout)
	defer cancel()
	h, err := c.transport.GetCommonBlocks(cctx, p, ids)
	if err != nil {
		if cctx.Err() != nil {
			return nil, classify(KindTimeout, err)
		}
		return nil, classify(KindTransport, err)
	}
	return h, nil
}

// HasCommonBlocks is GetCommonBlocks reshaped into the boolean-plus-height
// form spec.md §4.3 names separately.
func (c *communicator) HasCommonBlocks(ctx context.Context, p *Peer, ids []string) (uint64, bool, error) {
	h, err := c.GetCommonBlocks(ctx, p, ids)
	if err != nil {
		return 0, false, err
	}
	if h == nil {
		return 0, false, nil
	}
	return h.Height, true, nil
}

func (c *communicator) DownloadBlocks(ctx context.Context, p *Peer, fromHeight uint64) ([]BlockHeader, error) {
	cctx, cancel := c.withTimeout(ctx, c.globalTimeout)
	defer cancel()
	blocks, err := c.transport.DownloadBlocks(cctx, p, fromHeight)
	if err != nil {
		if cctx.Err() != nil {
			return nil, classify(KindTimeout, err)
		}
		return nil, classify(KindTransport, err)
	}
	var highest uint64
	for _, b := range blocks {
		if b.Height > highest {
			highest = b.Height
		}
	}
	if len(blocks) > 0 {
		p.SetHeight(highest)
	}
	return blocks, nil
}

func (c *communicator) PostBlock(ctx context.Context, p *Peer, block BlockHeader) error {
	cctx, cancel := c.withTimeout(ctx, c.globalTimeout)
	defer cancel()
	if err := c.transport.PostBlock(cctx, p, block); err != nil {
		if cctx.Err() != nil {
			return classify(KindTimeout, err)
		}
		return classify(KindValidation, err)
	}
	return nil
}

func (c *communicator) PostTransactions(ctx context.Context, p *Peer, txs []string) error {
	cctx, cancel := c.withTimeout(ctx, c.globalTimeout)
	defer cancel()
	if err := c.transport.PostTransactions(cctx, p, txs); err != nil {
		if cctx.Err() != nil {
			return classify(KindTimeout, err)
		}
		return classify(KindValidation, err)
	}
	return nil
}
