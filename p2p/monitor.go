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
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultDiscoveryInterval = 600 * time.Second
	minPeersDiscoveryRetry   = 5 * time.Second
	minQueriedPeers          = 4
	maxHop                   = 4
	aggregationWindow        = 500 * time.Millisecond
)

// StartOptions mirrors spec.md §6's start(options) surface.
type StartOptions struct {
	DNS                      []string
	NTP                      []string
	NetworkStart             bool
	SkipDiscovery            bool
	DisableDiscovery         bool
	IgnoreMinimumNetworkReach bool
}

// Monitor is the control plane: component 4 of spec.md §2, driving the
// Processor and Communicator, reading/writing Storage, and reacting to the
// blockchain layer's broadcast/sync calls.
type Monitor struct {
	storage *Storage
	proc    *Processor
	comm    Communicator
	cfg     Config
	log     Logger
	emitter Emitter
	state   State
	chain   Blockchain
	slots   Slots
	cache   *seedCache

	coldStartUntil atomic.Value // time.Time, set once by Start

	initializing     int32 // atomic bool
	ignoreMinReach   int32 // atomic bool, set from StartOptions

	scheduleMu sync.Mutex
	scheduled  bool
	cancelNext context.CancelFunc

	testing bool // makes updateNetworkStatus a no-op (no discovery pass, no rescheduling) for unit tests
}

// NewMonitor wires the four components together. comm must be non-nil
// (NewCommunicator(transport, ...) builds one over a Transport) — Monitor
// only ever talks to the Communicator interface.
func NewMonitor(storage *Storage, proc *Processor, comm Communicator, cfg Config, log Logger, emitter Emitter, state State, chain Blockchain, slots Slots) *Monitor {
	m := &Monitor{
		storage: storage,
		proc:    proc,
		comm:    comm,
		cfg:     cfg,
		log:     log,
		emitter: emitter,
		state:   state,
		chain:   chain,
		slots:   slots,
	}
	m.coldStartUntil.Store(time.Time{})
	return m
}

// SetSeedCache attaches the persisted-peer-snapshot reader/writer (see
// seedcache.go). Optional: a monitor without one simply never restores or
// dumps peers across restarts.
func (m *Monitor) SetSeedCache(c *seedCache) { m.cache = c }

// IsColdStartActive reports whether the cold-start window (set once by
// Start) has not yet elapsed. Read concurrently without synchronization
// beyond the atomic.Value store/load: it is written exactly once, before
// any concurrent reader exists (spec.md §9 design note).
func (m *Monitor) IsColdStartActive() bool {
	until, _ := m.coldStartUntil.Load().(time.Time)
	return time.Now().Before(until)
}

// Start implements spec.md §4.4.1.
func (m *Monitor) Start(ctx context.Context, opts StartOptions) error {
	atomic.StoreInt32(&m.initializing, 1)
	defer atomic.StoreInt32(&m.initializing, 0)

	if opts.IgnoreMinimumNetworkReach {
		atomic.StoreInt32(&m.ignoreMinReach, 1)
	}

	m.coldStartUntil.Store(time.Now().Add(m.cfg.ColdStart))

	if len(opts.DNS) > 0 {
		probeDNS(ctx, opts.DNS, m.log)
	}
	if len(opts.NTP) > 0 {
		probeNTP(ctx, opts.NTP, m.log)
	}

	restored := m.restoreCachedPeers()

	if err := m.populateSeedPeers(ctx, restored); err != nil {
		return err
	}

	if opts.SkipDiscovery {
		m.log.Info("Skipping discovery at startup")
		return nil
	}
	m.updateNetworkStatus(ctx, opts)
	return nil
}

func (m *Monitor) restoreCachedPeers() []SeedPeer {
	if m.cache == nil {
		return nil
	}
	restored, err := m.cache.Load()
	if err != nil {
		m.log.Warn("Could not restore cached peers", "err", err)
		return nil
	}
	return restored
}

// populateSeedPeers implements spec.md §4.4.1 step 4: configured seeds
// unioned with any restored peers, each fed through admission control. A
// node with no seeds at all cannot bootstrap and must fail fast.
func (m *Monitor) populateSeedPeers(ctx context.Context, restored []SeedPeer) error {
	if len(m.cfg.SeedPeers) == 0 {
		return classify(KindNoSeedsConfigured, fmt.Errorf("peers.list is empty; a node with no seeds cannot bootstrap"))
	}
	all := append(append([]SeedPeer{}, m.cfg.SeedPeers...), restored...)
	seen := make(map[string]struct{}, len(all))
	for _, sp := range all {
		if _, dup := seen[sp.IP]; dup {
			continue
		}
		seen[sp.IP] = struct{}{}
		version := sp.Version
		if version == "" {
			// Seeds with no advertised version inherit ours. Spec.md §9
			// flags this as suspicious (a seed should describe itself) but
			// preserves the behavior rather than silently dropping it.
			version = m.cfg.NodeVersion
		}
		candidate := NewPeer(sp.IP, sp.Port, version, m.cfg.Nethash)
		m.proc.ValidateAndAcceptPeer(ctx, candidate, AcceptOptions{Seed: true})
	}
	return nil
}

func (m *Monitor) hasMinimumPeers() bool {
	if atomic.LoadInt32(&m.ignoreMinReach) == 1 {
		return true
	}
	reach := m.cfg.MinimumNetworkReach
	if reach <= 0 {
		reach = 1
	}
	return m.storage.Count() >= reach
}

// updateNetworkStatus implements spec.md §4.4.2: discoverPeers then
// cleanPeers, then reschedule itself. Guarded so overlapping triggers
// coalesce into a single pending timer (nextUpdateNetworkStatusScheduled).
func (m *Monitor) updateNetworkStatus(ctx context.Context, opts StartOptions) {
	if opts.NetworkStart || opts.DisableDiscovery || m.testing {
		return
	}
	m.runDiscoveryPass(ctx)
	m.scheduleNext(ctx, opts)
}

func (m *Monitor) runDiscoveryPass(ctx context.Context) {
	if err := m.discoverPeers(ctx); err != nil {
		m.log.Error("discoverPeers failed", "err", err)
	}
	if err := m.cleanPeers(ctx, false, false); err != nil {
		m.log.Error("cleanPeers failed", "err", err)
	}
}

// scheduleNext arms the next discovery pass. Per spec.md §9, this replaces
// the boolean-latch-plus-delay pattern with a single self-rescheduling
// task whose interval is recomputed every pass: a short retry while the
// network hasn't reached minimumNetworkReach, the full interval otherwise.
func (m *Monitor) scheduleNext(ctx context.Context, opts StartOptions) {
	m.scheduleMu.Lock()
	if m.scheduled {
		m.scheduleMu.Unlock()
		return
	}
	m.scheduled = true
	cctx, cancel := context.WithCancel(ctx)
	m.cancelNext = cancel
	m.scheduleMu.Unlock()

	interval := defaultDiscoveryInterval
	if !m.hasMinimumPeers() {
		m.populateSeedPeers(ctx, nil)
		interval = minPeersDiscoveryRetry
	}

	go func() {
		t := time.NewTimer(interval)
		defer t.Stop()
		select {
		case <-cctx.Done():
		case <-t.C:
			m.scheduleMu.Lock()
			m.scheduled = false
			m.scheduleMu.Unlock()
			m.updateNetworkStatus(ctx, opts)
		}
	}()
}

// Stop cancels any pending discovery timer.
func (m *Monitor) Stop() {
	m.scheduleMu.Lock()
	defer m.scheduleMu.Unlock()
	if m.cancelNext != nil {
		m.cancelNext()
	}
	m.scheduled = false
}

// discoverPeers implements spec.md §4.4.3: shuffle, query getPeers from
// each peer in turn, validate every returned candidate in parallel, stop
// once both hasMinimumPeers and at least 4 peers have answered.
func (m *Monitor) discoverPeers(ctx context.Context) error {
	peers := m.storage.GetPeers()
	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })

	queried := 0
	for _, peer := range peers {
		if queried >= minQueriedPeers && m.hasMinimumPeers() {
			break
		}
		list, err := m.comm.GetPeers(ctx, peer)
		if err != nil {
			continue // silently move on, per spec.md §4.4.3
		}
		queried++

		inner, innerCtx := errgroup.WithContext(ctx)
		for _, pi := range list {
			pi := pi
			inner.Go(func() error {
				candidate := NewPeer(pi.IP, pi.Port, pi.Version, m.cfg.Nethash)
				if m.storage.HasPeer(candidate.IP) || m.storage.HasSuspendedPeer(candidate.IP) {
					return nil
				}
				m.proc.ValidateAndAcceptPeer(innerCtx, candidate, AcceptOptions{LessVerbose: true})
				return nil
			})
		}
		if err := inner.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// cleanPeers implements spec.md §4.4.4: ping every current peer in
// parallel with a fast-or-normal timeout, evict everyone who fails,
// grouped by error kind for a single summary log line.
func (m *Monitor) cleanPeers(ctx context.Context, fast, forcePing bool) error {
	if m.IsColdStartActive() {
		return nil
	}
	peers := m.storage.GetPeers()
	total := len(peers)
	if total == 0 {
		return nil
	}
	pingDelay := m.cfg.GlobalTimeout
	if fast {
		pingDelay = 1500 * time.Millisecond
	}

	var unresponsive int32
	var mu sync.Mutex
	grouped := make(map[Kind]int)

	g, gctx := errgroup.WithContext(ctx)
	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			if _, err := m.comm.Ping(gctx, peer, pingDelay, forcePing); err != nil {
				atomic.AddInt32(&unresponsive, 1)
				mu.Lock()
				grouped[KindOf(err)]++
				mu.Unlock()
				m.emitter.Emit("peer.removed", peer)
				m.storage.ForgetPeer(peer.IP)
			}
			return nil
		})
	}
	g.Wait()

	for kind, count := range grouped {
		m.log.Info(fmt.Sprintf("Removed %d peers because of %s", count, kind))
	}
	if atomic.LoadInt32(&m.initializing) == 1 {
		responsive := total - int(unresponsive)
		m.log.Info(fmt.Sprintf("%d of %d responsive", responsive, total),
			"networkHeight", m.getNetworkHeight(), "pbftForgingStatus", m.getPBFTForgingStatus())
	}
	return nil
}

// getNetworkHeight implements spec.md §4.4.5: the lower median of all
// probed peers' reported height.
func (m *Monitor) getNetworkHeight() uint64 {
	var heights []uint64
	for _, p := range m.storage.GetPeers() {
		if !p.HasState() {
			continue
		}
		heights = append(heights, p.State().Height)
	}
	if len(heights) == 0 {
		return 0
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	return heights[len(heights)/2]
}

// getPBFTForgingStatus implements spec.md §4.4.5.
func (m *Monitor) getPBFTForgingStatus() float64 {
	slot := m.slots.CurrentSlot()
	height := m.getNetworkHeight()

	var synced, allowed int
	for _, p := range m.storage.GetPeers() {
		if !p.HasState() {
			continue
		}
		st := p.State()
		if st.CurrentSlot != slot {
			continue
		}
		synced++
		if st.ForgingAllowed && st.Height >= height {
			allowed++
		}
	}
	if synced == 0 {
		return 0
	}
	return float64(allowed) / float64(synced)
}

// GetNetworkState implements spec.md §4.4.6.
func (m *Monitor) GetNetworkState(ctx context.Context) NetworkState {
	if !m.IsColdStartActive() {
		m.cleanPeers(ctx, true, true)
	}
	grouped := make(map[BlockHeader]int)
	for _, p := range m.storage.GetPeers() {
		if !p.HasState() {
			continue
		}
		grouped[p.State().Header]++
	}
	return NetworkState{
		Height:            m.getNetworkHeight(),
		PBFTForgingStatus: m.getPBFTForgingStatus(),
		PeersByHeader:     grouped,
	}
}

// CheckNetworkHealth implements spec.md §4.4.7, fork detection by majority
// vote over verified peers (active and suspended-but-verified).
func (m *Monitor) CheckNetworkHealth(ctx context.Context) NetworkStatus {
	if !m.IsColdStartActive() {
		m.cleanPeers(ctx, false, true)
		m.proc.ResetSuspendedPeers()
	}

	last := m.state.GetLastBlock()

	var verified []*Peer
	for _, p := range m.storage.GetPeers() {
		if p.Verification() != nil {
			verified = append(verified, p)
		}
	}
	for _, sp := range m.storage.GetSuspendedPeers() {
		if sp.Peer.Verification() != nil {
			verified = append(verified, sp.Peer)
		}
	}
	if len(verified) == 0 {
		return NetworkStatus{Forked: false}
	}

	var forkedCount int
	for _, p := range verified {
		if p.IsForked() {
			forkedCount++
		}
	}
	if float64(forkedCount)/float64(len(verified)) < 0.5 {
		return NetworkStatus{Forked: false}
	}

	type group struct {
		height uint64
		count  int
	}
	byHeight := make(map[uint64]int)
	for _, p := range verified {
		byHeight[p.Verification().HighestCommonHeight]++
	}
	var groups []group
	for h, c := range byHeight {
		groups = append(groups, group{height: h, count: c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].height > groups[j].height
	})
	chosen := groups[0]

	var rollback uint64
	if last.Height > chosen.height {
		rollback = last.Height - chosen.height
	}
	return NetworkStatus{Forked: true, BlocksToRollback: rollback}
}

// SyncWithNetwork implements spec.md §4.4.8. The retry is bounded by ctx,
// not by a count: callers (per spec.md's re-architecture note) must supply
// a context with a deadline or cancellation to avoid a tight loop against
// an empty network.
func (m *Monitor) SyncWithNetwork(ctx context.Context, fromHeight uint64) ([]BlockHeader, error) {
	return m.syncWithNetworkRetry(ctx, fromHeight, 0)
}

func (m *Monitor) syncWithNetworkRetry(ctx context.Context, fromHeight uint64, attempt int) ([]BlockHeader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates := m.viableSyncPeers()
	if len(candidates) == 0 {
		return nil, classify(KindNoViablePeers, fmt.Errorf("all either banned or on a different chain"))
	}
	peer := candidates[rand.Intn(len(candidates))]

	blocks, err := m.comm.DownloadBlocks(ctx, peer, fromHeight)
	if err != nil {
		backoff := time.Duration(attempt+1) * 200 * time.Millisecond
		if backoff > 5*time.Second {
			backoff = 5 * time.Second
		}
		m.log.Warn("syncWithNetwork retrying", "peer", peer.IP, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		return m.syncWithNetworkRetry(ctx, fromHeight, attempt+1)
	}
	return blocks, nil
}

func (m *Monitor) viableSyncPeers() []*Peer {
	var out []*Peer
	for _, p := range m.storage.GetPeers() {
		if p.IsForked() {
			continue
		}
		if m.storage.HasSuspendedPeer(p.IP) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// BroadcastBlock implements spec.md §4.4.9.
func (m *Monitor) BroadcastBlock(ctx context.Context, block BlockHeader) {
	if !m.chain.Ready() {
		m.log.Warn("Blockchain not ready, skipping block broadcast", "block", block.ID)
		return
	}

	targets := m.storage.GetPeers()
	if ping, ok := m.chain.GetBlockPing(block.ID); ok {
		targets = m.filterByHopProbability(ctx, block, ping, targets)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, peer := range targets {
		peer := peer
		g.Go(func() error {
			if err := m.comm.PostBlock(gctx, peer, block); err != nil {
				m.log.Debug("postBlock failed", "ip", peer.IP, "err", err)
			}
			return nil
		})
	}
	g.Wait()
}

func (m *Monitor) filterByHopProbability(ctx context.Context, block BlockHeader, ping BlockPing, targets []*Peer) []*Peer {
	diff := ping.Last.Sub(ping.First)
	p := float64(maxHop-int(ping.Count)) / float64(maxHop)

	if diff < aggregationWindow && p > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(aggregationWindow - diff):
		}
		refreshed, ok := m.chain.GetBlockPing(block.ID)
		if !ok || refreshed.Block.ID != block.ID {
			return nil // ping now refers to a different block; abandon broadcast
		}
		p = float64(maxHop-int(refreshed.Count)) / float64(maxHop)
	}
	if p <= 0 {
		return nil
	}
	if p >= 1 {
		return targets
	}
	var kept []*Peer
	for _, peer := range targets {
		if rand.Float64() < p {
			kept = append(kept, peer)
		}
	}
	return kept
}

// BroadcastTransactions implements spec.md §4.4.10.
func (m *Monitor) BroadcastTransactions(ctx context.Context, txs []string) {
	peers := m.storage.GetPeers()
	rand.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })

	max := m.cfg.MaxPeersBroadcast
	if max <= 0 || max > len(peers) {
		max = len(peers)
	}
	peers = peers[:max]

	g, gctx := errgroup.WithContext(ctx)
	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			if err := m.comm.PostTransactions(gctx, peer, txs); err != nil {
				m.log.Debug("postTransactions failed", "ip", peer.IP, "err", err)
			}
			return nil
		})
	}
	g.Wait()
}

// RefreshPeersAfterFork implements spec.md §4.4.11.
func (m *Monitor) RefreshPeersAfterFork(ctx context.Context) {
	m.cleanPeers(ctx, false, true)
	m.proc.ResetSuspendedPeers()

	fb := m.state.ForkedBlock()
	if fb == nil {
		return
	}
	m.proc.Suspend(fb.IP, ReasonForkCauser, DurationFor(ReasonForkCauser))
}
