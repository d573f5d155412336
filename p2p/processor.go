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
	"time"

	"github.com/Masterminds/semver"
)

// AcceptOptions tunes validateAndAcceptPeer's behavior for the two call
// sites that use it: seeding (quieter, still policy-checked) and discovery
// (lessVerbose, high volume).
type AcceptOptions struct {
	Seed        bool
	LessVerbose bool
}

// Result is the outcome of validateAndAcceptPeer.
type Result struct {
	Accepted bool
	Reason   SuspendReason // set when !Accepted
	Err      error
}

// Processor is the admission-control component: it decides whether a
// candidate peer is allowed in, and owns the bookkeeping for suspensions.
type Processor struct {
	storage *Storage
	comm    Communicator
	cfg     Config
	log     Logger

	versionConstraint *semver.Constraints
	blacklist         map[string]struct{}
}

// NewProcessor builds a Processor bound to storage, ready to validate
// candidates against cfg's blacklist/minimumVersions/nethash.
func NewProcessor(storage *Storage, comm Communicator, cfg Config, log Logger) (*Processor, error) {
	bl := make(map[string]struct{}, len(cfg.Blacklist))
	for _, ip := range cfg.Blacklist {
		bl[ip] = struct{}{}
	}
	p := &Processor{storage: storage, comm: comm, cfg: cfg, log: log, blacklist: bl}
	if cfg.MinimumVersions != "" {
		c, err := semver.NewConstraint(cfg.MinimumVersions)
		if err != nil {
			return nil, fmt.Errorf("invalid minimumVersions constraint %q: %w", cfg.MinimumVersions, err)
		}
		p.versionConstraint = c
	}
	return p, nil
}

// ValidateAndAcceptPeer rejects a candidate whose IP is blacklisted, whose
// version fails the configured semver constraint, or whose nethash
// mismatches ours, or whose acceptance would push the active set past
// cfg.MaxPeers. Accepted candidates are inserted into storage and probed
// once, best-effort; a failed initial ping suspends them as unresponsive
// rather than leaving a dead entry in the active set.
//
// Seed peers go through the exact same checks (spec.md §4.2): the only
// difference is verbosity. Note that a seed candidate's Version, as set by
// populateSeedPeers (monitor.go), is the local node's own NodeVersion
// whenever the configured seed has none — that inherited-version behavior
// looks backwards (a seed should describe itself, not us) but it is
// preserved intentionally per spec.md §9's open question, not "fixed"
// here.
func (p *Processor) ValidateAndAcceptPeer(ctx context.Context, candidate *Peer, opts AcceptOptions) Result {
	logf := p.log.Debug
	if !opts.LessVerbose && !opts.Seed {
		logf = p.log.Info
	}

	if p.cfg.MaxPeers > 0 && !p.storage.HasPeer(candidate.IP) && p.storage.Count() >= p.cfg.MaxPeers {
		logf("Rejecting peer, active set already at maxPeers", "ip", candidate.IP, "maxPeers", p.cfg.MaxPeers)
		return Result{Accepted: false}
	}

	if _, blacklisted := p.blacklist[candidate.IP]; blacklisted {
		logf("Rejecting blacklisted peer", "ip", candidate.IP)
		p.suspendCandidate(candidate, ReasonBlacklisted)
		return Result{Reason: ReasonBlacklisted, Err: classify(KindBlacklisted, fmt.Errorf("%s is blacklisted", candidate.IP))}
	}

	if p.versionConstraint != nil {
		v, err := semver.NewVersion(candidate.Version)
		if err != nil || !p.versionConstraint.Check(v) {
			logf("Rejecting peer with incompatible version", "ip", candidate.IP, "version", candidate.Version)
			p.suspendCandidate(candidate, ReasonInvalidVersion)
			return Result{Reason: ReasonInvalidVersion, Err: classify(KindVersionMismatch, fmt.Errorf("version %q does not satisfy %q", candidate.Version, p.cfg.MinimumVersions))}
		}
	}

	if p.cfg.Nethash != "" && candidate.Nethash != "" && candidate.Nethash != p.cfg.Nethash {
		logf("Rejecting peer on a different chain", "ip", candidate.IP, "nethash", candidate.Nethash)
		p.suspendCandidate(candidate, ReasonInvalidVersion)
		return Result{Reason: ReasonInvalidVersion, Err: classify(KindNethashMismatch, fmt.Errorf("nethash %q != %q", candidate.Nethash, p.cfg.Nethash))}
	}

	p.storage.SetPeer(candidate)
	logf("Accepted peer", "ip", candidate.IP, "seed", opts.Seed)

	if _, err := p.comm.Ping(ctx, candidate, p.cfg.GlobalTimeout, true); err != nil {
		logf("Initial ping failed, suspending", "ip", candidate.IP, "err", err)
		p.Suspend(candidate.IP, ReasonUnresponsive, 0)
		return Result{Accepted: true, Reason: ReasonUnresponsive, Err: err}
	}
	return Result{Accepted: true}
}

func (p *Processor) suspendCandidate(candidate *Peer, reason SuspendReason) {
	p.storage.SetSuspendedPeer(SuspendedPeer{
		Peer:   candidate,
		Until:  time.Now().Add(DurationFor(reason)),
		Reason: reason,
	})
}

// Suspend moves ip from the active set to the suspended set. If duration
// is zero, the reason's configured default (policy.go) is used.
func (p *Processor) Suspend(ip string, reason SuspendReason, duration time.Duration) {
	peer := p.storage.GetPeer(ip)
	if peer == nil {
		if sp, ok := p.storage.GetSuspendedPeer(ip); ok {
			peer = sp.Peer
		} else {
			return
		}
	}
	if duration == 0 {
		duration = DurationFor(reason)
	}
	p.storage.SetSuspendedPeer(SuspendedPeer{
		Peer:   peer,
		Until:  time.Now().Add(duration),
		Reason: reason,
	})
	p.log.Info("Suspended peer", "ip", ip, "reason", reason, "duration", duration)
}

// ResetSuspendedPeers drops suspensions whose Until has already passed,
// making those peers eligible for re-acceptance.
func (p *Processor) ResetSuspendedPeers() {
	now := time.Now()
	for ip, sp := range p.storage.GetSuspendedPeers() {
		if now.After(sp.Until) {
			p.storage.ForgetSuspendedPeer(ip)
			p.log.Debug("Suspension expired", "ip", ip, "reason", sp.Reason)
		}
	}
}
