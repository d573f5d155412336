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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Nethash:         "main",
		MinimumVersions: ">=2.0.0",
		Blacklist:       []string{"10.0.0.99"},
		NodeVersion:     "2.0.0",
	}
}

func TestValidateAndAcceptPeerRejectsBlacklisted(t *testing.T) {
	storage := NewStorage()
	comm := newFakeComm()
	proc, err := NewProcessor(storage, comm, testConfig(), testLogger{})
	require.NoError(t, err)

	candidate := NewPeer("10.0.0.99", 4000, "2.0.0", "main")
	result := proc.ValidateAndAcceptPeer(context.Background(), candidate, AcceptOptions{})

	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonBlacklisted, result.Reason)
	assert.True(t, storage.HasSuspendedPeer(candidate.IP))
	assert.False(t, storage.HasPeer(candidate.IP))
}

func TestValidateAndAcceptPeerRejectsBadVersion(t *testing.T) {
	storage := NewStorage()
	comm := newFakeComm()
	proc, err := NewProcessor(storage, comm, testConfig(), testLogger{})
	require.NoError(t, err)

	candidate := NewPeer("10.0.0.1", 4000, "1.0.0", "main")
	result := proc.ValidateAndAcceptPeer(context.Background(), candidate, AcceptOptions{})

	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonInvalidVersion, result.Reason)
}

func TestValidateAndAcceptPeerRejectsNethashMismatch(t *testing.T) {
	storage := NewStorage()
	comm := newFakeComm()
	proc, err := NewProcessor(storage, comm, testConfig(), testLogger{})
	require.NoError(t, err)

	candidate := NewPeer("10.0.0.2", 4000, "2.0.0", "other")
	result := proc.ValidateAndAcceptPeer(context.Background(), candidate, AcceptOptions{})

	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonInvalidVersion, result.Reason)
}

func TestValidateAndAcceptPeerAcceptsAndPings(t *testing.T) {
	storage := NewStorage()
	comm := newFakeComm()
	ip := "10.0.0.3"
	comm.pingStatus[ip] = Status{Height: 10, Header: BlockHeader{ID: "b10", Height: 10}}
	proc, err := NewProcessor(storage, comm, testConfig(), testLogger{})
	require.NoError(t, err)

	candidate := NewPeer(ip, 4000, "2.0.0", "main")
	result := proc.ValidateAndAcceptPeer(context.Background(), candidate, AcceptOptions{})

	assert.True(t, result.Accepted)
	assert.True(t, storage.HasPeer(ip))
	assert.Equal(t, 1, comm.pingCalls[ip])
}

func TestValidateAndAcceptPeerSuspendsOnFailedInitialPing(t *testing.T) {
	storage := NewStorage()
	comm := newFakeComm()
	ip := "10.0.0.4"
	comm.pingErr[ip] = unresponsiveErr()
	proc, err := NewProcessor(storage, comm, testConfig(), testLogger{})
	require.NoError(t, err)

	candidate := NewPeer(ip, 4000, "2.0.0", "main")
	result := proc.ValidateAndAcceptPeer(context.Background(), candidate, AcceptOptions{})

	assert.True(t, result.Accepted)
	assert.Equal(t, ReasonUnresponsive, result.Reason)
	assert.False(t, storage.HasPeer(ip))
	assert.True(t, storage.HasSuspendedPeer(ip))
}

func TestValidateAndAcceptPeerIsIdempotent(t *testing.T) {
	storage := NewStorage()
	comm := newFakeComm()
	ip := "10.0.0.5"
	comm.pingStatus[ip] = Status{Height: 1, Header: BlockHeader{ID: "b1", Height: 1}}
	proc, err := NewProcessor(storage, comm, testConfig(), testLogger{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		candidate := NewPeer(ip, 4000, "2.0.0", "main")
		proc.ValidateAndAcceptPeer(context.Background(), candidate, AcceptOptions{})
	}

	assert.Equal(t, 1, storage.Count())
}

func TestResetSuspendedPeersDropsExpiredOnly(t *testing.T) {
	storage := NewStorage()
	comm := newFakeComm()
	proc, err := NewProcessor(storage, comm, testConfig(), testLogger{})
	require.NoError(t, err)

	expired := NewPeer("10.0.0.6", 4000, "2.0.0", "main")
	storage.SetPeer(expired)
	proc.Suspend(expired.IP, ReasonUnresponsive, -time.Second)

	live := NewPeer("10.0.0.7", 4000, "2.0.0", "main")
	storage.SetPeer(live)
	proc.Suspend(live.IP, ReasonUnresponsive, time.Hour)

	proc.ResetSuspendedPeers()

	assert.False(t, storage.HasSuspendedPeer(expired.IP))
	assert.True(t, storage.HasSuspendedPeer(live.IP))
}
