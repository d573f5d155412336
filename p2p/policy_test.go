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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationForKnownReasons(t *testing.T) {
	cases := []struct {
		reason   SuspendReason
		expected time.Duration
	}{
		{ReasonUnresponsive, time.Minute},
		{ReasonBadResponse, 10 * time.Minute},
		{ReasonInvalidVersion, time.Hour},
		{ReasonBlacklisted, 24 * time.Hour},
		{ReasonForkCauser, 24 * time.Hour},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, DurationFor(c.reason))
	}
}

func TestDurationForUnknownReasonFallsBackToUnresponsive(t *testing.T) {
	assert.Equal(t, DurationFor(ReasonUnresponsive), DurationFor(SuspendReason("made-up")))
}
