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

import "time"

// suspendDuration is the open-question table spec.md §9 asks the
// implementer to define: how long a peer sits out for each reason.
//
//   - unresponsive / bad-response are transient network conditions; a
//     short timeout lets a peer that was merely overloaded or rebooting
//     rejoin soon.
//   - invalid-version / blacklisted are configuration-level rejections
//     that won't resolve themselves inside a session; a long timeout
//     avoids re-validating (and re-logging) the same rejection every
//     discovery pass.
//   - forked-fork-causer is the severest: a peer that caused us to roll
//     back gets the longest timeout, since re-admitting it promptly risks
//     immediately re-triggering the same rollback.
var suspendDuration = map[SuspendReason]time.Duration{
	ReasonUnresponsive:   1 * time.Minute,
	ReasonBadResponse:    10 * time.Minute,
	ReasonInvalidVersion: 1 * time.Hour,
	ReasonBlacklisted:    24 * time.Hour,
	ReasonForkCauser:     24 * time.Hour,
}

// DurationFor returns the configured suspension window for reason, falling
// back to the unresponsive duration for unknown reasons.
func DurationFor(reason SuspendReason) time.Duration {
	if d, ok := suspendDuration[reason]; ok {
		return d
	}
	return suspendDuration[ReasonUnresponsive]
}
