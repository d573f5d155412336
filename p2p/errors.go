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

import "fmt"

// Kind classifies a peer-facing error. The source this spec was distilled
// from grouped peer errors by using the error value itself as a map key,
// which only worked by accident (it coerced to a string). We tag errors
// explicitly instead so grouping in cleanPeers is well-defined regardless
// of the wrapped message (per REDESIGN FLAGS in spec.md §9).
type Kind string

const (
	KindUnresponsive      Kind = "unresponsive"
	KindTimeout           Kind = "timeout"
	KindTransport         Kind = "transport"
	KindBadResponse       Kind = "bad-response"
	KindValidation        Kind = "validation"
	KindAppNotReady       Kind = "app-not-ready"
	KindVersionMismatch   Kind = "version-mismatch"
	KindNethashMismatch   Kind = "nethash-mismatch"
	KindBlacklisted       Kind = "blacklisted"
	KindForkCauser        Kind = "fork-causer"
	KindNoViablePeers     Kind = "no-viable-peers"
	KindNoSeedsConfigured Kind = "no-seeds-configured"
)

// classifiedError wraps an underlying cause with a stable Kind tag.
type classifiedError struct {
	kind  Kind
	cause error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return string(e.kind)
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *classifiedError) Unwrap() error { return e.cause }

// classify wraps err with kind. If err is nil, classify returns nil.
func classify(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: kind, cause: err}
}

// KindOf extracts the Kind tag from an error produced by classify, or ""
// if err was not one of ours.
func KindOf(err error) Kind {
	var ce *classifiedError
	for err != nil {
		if c, ok := err.(*classifiedError); ok {
			ce = c
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if ce == nil {
		return ""
	}
	return ce.kind
}
