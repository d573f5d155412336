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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPreservesKindAcrossWrapping(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := classify(KindTimeout, base)

	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, base))
}

func TestKindOfUnclassifiedErrorIsEmpty(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestClassifiedErrorsWithSameKindAreGroupable(t *testing.T) {
	// The whole point of Kind existing (spec.md §9's design note) is that
	// two distinct errors of the same kind group under one map key, unlike
	// the raw error values which would never compare equal.
	a := classify(KindUnresponsive, fmt.Errorf("peer 1 timed out"))
	b := classify(KindUnresponsive, fmt.Errorf("peer 2 timed out"))

	grouped := make(map[Kind]int)
	grouped[KindOf(a)]++
	grouped[KindOf(b)]++

	assert.Len(t, grouped, 1)
	assert.Equal(t, 2, grouped[KindUnresponsive])
}
