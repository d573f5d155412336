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

package wire

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probechain/relay/p2p"
)

func peerAt(t *testing.T, server *httptest.Server) *p2p.Peer {
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return p2p.NewPeer(host, uint16(port), "2.0.0", "main")
}

func TestHTTPTransportGetStatusCallsExpectedEndpoint(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(p2p.Status{Height: 7})
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	status, err := transport.GetStatus(context.Background(), peerAt(t, server))

	require.NoError(t, err)
	assert.Equal(t, uint64(7), status.Height)
	assert.Equal(t, "/p2p.peer.getStatus", gotPath)
}

func TestHTTPTransportPostBlockReturnsErrorOnRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(struct {
			Success bool `json:"success"`
		}{Success: false})
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	err := transport.PostBlock(context.Background(), peerAt(t, server), p2p.BlockHeader{ID: "b1", Height: 1})
	assert.Error(t, err)
}

func TestHTTPTransportNonOKStatusIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	transport := NewHTTPTransport(nil)
	_, err := transport.GetStatus(context.Background(), peerAt(t, server))
	assert.Error(t, err)
}
