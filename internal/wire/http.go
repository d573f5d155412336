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

// Package wire is a reference implementation of p2p.Transport: the
// wire-level socket server and worker pool are explicitly out of core
// scope (spec.md §1), so this is a stand-in HTTP client, addressing peers
// as "<prefix>.<version>.<method>" per spec.md §6, built directly on
// net/http rather than any corpus dependency — there is no peer-RPC
// client library anywhere in the example corpus this module was grounded
// on, and the transport itself is explicitly named out of scope, so
// reaching for the standard library here does not trade away any domain
// dependency the spec asks us to exercise.
package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/probechain/relay/p2p"
)

const prefix = "p2p"
const version = "peer"

// HTTPTransport implements p2p.Transport over plain JSON-over-HTTP unary
// calls to "http://<ip>:<port>/<prefix>.<version>.<method>".
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a Transport using client, or a new http.Client
// with a 10-second timeout if client is nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPTransport{client: client}
}

func endpoint(p *p2p.Peer, method string) string {
	return fmt.Sprintf("http://%s/%s.%s.%s", p.Addr(), prefix, version, method)
}

func (t *HTTPTransport) call(ctx context.Context, p *p2p.Peer, method string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(p, method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s replied %d: %s", p.IP, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (t *HTTPTransport) GetStatus(ctx context.Context, p *p2p.Peer) (p2p.Status, error) {
	var out p2p.Status
	err := t.call(ctx, p, "getStatus", struct{}{}, &out)
	return out, err
}

func (t *HTTPTransport) GetPeers(ctx context.Context, p *p2p.Peer) ([]p2p.SeedPeer, error) {
	var out []p2p.SeedPeer
	err := t.call(ctx, p, "getPeers", struct{}{}, &out)
	return out, err
}

func (t *HTTPTransport) GetCommonBlocks(ctx context.Context, p *p2p.Peer, ids []string) (*p2p.BlockHeader, error) {
	var out *p2p.BlockHeader
	err := t.call(ctx, p, "getCommonBlocks", struct {
		IDs []string `json:"ids"`
	}{IDs: ids}, &out)
	return out, err
}

func (t *HTTPTransport) DownloadBlocks(ctx context.Context, p *p2p.Peer, fromHeight uint64) ([]p2p.BlockHeader, error) {
	var out []p2p.BlockHeader
	err := t.call(ctx, p, "downloadBlocks", struct {
		From uint64 `json:"fromHeight"`
	}{From: fromHeight}, &out)
	return out, err
}

func (t *HTTPTransport) PostBlock(ctx context.Context, p *p2p.Peer, block p2p.BlockHeader) error {
	var ack struct {
		Success bool `json:"success"`
	}
	if err := t.call(ctx, p, "postBlock", block, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("peer rejected block %s", block.ID)
	}
	return nil
}

func (t *HTTPTransport) PostTransactions(ctx context.Context, p *p2p.Peer, txs []string) error {
	var ack struct {
		Success         bool     `json:"success"`
		TransactionsIDs []string `json:"transactionsIds"`
	}
	if err := t.call(ctx, p, "postTransactions", struct {
		Transactions []string `json:"transactions"`
	}{Transactions: txs}, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("peer rejected transactions")
	}
	return nil
}
