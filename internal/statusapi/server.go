// Copyright 2017 The go-probeum Authors
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

// Package statusapi exposes a minimal read-only HTTP surface over the
// monitor's network-state derivations, for operators and monitoring
// sidecars that don't want to scrape logs (SPEC_FULL.md §4).
package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/probechain/relay/p2p"
)

// Server is a read-only status endpoint backed by a *p2p.Monitor.
type Server struct {
	monitor *p2p.Monitor
	storage *p2p.Storage
	router  *httprouter.Router
}

// New builds a Server; call Handler() to get an http.Handler to serve.
func New(monitor *p2p.Monitor, storage *p2p.Storage) *Server {
	s := &Server{monitor: monitor, storage: storage, router: httprouter.New()}
	s.router.GET("/network/state", s.handleNetworkState)
	s.router.GET("/network/health", s.handleNetworkHealth)
	s.router.GET("/peers", s.handlePeers)
	return s
}

// Handler returns the http.Handler to mount or pass to http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.router }

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleNetworkState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	state := s.monitor.GetNetworkState(r.Context())
	writeJSON(w, struct {
		Height            uint64  `json:"height"`
		PBFTForgingStatus float64 `json:"pbftForgingStatus"`
		GroupCount        int     `json:"groupCount"`
	}{state.Height, state.PBFTForgingStatus, len(state.PeersByHeader)})
}

func (s *Server) handleNetworkHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := s.monitor.CheckNetworkHealth(r.Context())
	writeJSON(w, status)
}

type peerView struct {
	IP      string `json:"ip"`
	Port    uint16 `json:"port"`
	Height  uint64 `json:"height"`
	Forked  bool   `json:"forked"`
	Version string `json:"version"`
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	peers := s.storage.GetPeers()
	out := make([]peerView, 0, len(peers))
	for _, p := range peers {
		out = append(out, peerView{IP: p.IP, Port: p.Port, Height: p.State().Height, Forked: p.IsForked(), Version: p.Version})
	}
	writeJSON(w, out)
}
