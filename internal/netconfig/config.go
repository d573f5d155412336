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

// Package netconfig is the on-disk node configuration: a typed Config
// loaded from a TOML file, with a Defaults value new installs start from
// and CLI flags layered on top.
package netconfig

import (
	"os"
	"time"

	"github.com/naoina/toml"

	"github.com/probechain/relay/p2p"
)

// SeedPeerConfig is the on-disk shape of one entry under peers.list.
type SeedPeerConfig struct {
	IP      string `toml:"ip"`
	Port    uint16 `toml:"port"`
	Version string `toml:"version,omitempty"`
}

// Config is the on-disk configuration for the relay node's peer monitor.
type Config struct {
	Peers struct {
		List []SeedPeerConfig `toml:"list"`
	} `toml:"peers"`

	Nethash             string   `toml:"nethash"`
	MinimumVersions     string   `toml:"minimumVersions"`
	Blacklist           []string `toml:"blacklist"`
	GlobalTimeoutMS     int      `toml:"globalTimeout"`
	ColdStartSeconds    int      `toml:"coldStart"`
	MinimumNetworkReach int      `toml:"minimumNetworkReach"`
	MaxPeersBroadcast   int      `toml:"maxPeersBroadcast"`
	MaxPeers            int      `toml:"maxPeers"`
	NodeVersion         string   `toml:"nodeVersion"`

	CacheFile string `toml:"cacheFile"`
	StatusAddr string `toml:"statusAddr"`

	DNSProbes []string `toml:"dnsProbes"`
	NTPProbes []string `toml:"ntpProbes"`
}

// Defaults holds the values Load starts from before applying a config file.
var Defaults = Config{
	GlobalTimeoutMS:     3000,
	ColdStartSeconds:    30,
	MinimumNetworkReach: 3,
	MaxPeersBroadcast:   30,
	MaxPeers:            200,
	NodeVersion:         "1.0.0",
	CacheFile:           "peers.dump.json",
	StatusAddr:          "127.0.0.1:9901",
	MinimumVersions:     ">=1.0.0",
	DNSProbes:           []string{"pool.ntp.org"},
	NTPProbes:           []string{"pool.ntp.org"},
}

// Load parses a TOML config file at path, falling back to Defaults for
// any zero-valued field the file doesn't set.
func Load(path string) (Config, error) {
	cfg := Defaults
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ToCoreConfig adapts the on-disk shape into p2p.Config, the type the
// monitor actually consumes.
func (c Config) ToCoreConfig() p2p.Config {
	seeds := make([]p2p.SeedPeer, 0, len(c.Peers.List))
	for _, s := range c.Peers.List {
		seeds = append(seeds, p2p.SeedPeer{IP: s.IP, Port: s.Port, Version: s.Version})
	}
	return p2p.Config{
		SeedPeers:           seeds,
		Nethash:             c.Nethash,
		MinimumVersions:     c.MinimumVersions,
		Blacklist:           c.Blacklist,
		GlobalTimeout:       time.Duration(c.GlobalTimeoutMS) * time.Millisecond,
		ColdStart:           time.Duration(c.ColdStartSeconds) * time.Second,
		MinimumNetworkReach: c.MinimumNetworkReach,
		MaxPeersBroadcast:   c.MaxPeersBroadcast,
		MaxPeers:            c.MaxPeers,
		NodeVersion:         c.NodeVersion,
	}
}
