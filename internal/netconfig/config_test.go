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

package netconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
nethash = "main"
minimumVersions = ">=2.0.0"
blacklist = ["10.0.0.99"]
globalTimeout = 4000
coldStart = 15
minimumNetworkReach = 2
maxPeersBroadcast = 10
maxPeers = 50
nodeVersion = "2.1.0"

[[peers.list]]
ip = "10.0.0.1"
port = 4000
version = "2.0.0"

[[peers.list]]
ip = "10.0.0.2"
port = 4001
`

func writeTempConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "relaynode.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesConfiguredFields(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Nethash)
	assert.Equal(t, ">=2.0.0", cfg.MinimumVersions)
	assert.Equal(t, []string{"10.0.0.99"}, cfg.Blacklist)
	assert.Len(t, cfg.Peers.List, 2)
	assert.Equal(t, "10.0.0.1", cfg.Peers.List[0].IP)
	assert.Equal(t, uint16(4000), cfg.Peers.List[0].Port)
}

func TestLoadFillsUnsetFieldsFromDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, `nethash = "main"`))
	require.NoError(t, err)

	assert.Equal(t, Defaults.StatusAddr, cfg.StatusAddr)
	assert.Equal(t, Defaults.MaxPeers, cfg.MaxPeers)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestToCoreConfigConvertsUnitsAndSeeds(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleTOML))
	require.NoError(t, err)

	core := cfg.ToCoreConfig()
	assert.Equal(t, 4*time.Second, core.GlobalTimeout)
	assert.Equal(t, 15*time.Second, core.ColdStart)
	assert.Len(t, core.SeedPeers, 2)
	assert.Equal(t, "10.0.0.1", core.SeedPeers[0].IP)
	assert.Equal(t, "2.0.0", core.SeedPeers[0].Version)
	assert.Equal(t, "", core.SeedPeers[1].Version)
}
