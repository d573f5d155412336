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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

// seedCache persists the peer snapshot spec.md §6 describes ("a prior
// run's dump", format {ip, port, version}) and watches the file for
// out-of-band updates so a co-located tool can refresh the seed list
// without a restart.
type seedCache struct {
	path string
	log  Logger

	mu       sync.Mutex
	watching bool
	stopCh   chan struct{}
}

// NewSeedCache returns a cache bound to the JSON dump at path.
func NewSeedCache(path string, log Logger) *seedCache {
	return &seedCache{path: path, log: log}
}

// Load reads the persisted snapshot. A missing file is not an error: it
// simply means there is nothing to restore yet.
func (c *seedCache) Load() ([]SeedPeer, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var peers []SeedPeer
	if err := json.Unmarshal(data, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// Dump writes the current peer set to disk, best-effort.
func (c *seedCache) Dump(peers []SeedPeer) error {
	data, err := json.MarshalIndent(peers, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// RunDumpLoop periodically dumps the live peer list from source until
// stop is closed, best-effort (errors are logged, never fatal).
func (c *seedCache) RunDumpLoop(stop <-chan struct{}, interval time.Duration, source func() []SeedPeer) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := c.Dump(source()); err != nil {
				c.log.Warn("Could not dump peer snapshot", "path", c.path, "err", err)
			}
		}
	}
}

// Watch starts watching the snapshot file for external changes, invoking
// onChange with the freshly reloaded peer list whenever the file is
// written by another process. Returns a stop function.
func (c *seedCache) Watch(onChange func([]SeedPeer)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watching {
		return func() {}, nil
	}

	events := make(chan notify.EventInfo, 4)
	if err := notify.Watch(filepath.Dir(c.path)+"/...", events, notify.Write, notify.Create); err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	c.watching = true
	c.stopCh = stop

	go func() {
		defer notify.Stop(events)
		for {
			select {
			case <-stop:
				return
			case ev := <-events:
				if filepath.Clean(ev.Path()) != filepath.Clean(c.path) {
					continue
				}
				peers, err := c.Load()
				if err != nil {
					c.log.Warn("Could not reload peer snapshot after external change", "err", err)
					continue
				}
				onChange(peers)
			}
		}
	}()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.watching {
			close(stop)
			c.watching = false
		}
	}, nil
}
