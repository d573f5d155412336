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

// Command relaynode runs the peer-to-peer network monitor standalone: peer
// discovery and lifecycle, network-state aggregation, fork detection and
// broadcast dispatch, fronted by a read-only status API and a small
// operator console.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/probechain/relay/internal/event"
	"github.com/probechain/relay/internal/netconfig"
	"github.com/probechain/relay/internal/rlog"
	"github.com/probechain/relay/internal/statusapi"
	"github.com/probechain/relay/internal/wire"
	"github.com/probechain/relay/p2p"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to the node's TOML configuration file",
		Value: "relaynode.toml",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "log verbosity (0=crit .. 5=trace)",
		Value: int(rlog.LvlInfo),
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "statusaddr",
		Usage: "address to serve the read-only status API on",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "relaynode"
	app.Usage = "peer-to-peer network monitor for the relay node"
	app.Flags = []cli.Flag{configFlag, verbosityFlag, apiAddrFlag}
	app.Commands = []cli.Command{startCommand, peersCommand, consoleCommand}
	app.Action = func(ctx *cli.Context) error {
		return cli.ShowAppHelp(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildNode wires the collaborators a subcommand needs. Every subcommand
// builds its own set the same way rather than resolving them through a
// shared global.
func buildNode(cliCtx *cli.Context) (*p2p.Monitor, *p2p.Storage, netconfig.Config, error) {
	rlog.SetLevel(rlog.Lvl(cliCtx.GlobalInt(verbosityFlag.Name)))
	log := rlog.New("module", "relaynode")

	cfg, err := netconfig.Load(cliCtx.GlobalString(configFlag.Name))
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("loading config: %w", err)
	}
	coreCfg := cfg.ToCoreConfig()

	emitter := event.NewEmitter()
	storage := p2p.NewStorage()
	transport := wire.NewHTTPTransport(&http.Client{Timeout: coreCfg.GlobalTimeout})
	comm := p2p.NewCommunicator(transport, coreCfg.GlobalTimeout, log)
	proc, err := p2p.NewProcessor(storage, comm, coreCfg, log)
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("building processor: %w", err)
	}
	chain := p2p.NewReferenceBlockchain(1024)
	chain.SetReady(true)
	state := p2p.NewReferenceState(p2p.LastBlock{})
	slots := p2p.NewReferenceSlots(time.Now().Unix(), 10)

	monitor := p2p.NewMonitor(storage, proc, comm, coreCfg, log, emitter, state, chain, slots)

	if cfg.CacheFile != "" {
		seedCache := p2p.NewSeedCache(cfg.CacheFile, log)
		monitor.SetSeedCache(seedCache)
	}
	return monitor, storage, cfg, nil
}

var startCommand = cli.Command{
	Name:   "start",
	Usage:  "start the peer monitor and serve its status API",
	Action: runStart,
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "skip-discovery", Usage: "populate seed peers but do not start the discovery loop"},
	},
}

func runStart(cliCtx *cli.Context) error {
	monitor, storage, cfg, err := buildNode(cliCtx)
	if err != nil {
		return err
	}
	log := rlog.New("module", "relaynode")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("Shutting down")
		monitor.Stop()
		cancel()
	}()

	opts := p2p.StartOptions{
		DNS:           cfg.DNSProbes,
		NTP:           cfg.NTPProbes,
		SkipDiscovery: cliCtx.Bool("skip-discovery"),
	}
	if err := monitor.Start(ctx, opts); err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}

	addr := cliCtx.GlobalString(apiAddrFlag.Name)
	if addr == "" {
		addr = cfg.StatusAddr
	}
	if addr != "" {
		srv := statusapi.New(monitor, storage)
		httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
		go func() {
			log.Info("Serving status API", "addr", addr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("status API stopped", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			httpSrv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	return nil
}

var peersCommand = cli.Command{
	Name:   "peers",
	Usage:  "print the current active and suspended peer tables",
	Action: runPeers,
}

func runPeers(cliCtx *cli.Context) error {
	monitor, storage, _, err := buildNode(cliCtx)
	if err != nil {
		return err
	}
	if err := monitor.Start(context.Background(), p2p.StartOptions{SkipDiscovery: true}); err != nil {
		return err
	}

	printActivePeers(storage)
	printSuspendedPeers(storage)
	return nil
}

func printActivePeers(storage *p2p.Storage) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"IP", "Port", "Version", "Height", "Forked"})
	for _, p := range storage.GetPeers() {
		st := p.State()
		table.Append([]string{
			p.IP,
			fmt.Sprintf("%d", p.Port),
			p.Version,
			fmt.Sprintf("%d", st.Height),
			fmt.Sprintf("%v", p.IsForked()),
		})
	}
	fmt.Println("Active peers:")
	table.Render()
}

func printSuspendedPeers(storage *p2p.Storage) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"IP", "Reason", "Until"})
	for ip, sp := range storage.GetSuspendedPeers() {
		table.Append([]string{ip, string(sp.Reason), sp.Until.Format(time.RFC3339)})
	}
	fmt.Println("Suspended peers:")
	table.Render()
}

var consoleCommand = cli.Command{
	Name:   "console",
	Usage:  "start an interactive console over a monitor built in this process",
	Action: runConsole,
}

// runConsole is a local, single-process REPL: it shares the monitor and
// storage in-process rather than dialing the status API, since the status
// API is read-only and the console needs to trigger actions like
// cleanPeers on demand.
func runConsole(cliCtx *cli.Context) error {
	monitor, storage, _, err := buildNode(cliCtx)
	if err != nil {
		return err
	}
	if err := monitor.Start(context.Background(), p2p.StartOptions{SkipDiscovery: true}); err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("relaynode console. Commands: peers, health, state, quit")
	for {
		input, err := line.Prompt("> ")
		if err != nil {
			return nil
		}
		line.AppendHistory(input)

		switch strings.TrimSpace(input) {
		case "peers":
			printActivePeers(storage)
			printSuspendedPeers(storage)
		case "health":
			status := monitor.CheckNetworkHealth(context.Background())
			fmt.Printf("forked=%v blocksToRollback=%d\n", status.Forked, status.BlocksToRollback)
		case "state":
			state := monitor.GetNetworkState(context.Background())
			fmt.Printf("height=%d pbftForgingStatus=%.2f groups=%d\n", state.Height, state.PBFTForgingStatus, len(state.PeersByHeader))
		case "quit", "exit":
			return nil
		case "":
		default:
			fmt.Println("unknown command")
		}
	}
}
