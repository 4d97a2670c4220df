// Command forward runs the preconf-rpc forwarding gateway: it tracks each
// configured chain's preconfer lookahead and proxies JSON-RPC bodies to the
// validator elected for the next usable slot (spec §6).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/gattaca-com/preconf-rpc/beaconclient"
	"github.com/gattaca-com/preconf-rpc/broadcast"
	"github.com/gattaca-com/preconf-rpc/common"
	"github.com/gattaca-com/preconf-rpc/config"
	"github.com/gattaca-com/preconf-rpc/lookahead"
	"github.com/gattaca-com/preconf-rpc/relayclient"
	"github.com/gattaca-com/preconf-rpc/server"
)

const headEventBroadcastCapacity = 16

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	app := &cli.App{
		Name:  "forward",
		Usage: "preconf-rpc forwarding gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Required: true, Usage: "path to the TOML config file"},
			&cli.StringSliceFlag{Name: "beacon-urls", Usage: "replace beacon-nodes from the config file"},
			&cli.IntFlag{Name: "port", Value: 8000, Usage: "HTTP listen port"},
		},
		Action: func(c *cli.Context) error {
			return run(log, c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("fatal startup error")
	}
}

func run(log *logrus.Entry, c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	beaconURLs := cfg.BeaconNodes
	if extra := c.StringSlice("beacon-urls"); len(extra) > 0 {
		beaconURLs = extra
	}
	if len(beaconURLs) == 0 {
		return fmt.Errorf("%w: no beacon-nodes configured", common.ErrConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients := make([]*beaconclient.BeaconClient, 0, len(beaconURLs))
	for _, u := range beaconURLs {
		clients = append(clients, beaconclient.New(log, u))
	}
	multi := beaconclient.NewMultiBeaconClient(log, clients)

	managers := buildManagers(log, cfg)

	headEvents := broadcast.New[common.HeadEvent](headEventBroadcastCapacity)
	multi.SubscribeToHeadEvents(ctx, func(e common.HeadEvent) { headEvents.Publish(e) })

	for _, manager := range managers {
		if err := manager.RunProvider(ctx, headEvents.Subscribe()); err != nil {
			return fmt.Errorf("starting lookahead provider: %w", err)
		}
	}

	handler := server.NewHandler(log, func(chainID uint16) (*lookahead.Manager, bool) {
		m, ok := managers[chainID]
		return m, ok
	})

	addr := fmt.Sprintf("0.0.0.0:%d", c.Int("port"))
	httpServer := &http.Server{Addr: addr, Handler: handler.Router()}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.WithField("addr", addr).Info("starting forward gateway")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// buildManagers constructs one lookahead.Manager per configured chain,
// wiring each chain's relay clients, URL-resolution policy, and provider
// (relay-backed, or none when no relays are configured). Every relay
// client is built with GetLookaheadEnabled taken from the chain's
// resolved config value, which defaults to true (spec §4.3; ground truth:
// original_source/src/lookahead/provider.rs's
// `RelayClientConfig::new(url, true)`).
func buildManagers(log *logrus.Entry, cfg *config.Config) map[uint16]*lookahead.Manager {
	managers := make(map[uint16]*lookahead.Manager, len(cfg.Lookahead))

	for _, chainCfg := range cfg.Lookahead {
		chainCfg := chainCfg

		table := lookahead.NewTable()

		var resolver lookahead.URLResolver
		switch chainCfg.URLProvider {
		case config.URLProviderRegistry:
			resolver = lookahead.RegistryURLResolver{Registry: chainCfg.ParsedRegistry}
		default:
			resolver = lookahead.LookaheadURLResolver{}
		}

		relayClients := make([]*relayclient.Client, 0, len(chainCfg.Relays))
		for _, relayURL := range chainCfg.Relays {
			relayClients = append(relayClients, relayclient.New(log, relayclient.Config{
				URL:                 relayURL,
				GetLookaheadEnabled: chainCfg.ResolvedGetLookaheadEnabled(),
			}))
		}

		var provider lookahead.Provider
		if len(relayClients) == 0 {
			provider = lookahead.NoneProvider{}
		} else {
			provider = lookahead.NewRelayProvider(log, table, relayClients, chainCfg.ParsedRegistry, chainCfg.FetchCadence)
		}

		managers[chainCfg.ChainID] = lookahead.NewManager(log, table, provider, resolver)
	}

	return managers
}
