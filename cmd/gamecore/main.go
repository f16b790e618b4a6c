// Command gamecore runs an empty game node: it loads configuration, starts the
// actor system with its idle sweeper, and shuts it down on SIGINT/SIGTERM.
// Game servers embed the packages directly; this binary is a smoke test for a
// deployment's configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/amp-labs/amp-gamecore/actor"
	"github.com/amp-labs/amp-gamecore/config"
	"github.com/amp-labs/amp-gamecore/logger"
	"github.com/amp-labs/amp-gamecore/shutdown"
	"github.com/amp-labs/amp-gamecore/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := shutdown.SetupHandler(logger.WithSubsystem(context.Background(), "gamecore"))

	providers, err := telemetry.Initialize(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}

	shutdown.BeforeShutdown("telemetry", providers.Shutdown)

	log := logger.ConfigureFromConfig("gamecore", cfg.Log)

	sys, err := actor.NewSystemFromConfig(cfg)
	if err != nil {
		return err
	}

	shutdown.BeforeShutdown("actor-system", sys.Close)

	log.Info("game node started",
		"node", sys.NodeID().String(),
		"pool_size", cfg.Actor.PoolSize,
		"throughput", cfg.Actor.Throughput,
		"compression", cfg.Wire.Compression)

	sys.RunSweeper(ctx)

	log.Info("game node stopped", "node", sys.NodeID().String())

	return nil
}
