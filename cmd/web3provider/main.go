// Command web3provider sends wallet provider requests to a host reached
// over a websocket bridge.
//
// Usage:
//
//	web3provider --config config.yaml call --network ethereum --method eth_requestAccounts
//	web3provider --config config.yaml call --network solana --method signMessage --params '{"message":"0x68656c6c6f"}'
//	web3provider --config config.yaml networks
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sigweihq/web3provider/pkg/adapter"
	"github.com/sigweihq/web3provider/pkg/bridge"
	"github.com/sigweihq/web3provider/pkg/config"
	"github.com/sigweihq/web3provider/pkg/types"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("web3provider failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "web3provider",
		Usage: "send wallet provider requests to a websocket host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration",
				EnvVars: []string{"WEB3PROVIDER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "call",
				Usage:  "issue one request through a provider and print the JSON result",
				Action: callAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "network", Aliases: []string{"n"}, Required: true, Usage: "provider network"},
					&cli.StringFlag{Name: "method", Aliases: []string{"m"}, Required: true, Usage: "provider method"},
					&cli.StringFlag{Name: "params", Aliases: []string{"p"}, Usage: "request params as JSON"},
					&cli.StringFlag{Name: "bridge", Usage: "websocket host URL (overrides bridge.url)"},
					&cli.DurationFlag{Name: "timeout", Value: time.Minute, Usage: "how long to wait for the host"},
				},
			},
			{
				Name:   "networks",
				Usage:  "list the configured provider networks",
				Action: networksAction,
			},
		},
	}
}

func newLogger(c *cli.Context) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})), nil
}

func callAction(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	network := c.String("network")
	cfg.Networks = []string{network}
	cfg.Adapter.Strategy = string(adapter.StrategyCallback)
	if url := c.String("bridge"); url != "" {
		cfg.Bridge.URL = url
	}
	if cfg.Bridge.URL == "" {
		return fmt.Errorf("no bridge URL: set bridge.url or pass --bridge")
	}

	var params any
	if raw := c.String("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return fmt.Errorf("invalid params: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
	defer cancel()

	client, err := bridge.Dial(ctx, cfg.Bridge.URL, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	registry, err := config.BuildRegistry(cfg, client.Handler(), logger)
	if err != nil {
		return err
	}
	go func() {
		if err := client.Run(ctx, registry); err != nil && ctx.Err() == nil {
			logger.Error("bridge stopped", "error", err)
		}
	}()

	provider, err := registry.Get(network)
	if err != nil {
		return err
	}

	res, err := provider.Request(ctx, types.Request{Method: c.String("method"), Params: params})
	if err != nil {
		return fmt.Errorf("%s %s: %w", network, c.String("method"), err)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

func networksAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, network := range cfg.Networks {
		fmt.Fprintln(c.App.Writer, network)
	}
	return nil
}
