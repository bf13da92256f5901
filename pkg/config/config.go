// Package config loads the provider configuration and bootstraps the
// provider registry from it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/sigweihq/web3provider/pkg/adapter"
	"github.com/sigweihq/web3provider/pkg/chains"
	"github.com/sigweihq/web3provider/pkg/chains/aptos"
	"github.com/sigweihq/web3provider/pkg/chains/bitcoin"
	"github.com/sigweihq/web3provider/pkg/chains/cosmos"
	"github.com/sigweihq/web3provider/pkg/chains/evm"
	"github.com/sigweihq/web3provider/pkg/chains/svm"
	"github.com/sigweihq/web3provider/pkg/chains/ton"
	"github.com/sigweihq/web3provider/pkg/chains/tron"
	"github.com/sigweihq/web3provider/pkg/constants"
	"github.com/sigweihq/web3provider/pkg/utils"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedNetwork = errors.New("unsupported network")

// Config is the top-level configuration
type Config struct {
	Adapter AdapterConfig `yaml:"adapter"`
	Bridge  BridgeConfig  `yaml:"bridge"`

	// Networks lists the providers to create (empty = all supported networks)
	Networks []string `yaml:"networks"`

	Ethereum evm.Config     `yaml:"ethereum"`
	Solana   svm.Config     `yaml:"solana"`
	Cosmos   cosmos.Config  `yaml:"cosmos"`
	Bitcoin  bitcoin.Config `yaml:"bitcoin"`
	Ton      TonConfig      `yaml:"ton"`
	Tron     tron.Config    `yaml:"tron"`
	Aptos    aptos.Config   `yaml:"aptos"`
}

// AdapterConfig selects how host results are delivered
type AdapterConfig struct {
	// Strategy is PROMISES or CALLBACK
	Strategy string `yaml:"strategy"`

	// Timeout rejects callback requests the host never answers (0 = wait for ctx)
	Timeout time.Duration `yaml:"timeout"`
}

// BridgeConfig holds the websocket host settings
type BridgeConfig struct {
	// URL of the websocket host (wss://, or ws:// on loopback)
	URL string `yaml:"url"`
}

// TonConfig is the Ton provider configuration plus its TonConnect bridge
type TonConfig struct {
	ton.Config `yaml:",inline"`

	Bridge ton.BridgeConfig `yaml:"bridge"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Adapter:  AdapterConfig{Strategy: string(adapter.StrategyCallback)},
		Networks: slices.Clone(constants.SupportedNetworks),
		Ethereum: evm.Config{ChainID: "0x1", IsTrust: true},
		Solana:   svm.Config{IsTrust: true},
		Cosmos:   cosmos.Config{IsKeplr: true, IsTrust: true},
		Bitcoin:  bitcoin.Config{Network: "mainnet"},
		Ton:      TonConfig{Config: ton.Config{Version: constants.DefaultTonWalletVersion}},
		Aptos:    aptos.Config{Network: "mainnet", ChainID: "1"},
	}
}

// Load reads configuration from path on top of the defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if len(cfg.Networks) == 0 {
		cfg.Networks = slices.Clone(constants.SupportedNetworks)
	}
	return cfg, nil
}

// Validate checks the strategy, the network list and every URL
func (c *Config) Validate() error {
	if _, err := adapter.ParseStrategy(c.Adapter.Strategy); err != nil {
		return err
	}
	if c.Adapter.Timeout < 0 {
		return fmt.Errorf("adapter timeout must not be negative: %s", c.Adapter.Timeout)
	}

	for _, network := range c.Networks {
		if !slices.Contains(constants.SupportedNetworks, network) {
			return fmt.Errorf("%w: %q", ErrUnsupportedNetwork, network)
		}
	}

	if c.Bridge.URL != "" {
		if err := utils.ValidateBridgeURL(c.Bridge.URL); err != nil {
			return err
		}
	}

	for _, endpoint := range c.Ethereum.Endpoints() {
		if err := utils.ValidateRPCURL(endpoint); err != nil {
			return fmt.Errorf("ethereum: %w", err)
		}
	}
	if c.Solana.Cluster != "" {
		if err := utils.ValidateRPCURL(c.Solana.Cluster); err != nil {
			return fmt.Errorf("solana: %w", err)
		}
	}
	if c.Tron.Node != "" {
		if err := utils.ValidateRPCURL(c.Tron.Node); err != nil {
			return fmt.Errorf("tron: %w", err)
		}
	}
	if _, err := bitcoin.NetworkParams(c.Bitcoin.Network); err != nil {
		return err
	}
	return nil
}

// NewTonBridge creates the TonConnect bridge configured for p
func (c *Config) NewTonBridge(p *ton.Provider) *ton.Bridge {
	return ton.NewBridge(c.Ton.Bridge, p)
}

// Enabled reports whether network is in the network list
func (c *Config) Enabled(network string) bool {
	return slices.Contains(c.Networks, network)
}

// BuildRegistry creates the adapter for handler and every enabled provider
func BuildRegistry(cfg *Config, handler adapter.Handler, logger *slog.Logger) (*chains.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	strategy, _ := adapter.ParseStrategy(cfg.Adapter.Strategy)
	a, err := adapter.New(strategy, handler,
		adapter.WithLogger(logger),
		adapter.WithTimeout(cfg.Adapter.Timeout),
	)
	if err != nil {
		return nil, err
	}

	registry := chains.NewRegistry(logger)
	registry.SetAdapter(a)

	for _, network := range cfg.Networks {
		provider, err := newProvider(cfg, network, logger)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", network, err)
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}

	logger.Info("providers ready",
		"strategy", strategy,
		"networks", registry.GetSupportedNetworks(),
	)
	return registry, nil
}

func newProvider(cfg *Config, network string, logger *slog.Logger) (chains.Provider, error) {
	switch network {
	case constants.NetworkEthereum:
		return evm.NewProvider(cfg.Ethereum, logger)
	case constants.NetworkSolana:
		return svm.NewProvider(cfg.Solana, logger)
	case constants.NetworkCosmos:
		return cosmos.NewProvider(cfg.Cosmos, logger), nil
	case constants.NetworkBitcoin:
		return bitcoin.NewProvider(cfg.Bitcoin, logger)
	case constants.NetworkTon:
		return ton.NewProvider(cfg.Ton.Config, logger), nil
	case constants.NetworkTron:
		return tron.NewProvider(cfg.Tron, logger)
	case constants.NetworkAptos:
		return aptos.NewProvider(cfg.Aptos, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, network)
	}
}
