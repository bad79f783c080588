// Package config loads the service configuration from a YAML file with flag
// fallbacks for quick single-portfolio runs.
package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	defaultPollInterval = time.Minute
	defaultListenAddr   = ":8080"
	defaultDBPath       = "./data/kustodian.db"
	defaultWALDir       = "./wal/ledger"
)

// Portfolio is one configured portfolio with its target allocation and
// rebalance policy.
type Portfolio struct {
	Name       string
	Allocation domain.Allocation
	Settings   domain.RebalanceSettings
}

// Config is the full service configuration.
type Config struct {
	// Platform selects the exchange backing prices, balances and orders:
	// binance, bybit or static.
	Platform     string
	ListenAddr   string
	DBPath       string
	WALDir       string
	PollInterval time.Duration
	Portfolios   []Portfolio

	// Setup means run the interactive wizard instead of loading anything.
	Setup bool
	// SuggestOnly means print rebalance suggestions once and exit.
	SuggestOnly bool
}

// PortfolioYAML is the on-disk form of one portfolio; the setup wizard
// marshals it back when generating a config.
type PortfolioYAML struct {
	Name          string                `yaml:"name"`
	Allocation    []AllocationEntryYAML `yaml:"allocation"`
	Frequency     string                `yaml:"frequency,omitempty"`
	Threshold     decimal.Decimal       `yaml:"threshold,omitempty"`
	MinTradeValue decimal.Decimal       `yaml:"min_trade_value,omitempty"`
	AutoRebalance bool                  `yaml:"auto_rebalance,omitempty"`
	PaperTrading  *bool                 `yaml:"paper_trading,omitempty"`
}

// AllocationEntryYAML keeps the allocation a list, not a map: list order survives
// decoding and becomes the deterministic trade-plan order.
type AllocationEntryYAML struct {
	Asset   string          `yaml:"asset"`
	Percent decimal.Decimal `yaml:"percent"`
}

// ConfigYAML is the on-disk form of the whole config file.
type ConfigYAML struct {
	Platform string `yaml:"platform"`
	Listen   string `yaml:"listen,omitempty"`
	DB       string `yaml:"db,omitempty"`
	WALDir   string `yaml:"wal_dir,omitempty"`
	// PollInterval is a duration string like "30s" or "5m".
	PollInterval string          `yaml:"poll_interval,omitempty"`
	Portfolios   []PortfolioYAML `yaml:"portfolios"`
}

// Get parses flags and loads the configuration. With -config set the YAML
// file wins; otherwise the flags describe a single portfolio.
func Get() (*Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	platform := flag.String("platform", "static", "exchange platform: binance, bybit or static")
	allocationFlag := flag.String("allocation", "", "single portfolio allocation, example: BTC:60,ETH:40")
	name := flag.String("name", "main", "portfolio name for the flag-defined portfolio")
	setup := flag.Bool("setup", false, "run the interactive setup wizard")
	suggest := flag.Bool("suggest", false, "print rebalance suggestions once and exit")
	flag.Parse()

	if *setup {
		return &Config{Setup: true}, nil
	}

	var (
		cfg *Config
		err error
	)
	if *configPath != "" {
		cfg, err = FromFile(*configPath)
	} else {
		cfg, err = fromFlags(*platform, *name, *allocationFlag)
	}
	if err != nil {
		return nil, err
	}

	cfg.SuggestOnly = *suggest
	return cfg, nil
}

// FromFile loads the configuration from a YAML file.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var raw ConfigYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse yaml config")
	}

	cfg := &Config{
		Platform:   raw.Platform,
		ListenAddr: raw.Listen,
		DBPath:     raw.DB,
		WALDir:     raw.WALDir,
	}
	if raw.PollInterval != "" {
		interval, err := time.ParseDuration(raw.PollInterval)
		if err != nil {
			return nil, errors.Wrapf(err, "parse poll_interval %q", raw.PollInterval)
		}
		cfg.PollInterval = interval
	}

	for _, p := range raw.Portfolios {
		portfolio, err := buildPortfolio(p)
		if err != nil {
			return nil, errors.Wrapf(err, "portfolio %q", p.Name)
		}
		cfg.Portfolios = append(cfg.Portfolios, portfolio)
	}

	return finalize(cfg)
}

func fromFlags(platform, name, allocationSpec string) (*Config, error) {
	if allocationSpec == "" {
		return nil, errors.New("either -config or -allocation must be provided")
	}

	var entries []domain.AllocationEntry
	for _, part := range strings.Split(allocationSpec, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return nil, errors.Errorf("invalid allocation entry %q, want ASSET:PERCENT", part)
		}
		percent, err := decimal.NewFromString(kv[1])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid percent in %q", part)
		}
		entries = append(entries, domain.AllocationEntry{Asset: kv[0], Percent: percent})
	}

	allocation, err := domain.NewAllocation(entries)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Platform: platform,
		Portfolios: []Portfolio{{
			Name:       name,
			Allocation: allocation,
			Settings:   domain.DefaultRebalanceSettings(),
		}},
	}
	return finalize(cfg)
}

func buildPortfolio(p PortfolioYAML) (Portfolio, error) {
	if p.Name == "" {
		return Portfolio{}, errors.New("portfolio name is required")
	}

	entries := make([]domain.AllocationEntry, 0, len(p.Allocation))
	for _, e := range p.Allocation {
		entries = append(entries, domain.AllocationEntry{Asset: e.Asset, Percent: e.Percent})
	}
	allocation, err := domain.NewAllocation(entries)
	if err != nil {
		return Portfolio{}, err
	}

	settings := domain.DefaultRebalanceSettings()
	if p.Frequency != "" {
		settings.Frequency = domain.Frequency(p.Frequency)
	}
	if !p.Threshold.IsZero() {
		settings.Threshold = p.Threshold
	}
	if !p.MinTradeValue.IsZero() {
		settings.MinTradeValue = p.MinTradeValue
	}
	settings.AutoRebalance = p.AutoRebalance
	if p.PaperTrading != nil {
		settings.PaperTrading = *p.PaperTrading
	}
	if err := settings.Validate(); err != nil {
		return Portfolio{}, err
	}

	return Portfolio{Name: p.Name, Allocation: allocation, Settings: settings}, nil
}

func finalize(cfg *Config) (*Config, error) {
	switch cfg.Platform {
	case "binance", "bybit", "static":
	case "":
		cfg.Platform = "static"
	default:
		return nil, errors.Errorf("unsupported platform %q", cfg.Platform)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.WALDir == "" {
		cfg.WALDir = defaultWALDir
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if len(cfg.Portfolios) == 0 {
		return nil, errors.New("at least one portfolio must be configured")
	}

	names := make(map[string]struct{}, len(cfg.Portfolios))
	for _, p := range cfg.Portfolios {
		if _, dup := names[p.Name]; dup {
			return nil, errors.Errorf("duplicate portfolio name %q", p.Name)
		}
		names[p.Name] = struct{}{}
	}

	return cfg, nil
}
