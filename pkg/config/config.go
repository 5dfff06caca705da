package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds file- and environment-driven settings for the execution core.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Trading  TradingConfig  `yaml:"trading_execution"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type TradingConfig struct {
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	Passphrase string `yaml:"passphrase"`
	BaseURL    string `yaml:"base_url"`
	Simulated  bool   `yaml:"simulated"`

	Symbol          string  `yaml:"symbol"`
	InitialLeverage float64 `yaml:"initial_leverage"`
	BaseUnit        float64 `yaml:"base_unit"`
	QueueSize       int     `yaml:"queue_size"`

	PollIntervalSec int `yaml:"poll_interval_sec"`
	PollBudgetSec   int `yaml:"poll_budget_sec"`

	Risk RiskConfig `yaml:"risk_management"`
}

type RiskConfig struct {
	MinLeverage    float64 `yaml:"min_leverage"`
	MaxLeverage    float64 `yaml:"max_leverage"`
	MaxPosition    float64 `yaml:"max_position"`
	DailyLossLimit float64 `yaml:"daily_loss_limit"`
	EquityBase     float64 `yaml:"equity_base"`
	PnLMode        string  `yaml:"pnl_mode"`
}

// Load reads the YAML config at path, then applies environment overrides
// (optionally via .env). Credentials normally come from the environment so
// the YAML file can be committed without secrets.
func Load(path string) (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      "8080",
			JWTSecret: "dev-secret",
		},
		Database: DatabaseConfig{
			Path: "./data/execution.db",
		},
		Trading: TradingConfig{
			BaseURL:         "https://www.okx.com",
			Symbol:          "BTC-USDT-SWAP",
			InitialLeverage: 5,
			BaseUnit:        10,
			QueueSize:       100,
			PollIntervalSec: 2,
			PollBudgetSec:   300,
			Risk: RiskConfig{
				MinLeverage:    1,
				MaxLeverage:    10,
				MaxPosition:    100,
				DailyLossLimit: 0.05,
				EquityBase:     10000,
				PnLMode:        "fills",
			},
		},
	}
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)

	c.Trading.APIKey = getEnv("OKX_API_KEY", c.Trading.APIKey)
	c.Trading.APISecret = getEnv("OKX_API_SECRET", c.Trading.APISecret)
	c.Trading.Passphrase = getEnv("OKX_PASSPHRASE", c.Trading.Passphrase)
	c.Trading.BaseURL = getEnv("OKX_BASE_URL", c.Trading.BaseURL)
	if v := os.Getenv("OKX_SIMULATED"); v != "" {
		c.Trading.Simulated = v == "true"
	}
	c.Trading.Symbol = getEnv("TRADING_SYMBOL", c.Trading.Symbol)
	c.Trading.InitialLeverage = getEnvFloat("INITIAL_LEVERAGE", c.Trading.InitialLeverage)
	c.Trading.Risk.DailyLossLimit = getEnvFloat("DAILY_LOSS_LIMIT", c.Trading.Risk.DailyLossLimit)
	c.Trading.Risk.PnLMode = getEnv("PNL_MODE", c.Trading.Risk.PnLMode)
}

// Validate rejects configurations the pipeline cannot safely run with.
// Callers treat a validation error as fatal at startup.
func (c *Config) Validate() error {
	var errs []error

	t := &c.Trading
	if t.APIKey == "" || t.APISecret == "" || t.Passphrase == "" {
		errs = append(errs, errors.New("exchange credentials are required (OKX_API_KEY, OKX_API_SECRET, OKX_PASSPHRASE)"))
	}
	if t.Symbol == "" {
		errs = append(errs, errors.New("trading symbol is required"))
	}
	r := &t.Risk
	if r.MinLeverage <= 0 || r.MaxLeverage < r.MinLeverage {
		errs = append(errs, fmt.Errorf("invalid leverage bounds [%v, %v]", r.MinLeverage, r.MaxLeverage))
	}
	if t.InitialLeverage < r.MinLeverage || t.InitialLeverage > r.MaxLeverage {
		errs = append(errs, fmt.Errorf("initial leverage %v outside [%v, %v]", t.InitialLeverage, r.MinLeverage, r.MaxLeverage))
	}
	if r.DailyLossLimit <= 0 || r.DailyLossLimit >= 1 {
		errs = append(errs, fmt.Errorf("daily loss limit %v must be a fraction in (0, 1)", r.DailyLossLimit))
	}
	if r.MaxPosition <= 0 {
		errs = append(errs, fmt.Errorf("max position %v must be positive", r.MaxPosition))
	}
	if r.PnLMode != "paper" && r.PnLMode != "fills" {
		errs = append(errs, fmt.Errorf("pnl_mode %q must be \"paper\" or \"fills\"", r.PnLMode))
	}
	if r.PnLMode == "fills" && r.EquityBase <= 0 {
		errs = append(errs, fmt.Errorf("equity base %v must be positive in fills mode", r.EquityBase))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
