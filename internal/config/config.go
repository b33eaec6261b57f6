// Package config loads the nested YAML configuration document described
// in spec §6, substituting ${ENV_NAME} placeholders from the process
// environment and failing fast when a required substitution is missing.
package config

import (
	"fmt"
	"math/big"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"launchsentinel/internal/apperr"
)

// Config is the root configuration document.
type Config struct {
	Chain struct {
		RPC struct {
			HTTP []string `yaml:"http"`
			WSS  []string `yaml:"wss"`
		} `yaml:"rpc"`
		AvgBlockTimeMs int `yaml:"avgBlockTimeMs"`
	} `yaml:"chain"`

	Virtuals struct {
		APIBase             string `yaml:"apiBase"`
		PollIntervalMs      int    `yaml:"pollIntervalMs"`
		MaxProjectAgeMinutes int   `yaml:"maxProjectAgeMinutes"`
	} `yaml:"virtuals"`

	Addresses struct {
		BuybackAddr  string `yaml:"buybackAddr"`
		VirtualToken string `yaml:"virtualToken"`
	} `yaml:"addresses"`

	Thresholds struct {
		BigTradeVirtual          string `yaml:"bigTradeVirtual"`
		TaxWindowMinutes         int    `yaml:"taxWindowMinutes"`
		BuybackRateWindowMinutes int    `yaml:"buybackRateWindowMinutes"`
		StallAlertMinutes        int    `yaml:"stallAlertMinutes"`
	} `yaml:"thresholds"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	PreferredTicker string `yaml:"preferredTicker"`
	PriceQuoteURL   string `yaml:"priceQuoteURL"`

	API struct {
		Addr string `yaml:"addr"`
	} `yaml:"api"`
}

var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads path, substitutes ${ENV} placeholders, parses YAML, applies
// defaults, and validates required fields. A missing required env
// substitution or failed validation is a KindConfig (fatal) error.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Config(fmt.Errorf("read config %s: %w", path, err))
	}

	substituted, err := substituteEnv(string(raw))
	if err != nil {
		return nil, apperr.Config(err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(substituted), cfg); err != nil {
		return nil, apperr.Config(fmt.Errorf("parse config: %w", err))
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, apperr.Config(err)
	}
	return cfg, nil
}

// substituteEnv replaces every ${ENV_NAME} with the environment value,
// failing if the variable is unset.
func substituteEnv(doc string) (string, error) {
	var missing []string
	out := envPlaceholder.ReplaceAllStringFunc(doc, func(m string) string {
		name := envPlaceholder.FindStringSubmatch(m)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %v", missing)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Virtuals.PollIntervalMs == 0 {
		cfg.Virtuals.PollIntervalMs = 5000
	}
	if cfg.Virtuals.MaxProjectAgeMinutes == 0 {
		cfg.Virtuals.MaxProjectAgeMinutes = 14400
	}
	if cfg.Thresholds.TaxWindowMinutes == 0 {
		cfg.Thresholds.TaxWindowMinutes = 60
	}
	if cfg.Thresholds.BuybackRateWindowMinutes == 0 {
		cfg.Thresholds.BuybackRateWindowMinutes = 20
	}
	if cfg.Thresholds.StallAlertMinutes == 0 {
		cfg.Thresholds.StallAlertMinutes = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Chain.AvgBlockTimeMs == 0 {
		cfg.Chain.AvgBlockTimeMs = 12000
	}
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
}

// Validate checks the required fields named in spec §6.
func (c *Config) Validate() error {
	if len(c.Chain.RPC.HTTP) == 0 {
		return fmt.Errorf("chain.rpc.http must be a non-empty array")
	}
	if len(c.Chain.RPC.WSS) == 0 {
		return fmt.Errorf("chain.rpc.wss must be a non-empty array")
	}
	if !hexAddress(c.Addresses.BuybackAddr) {
		return fmt.Errorf("addresses.buybackAddr must be a 0x-prefixed 40-hex address")
	}
	if !hexAddress(c.Addresses.VirtualToken) {
		return fmt.Errorf("addresses.virtualToken must be a 0x-prefixed 40-hex address")
	}
	return nil
}

var hexAddrRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func hexAddress(s string) bool { return hexAddrRe.MatchString(s) }

// TaxWindow returns the configured tax-collection window as a duration.
func (c *Config) TaxWindow() time.Duration {
	return time.Duration(c.Thresholds.TaxWindowMinutes) * time.Minute
}

// BuybackRateWindow returns the configured spend rate window.
func (c *Config) BuybackRateWindow() time.Duration {
	return time.Duration(c.Thresholds.BuybackRateWindowMinutes) * time.Minute
}

// StallAlert returns the configured stall-alert duration.
func (c *Config) StallAlert() time.Duration {
	return time.Duration(c.Thresholds.StallAlertMinutes) * time.Minute
}

// PollInterval returns the catalog discovery poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Virtuals.PollIntervalMs) * time.Millisecond
}

// AvgBlockTime returns the configured average block time, used to seed the
// ledger scanner's block-for-timestamp search.
func (c *Config) AvgBlockTime() time.Duration {
	return time.Duration(c.Chain.AvgBlockTimeMs) * time.Millisecond
}

// BigTradeThreshold parses the configured whale-trade threshold into a
// big.Int of base-token integer units.
func (c *Config) BigTradeThreshold() (*big.Int, error) {
	v, ok := new(big.Int).SetString(c.Thresholds.BigTradeVirtual, 10)
	if !ok {
		return nil, fmt.Errorf("thresholds.bigTradeVirtual is not a valid integer: %q", c.Thresholds.BigTradeVirtual)
	}
	return v, nil
}
