package store

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Symbol string `yaml:"symbol"`

	Strategic struct {
		IntervalSeconds int    `yaml:"interval_seconds"`
		Model           string `yaml:"model"`
		Candles4H       int    `yaml:"candles_4h"`
		Candles1H       int    `yaml:"candles_1h"`
		Candles15M      int    `yaml:"candles_15m"`
		ValidForHours   int    `yaml:"valid_for_hours"`
	} `yaml:"strategic"`

	Tactical struct {
		IntervalSeconds int    `yaml:"interval_seconds"`
		Model           string `yaml:"model"`
		Candles1H       int    `yaml:"candles_1h"`
		Candles15M      int    `yaml:"candles_15m"`
		Candles1M       int    `yaml:"candles_1m"`
	} `yaml:"tactical"`

	Data struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		BarTolerance   int    `yaml:"bar_tolerance"`
	} `yaml:"data"`

	Inference struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"inference"`

	Credentials struct {
		PrimaryEnvPrefix    string `yaml:"primary_env_prefix"`
		SecondaryEnvPrefix  string `yaml:"secondary_env_prefix"`
		MaxPrimary          int    `yaml:"max_primary"`
		MaxSecondary        int    `yaml:"max_secondary"`
		CooldownSeedSeconds int    `yaml:"cooldown_seed_seconds"`
		CooldownCapSeconds  int    `yaml:"cooldown_cap_seconds"`
	} `yaml:"credentials"`

	Trade struct {
		EntryConfidence int     `yaml:"entry_confidence"`
		ExitConfidence  int     `yaml:"exit_confidence"`
		QuoteAmount     float64 `yaml:"quote_amount"`
		ExitPolicy      string  `yaml:"exit_policy"` // MARKET or STOP
	} `yaml:"trade"`

	Audit struct {
		Retries        int  `yaml:"retries"`
		BackoffSeconds int  `yaml:"backoff_seconds"`
		TimeoutSeconds int  `yaml:"timeout_seconds"`
		Required       bool `yaml:"required"`
	} `yaml:"audit"`

	Health struct {
		GracePeriodSeconds int `yaml:"grace_period_seconds"`
	} `yaml:"health"`

	News struct {
		Enabled      bool `yaml:"enabled"`
		MaxHeadlines int  `yaml:"max_headlines"`
	} `yaml:"news"`
}

func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if c.Strategic.IntervalSeconds <= 0 || c.Tactical.IntervalSeconds <= 0 {
		return fmt.Errorf("cadence intervals must be positive")
	}
	if c.Tactical.IntervalSeconds >= c.Strategic.IntervalSeconds {
		return fmt.Errorf("tactical interval (%ds) must be shorter than strategic interval (%ds)",
			c.Tactical.IntervalSeconds, c.Strategic.IntervalSeconds)
	}
	if c.Trade.EntryConfidence < 0 || c.Trade.EntryConfidence > 10 {
		return fmt.Errorf("trade.entry_confidence must be 0-10, got %d", c.Trade.EntryConfidence)
	}
	if c.Trade.ExitConfidence < 0 || c.Trade.ExitConfidence > 10 {
		return fmt.Errorf("trade.exit_confidence must be 0-10, got %d", c.Trade.ExitConfidence)
	}
	if c.Trade.QuoteAmount <= 0 {
		return fmt.Errorf("trade.quote_amount must be positive, got %.2f", c.Trade.QuoteAmount)
	}
	if c.Trade.ExitPolicy != "MARKET" && c.Trade.ExitPolicy != "STOP" {
		return fmt.Errorf("trade.exit_policy must be 'MARKET' or 'STOP', got '%s'", c.Trade.ExitPolicy)
	}
	if c.Credentials.CooldownSeedSeconds <= 0 || c.Credentials.CooldownCapSeconds < c.Credentials.CooldownSeedSeconds {
		return fmt.Errorf("credential cooldown seed/cap invalid (%d/%d)",
			c.Credentials.CooldownSeedSeconds, c.Credentials.CooldownCapSeconds)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Symbol == "" {
		c.Symbol = "BTC-USD"
	}
	if c.Strategic.IntervalSeconds == 0 {
		c.Strategic.IntervalSeconds = 3600
	}
	if c.Strategic.Candles4H == 0 {
		c.Strategic.Candles4H = 100
	}
	if c.Strategic.Candles1H == 0 {
		c.Strategic.Candles1H = 168
	}
	if c.Strategic.Candles15M == 0 {
		c.Strategic.Candles15M = 96
	}
	if c.Strategic.ValidForHours == 0 {
		c.Strategic.ValidForHours = 4
	}
	if c.Strategic.Model == "" {
		c.Strategic.Model = "gemini-2.5-pro"
	}
	if c.Tactical.Model == "" {
		c.Tactical.Model = "gemini-2.5-flash"
	}
	if c.Tactical.IntervalSeconds == 0 {
		c.Tactical.IntervalSeconds = 60
	}
	if c.Tactical.Candles1H == 0 {
		c.Tactical.Candles1H = 24
	}
	if c.Tactical.Candles15M == 0 {
		c.Tactical.Candles15M = 48
	}
	if c.Tactical.Candles1M == 0 {
		c.Tactical.Candles1M = 100
	}
	if c.Data.TimeoutSeconds == 0 {
		c.Data.TimeoutSeconds = 30
	}
	if c.Data.BarTolerance == 0 {
		c.Data.BarTolerance = 5
	}
	if c.Inference.TimeoutSeconds == 0 {
		c.Inference.TimeoutSeconds = 60
	}
	if c.Credentials.PrimaryEnvPrefix == "" {
		c.Credentials.PrimaryEnvPrefix = "GEMINI_API_KEY_"
	}
	if c.Credentials.SecondaryEnvPrefix == "" {
		c.Credentials.SecondaryEnvPrefix = "GEMINI_LITE_API_KEY_"
	}
	if c.Credentials.MaxPrimary == 0 {
		c.Credentials.MaxPrimary = 15
	}
	if c.Credentials.MaxSecondary == 0 {
		c.Credentials.MaxSecondary = 2
	}
	if c.Credentials.CooldownSeedSeconds == 0 {
		c.Credentials.CooldownSeedSeconds = 30
	}
	if c.Credentials.CooldownCapSeconds == 0 {
		c.Credentials.CooldownCapSeconds = 900
	}
	if c.Trade.EntryConfidence == 0 {
		c.Trade.EntryConfidence = 7
	}
	if c.Trade.ExitConfidence == 0 {
		c.Trade.ExitConfidence = 7
	}
	if c.Trade.QuoteAmount == 0 {
		c.Trade.QuoteAmount = 100
	}
	if c.Trade.ExitPolicy == "" {
		c.Trade.ExitPolicy = "MARKET"
	}
	if c.Audit.Retries == 0 {
		c.Audit.Retries = 3
	}
	if c.Audit.BackoffSeconds == 0 {
		c.Audit.BackoffSeconds = 2
	}
	if c.Audit.TimeoutSeconds == 0 {
		c.Audit.TimeoutSeconds = 10
	}
	if c.Health.GracePeriodSeconds == 0 {
		c.Health.GracePeriodSeconds = 1800
	}
	if c.News.MaxHeadlines == 0 {
		c.News.MaxHeadlines = 10
	}
}

func (c *Config) StrategicInterval() time.Duration {
	return time.Duration(c.Strategic.IntervalSeconds) * time.Second
}

func (c *Config) TacticalInterval() time.Duration {
	return time.Duration(c.Tactical.IntervalSeconds) * time.Second
}
