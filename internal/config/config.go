package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	MetaApi  MetaApiConfig   `yaml:"metaapi"`
	Telegram TelegramConfig  `yaml:"telegram"`
	Risk     RiskConfig      `yaml:"risk"`
	Tiered   TieredConfig    `yaml:"tiered"`
	Ladder   LadderConfig    `yaml:"ladder"`
	Resolver ResolverConfig  `yaml:"resolver"`
	Brokers  []BrokerProfile `yaml:"brokers" validate:"dive"`
	Storage  StorageConfig   `yaml:"storage"`
	Server   ServerConfig    `yaml:"server"`
	Logging  LoggingConfig   `yaml:"logging"`
}

type MetaApiConfig struct {
	Token           string        `yaml:"token"`
	AccountID       string        `yaml:"account_id"`
	ProvisioningURL string        `yaml:"provisioning_url" validate:"required,url"`
	ClientURL       string        `yaml:"client_url" validate:"required,url"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"gt=0"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

type TelegramConfig struct {
	Token       string `yaml:"token"`
	AllowedUser string `yaml:"allowed_user"`
	WebhookURL  string `yaml:"webhook_url"`
	PollTimeout int    `yaml:"poll_timeout" validate:"gte=0"`
	Debug       bool   `yaml:"debug"`
}

type RiskConfig struct {
	DefaultFactor     float64 `yaml:"default_factor" validate:"gt=0,lte=1"`
	ReferenceCurrency string  `yaml:"reference_currency" validate:"required,len=3"`
	// Rates holds fixed conversion rates into the reference currency, used
	// before asking the broker for a cross quote.
	Rates map[string]float64 `yaml:"rates"`
}

// LotTier maps balances strictly below UpTo to a fixed lot size. A zero UpTo
// is the open-ended last bucket.
type LotTier struct {
	UpTo float64 `yaml:"up_to"`
	Lots float64 `yaml:"lots"`
}

type TieredConfig struct {
	TargetOffsets []float64 `yaml:"target_offsets"`
	// Tables is keyed by account currency; "default" applies to the rest.
	Tables map[string][]LotTier `yaml:"tables"`
}

// Table returns the ascending lot table for an account currency.
func (t TieredConfig) Table(currency string) []LotTier {
	table, ok := t.Tables[strings.ToUpper(currency)]
	if !ok {
		table = t.Tables["default"]
	}
	sorted := make([]LotTier, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UpTo == 0 {
			return false
		}
		if sorted[j].UpTo == 0 {
			return true
		}
		return sorted[i].UpTo < sorted[j].UpTo
	})
	return sorted
}

type LadderConfig struct {
	Rungs            int     `yaml:"rungs" validate:"gte=2"`
	TierSplit        []int   `yaml:"tier_split" validate:"required,dive,gt=0"`
	FinalTierPadPips float64 `yaml:"final_tier_pad_pips" validate:"gte=0"`
}

type ResolverConfig struct {
	BreakevenSpreadPad bool    `yaml:"breakeven_spread_pad"`
	SecurePercent      float64 `yaml:"secure_percent" validate:"gt=0,lte=100"`
}

// BrokerProfile adapts symbols and balance to a specific broker account.
type BrokerProfile struct {
	Broker         string  `yaml:"broker"`
	Server         string  `yaml:"server"`
	Suffix         string  `yaml:"suffix"`
	IndexSuffix    string  `yaml:"index_suffix"`
	ForexSuffix    string  `yaml:"forex_suffix"`
	BalancePercent float64 `yaml:"balance_percent" validate:"gte=0,lte=100"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres json"`
	DSN    string `yaml:"dsn" validate:"required"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		MetaApi: MetaApiConfig{
			ProvisioningURL: "https://mt-provisioning-api-v1.agiliumtrade.agiliumtrade.ai",
			ClientURL:       "https://mt-client-api-v1.london.agiliumtrade.ai",
			RequestTimeout:  30 * time.Second,
			ConnectTimeout:  5 * time.Minute,
			PollInterval:    2 * time.Second,
		},
		Telegram: TelegramConfig{
			PollTimeout: 60,
		},
		Risk: RiskConfig{
			DefaultFactor:     0.01,
			ReferenceCurrency: "USD",
			Rates: map[string]float64{
				"USD": 1,
				"XOF": 1 / 655.957 * 1.08,
			},
		},
		Tiered: TieredConfig{
			TargetOffsets: []float64{1000, 2000, 3000},
			Tables: map[string][]LotTier{
				"default": {
					{UpTo: 500, Lots: 0.03},
					{UpTo: 1000, Lots: 0.06},
					{UpTo: 2000, Lots: 0.12},
					{UpTo: 3000, Lots: 0.18},
					{UpTo: 4000, Lots: 0.24},
					{UpTo: 5000, Lots: 0.33},
					{UpTo: 6000, Lots: 0.39},
					{UpTo: 7000, Lots: 0.45},
					{Lots: 0.50},
				},
				"XOF": {
					{UpTo: 301571, Lots: 0.03},
					{UpTo: 604351, Lots: 0.06},
					{UpTo: 1208702, Lots: 0.12},
					{UpTo: 1813054, Lots: 0.18},
					{UpTo: 2417405, Lots: 0.24},
					{UpTo: 3021757, Lots: 0.33},
					{UpTo: 3626108, Lots: 0.39},
					{UpTo: 4230459, Lots: 0.45},
					{Lots: 0.50},
				},
			},
		},
		Ladder: LadderConfig{
			Rungs:            9,
			TierSplit:        []int{4, 3, 2},
			FinalTierPadPips: 50,
		},
		Resolver: ResolverConfig{
			BreakevenSpreadPad: true,
			SecurePercent:      100,
		},
		Brokers: []BrokerProfile{
			{Broker: "AXSE Brokerage Ltd.", Suffix: "_raw"},
			{Server: "Exness-MT5Trial10", Suffix: "z"},
			{Broker: "EightCap Global Ltd", IndexSuffix: ".b", ForexSuffix: ".i", BalancePercent: 5},
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "signals.db",
		},
		Server: ServerConfig{
			Port: 8443,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path (optional) on top of the defaults, then
// overlays the environment, loading .env first when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.MetaApi.Token, "API_KEY")
	setString(&c.MetaApi.AccountID, "ACCOUNT_ID")
	setString(&c.Telegram.Token, "TOKEN")
	setString(&c.Telegram.AllowedUser, "TELEGRAM_USER")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.DSN, "STORAGE_DSN")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if appURL := os.Getenv("APP_URL"); appURL != "" {
		c.Telegram.WebhookURL = strings.TrimRight(appURL, "/") + "/telegram/webhook"
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("RISK_FACTOR"); v != "" {
		risk, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RISK_FACTOR: %w", err)
		}
		c.Risk.DefaultFactor = risk
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

var validate = validator.New()

// Validate checks ranges and the fields every deployment needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	split := 0
	for _, n := range c.Ladder.TierSplit {
		split += n
	}
	if split != c.Ladder.Rungs {
		return fmt.Errorf("ladder.tier_split covers %d rungs, want %d", split, c.Ladder.Rungs)
	}
	if len(c.Tiered.Tables["default"]) == 0 {
		return fmt.Errorf("tiered.tables.default is required")
	}
	return nil
}

// ValidateService checks the credentials the long-running bot needs.
func (c *Config) ValidateService() error {
	if c.MetaApi.Token == "" {
		return fmt.Errorf("metaapi.token (API_KEY) is required")
	}
	if c.MetaApi.AccountID == "" {
		return fmt.Errorf("metaapi.account_id (ACCOUNT_ID) is required")
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token (TOKEN) is required")
	}
	if c.Telegram.AllowedUser == "" {
		return fmt.Errorf("telegram.allowed_user (TELEGRAM_USER) is required")
	}
	return nil
}
