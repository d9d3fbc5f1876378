package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/buffalonetwork/custodyd/internal/core/application"
	"github.com/buffalonetwork/custodyd/internal/core/ports"
	httpledger "github.com/buffalonetwork/custodyd/internal/infrastructure/ledger/http"
	inmemoryledger "github.com/buffalonetwork/custodyd/internal/infrastructure/ledger/inmemory"
	txbuilder "github.com/buffalonetwork/custodyd/internal/infrastructure/tx-builder/ed25519"
	"github.com/spf13/viper"
)

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}

var supportedLedgers = supportedType{
	"http":     {},
	"inmemory": {},
}

const (
	defaultPort          = 7000
	defaultLogLevel      = 4
	defaultLedgerType    = "http"
	defaultLedgerURL     = "http://localhost:9984"
	defaultLedgerTimeout = 15 * time.Second
	defaultAssetType     = "buffalonetwork-asset"
)

type Config struct {
	Port          uint32
	LogLevel      int
	LedgerType    string
	LedgerURL     string
	LedgerTimeout time.Duration
	AssetType     string

	ledger  ports.LedgerClient
	builder ports.TxBuilder
	custody application.CustodyService
	query   application.QueryService
}

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("CUSTODYD")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", defaultPort)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("LEDGER_TYPE", defaultLedgerType)
	viper.SetDefault("LEDGER_URL", defaultLedgerURL)
	viper.SetDefault("LEDGER_TIMEOUT", defaultLedgerTimeout)
	viper.SetDefault("ASSET_TYPE", defaultAssetType)

	cfg := &Config{
		Port:          viper.GetUint32("PORT"),
		LogLevel:      viper.GetInt("LOG_LEVEL"),
		LedgerType:    viper.GetString("LEDGER_TYPE"),
		LedgerURL:     viper.GetString("LEDGER_URL"),
		LedgerTimeout: viper.GetDuration("LEDGER_TIMEOUT"),
		AssetType:     viper.GetString("ASSET_TYPE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.initServices(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	if !supportedLedgers.supports(c.LedgerType) {
		return fmt.Errorf(
			"ledger type %q not supported, please select one of: %s",
			c.LedgerType, supportedLedgers,
		)
	}
	if c.LedgerType == "http" && c.LedgerURL == "" {
		return fmt.Errorf("missing ledger url")
	}
	if c.AssetType == "" {
		return fmt.Errorf("missing asset type tag")
	}
	return nil
}

func (c *Config) LedgerClient() ports.LedgerClient {
	return c.ledger
}

func (c *Config) TxBuilder() ports.TxBuilder {
	return c.builder
}

func (c *Config) CustodyService() application.CustodyService {
	return c.custody
}

func (c *Config) QueryService() application.QueryService {
	return c.query
}

func (c *Config) String() string {
	buf, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(buf)
}

func (c *Config) initServices() error {
	switch c.LedgerType {
	case "http":
		ledger, err := httpledger.NewLedgerClient(httpledger.Config{
			BaseURL: c.LedgerURL,
			Timeout: c.LedgerTimeout,
		})
		if err != nil {
			return fmt.Errorf("ledger client: %s", err)
		}
		c.ledger = ledger
	case "inmemory":
		c.ledger = inmemoryledger.NewLedgerClient()
	}

	c.builder = txbuilder.NewTxBuilder()
	c.custody = application.NewCustodyService(c.ledger, c.builder, c.AssetType)
	c.query = application.NewQueryService(c.ledger)
	return nil
}
