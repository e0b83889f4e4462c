package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Arbitrage ArbitrageConfig
	Risk      RiskConfig
	Gateway   GatewayConfig
	Trading   TradingConfig
	Notify    NotifyConfig
	Log       LogConfig
	Exchanges map[string]ExchangeConfig
}

// ArbitrageConfig defines the opportunity detection settings.
type ArbitrageConfig struct {
	TradingPairs        []string      `mapstructure:"trading_pairs"`
	MinProfitThreshold  float64       `mapstructure:"min_profit_threshold_percent"`
	MaxTradeNotional    float64       `mapstructure:"max_trade_notional"`
	ScanInterval        time.Duration `mapstructure:"scan_interval"`
	OrderBookDepth      int           `mapstructure:"order_book_depth"`
	StatsLogEveryCycles int           `mapstructure:"stats_log_every_cycles"`
}

// RiskConfig defines the position monitoring settings.
type RiskConfig struct {
	StopLossPercent   float64       `mapstructure:"stop_loss_percent"`
	TakeProfitPercent float64       `mapstructure:"take_profit_percent"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxFetchRetries   int           `mapstructure:"max_fetch_retries"`
}

// GatewayConfig defines the network settings shared by all venue clients.
type GatewayConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

// TradingConfig selects between live and simulated order execution.
type TradingConfig struct {
	DryRun       bool    `mapstructure:"dry_run"`
	PaperBalance float64 `mapstructure:"paper_balance"`
}

// NotifyConfig defines operator alert settings.
type NotifyConfig struct {
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
}

// LogConfig defines the logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ExchangeConfig defines settings for a specific exchange.
type ExchangeConfig struct {
	TakerFeePercent float64 `mapstructure:"taker_fee_percent"`
	APIKey          string  `mapstructure:"api_key"`
	APISecret       string  `mapstructure:"api_secret"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("arbitrage.min_profit_threshold_percent", 0.5)
	viper.SetDefault("arbitrage.max_trade_notional", 1000.0)
	viper.SetDefault("arbitrage.scan_interval", "5s")
	viper.SetDefault("arbitrage.order_book_depth", 20)
	viper.SetDefault("arbitrage.stats_log_every_cycles", 12)
	viper.SetDefault("risk.stop_loss_percent", 1.0)
	viper.SetDefault("risk.take_profit_percent", 2.0)
	viper.SetDefault("risk.poll_interval", "1s")
	viper.SetDefault("risk.max_fetch_retries", 5)
	viper.SetDefault("gateway.request_timeout", "30s")
	viper.SetDefault("gateway.max_retries", 3)
	viper.SetDefault("gateway.retry_delay", "5s")
	viper.SetDefault("trading.dry_run", true)
	viper.SetDefault("trading.paper_balance", 10000.0)
	viper.SetDefault("log.level", "info")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = config.validate()
	return
}

func (c Config) validate() error {
	if len(c.Arbitrage.TradingPairs) == 0 {
		return fmt.Errorf("arbitrage.trading_pairs must not be empty")
	}
	if len(c.Exchanges) < 2 {
		return fmt.Errorf("at least two exchanges are required, got %d", len(c.Exchanges))
	}
	if c.Arbitrage.MaxTradeNotional <= 0 {
		return fmt.Errorf("arbitrage.max_trade_notional must be positive")
	}
	if c.Risk.StopLossPercent <= 0 || c.Risk.TakeProfitPercent <= 0 {
		return fmt.Errorf("risk stop_loss_percent and take_profit_percent must be positive")
	}
	return nil
}
