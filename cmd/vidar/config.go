package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"vidar/domain/orderbook"
)

// Config is the full runtime configuration, loadable from vidar.yaml
// and overridable via VIDAR_* environment variables.
type Config struct {
	Symbol   string `mapstructure:"symbol"`
	TickSize string `mapstructure:"tick_size"`
	LotSize  string `mapstructure:"lot_size"`

	MinOrderLots int64 `mapstructure:"min_order_lots"`
	MaxOrderLots int64 `mapstructure:"max_order_lots"`

	STP         string `mapstructure:"stp"`
	MakerFeeBps int64  `mapstructure:"maker_fee_bps"`
	TakerFeeBps int64  `mapstructure:"taker_fee_bps"`

	JournalDir string `mapstructure:"journal_dir"`

	KafkaBrokers  []string `mapstructure:"kafka_brokers"`
	CommandsTopic string   `mapstructure:"commands_topic"`
	EventsTopic   string   `mapstructure:"events_topic"`
	CommandGroup  string   `mapstructure:"command_group"`

	MetricsAddr string `mapstructure:"metrics_addr"`

	ExpiryInterval    time.Duration `mapstructure:"expiry_interval"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
}

func loadConfig() (Config, error) {
	v := viper.New()
	v.SetConfigName("vidar")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/vidar")
	v.SetEnvPrefix("vidar")
	v.AutomaticEnv()

	v.SetDefault("symbol", "BTC-USD")
	v.SetDefault("tick_size", "0.01")
	v.SetDefault("lot_size", "0.0001")
	v.SetDefault("min_order_lots", 1)
	v.SetDefault("max_order_lots", 0)
	v.SetDefault("stp", "none")
	v.SetDefault("maker_fee_bps", 0)
	v.SetDefault("taker_fee_bps", 0)
	v.SetDefault("journal_dir", "./journal")
	v.SetDefault("kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("commands_topic", "vidar.commands")
	v.SetDefault("events_topic", "vidar.events")
	v.SetDefault("command_group", "vidar-engine")
	v.SetDefault("metrics_addr", ":9100")
	v.SetDefault("expiry_interval", 100*time.Millisecond)
	v.SetDefault("broadcast_interval", 250*time.Millisecond)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		// defaults + env only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// STPMode maps the config string onto the engine mode; unknown values
// disable prevention.
func (c Config) STPMode() orderbook.STPMode {
	switch c.STP {
	case "cancel_taker":
		return orderbook.STPCancelTaker
	case "cancel_maker":
		return orderbook.STPCancelMaker
	case "cancel_both":
		return orderbook.STPCancelBoth
	default:
		return orderbook.STPNone
	}
}
