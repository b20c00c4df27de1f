package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	MarketData  MarketDataConfig  `mapstructure:"market_data"`
	Greeks      GreeksConfig      `mapstructure:"greeks"`
	Factor      FactorConfig      `mapstructure:"factor"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Stress      StressConfig      `mapstructure:"stress"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	DailyRun          string `mapstructure:"daily_run"`
	MarketDataRefresh string `mapstructure:"market_data_refresh"`
}

type MarketDataConfig struct {
	ProviderBaseURL     string        `mapstructure:"provider_base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	RefreshLookbackDays int           `mapstructure:"refresh_lookback_days"`
	// Holidays lists exchange closures as YYYY-MM-DD; weekends are implicit.
	Holidays []string `mapstructure:"holidays"`
}

type GreeksConfig struct {
	DefaultVolatility float64 `mapstructure:"default_volatility"`
	RiskFreeRate      float64 `mapstructure:"risk_free_rate"`
}

type FactorConfig struct {
	WindowDays    int     `mapstructure:"window_days"`
	MinSampleSize int     `mapstructure:"min_sample_size"`
	BetaCap       float64 `mapstructure:"beta_cap"`
}

type CorrelationConfig struct {
	LookbackDays     int     `mapstructure:"lookback_days"`
	MinOverlap       int     `mapstructure:"min_overlap"`
	MinNotionalUSD   float64 `mapstructure:"min_notional_usd"`
	MinWeight        float64 `mapstructure:"min_weight"`
	ClusterThreshold float64 `mapstructure:"cluster_threshold"`
}

type StressConfig struct {
	ScenarioPath string `mapstructure:"scenario_path"`
}

type PipelineConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	// Market close is 21:00 UTC; refresh prices first, run the pipeline after.
	v.SetDefault("cron.market_data_refresh", "0 0 21 * * MON-FRI")
	v.SetDefault("cron.daily_run", "0 30 21 * * MON-FRI")
	v.SetDefault("market_data.timeout", "15s")
	v.SetDefault("market_data.refresh_lookback_days", 5)
	v.SetDefault("greeks.default_volatility", 0.30)
	v.SetDefault("greeks.risk_free_rate", 0.05)
	v.SetDefault("factor.window_days", 252)
	v.SetDefault("factor.min_sample_size", 60)
	v.SetDefault("factor.beta_cap", 5.0)
	v.SetDefault("correlation.lookback_days", 90)
	v.SetDefault("correlation.min_overlap", 20)
	v.SetDefault("correlation.min_notional_usd", 10000)
	v.SetDefault("correlation.min_weight", 0.02)
	v.SetDefault("correlation.cluster_threshold", 0.7)
	v.SetDefault("stress.scenario_path", "config/scenarios.yaml")
	v.SetDefault("pipeline.max_concurrent", 4)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
