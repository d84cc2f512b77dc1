package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Evaluator names recognized by the weights map.
const (
	EvaluatorPCR      = "pcr"
	EvaluatorRSI      = "rsi"
	EvaluatorOIVolume = "oi_volume"
)

// EngineConfig holds the tunable decision parameters. It is validated as a
// unit so it can be hot-swapped between cycles.
type EngineConfig struct {
	PCRThresholds struct {
		BuyCEMax     float64   `yaml:"buy_ce_max"`
		BuyPEMin     float64   `yaml:"buy_pe_min"`
		NeutralRange []float64 `yaml:"neutral_range"`
	} `yaml:"pcr_thresholds"`
	RSILevels struct {
		OversoldMax   float64 `yaml:"oversold_max"`
		OverboughtMin float64 `yaml:"overbought_min"`
	} `yaml:"rsi_levels"`
	OIAnalysis struct {
		SignificantChangePct  float64 `yaml:"significant_change_pct"`
		VolumeSpikeMultiplier float64 `yaml:"volume_spike_multiplier"`
		MinOILevel            int64   `yaml:"min_oi_level"`
		// DirectionBias maps option type to the direction a rising OI spike
		// favors. The inverse applies to falling OI.
		DirectionBias map[string]string `yaml:"direction_bias"`
	} `yaml:"oi_analysis"`
	SignalCooldownMinutes int                `yaml:"signal_cooldown_minutes"`
	ConfidenceThreshold   float64            `yaml:"confidence_threshold"`
	NoiseMargin           float64            `yaml:"noise_margin"`
	MaxSignalsPerHour     int                `yaml:"max_signals_per_hour"`
	Weights               map[string]float64 `yaml:"weights"`
}

// Cooldown returns the signal validity window as a duration.
func (e *EngineConfig) Cooldown() time.Duration {
	return time.Duration(e.SignalCooldownMinutes) * time.Minute
}

// Validate rejects out-of-domain thresholds. Called at load time and again
// on every hot reload; no cycle runs with an invalid engine config.
func (e *EngineConfig) Validate() error {
	p := &e.PCRThresholds
	if p.BuyCEMax <= 0 || p.BuyPEMin <= 0 {
		return fmt.Errorf("pcr thresholds must be positive")
	}
	if len(p.NeutralRange) != 2 {
		return fmt.Errorf("pcr neutral_range must have exactly two bounds")
	}
	if !(p.BuyCEMax < p.NeutralRange[0] && p.NeutralRange[0] <= p.NeutralRange[1] && p.NeutralRange[1] < p.BuyPEMin) {
		return fmt.Errorf("pcr thresholds must satisfy buy_ce_max < neutral_range[0] <= neutral_range[1] < buy_pe_min, got %.2f [%.2f %.2f] %.2f",
			p.BuyCEMax, p.NeutralRange[0], p.NeutralRange[1], p.BuyPEMin)
	}
	r := &e.RSILevels
	if !(0 < r.OversoldMax && r.OversoldMax < r.OverboughtMin && r.OverboughtMin < 100) {
		return fmt.Errorf("rsi levels must satisfy 0 < oversold_max < overbought_min < 100, got %.1f %.1f",
			r.OversoldMax, r.OverboughtMin)
	}
	o := &e.OIAnalysis
	if o.SignificantChangePct <= 0 {
		return fmt.Errorf("oi_analysis.significant_change_pct must be positive")
	}
	if o.VolumeSpikeMultiplier <= 0 {
		return fmt.Errorf("oi_analysis.volume_spike_multiplier must be positive")
	}
	if o.MinOILevel < 0 {
		return fmt.Errorf("oi_analysis.min_oi_level cannot be negative")
	}
	for ot, dir := range o.DirectionBias {
		if ot != "CE" && ot != "PE" {
			return fmt.Errorf("oi_analysis.direction_bias: unknown option type %q", ot)
		}
		if dir != "BUY_CE" && dir != "BUY_PE" {
			return fmt.Errorf("oi_analysis.direction_bias[%s]: unknown direction %q", ot, dir)
		}
	}
	if e.SignalCooldownMinutes <= 0 {
		return fmt.Errorf("signal_cooldown_minutes must be positive, got %d", e.SignalCooldownMinutes)
	}
	if e.ConfidenceThreshold <= 0 || e.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0,1], got %.2f", e.ConfidenceThreshold)
	}
	if e.NoiseMargin < 0 || e.NoiseMargin >= 1 {
		return fmt.Errorf("noise_margin must be in [0,1), got %.2f", e.NoiseMargin)
	}
	if e.MaxSignalsPerHour <= 0 {
		return fmt.Errorf("max_signals_per_hour must be positive, got %d", e.MaxSignalsPerHour)
	}
	total := 0.0
	for name, w := range e.Weights {
		switch name {
		case EvaluatorPCR, EvaluatorRSI, EvaluatorOIVolume:
		default:
			return fmt.Errorf("weights: unknown evaluator %q", name)
		}
		if w < 0 {
			return fmt.Errorf("weights[%s] cannot be negative", name)
		}
		total += w
	}
	for _, name := range []string{EvaluatorPCR, EvaluatorRSI, EvaluatorOIVolume} {
		if _, ok := e.Weights[name]; !ok {
			return fmt.Errorf("weights: missing evaluator %q", name)
		}
	}
	if total <= 0 {
		return fmt.Errorf("weights must have a positive sum")
	}
	return nil
}

// DefaultEngine returns the stock engine tuning. Used as the baseline in
// tests and when a deployment overrides only a subset of thresholds.
func DefaultEngine() EngineConfig {
	var e EngineConfig
	e.PCRThresholds.BuyCEMax = 0.7
	e.PCRThresholds.BuyPEMin = 1.3
	e.PCRThresholds.NeutralRange = []float64{0.8, 1.2}
	e.RSILevels.OversoldMax = 30
	e.RSILevels.OverboughtMin = 70
	e.OIAnalysis.SignificantChangePct = 15
	e.OIAnalysis.VolumeSpikeMultiplier = 2
	e.OIAnalysis.MinOILevel = 10000
	e.OIAnalysis.DirectionBias = map[string]string{"CE": "BUY_CE", "PE": "BUY_PE"}
	e.SignalCooldownMinutes = 15
	e.ConfidenceThreshold = 0.6
	e.NoiseMargin = 0.05
	e.MaxSignalsPerHour = 6
	e.Weights = map[string]float64{EvaluatorPCR: 1, EvaluatorRSI: 1, EvaluatorOIVolume: 1}
	return e
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Engine EngineConfig `yaml:"signal_generation"`
	Scheduler struct {
		MonitoringInterval time.Duration `yaml:"monitoring_interval"`
		MarketHours        struct {
			Enabled bool   `yaml:"enabled"`
			Start   string `yaml:"start"` // "09:15"
			End     string `yaml:"end"`   // "15:30"
		} `yaml:"market_hours"`
	} `yaml:"scheduler"`
	Feed struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		Symbols        []string      `yaml:"symbols"`
		StrikeStep     float64       `yaml:"strike_step"`
		StrikeWindow   int           `yaml:"strike_window"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"feed"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		SnapshotsTopic string   `yaml:"snapshots_topic"`
		SignalsTopic   string   `yaml:"signals_topic"`
		LogsTopic      string   `yaml:"logs_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Scorer struct {
		Enabled  bool          `yaml:"enabled"`
		URL      string        `yaml:"url"`
		Timeout  time.Duration `yaml:"timeout"`
		MinProba float64       `yaml:"min_proba"`
	} `yaml:"scorer"`
	Cache struct {
		Redis struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		HistoryTTL time.Duration `yaml:"history_ttl"`
	} `yaml:"cache"`
	Notify struct {
		Enabled     bool   `yaml:"enabled"`
		MessageType string `yaml:"message_type"`
		KeyPrefix   string `yaml:"key_prefix"`
		// Consume runs the in-process alert worker; leave off when an
		// external sender drains the queue instead.
		Consume    bool          `yaml:"consume"`
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"notify"`

	// path remembers where the config was loaded from, for reloads.
	path string
}

// Path returns the file this configuration was loaded from.
func (c *Config) Path() string { return c.path }

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	c.path = path
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("FEED_API_KEY"); v != "" {
		c.Feed.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Feed.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SIGNALS_TOPIC"); v != "" {
		c.Kafka.SignalsTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}

	return c, nil
}

// Validate checks if the configuration is valid. Engine thresholds are a
// configuration error at startup, never a runtime fallback.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed.symbols cannot be empty")
	}
	if c.Scheduler.MonitoringInterval <= 0 {
		return fmt.Errorf("scheduler.monitoring_interval must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host required when clickhouse is enabled")
	}
	if c.Scorer.Enabled && c.Scorer.URL == "" {
		return fmt.Errorf("scorer.url required when scorer is enabled")
	}
	if c.Notify.Enabled && !c.Cache.Redis.Enabled {
		return fmt.Errorf("notify requires cache.redis to be enabled")
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("signal_generation: %w", err)
	}
	return nil
}
