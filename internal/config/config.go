package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Model       ModelConfig       `mapstructure:"model"`
	Consultant  ConsultantConfig  `mapstructure:"consultant"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	I18n        I18nConfig        `mapstructure:"i18n"`
}

type BotConfig struct {
	Token         string  `mapstructure:"token"`
	AdminIDs      []int64 `mapstructure:"admin_ids"`
	UpdateTimeout int     `mapstructure:"update_timeout"`
}

type MarketplaceConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Token        string        `mapstructure:"token"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ModelConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ConsultantConfig struct {
	DataDir            string `mapstructure:"data_dir"`
	HistoryMaxMessages int    `mapstructure:"history_max_messages"`
	HistoryMaxChars    int    `mapstructure:"history_max_chars"`
	SystemPrompt       string `mapstructure:"system_prompt"`
}

type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Directory       string   `mapstructure:"directory"`
	Languages       []string `mapstructure:"languages"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.BindEnv("bot.token", "BOT_TOKEN")
	viper.BindEnv("marketplace.base_url", "MARKETPLACE_BASE_URL")
	viper.BindEnv("marketplace.token", "MARKETPLACE_TOKEN")
	viper.BindEnv("model.base_url", "MODEL_BASE_URL")
	viper.BindEnv("model.api_key", "MODEL_API_KEY")
	viper.BindEnv("storage.redis.addr", "REDIS_ADDR")
	viper.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("storage.redis.db", "REDIS_DB")

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Allow a key baked into the environment to act as the fallback
	// when the admin never stored one through the console.
	if config.Model.APIKey == "" {
		config.Model.APIKey = os.Getenv("MODEL_API_KEY")
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("bot.update_timeout", 60)
	viper.SetDefault("marketplace.poll_interval", 3*time.Second)
	viper.SetDefault("marketplace.timeout", 15*time.Second)
	viper.SetDefault("model.temperature", 0.2)
	viper.SetDefault("model.timeout", 45*time.Second)
	viper.SetDefault("model.model", "meta-llama/Llama-3.3-70B-Instruct")
	viper.SetDefault("consultant.data_dir", "storage/consultant")
	viper.SetDefault("consultant.history_max_messages", 16)
	viper.SetDefault("consultant.history_max_chars", 1200)
	viper.SetDefault("storage.type", "file")
	viper.SetDefault("storage.redis.key", "consultant:settings")
	viper.SetDefault("cache.ttl", 10*time.Minute)
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("monitoring.metrics.path", "/metrics")
	viper.SetDefault("i18n.default_language", "en")
	viper.SetDefault("i18n.directory", "configs/i18n")
	viper.SetDefault("i18n.languages", []string{"en", "ru"})
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if cfg.Marketplace.BaseURL == "" {
		return fmt.Errorf("marketplace base URL is required")
	}
	if cfg.Model.BaseURL == "" {
		return fmt.Errorf("model base URL is required")
	}
	if cfg.Consultant.HistoryMaxMessages <= 0 {
		return fmt.Errorf("history_max_messages must be positive")
	}
	if cfg.Consultant.HistoryMaxChars <= 0 {
		return fmt.Errorf("history_max_chars must be positive")
	}
	switch cfg.Storage.Type {
	case "file", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	return nil
}
