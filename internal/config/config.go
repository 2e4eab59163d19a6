// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig     `mapstructure:"app"`
	Chains   []ChainConfig `mapstructure:"chains"`
	Storage  StorageConfig `mapstructure:"storage"`
	Sampler  SamplerConfig `mapstructure:"sampler"`
	Server   ServerConfig  `mapstructure:"server"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Ingest   IngestConfig  `mapstructure:"ingest"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ChainConfig describes one supported chain. The chain table is static
// after process start.
type ChainConfig struct {
	ChainID        uint64        `mapstructure:"chain_id"`
	Name           string        `mapstructure:"name"`
	NodeURL        string        `mapstructure:"node_url"`
	BackupNodes    []string      `mapstructure:"backup_nodes"`
	NativeSymbol   string        `mapstructure:"native_symbol"`
	ExplorerURL    string        `mapstructure:"explorer_url"`
	BlockTime      time.Duration `mapstructure:"block_time"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres, memory
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
	EventQueryCap    int           `mapstructure:"event_query_cap"`
}

// SamplerConfig contains state sampling configuration
type SamplerConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	OwnerSampleSize   int           `mapstructure:"owner_sample_size"`
	HeavySampleEvery  time.Duration `mapstructure:"heavy_sample_every"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
}

// IngestConfig contains event ingestion configuration
type IngestConfig struct {
	ReceiptTimeout   time.Duration `mapstructure:"receipt_timeout"`
	ResubscribeDelay time.Duration `mapstructure:"resubscribe_delay"`
	HistoryWindow    time.Duration `mapstructure:"history_window"`
}

// ServerConfig contains ops HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./internal/config")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("CONTRACT_OBSERVER")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "contract-observer")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Storage defaults
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.connection_string", "./data/observer.db")
	viper.SetDefault("storage.max_connections", 25)
	viper.SetDefault("storage.max_idle_time", "15m")
	viper.SetDefault("storage.event_query_cap", 1000)

	// Sampler defaults
	viper.SetDefault("sampler.interval", "30s")
	viper.SetDefault("sampler.owner_sample_size", 50)
	viper.SetDefault("sampler.heavy_sample_every", "5m")
	viper.SetDefault("sampler.probe_timeout", "10s")

	// Ingest defaults
	viper.SetDefault("ingest.receipt_timeout", "15s")
	viper.SetDefault("ingest.resubscribe_delay", "5s")
	viper.SetDefault("ingest.history_window", "24h")

	// Server defaults
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	seen := map[uint64]bool{}
	for _, chain := range c.Chains {
		if chain.NodeURL == "" {
			return fmt.Errorf("chain %d: node URL is required", chain.ChainID)
		}
		if seen[chain.ChainID] {
			return fmt.Errorf("chain %d configured twice", chain.ChainID)
		}
		seen[chain.ChainID] = true
	}
	if c.Storage.ConnectionString == "" && c.Storage.Type != "memory" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler interval must be positive")
	}
	if c.Sampler.OwnerSampleSize <= 0 {
		return fmt.Errorf("sampler owner sample size must be positive")
	}
	return nil
}
