package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application's configuration
type Config struct {
	OracleHost           string        `mapstructure:"ORACLE_HOST"`
	OracleModel          string        `mapstructure:"ORACLE_MODEL"`
	OracleTemperature    float64       `mapstructure:"ORACLE_TEMPERATURE"`
	OracleRequestTimeout time.Duration `mapstructure:"ORACLE_REQUEST_TIMEOUT"`
	MaxRetries           int           `mapstructure:"MAX_RETRIES"`
	RetryDelaySeconds    time.Duration `mapstructure:"RETRY_DELAY_SECONDS"`
	ResponseCacheSize    int           `mapstructure:"RESPONSE_CACHE_SIZE"`
	ChunkSize            int           `mapstructure:"CHUNK_SIZE"`
	ChunkOverlap         int           `mapstructure:"CHUNK_OVERLAP"`
	SentenceChunking     bool          `mapstructure:"SENTENCE_CHUNKING"`
	EntitySimThreshold   float64       `mapstructure:"ENTITY_SIMILARITY_THRESHOLD"`
	EventSimThreshold    float64       `mapstructure:"EVENT_SIMILARITY_THRESHOLD"`
	OutputDir            string        `mapstructure:"OUTPUT_DIR"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	WebPort              int           `mapstructure:"WEB_PORT"`
	MaxUploadBytes       int64         `mapstructure:"MAX_UPLOAD_BYTES"`
	UploadsPerMinute     int           `mapstructure:"UPLOADS_PER_MINUTE"`
	UploadBurst          int           `mapstructure:"UPLOAD_BURST"`
	RunRetentionDays     int           `mapstructure:"RUN_RETENTION_DAYS"`
	GraphIndex           bool          `mapstructure:"GRAPH_INDEX"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
}

func Load(logger *zap.Logger) *Config {
	var config Config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")        // For running locally
	viper.AddConfigPath("./config") // Common config folder
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("ORACLE_HOST", "http://localhost:11434")
	viper.SetDefault("ORACLE_MODEL", "llama3.1")
	viper.SetDefault("ORACLE_TEMPERATURE", 0.2)
	viper.SetDefault("ORACLE_REQUEST_TIMEOUT", 300)
	viper.SetDefault("MAX_RETRIES", 2)
	viper.SetDefault("RETRY_DELAY_SECONDS", 1)
	viper.SetDefault("RESPONSE_CACHE_SIZE", 128)
	viper.SetDefault("CHUNK_SIZE", 1000)
	viper.SetDefault("CHUNK_OVERLAP", 180)
	viper.SetDefault("SENTENCE_CHUNKING", false)
	viper.SetDefault("ENTITY_SIMILARITY_THRESHOLD", 0.7)
	viper.SetDefault("EVENT_SIMILARITY_THRESHOLD", 0.6)
	viper.SetDefault("OUTPUT_DIR", "./output")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("WEB_PORT", 8089)
	viper.SetDefault("MAX_UPLOAD_BYTES", 32<<20)
	viper.SetDefault("UPLOADS_PER_MINUTE", 6)
	viper.SetDefault("UPLOAD_BURST", 3)
	viper.SetDefault("RUN_RETENTION_DAYS", 0) // 0 keeps runs forever
	viper.SetDefault("GRAPH_INDEX", true)
	viper.SetDefault("LOG_LEVEL", "info")

	if err := viper.ReadInConfig(); err != nil {
		if logger != nil {
			logger.Warn("Could not read config file, using defaults/env vars", zap.Error(err))
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		// Config unmarshaling is critical - fail fast during bootstrap
		if logger != nil {
			logger.Fatal("Unable to decode config into struct", zap.Error(err))
		} else {
			// Fallback if logger not available (should not happen in practice)
			fmt.Fprintf(os.Stderr, "FATAL: Unable to decode config into struct: %v\n", err)
			os.Exit(1)
		}
	}

	// Overlap must leave the window a forward stride or segmentation stalls.
	if config.ChunkSize > 0 && config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 2
		if logger != nil {
			logger.Warn("Chunk overlap >= chunk size, clamping",
				zap.Int("chunk_size", config.ChunkSize),
				zap.Int("chunk_overlap", config.ChunkOverlap))
		}
	}

	// Convert scalar seconds to proper time.Duration
	config.RetryDelaySeconds = config.RetryDelaySeconds * time.Second
	config.OracleRequestTimeout = config.OracleRequestTimeout * time.Second

	return &config
}
