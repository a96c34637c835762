package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Redis; empty keeps the in-memory store
	RedisURL string `mapstructure:"REDIS_URL"`

	// Telemetry database
	TelemetryDBPath string `mapstructure:"TELEMETRY_DB_PATH"`

	// Course bundle service
	CourseServiceURL   string        `mapstructure:"COURSE_SERVICE_URL"`
	CourseFetchTimeout time.Duration `mapstructure:"COURSE_FETCH_TIMEOUT"`
	CourseCacheTTL     time.Duration `mapstructure:"COURSE_CACHE_TTL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Planner tuning
	RiskGate      float64 `mapstructure:"RISK_GATE"`
	MCTopTee      int     `mapstructure:"MC_TOP_TEE"`
	MCTopApproach int     `mapstructure:"MC_TOP_APPROACH"`

	// Player model
	DispersionMinSamples int `mapstructure:"DISPERSION_MIN_SAMPLES"`

	// Learning aggregator
	LearningAlpha      float64 `mapstructure:"LEARNING_ALPHA"`
	LearningTarget     float64 `mapstructure:"LEARNING_TARGET"`
	LearningGain       float64 `mapstructure:"LEARNING_GAIN"`
	LearningMinSamples float64 `mapstructure:"LEARNING_MIN_SAMPLES"`
	LearningFoldCron   string  `mapstructure:"LEARNING_FOLD_CRON"`
	TelemetryRetention time.Duration `mapstructure:"TELEMETRY_RETENTION"`

	// Plays-like personalization
	TuningLambda float64 `mapstructure:"TUNING_LAMBDA"`

	// Rate limiting (requests per second per client, with burst)
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("TELEMETRY_DB_PATH", "caddie_telemetry.db")
	viper.SetDefault("COURSE_SERVICE_URL", "")
	viper.SetDefault("COURSE_FETCH_TIMEOUT", "10s")
	viper.SetDefault("COURSE_CACHE_TTL", "5m")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("RISK_GATE", 0.42)
	viper.SetDefault("MC_TOP_TEE", 5)
	viper.SetDefault("MC_TOP_APPROACH", 3)
	viper.SetDefault("DISPERSION_MIN_SAMPLES", 6)
	viper.SetDefault("LEARNING_ALPHA", 0.2)
	viper.SetDefault("LEARNING_TARGET", 0.7)
	viper.SetDefault("LEARNING_GAIN", 0.5)
	viper.SetDefault("LEARNING_MIN_SAMPLES", 50)
	viper.SetDefault("LEARNING_FOLD_CRON", "@every 1h")
	viper.SetDefault("TELEMETRY_RETENTION", "720h") // 30 days
	viper.SetDefault("TUNING_LAMBDA", 0.1)
	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := viper.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
