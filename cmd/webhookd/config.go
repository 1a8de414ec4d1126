package main

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config is the daemon configuration, read from webhookd.toml and the
// environment.
type Config struct {
	Port string `mapstructure:"PORT"`

	// RedisAddr selects the Redis store; empty falls back to the
	// in-memory store (development only).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// DatabaseURL enables the River job queue for retries; empty falls
	// back to the store poller.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// MasterKey encrypts payload snapshots at rest. Required outside
	// development.
	MasterKey string `mapstructure:"MASTER_KEY"`

	LogLevel string `mapstructure:"LOG_LEVEL"`

	Concurrency      int `mapstructure:"CONCURRENCY"`
	RequestTimeoutMS int `mapstructure:"REQUEST_TIMEOUT_MS"`
	RetryBudget      int `mapstructure:"RETRY_BUDGET"`
}

func getConfig() (*Config, error) {
	viper.SetConfigName("webhookd")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/webhookd")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	if err := viper.ReadInConfig(); err != nil {
		// Environment-only configuration is fine.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}
