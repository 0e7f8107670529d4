package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variables, e.g.
// ANALYSIS_SERVER_PORT or ANALYSIS_DATABASE_URL.
const envPrefix = "ANALYSIS"

// Load reads configuration from environment variables and optionally a
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file. Returns a populated
// Config struct or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; env vars and defaults carry the load.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every setting. Secrets and URLs
// default to empty so validation forces callers to provide them;
// registering the key is still required for the env binding to work.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 30)
	v.SetDefault("auth.trusted_service", "analysis_worker")

	v.SetDefault("cache.capacity", 5)

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.retry_budget", 5)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.ack_timeout_seconds", 1800)

	v.SetDefault("engine.gemini_api_key", "")
	v.SetDefault("engine.model_name", "gemini-2.0-flash")
	v.SetDefault("engine.max_retries", 2)
	v.SetDefault("engine.retry_delay_seconds", 2)

	v.SetDefault("notify.callback_url", "")
	v.SetDefault("notify.attempts", 3)
	v.SetDefault("notify.timeout_seconds", 5)
	v.SetDefault("notify.refresh_leeway_seconds", 60)

	v.SetDefault("dispatch.upload_dir", "uploads")
	v.SetDefault("dispatch.reconcile_interval_seconds", 300)
	v.SetDefault("dispatch.stuck_job_age_minutes", 30)
}
