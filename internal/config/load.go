package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and optionally a
// config file. Environment variables (TASKMILL_ prefix, underscores for
// nesting) take precedence over values from config files, which take
// precedence over defaults. Returns a populated Config struct or an error
// if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory or /etc/taskmill.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/taskmill")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars and defaults apply.
	}

	v.SetEnvPrefix("TASKMILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every key so viper knows the
// full key set before unmarshalling.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 15)

	// Zero pool values defer to the pool package's own defaults.
	v.SetDefault("pool.max_workers", 0)
	v.SetDefault("pool.min_workers", 1)
	v.SetDefault("pool.task_timeout_ms", 30000)
	v.SetDefault("pool.idle_timeout_ms", 60000)
	v.SetDefault("pool.max_retries", 2)
	v.SetDefault("pool.error_threshold", 5)
	v.SetDefault("pool.circuit_reset_ms", 30000)

	v.SetDefault("database.url", "")

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
}
