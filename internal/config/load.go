package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. MEETREC_DATABASE_URL.
const EnvPrefix = "MEETREC"

// keys lists every configuration key so environment variables can be bound even
// when no default or config file value exists for them.
var keys = []string{
	"server.port",
	"server.log_level",
	"server.log_format",
	"database.driver",
	"database.url",
	"queue.workers",
	"queue.poll_interval",
	"queue.handler_timeout",
	"queue.stuck_task_age",
	"queue.stuck_task_check_interval",
	"queue.requeue_abandoned",
	"daily.api_key",
	"daily.api_url",
	"daily.webhook_secret",
	"daily.timeout",
	"storage.bucket",
	"storage.region",
	"storage.endpoint",
	"storage.access_key_id",
	"storage.secret_access_key",
	"storage.use_path_style",
	"transcription.enabled",
	"transcription.gemini_api_key",
	"transcription.model_name",
	"transcription.max_retries",
	"transcription.retry_delay_seconds",
	"redis.url",
	"redis.channel",
	"cleanup.schedule",
	"cleanup.awaiting_sweep_schedule",
	"cleanup.days_old",
	"cleanup.awaiting_max_age",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "meetrec.db")

	v.SetDefault("queue.workers", 1)
	v.SetDefault("queue.poll_interval", time.Second)
	v.SetDefault("queue.handler_timeout", 15*time.Minute)
	v.SetDefault("queue.stuck_task_age", 30*time.Minute)
	v.SetDefault("queue.stuck_task_check_interval", 5*time.Minute)
	v.SetDefault("queue.requeue_abandoned", true)

	v.SetDefault("daily.api_url", "https://api.daily.co/v1")
	v.SetDefault("daily.timeout", 30*time.Second)

	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("transcription.enabled", false)
	v.SetDefault("transcription.model_name", "gemini-2.0-flash")
	v.SetDefault("transcription.max_retries", 3)
	v.SetDefault("transcription.retry_delay_seconds", 2)

	v.SetDefault("redis.channel", "meetrec:tasks")

	v.SetDefault("cleanup.schedule", "@daily")
	v.SetDefault("cleanup.awaiting_sweep_schedule", "@every 10m")
	v.SetDefault("cleanup.days_old", 30)
	v.SetDefault("cleanup.awaiting_max_age", 24*time.Hour)
}

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over values from the config file.
// An empty configFile searches for config.yaml in the working directory.
// Returns a populated Config or an error if loading or validation fails.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct-level constraints on an already populated Config.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
