package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"        validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database"      validate:"required"`
	Queue         QueueConfig         `mapstructure:"queue"         validate:"required"`
	Daily         DailyConfig         `mapstructure:"daily"         validate:"required"`
	Storage       StorageConfig       `mapstructure:"storage"       validate:"required"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cleanup       CleanupConfig       `mapstructure:"cleanup"       validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port      int    `mapstructure:"port"       validate:"required,gt=0,lt=65536"`
	LogLevel  string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text"`
}

// DatabaseConfig selects the durable store backend.
// For sqlite the URL is a file path; for postgres it is a connection URL.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL    string `mapstructure:"url"    validate:"required"`
}

// QueueConfig tunes the task dispatcher.
type QueueConfig struct {
	Workers                int           `mapstructure:"workers"                   validate:"gte=1,lte=64"`
	PollInterval           time.Duration `mapstructure:"poll_interval"             validate:"gt=0"`
	HandlerTimeout         time.Duration `mapstructure:"handler_timeout"           validate:"gt=0"`
	StuckTaskAge           time.Duration `mapstructure:"stuck_task_age"            validate:"gt=0"`
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"gt=0"`
	RequeueAbandoned       bool          `mapstructure:"requeue_abandoned"`
}

// DailyConfig contains the remote recording service settings.
type DailyConfig struct {
	APIKey        string        `mapstructure:"api_key"        validate:"required"`
	APIURL        string        `mapstructure:"api_url"        validate:"required,url"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"        validate:"gt=0"`
}

// StorageConfig contains the S3-compatible blob storage settings.
// Credentials are optional; the default AWS credential chain is used when empty.
type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"            validate:"required"`
	Region          string `mapstructure:"region"            validate:"required"`
	Endpoint        string `mapstructure:"endpoint"          validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// TranscriptionConfig contains the Gemini transcription settings.
type TranscriptionConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required_if=Enabled true"`
	ModelName         string `mapstructure:"model_name"          validate:"required_if=Enabled true"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// RedisConfig enables cross-process dispatcher wake-ups when URL is set.
type RedisConfig struct {
	URL     string `mapstructure:"url"     validate:"omitempty,url"`
	Channel string `mapstructure:"channel" validate:"required_with=URL"`
}

// CleanupConfig controls the periodic maintenance jobs.
type CleanupConfig struct {
	Schedule              string `mapstructure:"schedule"                validate:"required"`
	AwaitingSweepSchedule string `mapstructure:"awaiting_sweep_schedule" validate:"required"`
	DaysOld               int    `mapstructure:"days_old"                validate:"gte=0"`
	// AwaitingMaxAge fails recordings whose artifact never appears. Zero disables it.
	AwaitingMaxAge time.Duration `mapstructure:"awaiting_max_age" validate:"gte=0"`
}
