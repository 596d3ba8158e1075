package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Pool     PoolConfig     `mapstructure:"pool"     validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port            int    `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"gte=0"` // seconds
}

// PoolConfig contains the task-execution pool settings. Durations are in
// milliseconds to keep the file and env representation flat.
type PoolConfig struct {
	MaxWorkers     int `mapstructure:"max_workers"      validate:"gte=0"`
	MinWorkers     int `mapstructure:"min_workers"      validate:"gte=0"`
	TaskTimeoutMs  int `mapstructure:"task_timeout_ms"  validate:"gte=0"`
	IdleTimeoutMs  int `mapstructure:"idle_timeout_ms"  validate:"gte=0"`
	MaxRetries     int `mapstructure:"max_retries"      validate:"gte=0"`
	ErrorThreshold int `mapstructure:"error_threshold"  validate:"gte=0"`
	CircuitResetMs int `mapstructure:"circuit_reset_ms" validate:"gte=0"`
}

// DatabaseConfig contains the settlement journal database settings.
// An empty URL disables journaling entirely.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains authentication settings for the HTTP facade.
// APIKeyHash is a bcrypt hash of the API key clients exchange for tokens.
type AuthConfig struct {
	TokenSecret          string `mapstructure:"token_secret"           validate:"required,min=32"`
	APIKeyHash           string `mapstructure:"api_key_hash"           validate:"required"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}
