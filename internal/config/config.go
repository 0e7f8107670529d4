package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"    validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine"   validate:"required"`
	Notify   NotifyConfig   `mapstructure:"notify"   validate:"required"`
	Dispatch DispatchConfig `mapstructure:"dispatch" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	// JWTSecret signs every token; user and service tokens share it.
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`

	// TrustedService is the one subject allowed to act in the service
	// role. Service-role tokens for any other subject are rejected.
	TrustedService string `mapstructure:"trusted_service" validate:"required"`
}

// CacheConfig controls the bounded per-user result cache.
type CacheConfig struct {
	// Capacity is the maximum number of entries retained per user, both
	// in memory and durably.
	Capacity int `mapstructure:"capacity" validate:"required,gt=0"`
}

// WorkerConfig controls the analysis worker pool and its queue.
type WorkerConfig struct {
	Count             int `mapstructure:"count"               validate:"required,gt=0"`
	RetryBudget       int `mapstructure:"retry_budget"        validate:"required,gt=0"`
	QueueSize         int `mapstructure:"queue_size"          validate:"required,gt=0"`
	AckTimeoutSeconds int `mapstructure:"ack_timeout_seconds" validate:"required,gt=0"`
}

// EngineConfig contains analysis engine integration settings.
type EngineConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// NotifyConfig controls outcome delivery back to the callback endpoint.
// Service tokens are minted with the auth token lifetime; the notifier
// only decides how close to expiry it refreshes.
type NotifyConfig struct {
	CallbackURL          string `mapstructure:"callback_url"           validate:"required,url"`
	Attempts             int    `mapstructure:"attempts"               validate:"required,gt=0"`
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"        validate:"required,gt=0"`
	RefreshLeewaySeconds int    `mapstructure:"refresh_leeway_seconds" validate:"required,gt=0"`
}

// DispatchConfig controls the job dispatcher.
type DispatchConfig struct {
	UploadDir                string `mapstructure:"upload_dir"                 validate:"required"`
	ReconcileIntervalSeconds int    `mapstructure:"reconcile_interval_seconds" validate:"required,gt=0"`
	StuckJobAgeMinutes       int    `mapstructure:"stuck_job_age_minutes"      validate:"required,gt=0"`
}
