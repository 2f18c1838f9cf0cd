package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Store     StoreConfig
	AccountDB AccountDBConfig
	Cache     CacheConfig
	Upstream  UpstreamConfig
	Discovery DiscoveryConfig
	Scheduler SchedulerConfig
	Backup    BackupConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"ks-rewards"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
}

// StoreConfig holds embedded store settings.
type StoreConfig struct {
	Path string `envconfig:"DB_PATH" default:"./data/ks-rewards.db"`
}

// AccountDBConfig holds the optional external MySQL account roster.
// When Host is empty, accounts live in the embedded store.
type AccountDBConfig struct {
	Host     string `envconfig:"ACCOUNT_DB_HOST" default:""`
	Port     int    `envconfig:"ACCOUNT_DB_PORT" default:"3306"`
	Name     string `envconfig:"ACCOUNT_DB_NAME" default:"ks_rewards"`
	User     string `envconfig:"ACCOUNT_DB_USER" default:"root"`
	Password string `envconfig:"ACCOUNT_DB_PASS" default:""`
}

// CacheConfig holds stats cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// UpstreamConfig holds the game backend endpoints and request policy.
type UpstreamConfig struct {
	LoginURL   string        `envconfig:"KS_LOGIN_URL" default:"https://kingshot-giftcode.centurygame.com/api/player"`
	RedeemURL  string        `envconfig:"KS_REDEEM_URL" default:"https://kingshot-giftcode.centurygame.com/api/gift_code"`
	EncryptKey string        `envconfig:"KS_ENCRYPT_KEY" default:""`
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelay time.Duration `envconfig:"RETRY_DELAY" default:"2s"`
	Timeout    time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`

	// MinInterval is the process-wide floor between any two outbound
	// requests.
	MinInterval time.Duration `envconfig:"MIN_REQUEST_INTERVAL" default:"500ms"`

	// RedeemDelay is the extra pause between queue items in a batch.
	RedeemDelay time.Duration `envconfig:"REDEEM_DELAY" default:"1s"`

	// ValidationFID is the fallback test account for code validation.
	ValidationFID string `envconfig:"VALIDATION_FID" default:"27370737"`
}

// DiscoveryConfig holds the external code feed settings.
type DiscoveryConfig struct {
	FeedURL string        `envconfig:"GIFTCODE_API_URL" default:"http://ks-gift-code-api.whiteout-bot.com/giftcode_api.php"`
	APIKey  string        `envconfig:"GIFTCODE_API_KEY" default:""`
	Timeout time.Duration `envconfig:"GIFTCODE_API_TIMEOUT" default:"15s"`
}

// SchedulerConfig holds periodic task intervals.
type SchedulerConfig struct {
	RedemptionInterval   time.Duration `envconfig:"REDEMPTION_INTERVAL" default:"2m"`
	DiscoveryInterval    time.Duration `envconfig:"DISCOVERY_INTERVAL" default:"15m"`
	BackupInterval       time.Duration `envconfig:"BACKUP_INTERVAL" default:"6h"`
	RevalidationInterval time.Duration `envconfig:"REVALIDATION_INTERVAL" default:"0"`
	BatchSize            int           `envconfig:"REDEMPTION_BATCH_SIZE" default:"100"`
}

// BackupConfig holds backup settings.
type BackupConfig struct {
	Dir       string        `envconfig:"BACKUP_DIR" default:"./backups"`
	Retention time.Duration `envconfig:"BACKUP_RETENTION" default:"720h"` // 30 days
}

// DSN returns the MySQL data source name for the account roster.
func (d *AccountDBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// Enabled reports whether an external account roster is configured.
func (d *AccountDBConfig) Enabled() bool {
	return d.Host != ""
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
