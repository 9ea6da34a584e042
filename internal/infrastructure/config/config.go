package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Executor      ExecutorConfig      `mapstructure:"executor"`
	Queue         QueueConfig         `mapstructure:"queue"`
	Capture       CaptureConfig       `mapstructure:"capture"`
	Expiry        ExpiryConfig        `mapstructure:"expiry"`
	Gateways      GatewaysConfig      `mapstructure:"gateways"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	InstanceID    string              `mapstructure:"instance_id"`
}

// ServerConfig configures the operational HTTP listener (health and metrics).
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Stream   string `mapstructure:"stream"`
}

// ExecutorConfig bounds concurrent gateway operations and the synchronous
// wait callers are willing to endure.
type ExecutorConfig struct {
	PoolSize    int           `mapstructure:"pool_size"`
	QueueSize   int           `mapstructure:"queue_size"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// QueueConfig tunes the state-transition retry queue.
type QueueConfig struct {
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// CaptureConfig tunes the background capture process.
type CaptureConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// ExpiryConfig tunes the abandoned-charge sweep.
type ExpiryConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Threshold time.Duration `mapstructure:"threshold"`
	BatchSize int           `mapstructure:"batch_size"`
}

// GatewaysConfig holds the endpoint each provider adapter talks to. Test and
// live accounts use the same endpoint per environment deployment.
type GatewaysConfig struct {
	WorldpayURL     string        `mapstructure:"worldpay_url"`
	EpdqURL         string        `mapstructure:"epdq_url"`
	StripeURL       string        `mapstructure:"stripe_url"`
	StripeAuthToken string        `mapstructure:"stripe_auth_token"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CONNECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pay-connector")

	// Config file is optional
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Executor.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("executor.pool_size must be positive"))
	}
	if c.Executor.WaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("executor.wait_timeout must be positive"))
	}
	if c.Queue.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("queue.max_attempts must be positive"))
	}
	if c.Capture.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("capture.batch_size must be positive"))
	}
	if c.Expiry.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("expiry.threshold must be positive"))
	}

	env := os.Getenv("ENV")
	if env == "production" || env == "prod" {
		if c.Database.Password == "" {
			errs = append(errs, fmt.Errorf("database.password required in production"))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "connector")
	v.SetDefault("database.database", "connector")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stream", "payment-events")

	// Executor defaults
	v.SetDefault("executor.pool_size", 20)
	v.SetDefault("executor.queue_size", 200)
	v.SetDefault("executor.wait_timeout", "10s")

	// Queue defaults
	v.SetDefault("queue.base_delay", "100ms")
	v.SetDefault("queue.max_attempts", 10)

	// Capture defaults
	v.SetDefault("capture.interval", "15s")
	v.SetDefault("capture.batch_size", 100)
	v.SetDefault("capture.max_retries", 48)

	// Expiry defaults
	v.SetDefault("expiry.interval", "30m")
	v.SetDefault("expiry.threshold", "90m")
	v.SetDefault("expiry.batch_size", 100)

	// Gateway endpoint defaults
	v.SetDefault("gateways.worldpay_url", "https://secure-test.worldpay.com/jsp/merchant/xml/paymentService.jsp")
	v.SetDefault("gateways.epdq_url", "https://mdepayments.epdq.co.uk/ncol/test")
	v.SetDefault("gateways.stripe_url", "https://api.stripe.com")
	v.SetDefault("gateways.timeout", "50s")

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "pay-connector-1")
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
