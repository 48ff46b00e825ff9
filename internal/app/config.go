package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Драйверы хранилищ.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	CartDriverRedis       = "redis"
)

// Форматы логов.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultJWTSecret используется только для локального запуска.
const DefaultJWTSecret = "storefront-dev-secret"

// ConfigEnv: переменная окружения с путём к YAML-конфигу.
const ConfigEnv = "STOREFRONT_CONFIG"

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`

	// CartDriver пустой: корзины живут там же, где заказы.
	CartDriver    string        `yaml:"cart_driver"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CartTTL       time.Duration `yaml:"cart_ttl"`

	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaTopic    string   `yaml:"kafka_topic"`
	KafkaDLQTopic string   `yaml:"kafka_dlq_topic"`
	KafkaClientID string   `yaml:"kafka_client_id"`

	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `yaml:"outbox_retry_delay"`

	IdempotencyCleanupInterval  time.Duration `yaml:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `yaml:"idempotency_cleanup_batch_size"`

	JWTSecret          string `yaml:"jwt_secret"`
	EnforceTransitions bool   `yaml:"enforce_transitions"`
	SeedCatalog        bool   `yaml:"seed_catalog"`
	SeedUsers          bool   `yaml:"seed_users"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig возвращает конфигурацию для локального запуска в памяти.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":5000",
		MetricsAddr:                 ":9090",
		GRPCAddr:                    ":50051",
		ShutdownTimeout:             5 * time.Second,
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		RedisAddr:                   "localhost:6379",
		CartTTL:                     30 * 24 * time.Hour,
		KafkaClientID:               "storefront",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		JWTSecret:                   DefaultJWTSecret,
		SeedCatalog:                 true,
		SeedUsers:                   true,
		LogLevel:                    "info",
		LogFormat:                   LogFormatText,
	}
}

// LoadConfig собирает конфигурацию: дефолты, затем YAML из STOREFRONT_CONFIG,
// затем переменные STOREFRONT_*.
func LoadConfig(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if path := strings.TrimSpace(getenv(ConfigEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	env := envReader{getenv: getenv}

	env.str("STOREFRONT_HTTP_ADDR", &c.HTTPAddr)
	env.str("STOREFRONT_METRICS_ADDR", &c.MetricsAddr)
	env.str("STOREFRONT_GRPC_ADDR", &c.GRPCAddr)
	env.duration("STOREFRONT_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)

	env.str("STOREFRONT_STORAGE_DRIVER", &c.StorageDriver)
	env.str("STOREFRONT_POSTGRES_DSN", &c.PostgresDSN)
	env.boolean("STOREFRONT_POSTGRES_AUTO_MIGRATE", &c.PostgresAutoMigrate)

	env.str("STOREFRONT_CART_DRIVER", &c.CartDriver)
	env.str("STOREFRONT_REDIS_ADDR", &c.RedisAddr)
	env.str("STOREFRONT_REDIS_PASSWORD", &c.RedisPassword)
	env.integer("STOREFRONT_REDIS_DB", &c.RedisDB)
	env.duration("STOREFRONT_CART_TTL", &c.CartTTL)

	env.list("STOREFRONT_KAFKA_BROKERS", &c.KafkaBrokers)
	env.str("STOREFRONT_KAFKA_TOPIC", &c.KafkaTopic)
	env.str("STOREFRONT_KAFKA_DLQ_TOPIC", &c.KafkaDLQTopic)
	env.str("STOREFRONT_KAFKA_CLIENT_ID", &c.KafkaClientID)

	env.duration("STOREFRONT_OUTBOX_POLL_INTERVAL", &c.OutboxPollInterval)
	env.integer("STOREFRONT_OUTBOX_BATCH_SIZE", &c.OutboxBatchSize)
	env.integer("STOREFRONT_OUTBOX_MAX_ATTEMPTS", &c.OutboxMaxAttempts)
	env.duration("STOREFRONT_OUTBOX_RETRY_DELAY", &c.OutboxRetryDelay)

	env.duration("STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL", &c.IdempotencyCleanupInterval)
	env.integer("STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &c.IdempotencyCleanupBatchSize)

	env.str("STOREFRONT_JWT_SECRET", &c.JWTSecret)
	env.boolean("STOREFRONT_ENFORCE_TRANSITIONS", &c.EnforceTransitions)
	env.boolean("STOREFRONT_SEED_CATALOG", &c.SeedCatalog)
	env.boolean("STOREFRONT_SEED_USERS", &c.SeedUsers)

	env.str("STOREFRONT_LOG_LEVEL", &c.LogLevel)
	env.str("STOREFRONT_LOG_FORMAT", &c.LogFormat)

	return errors.Join(env.errs...)
}

// EffectiveCartDriver возвращает драйвер корзин с учётом значения по умолчанию.
func (c Config) EffectiveCartDriver() string {
	if c.CartDriver == "" {
		return c.StorageDriver
	}
	return c.CartDriver
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be > 0"))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres_dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage_driver %q", c.StorageDriver))
	}

	switch cart := c.EffectiveCartDriver(); cart {
	case CartDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("redis_addr is required for redis cart driver"))
		}
	case StorageDriverMemory, StorageDriverPostgres:
		// атомарное оформление возможно только в одном хранилище
		if cart != c.StorageDriver {
			errs = append(errs, fmt.Errorf("cart_driver %q requires storage_driver %q", cart, cart))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cart_driver %q", cart))
	}

	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox_poll_interval must be > 0"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox_batch_size must be > 0"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox_max_attempts must be > 0"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox_retry_delay must be >= 0"))
	}
	if c.IdempotencyCleanupInterval <= 0 {
		errs = append(errs, errors.New("idempotency_cleanup_interval must be > 0"))
	}
	if c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("idempotency_cleanup_batch_size must be > 0"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("unsupported log_format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

type envReader struct {
	getenv func(string) string
	errs   []error
}

func (r *envReader) lookup(key string) (string, bool) {
	value := strings.TrimSpace(r.getenv(key))
	return value, value != ""
}

func (r *envReader) str(key string, dst *string) {
	if value, ok := r.lookup(key); ok {
		*dst = value
	}
}

func (r *envReader) list(key string, dst *[]string) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	var items []string
	for _, chunk := range strings.Split(value, ",") {
		if item := strings.TrimSpace(chunk); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func (r *envReader) integer(key string, dst *int) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}

func (r *envReader) boolean(key string, dst *bool) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}

func (r *envReader) duration(key string, dst *time.Duration) {
	value, ok := r.lookup(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = parsed
}
