package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	NATS         NATSConfig         `mapstructure:"nats"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Inference    InferenceConfig    `mapstructure:"inference"`
	Realtime     RealtimeConfig     `mapstructure:"realtime"`
	Notification NotificationConfig `mapstructure:"notification"`
	Storage      StorageConfig      `mapstructure:"storage"`
	CORS         CORSConfig         `mapstructure:"cors"`
	OTel         OTelConfig         `mapstructure:"otel"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	ClientID    string   `mapstructure:"client_id"`
	EventsTopic string   `mapstructure:"events_topic"`
}

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

// JWTConfig holds JWT settings. Secret is base64 encoded.
type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	Issuer          string        `mapstructure:"issuer"`
}

// AuthConfig holds login and password settings
type AuthConfig struct {
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
}

// InferenceConfig holds the external AI service endpoints
type InferenceConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	GenerateTimeout    time.Duration `mapstructure:"generate_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RecipeGeneratePath string        `mapstructure:"recipe_generate_path"`
	SubstitutePath     string        `mapstructure:"substitute_path"`
	RecipePath         string        `mapstructure:"recipe_path"`
	NutritionPath      string        `mapstructure:"nutrition_path"`
	ChatPath           string        `mapstructure:"chat_path"`
	UserInfoPath       string        `mapstructure:"user_info_path"`
}

// RealtimeConfig holds websocket/STOMP endpoint settings
type RealtimeConfig struct {
	Path           string        `mapstructure:"path"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// NotificationConfig selects how notifications reach sessions on other instances
type NotificationConfig struct {
	Relay   string `mapstructure:"relay"` // local, redis, nats
	Channel string `mapstructure:"channel"`
}

// StorageConfig holds S3 settings for uploaded recipe images
type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	CollectorAddr string  `mapstructure:"collector_addr"`
	SampleRatio   float64 `mapstructure:"sample_ratio"`
}

// MetricsConfig holds prometheus settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// defaults are keyed by section.field; the environment variable for a key is
// the key upper-cased with dots turned into underscores (server.port -> SERVER_PORT)
var defaults = map[string]any{
	"app.name":        "recipe-bff",
	"app.environment": "development",
	"app.debug":       true,
	"app.version":     "1.0.0",
	"app.log_level":   "info",

	"server.host":          "0.0.0.0",
	"server.port":          8080,
	"server.read_timeout":  "30s",
	"server.write_timeout": "150s",
	"server.idle_timeout":  "120s",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "postgres",
	"database.dbname":             "capstone",
	"database.sslmode":            "disable",
	"database.max_open_conns":     50,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  "1h",
	"database.conn_max_idle_time": "30m",
	"database.auto_migrate":       false,

	"redis.enabled":        false,
	"redis.host":           "localhost",
	"redis.port":           6379,
	"redis.password":       "",
	"redis.db":             0,
	"redis.pool_size":      20,
	"redis.min_idle_conns": 2,
	"redis.dial_timeout":   "5s",
	"redis.read_timeout":   "3s",
	"redis.write_timeout":  "3s",

	"kafka.enabled":      false,
	"kafka.brokers":      "localhost:9092",
	"kafka.client_id":    "recipe-bff",
	"kafka.events_topic": "recipe-events",

	"nats.url":  "nats://localhost:4222",
	"nats.name": "recipe-bff",

	// no secret default: a missing secret is fatal
	"jwt.secret":            "",
	"jwt.access_token_ttl":  "1h",
	"jwt.refresh_token_ttl": "336h",
	"jwt.issuer":            "recipe-bff",

	"auth.login_timeout": "5s",
	"auth.bcrypt_cost":   10,

	"inference.base_url":             "http://localhost:5000",
	"inference.timeout":              "30s",
	"inference.generate_timeout":     "120s",
	"inference.max_retries":          2,
	"inference.recipe_generate_path": "/api/recipe/generate",
	"inference.substitute_path":      "/api/recipe/substitute",
	"inference.recipe_path":          "/api/recipe",
	"inference.nutrition_path":       "/api/nutrition",
	"inference.chat_path":            "/api/chat",
	"inference.user_info_path":       "/api/chat/user-info",

	"realtime.path":             "/ws",
	"realtime.allowed_origins":  "*",
	"realtime.read_timeout":     "60s",
	"realtime.write_timeout":    "10s",
	"realtime.ping_interval":    "25s",
	"realtime.max_message_size": 64 * 1024,
	"realtime.send_buffer":      64,

	"notification.relay":   "local",
	"notification.channel": "recipe-bff.notifications",

	"storage.enabled":           false,
	"storage.bucket":            "",
	"storage.region":            "ap-northeast-2",
	"storage.endpoint":          "",
	"storage.access_key_id":     "",
	"storage.secret_access_key": "",
	"storage.public_base_url":   "",

	"cors.allowed_origins": "http://localhost:3000,http://localhost:8080,http://127.0.0.1:3000,http://127.0.0.1:8080",

	"otel.enabled":        false,
	"otel.service_name":   "recipe-bff",
	"otel.collector_addr": "localhost:4317",
	"otel.sample_ratio":   1.0,

	"metrics.enabled": true,
	"metrics.path":    "/metrics",
}

// Load reads ./.env when present, then the environment
func Load() (*Config, error) {
	v := newViper()
	if err := mergeEnvFile(v, ".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return load(v)
}

// LoadWithPath is Load with an explicit env file that must exist
func LoadWithPath(path string) (*Config, error) {
	v := newViper()
	if err := mergeEnvFile(v, path); err != nil {
		return nil, err
	}
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// mergeEnvFile lays a KEY=value file over the defaults. Real environment
// variables still take precedence.
func mergeEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("env")
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	for _, flat := range file.AllKeys() {
		section, field, ok := strings.Cut(flat, "_")
		if !ok {
			continue
		}
		v.SetDefault(section+"."+field, file.Get(flat))
	}
	return nil
}

func load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Kafka.Brokers = trimList(c.Kafka.Brokers)
	c.Realtime.AllowedOrigins = trimList(c.Realtime.AllowedOrigins)
	c.CORS.AllowedOrigins = trimList(c.CORS.AllowedOrigins)
	c.Inference.BaseURL = strings.TrimRight(c.Inference.BaseURL, "/")
	c.Notification.Relay = strings.ToLower(c.Notification.Relay)
}

func trimList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	var errs []error
	if c.App.Name == "" {
		errs = append(errs, errors.New("app name is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d", c.Server.Port))
	}

	// the write deadline starts with the request, so it must outlast the
	// slowest inference call plus time to answer
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Inference.GenerateTimeout {
		errs = append(errs, fmt.Errorf("server write timeout %s must exceed inference generate timeout %s",
			c.Server.WriteTimeout, c.Inference.GenerateTimeout))
	}

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT secret is required"))
	} else if _, err := base64.StdEncoding.DecodeString(c.JWT.Secret); err != nil {
		errs = append(errs, fmt.Errorf("JWT secret must be base64 encoded: %w", err))
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("JWT token TTLs must be positive"))
	}

	switch c.Notification.Relay {
	case "local", "nats":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("redis notification relay requires REDIS_ENABLED=true"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notification relay: %q", c.Notification.Relay))
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("STORAGE_BUCKET is required when storage is enabled"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in the development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
