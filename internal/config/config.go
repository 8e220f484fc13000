package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Storage, state store and queue backends
const (
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	StateStoreDB    = "db"
	StateStoreRedis = "redis"

	QueueMemory = "memory"
	QueueKafka  = "kafka"
)

// Config holds the service settings read from the environment. Backend-specific
// fields are only required when their driver is selected.
type Config struct {
	// Server
	Port     string `validate:"required,numeric"`
	Env      string
	LogLevel string

	// Shopify app
	ShopifyAPIKey         string        `validate:"required"`
	ShopifyAPISecret      string        `validate:"required"`
	ShopifyScopes         []string      `validate:"min=1"`
	ShopifyAPIVersion     string        `validate:"required"`
	ShopifyHTTPTimeout    time.Duration `validate:"gt=0"`
	SessionTokenAlgorithm string        `validate:"oneof=HS256 HS384 HS512"`
	AppURL                string        `validate:"required,url"`

	// Encryption
	EncryptionKey string `validate:"required,min=32"`

	// Storage
	StorageDriver string `validate:"oneof=mongo postgres sqlite"`
	DatabaseURL   string `validate:"required_unless=StorageDriver mongo"`
	MongoURI      string `validate:"required_if=StorageDriver mongo"`
	MongoDatabase string `validate:"required_if=StorageDriver mongo"`

	// OAuth state
	StateStore    string        `validate:"oneof=db redis"`
	RedisURL      string        `validate:"required_if=StateStore redis"`
	OAuthStateTTL time.Duration `validate:"gte=0"`

	// Webhooks
	WebhookQueue        string   `validate:"oneof=memory kafka"`
	KafkaBrokers        []string `validate:"required_if=WebhookQueue kafka"`
	KafkaTopic          string   `validate:"required_if=WebhookQueue kafka"`
	KafkaGroupID        string   `validate:"required_if=WebhookQueue kafka"`
	WebhookWorkers      int      `validate:"min=1"`
	WebhookBuffer       int      `validate:"min=1"`
	WebhookTimeout      time.Duration
	WebhookTopics       []string
	MaxWebhookBodyBytes int64 `validate:"min=1"`

	// HTTP
	CORSAllowedOrigins []string
	// RequireSessionToken guards the shop and product routes with a Shopify session token
	RequireSessionToken bool
}

// LoadDotEnv loads a .env file into the process environment if one exists
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	env := getEnv("ENV", "development")
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ShopifyAPIKey:         getEnv("SHOPIFY_API_KEY", ""),
		ShopifyAPISecret:      getEnv("SHOPIFY_API_SECRET", ""),
		ShopifyScopes:         getEnvAsList("SHOPIFY_SCOPES", "read_products,write_products,read_orders,write_orders"),
		ShopifyAPIVersion:     getEnv("SHOPIFY_API_VERSION", "2023-10"),
		ShopifyHTTPTimeout:    getEnvAsDuration("SHOPIFY_HTTP_TIMEOUT", 30*time.Second),
		SessionTokenAlgorithm: getEnv("SESSION_TOKEN_ALGORITHM", "HS256"),
		AppURL:                strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),

		StorageDriver: getEnv("STORAGE_DRIVER", StorageSQLite),
		DatabaseURL:   getEnv("DATABASE_URL", "shopify.db"),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "shopify"),

		StateStore:    getEnv("STATE_STORE", StateStoreDB),
		RedisURL:      getEnv("REDIS_URL", ""),
		OAuthStateTTL: getEnvAsDuration("OAUTH_STATE_TTL", 10*time.Minute),

		WebhookQueue:        getEnv("WEBHOOK_QUEUE", QueueMemory),
		KafkaBrokers:        getEnvAsList("KAFKA_BROKERS", ""),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "shopify-webhooks"),
		KafkaGroupID:        getEnv("KAFKA_GROUP_ID", "shopify-webhook-dispatcher"),
		WebhookWorkers:      getEnvAsInt("WEBHOOK_WORKERS", 4),
		WebhookBuffer:       getEnvAsInt("WEBHOOK_BUFFER", 1024),
		WebhookTimeout:      getEnvAsDuration("WEBHOOK_TIMEOUT", 30*time.Second),
		WebhookTopics:       getEnvAsList("WEBHOOK_TOPICS", "app/uninstalled"),
		MaxWebhookBodyBytes: int64(getEnvAsInt("MAX_WEBHOOK_BODY_BYTES", 5<<20)),

		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		RequireSessionToken: getEnvAsBool("REQUIRE_SESSION_TOKEN", env != "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and backend-specific requirements
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", e.Field(), e.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsDevelopment reports whether the service runs locally
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key, defaultValue string) []string {
	var list []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
