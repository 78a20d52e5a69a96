package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultPagarmeBaseURL = "https://sdx-api.pagar.me/core/v5"

type Config struct {
	Server   ServerConfig
	Pagarme  PagarmeConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	FrontendOrigin string
}

type PagarmeConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

type DatabaseConfig struct {
	URL           string
	ServiceKey    string
	RunMigrations bool
}

type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	CorrelationTTL time.Duration
}

type KafkaConfig struct {
	Brokers     []string
	TopicEvents string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

// Load reads the environment (and an optional .env file). It fails when any
// required setting is missing, naming all of them at once.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	timeoutSeconds, err := strconv.Atoi(getEnv("PAGARME_TIMEOUT_SECONDS", "30"))
	if err != nil || timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	ttlHours, err := strconv.Atoi(getEnv("CORRELATION_TTL_HOURS", "720"))
	if err != nil || ttlHours <= 0 {
		ttlHours = 720
	}
	runMigrations, _ := strconv.ParseBool(getEnv("RUN_MIGRATIONS", "false"))

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "5000"),
			Env:            getEnv("ENVIRONMENT", "development"),
			FrontendOrigin: getEnv("FRONTEND_ORIGIN", "*"),
		},
		Pagarme: PagarmeConfig{
			SecretKey: os.Getenv("PAGARME_SECRET_KEY"),
			BaseURL:   getEnv("PAGARME_BASE_URL", DefaultPagarmeBaseURL),
			Timeout:   time.Duration(timeoutSeconds) * time.Second,
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			ServiceKey:    os.Getenv("DATABASE_SERVICE_KEY"),
			RunMigrations: runMigrations,
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             redisDB,
			CorrelationTTL: time.Duration(ttlHours) * time.Hour,
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicEvents: getEnv("KAFKA_TOPIC_CHECKOUT_EVENTS", "checkout-events"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded: env=%s, port=%s, pagarme=%s", cfg.Server.Env, cfg.Server.Port, cfg.Pagarme.BaseURL)
	return cfg, nil
}

// Validate reports every required variable that is unset.
func (c *Config) Validate() error {
	var missing []string
	if c.Pagarme.SecretKey == "" {
		missing = append(missing, "PAGARME_SECRET_KEY")
	}
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Database.ServiceKey == "" {
		missing = append(missing, "DATABASE_SERVICE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
