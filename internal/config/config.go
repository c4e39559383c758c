package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string `mapstructure:"ENV"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	DBDSN         string `mapstructure:"DB_DSN"`
	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	JWTSecret string `mapstructure:"JWT_SECRET"`

	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	SlotCacheTTL  time.Duration `mapstructure:"SLOT_CACHE_TTL"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PayoutCurrency      string `mapstructure:"PAYOUT_CURRENCY"`

	ReminderPollInterval    time.Duration `mapstructure:"REMINDER_POLL_INTERVAL"`
	SettlementRetryInterval time.Duration `mapstructure:"SETTLEMENT_RETRY_INTERVAL"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфиг из переменных окружения
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:         getEnv("ENV", "development"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		DBDSN:               os.Getenv("DB_DSN"),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RabbitMQURL:         os.Getenv("RABBITMQ_URL"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PayoutCurrency:      getEnv("PAYOUT_CURRENCY", "usd"),
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	if cfg.SlotCacheTTL, err = getDuration("SLOT_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReminderPollInterval, err = getDuration("REMINDER_POLL_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SettlementRetryInterval, err = getDuration("SETTLEMENT_RETRY_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	// Проверяем обязательные поля
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.HTTPAddr != "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when HTTP_ADDR is set")
	}

	return cfg, nil
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// IsProduction влияет на формат логов
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
