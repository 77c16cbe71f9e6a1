package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	InboundChannel     string

	// Generator (Ollama) configuration
	OllamaHost      string
	OllamaModel     string
	GenerateTimeout time.Duration

	// OCR configuration
	TesseractBin string

	// Rate limiting
	MessagesPerMinute int
	RequestsPerMinute int

	// Negotiation
	TicketLockTTL time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	// Missing .env is fine; plain env vars still apply.
	_ = godotenv.Load()

	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		InboundChannel:     getEnv("INBOUND_CHANNEL", "mediator-inbound"),

		// Generator
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "llama3"),
		GenerateTimeout: getEnvAsDuration("GENERATE_TIMEOUT", "120s"),

		// OCR
		TesseractBin: getEnv("TESSERACT_BIN", "tesseract"),

		// Rate limiting
		MessagesPerMinute: getEnvAsInt("MESSAGES_PER_MINUTE", 30),
		RequestsPerMinute: getEnvAsInt("REQUESTS_PER_MINUTE", 60),

		// Negotiation
		TicketLockTTL: getEnvAsDuration("TICKET_LOCK_TTL", "10s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
