package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr        string
	MetricsAddr string
	LogLevel    string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	Listing     ListingConfig
	Tracing     TracingConfig

	// Write requests per second allowed per caller; zero disables limiting.
	RateLimitRPS float64
}

// RedisConfig configures the snapshot cache connection. An empty URL
// disables the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the event sink. No brokers means events are only
// logged.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
}

// TracingConfig selects where engine spans go. Exporter is one of "none",
// "stdout" or "otlp"; with "none" spans are sampled but never exported.
type TracingConfig struct {
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

type ListingConfig struct {
	EmitCreatedEvents  bool
	MaxConflictAttempts int
	VersionCacheTTL    time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first when present.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	cfg := Server{
		Addr:        getEnv("LISTING_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:    getEnv("KAFKA_TOPIC", "listing-events"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "hearth-listing"),
		},
		Auth: AuthConfig{
			JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
			JWTIssuer:     getEnv("JWT_ISSUER", "hearth"),
		},
		Tracing: TracingConfig{
			Exporter:     strings.ToLower(getEnv("OTEL_TRACES_EXPORTER", "none")),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "hearth-listing"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}

	var err error
	if cfg.Listing.EmitCreatedEvents, err = getBool("EMIT_CREATED_EVENTS", false); err != nil {
		return Server{}, err
	}
	if cfg.Listing.MaxConflictAttempts, err = getInt("MAX_CONFLICT_ATTEMPTS", 3); err != nil {
		return Server{}, err
	}
	if cfg.Listing.VersionCacheTTL, err = getDuration("VERSION_CACHE_TTL", 10*time.Minute); err != nil {
		return Server{}, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 20); err != nil {
		return Server{}, err
	}
	if cfg.Tracing.OTLPInsecure, err = getBool("OTEL_EXPORTER_OTLP_INSECURE", false); err != nil {
		return Server{}, err
	}
	if cfg.Tracing.SampleRatio, err = getFloat("OTEL_SAMPLER_RATIO", 1); err != nil {
		return Server{}, err
	}

	if cfg.Auth.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.Auth.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	if cfg.Listing.MaxConflictAttempts < 1 {
		return Server{}, fmt.Errorf("MAX_CONFLICT_ATTEMPTS must be at least 1")
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return Server{}, fmt.Errorf("OTEL_SAMPLER_RATIO must be between 0 and 1")
	}
	switch cfg.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if cfg.Tracing.OTLPEndpoint == "" {
			return Server{}, fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required for the otlp exporter")
		}
	default:
		return Server{}, fmt.Errorf("unknown OTEL_TRACES_EXPORTER %q", cfg.Tracing.Exporter)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
