package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"LISTING_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "KAFKA_TOPIC", "JWT_SIGNING_KEY",
		"EMIT_CREATED_EVENTS", "MAX_CONFLICT_ATTEMPTS", "VERSION_CACHE_TTL", "RATE_LIMIT_RPS",
		"OTEL_TRACES_EXPORTER", "OTEL_SERVICE_NAME", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SAMPLER_RATIO",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "listing-events", cfg.Kafka.Topic)
	assert.NotEmpty(t, cfg.Auth.JWTSigningKey)
	assert.Equal(t, 3, cfg.Listing.MaxConflictAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Listing.VersionCacheTTL)
	assert.False(t, cfg.Listing.EmitCreatedEvents)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, "hearth-listing", cfg.Tracing.ServiceName)
	assert.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 0.0001)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LISTING_ADDR", ":9999")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("EMIT_CREATED_EVENTS", "true")
	t.Setenv("MAX_CONFLICT_ATTEMPTS", "5")
	t.Setenv("VERSION_CACHE_TTL", "30s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("OTEL_TRACES_EXPORTER", "OTLP")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "0.25")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Listing.EmitCreatedEvents)
	assert.Equal(t, 5, cfg.Listing.MaxConflictAttempts)
	assert.Equal(t, 30*time.Second, cfg.Listing.VersionCacheTTL)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0.0001)
	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.Equal(t, "collector:4318", cfg.Tracing.OTLPEndpoint)
	assert.True(t, cfg.Tracing.OTLPInsecure)
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 0.0001)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("VERSION_CACHE_TTL", "soon")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("attempts below one", func(t *testing.T) {
		t.Setenv("MAX_CONFLICT_ATTEMPTS", "0")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("unknown trace exporter", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_EXPORTER", "zipkin")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("otlp without endpoint", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
		_, err := FromEnv()
		assert.Error(t, err)
	})
	t.Run("sample ratio above one", func(t *testing.T) {
		t.Setenv("OTEL_SAMPLER_RATIO", "1.5")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
