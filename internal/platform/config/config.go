package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	PostgresURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	Treasury      string
	FeeAdmin      string
	DefaultFee    int64
}

// OwnerCacheTTL bounds memory held by the redis owner cache. Entries are
// immutable so the TTL is not a staleness control.
var OwnerCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays
// lean. Postgres, redis, and Kafka are optional; the service falls back to
// in-memory infrastructure when they are not configured.
func FromEnv() Server {
	addr := os.Getenv("REGISTRAR_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "registrar.events"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	defaultFee := int64(100)
	if raw := os.Getenv("REGISTRAR_DEFAULT_FEE"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			defaultFee = parsed
		}
	}

	return Server{
		Addr:          addr,
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
		JWTSigningKey: jwtSigningKey,
		Treasury:      os.Getenv("REGISTRAR_TREASURY"),
		FeeAdmin:      os.Getenv("REGISTRAR_FEE_ADMIN"),
		DefaultFee:    defaultFee,
	}
}
