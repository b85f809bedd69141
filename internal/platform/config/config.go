package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment.
// FromEnv builds it so main stays lean.
type Config struct {
	Addr string

	DatabaseURL  string
	RedisURL     string
	ElasticAddrs []string
	KafkaBrokers []string

	// SigningKeys holds versioned HMAC keys. The engine refuses to start
	// without a usable active key: unsigned events must never exist.
	SigningKeys      map[string]string // version -> hex-encoded 32-byte key
	ActiveKeyVersion string

	IndexBatchSize     int
	IndexFlushInterval time.Duration

	AccessThresholdPerHour      int
	OffHoursStartHour           int
	OffHoursEndHour             int
	RequirementThresholdDefault int

	JWTSigningKey string
}

// Defaults preserved from the source system. They carry no regulatory
// meaning; override via environment when a framework demands otherwise.
const (
	DefaultAccessThresholdPerHour = 50
	DefaultOffHoursStartHour      = 6
	DefaultOffHoursEndHour        = 22
	DefaultRequirementThreshold   = 1
	DefaultIndexBatchSize         = 100
	DefaultIndexFlushInterval     = 2 * time.Second
)

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:         envString("ATTEST_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("ATTEST_DATABASE_URL"),
		RedisURL:     os.Getenv("ATTEST_REDIS_URL"),
		ElasticAddrs: envList("ATTEST_ELASTIC_ADDRS"),
		KafkaBrokers: envList("ATTEST_KAFKA_BROKERS"),

		SigningKeys:      ParseSigningKeys(os.Getenv("ATTEST_SIGNING_KEYS")),
		ActiveKeyVersion: envString("ATTEST_SIGNING_KEY_ACTIVE", "v1"),

		IndexBatchSize:     envInt("ATTEST_INDEX_BATCH_SIZE", DefaultIndexBatchSize),
		IndexFlushInterval: time.Duration(envInt("ATTEST_INDEX_FLUSH_INTERVAL_MS", int(DefaultIndexFlushInterval/time.Millisecond))) * time.Millisecond,

		AccessThresholdPerHour:      envInt("ATTEST_ACCESS_THRESHOLD_PER_HOUR", DefaultAccessThresholdPerHour),
		OffHoursStartHour:           envInt("ATTEST_OFF_HOURS_START", DefaultOffHoursStartHour),
		OffHoursEndHour:             envInt("ATTEST_OFF_HOURS_END", DefaultOffHoursEndHour),
		RequirementThresholdDefault: envInt("ATTEST_REQUIREMENT_THRESHOLD_DEFAULT", DefaultRequirementThreshold),

		JWTSigningKey: os.Getenv("ATTEST_JWT_SIGNING_KEY"),
	}
}

// ParseSigningKeys parses "v1:<hex>,v2:<hex>" into a version map.
// Malformed entries are skipped; the keyring validates key material.
func ParseSigningKeys(raw string) map[string]string {
	keys := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		version, hexKey, ok := strings.Cut(entry, ":")
		if !ok || version == "" || hexKey == "" {
			continue
		}
		keys[version] = hexKey
	}
	return keys
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
