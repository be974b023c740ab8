package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	PollInterval     time.Duration
	PollTimeout      time.Duration
	FetchConcurrency int

	// Retry and circuit breaker tuning shared by every upstream.
	FetchMaxRetries     int
	FetchInitialDelay   time.Duration
	FetchMaxDelay       time.Duration
	FetchAttemptTimeout time.Duration
	BreakerThreshold    int
	BreakerCooldown     time.Duration

	NWSBaseURL   string
	NWSAreas     []string
	NWSUserAgent string
	ECCCFeedURLs []string
	ECCCLanguage string

	// Remote lookup of NWS zones missing from the zone table.
	NWSZoneLookup        bool
	NWSZoneCacheSize     int
	NWSZoneLookupTimeout time.Duration

	BoundariesPath string
	ZonesDBPath    string

	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaAlertsTopic  string
	KafkaMatchesTopic string

	RedisURL       string
	RedisKeyPrefix string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PollInterval:     p.duration("POLL_INTERVAL", "2m"),
		PollTimeout:      p.duration("POLL_TIMEOUT", "90s"),
		FetchConcurrency: p.positiveInt("FETCH_CONCURRENCY", 4),

		FetchMaxRetries:     p.nonNegativeInt("FETCH_MAX_RETRIES", 3),
		FetchInitialDelay:   p.duration("FETCH_INITIAL_DELAY", "500ms"),
		FetchMaxDelay:       p.duration("FETCH_MAX_DELAY", "10s"),
		FetchAttemptTimeout: p.duration("FETCH_ATTEMPT_TIMEOUT", "10s"),
		BreakerThreshold:    p.positiveInt("BREAKER_THRESHOLD", 5),
		BreakerCooldown:     p.duration("BREAKER_COOLDOWN", "30s"),

		NWSBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("NWS_BASE_URL", "https://api.weather.gov"), "/"),
		NWSAreas:     splitList(sharedcfg.EnvOrDefault("NWS_AREAS", "")),
		NWSUserAgent: sharedcfg.EnvOrDefault("NWS_USER_AGENT", "tribal-hazard-alerts (ops@example.org)"),
		ECCCFeedURLs: splitList(sharedcfg.EnvOrDefault("ECCC_FEED_URLS", "")),
		ECCCLanguage: sharedcfg.EnvOrDefault("ECCC_LANGUAGE", "en-CA"),

		NWSZoneLookup:        p.boolean("NWS_ZONE_LOOKUP", false),
		NWSZoneCacheSize:     p.positiveInt("NWS_ZONE_CACHE_SIZE", 512),
		NWSZoneLookupTimeout: p.duration("NWS_ZONE_LOOKUP_TIMEOUT", "5s"),

		BoundariesPath: sharedcfg.EnvOrDefault("BOUNDARIES_PATH", "data/boundaries.geojson"),
		ZonesDBPath:    sharedcfg.EnvOrDefault("ZONES_DB_PATH", ""),

		KafkaEnabled:      p.boolean("KAFKA_ENABLED", false),
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertsTopic:  sharedcfg.EnvOrDefault("KAFKA_ALERTS_TOPIC", "hazard-alerts"),
		KafkaMatchesTopic: sharedcfg.EnvOrDefault("KAFKA_MATCHES_TOPIC", "hazard-boundary-matches"),

		RedisURL:       sharedcfg.EnvOrDefault("REDIS_URL", ""),
		RedisKeyPrefix: sharedcfg.EnvOrDefault("REDIS_KEY_PREFIX", "hazard-alerts:"),
	}
	if p.err != nil {
		return nil, p.err
	}

	if cfg.FetchMaxDelay < cfg.FetchInitialDelay {
		return nil, errors.New("FETCH_MAX_DELAY must not be less than FETCH_INITIAL_DELAY")
	}
	if cfg.NWSBaseURL == "" {
		return nil, errors.New("NWS_BASE_URL is required")
	}
	if cfg.BoundariesPath == "" {
		return nil, errors.New("BOUNDARIES_PATH is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaAlertsTopic == "" || cfg.KafkaMatchesTopic == "" {
			return nil, errors.New("KAFKA_ALERTS_TOPIC and KAFKA_MATCHES_TOPIC are required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// parser records the first invalid value so Load can report it once.
type parser struct {
	err error
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %q", key, value)
	}
}

func (p *parser) duration(key, def string) time.Duration {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key, s)
		return 0
	}
	return d
}

func (p *parser) positiveInt(key string, def int) int {
	n := p.integer(key, def)
	if n <= 0 {
		p.fail(key, strconv.Itoa(n))
	}
	return n
}

func (p *parser) nonNegativeInt(key string, def int) int {
	n := p.integer(key, def)
	if n < 0 {
		p.fail(key, strconv.Itoa(n))
	}
	return n
}

func (p *parser) integer(key string, def int) int {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		p.fail(key, s)
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	s := sharedcfg.EnvOrDefault(key, strconv.FormatBool(def))
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		p.fail(key, s)
		return def
	}
	return b
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
