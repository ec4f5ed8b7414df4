package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Poll intervals per source family.
	WeatherInterval    time.Duration
	EarthquakeInterval time.Duration
	HazardInterval     time.Duration

	// Fetch client bounds.
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	MaxResponseBytes int64
	MaxRetries       int

	// PHIVOLCS and PAGASA serve certificate chains with missing
	// intermediates; their fetches skip verification unless this is off.
	InsecureGovTLS bool

	// Performance thresholds.
	WarnThreshold     time.Duration
	CriticalThreshold time.Duration

	// Cache and clustering.
	StaleFactor          float64
	ClusterWindow        time.Duration
	ClusterTopN          int
	MaxConcurrentFetches int64

	// Monitored location.
	Latitude     float64
	Longitude    float64
	LocationName string
	Region       string
	City         string

	// IOC sea-level station code, e.g. "dava" for Davao.
	SeaLevelStation string

	// Stormglass tide API. Tides are disabled when the key is empty.
	StormglassAPIKey string

	// Kafka alert sink. Alerts are disabled when brokers are empty.
	KafkaBrokers    []string
	KafkaAlertTopic string
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in first, without
// overriding variables already exported.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	weatherInterval, err := parseDuration("INTERVAL_WEATHER", 30*time.Second)
	if err != nil {
		return nil, err
	}
	earthquakeInterval, err := parseDuration("INTERVAL_EARTHQUAKE", 60*time.Second)
	if err != nil {
		return nil, err
	}
	hazardInterval, err := parseDuration("INTERVAL_HAZARD", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	connectTimeout, err := parseDuration("CONNECT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	readTimeout, err := parseDuration("READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	warnThreshold, err := parseMillis("WARN_THRESHOLD_MS", 2*time.Second)
	if err != nil {
		return nil, err
	}
	criticalThreshold, err := parseMillis("CRITICAL_THRESHOLD_MS", 5*time.Second)
	if err != nil {
		return nil, err
	}
	clusterWindow, err := parseDuration("CLUSTER_WINDOW", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	maxResponseBytes, err := parseInt64("MAX_RESPONSE_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	clusterTopN, err := parseInt("CLUSTER_TOP_N", 5)
	if err != nil {
		return nil, err
	}
	maxFetches, err := parseInt64("MAX_CONCURRENT_FETCHES", 4)
	if err != nil {
		return nil, err
	}

	insecureGovTLS, err := parseBool("INSECURE_GOV_TLS", true)
	if err != nil {
		return nil, err
	}

	staleFactor, err := parseFloat("STALE_FACTOR", 2.0)
	if err != nil {
		return nil, err
	}
	latitude, err := parseFloat("LATITUDE", 7.190708)
	if err != nil {
		return nil, err
	}
	longitude, err := parseFloat("LONGITUDE", 125.455338)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		WeatherInterval:    weatherInterval,
		EarthquakeInterval: earthquakeInterval,
		HazardInterval:     hazardInterval,

		ConnectTimeout:   connectTimeout,
		ReadTimeout:      readTimeout,
		MaxResponseBytes: maxResponseBytes,
		MaxRetries:       maxRetries,
		InsecureGovTLS:   insecureGovTLS,

		WarnThreshold:     warnThreshold,
		CriticalThreshold: criticalThreshold,

		StaleFactor:          staleFactor,
		ClusterWindow:        clusterWindow,
		ClusterTopN:          clusterTopN,
		MaxConcurrentFetches: maxFetches,

		Latitude:     latitude,
		Longitude:    longitude,
		LocationName: envOrDefault("LOCATION_NAME", "Davao City"),
		Region:       envOrDefault("REGION", "Davao Region"),
		City:         envOrDefault("CITY", "Davao"),

		SeaLevelStation:  envOrDefault("SEA_LEVEL_STATION", "dava"),
		StormglassAPIKey: os.Getenv("STORMGLASS_API_KEY"),

		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic: strings.TrimSpace(envOrDefault("KAFKA_ALERT_TOPIC", "quake-alerts")),
	}

	if cfg.ReadTimeout < cfg.ConnectTimeout {
		return nil, errors.New("READ_TIMEOUT must be at least CONNECT_TIMEOUT")
	}
	if cfg.WarnThreshold >= cfg.CriticalThreshold {
		return nil, errors.New("WARN_THRESHOLD_MS must be below CRITICAL_THRESHOLD_MS")
	}
	if cfg.StaleFactor < 1 {
		return nil, errors.New("STALE_FACTOR must be at least 1")
	}
	if cfg.Latitude < -90 || cfg.Latitude > 90 {
		return nil, errors.New("LATITUDE out of range")
	}
	if cfg.Longitude < -180 || cfg.Longitude > 180 {
		return nil, errors.New("LONGITUDE out of range")
	}
	if cfg.ClusterTopN <= 0 {
		return nil, errors.New("CLUSTER_TOP_N must be positive")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_ALERT_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

// parseMillis reads an integer millisecond count, the form the performance
// threshold variables use.
func parseMillis(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	ms, err := strconv.Atoi(s)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseInt64(key string, fallback int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return b, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
