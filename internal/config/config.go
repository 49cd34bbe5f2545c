package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Profile store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Forecast store.
	DatabaseURL          string
	ForecastStoreEnabled bool

	// Open-Meteo weather provider.
	WeatherEnabled   bool
	WeatherBaseURL   string
	WeatherTimeout   time.Duration
	WeatherCacheSize int
	WeatherCacheTTL  time.Duration
}

// DefaultWeatherBaseURL is the public Open-Meteo forecast API.
const DefaultWeatherBaseURL = "https://api.open-meteo.com"

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("WEATHER_TIMEOUT", "5s"))
	if err != nil || weatherTimeout <= 0 {
		return nil, errors.New("invalid WEATHER_TIMEOUT")
	}

	weatherCacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("WEATHER_CACHE_TTL", "1h"))
	if err != nil || weatherCacheTTL <= 0 {
		return nil, errors.New("invalid WEATHER_CACHE_TTL")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	storeEnabled := databaseURL != ""
	if v := os.Getenv("FORECAST_STORE_ENABLED"); v != "" {
		storeEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "forecast-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "daily-forecasts"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "constitution-forecast"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		RedisAddr:     sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		DatabaseURL:          databaseURL,
		ForecastStoreEnabled: storeEnabled,

		WeatherEnabled:   os.Getenv("WEATHER_ENABLED") != "false",
		WeatherBaseURL:   sharedcfg.EnvOrDefault("WEATHER_BASE_URL", DefaultWeatherBaseURL),
		WeatherTimeout:   weatherTimeout,
		WeatherCacheSize: parseWeatherCacheSize(),
		WeatherCacheTTL:  weatherCacheTTL,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	if cfg.ForecastStoreEnabled && cfg.DatabaseURL == "" {
		return nil, errors.New("FORECAST_STORE_ENABLED is true but DATABASE_URL is not set")
	}

	return cfg, nil
}

func parseWeatherCacheSize() int {
	if s := os.Getenv("WEATHER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 500
}
