package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Imagery catalog.
	STACURL        string
	STACCollection string
	STACToken      string
	STACTimeout    time.Duration
	SceneCacheSize int

	// Processing parameters.
	Index            domain.IndexSpec
	DateRange        domain.DateRange
	MaxCloudCover    int
	Mask             domain.MaskConfig
	WaterThreshold   float64
	CompositeMethod  domain.CompositeMethod
	MinValidFraction float64
	FetchTimeout     time.Duration
	SiteConcurrency  int
	RunInterval      time.Duration
	SitesFile        string

	// Sinks.
	OutputDir      string
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaRiskTopic string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisTTL       time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		STACURL:        sharedcfg.EnvOrDefault("STAC_URL", "https://earth-search.aws.element84.com/v1"),
		STACCollection: sharedcfg.EnvOrDefault("STAC_COLLECTION", "sentinel-2-l2a"),
		STACToken:      os.Getenv("STAC_TOKEN"),

		CompositeMethod: domain.CompositeMethod(sharedcfg.EnvOrDefault("COMPOSITE_METHOD", string(domain.CompositeMedian))),
		SitesFile:       os.Getenv("SITES_FILE"),

		OutputDir:      sharedcfg.EnvOrDefault("OUTPUT_DIR", "data"),
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRiskTopic: sharedcfg.EnvOrDefault("KAFKA_RISK_TOPIC", "coastal-risk"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}
	if err := parseProcessing(cfg); err != nil {
		return nil, err
	}
	if err := parseSinks(cfg); err != nil {
		return nil, err
	}

	if u, err := url.Parse(cfg.STACURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("STAC_URL must be an absolute URL")
	}
	if cfg.STACCollection == "" {
		return nil, errors.New("STAC_COLLECTION is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaRiskTopic == "" {
		return nil, errors.New("KAFKA_RISK_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parseDurations(cfg *Config) error {
	var err error
	if cfg.STACTimeout, err = positiveDuration("STAC_TIMEOUT", "30s"); err != nil {
		return err
	}
	if cfg.FetchTimeout, err = positiveDuration("FETCH_TIMEOUT", "2m"); err != nil {
		return err
	}
	if cfg.RedisTTL, err = positiveDuration("REDIS_TTL", "168h"); err != nil {
		return err
	}
	interval, err := time.ParseDuration(sharedcfg.EnvOrDefault("RUN_INTERVAL", "0s"))
	if err != nil || interval < 0 {
		return errors.New("invalid RUN_INTERVAL")
	}
	cfg.RunInterval = interval
	return nil
}

func parseProcessing(cfg *Config) error {
	index, ok := domain.LookupIndex(sharedcfg.EnvOrDefault("INDEX", "NDVI"))
	if !ok {
		return errors.New("invalid INDEX: must be NDVI or NDWI")
	}
	cfg.Index = index

	dates, err := domain.ParseDateRange(
		sharedcfg.EnvOrDefault("DATE_RANGE_START", "2017-01-01"),
		sharedcfg.EnvOrDefault("DATE_RANGE_END", "2024-06-30"),
	)
	if err != nil {
		return fmt.Errorf("invalid DATE_RANGE_START/DATE_RANGE_END: %w", err)
	}
	cfg.DateRange = dates

	if cfg.MaxCloudCover, err = boundedInt("MAX_CLOUD_COVER", 30, 0, 100); err != nil {
		return err
	}
	if cfg.SiteConcurrency, err = boundedInt("SITE_CONCURRENCY", 4, 1, 64); err != nil {
		return err
	}
	if cfg.SceneCacheSize, err = boundedInt("SCENE_CACHE_SIZE", 32, 0, 10000); err != nil {
		return err
	}

	cfg.Mask.Strategy = domain.MaskStrategy(sharedcfg.EnvOrDefault("MASK_STRATEGY", string(domain.MaskCategorical)))
	if cfg.Mask.Strategy != domain.MaskCategorical && cfg.Mask.Strategy != domain.MaskProbability {
		return errors.New("invalid MASK_STRATEGY: must be categorical or probability")
	}
	if cfg.Mask.Threshold, err = boundedFloat("PROBABILITY_THRESHOLD", domain.DefaultProbabilityThreshold, 0, 100); err != nil {
		return err
	}
	if s := os.Getenv("MASK_EXCLUDE"); s != "" {
		for name := range strings.SplitSeq(s, ",") {
			c, err := domain.ParseSceneClass(name)
			if err != nil {
				return fmt.Errorf("invalid MASK_EXCLUDE: %w", err)
			}
			cfg.Mask.Excluded = append(cfg.Mask.Excluded, c)
		}
	}

	if cfg.WaterThreshold, err = boundedFloat("WATER_THRESHOLD", domain.DefaultWaterThreshold, -1, 1); err != nil {
		return err
	}
	if cfg.MinValidFraction, err = boundedFloat("MIN_VALID_FRACTION", 0, 0, 1); err != nil {
		return err
	}
	if cfg.CompositeMethod != domain.CompositeMedian && cfg.CompositeMethod != domain.CompositeFirst {
		return errors.New("invalid COMPOSITE_METHOD: must be median or first")
	}
	return nil
}

func parseSinks(cfg *Config) error {
	enabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false"))
	if err != nil {
		return errors.New("invalid KAFKA_ENABLED")
	}
	cfg.KafkaEnabled = enabled

	if cfg.RedisDB, err = boundedInt("REDIS_DB", 0, 0, 15); err != nil {
		return err
	}
	return nil
}

func positiveDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func boundedInt(name string, def, lo, hi int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", name, lo, hi)
	}
	return n, nil
}

func boundedFloat(name string, def, lo, hi float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < lo || f > hi {
		return 0, fmt.Errorf("invalid %s: must be a number in [%g, %g]", name, lo, hi)
	}
	return f, nil
}
