package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/coastal-erosion-etl/internal/domain"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "https://earth-search.aws.element84.com/v1", cfg.STACURL)
	assert.Equal(t, "sentinel-2-l2a", cfg.STACCollection)
	assert.Empty(t, cfg.STACToken)
	assert.Equal(t, 30*time.Second, cfg.STACTimeout)
	assert.Equal(t, 32, cfg.SceneCacheSize)

	assert.Equal(t, domain.NDVI, cfg.Index)
	assert.Equal(t, "2017-01-01/2024-06-30", cfg.DateRange.String())
	assert.Equal(t, 30, cfg.MaxCloudCover)
	assert.Equal(t, domain.MaskCategorical, cfg.Mask.Strategy)
	assert.Nil(t, cfg.Mask.Excluded)
	assert.Equal(t, 30.0, cfg.Mask.Threshold)
	assert.Equal(t, 0.1, cfg.WaterThreshold)
	assert.Equal(t, domain.CompositeMedian, cfg.CompositeMethod)
	assert.Equal(t, 0.0, cfg.MinValidFraction)
	assert.Equal(t, 2*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, 4, cfg.SiteConcurrency)
	assert.Equal(t, time.Duration(0), cfg.RunInterval)
	assert.Empty(t, cfg.SitesFile)

	assert.Equal(t, "data", cfg.OutputDir)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "coastal-risk", cfg.KafkaRiskTopic)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 168*time.Hour, cfg.RedisTTL)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("STAC_URL", "https://planetarycomputer.microsoft.com/api/stac/v1")
	t.Setenv("STAC_TOKEN", "secret")
	t.Setenv("INDEX", "ndwi")
	t.Setenv("DATE_RANGE_START", "2020-01-01")
	t.Setenv("DATE_RANGE_END", "2020-12-31")
	t.Setenv("MAX_CLOUD_COVER", "15")
	t.Setenv("MASK_STRATEGY", "probability")
	t.Setenv("PROBABILITY_THRESHOLD", "45")
	t.Setenv("MASK_EXCLUDE", "cloud_high,cloud_shadow")
	t.Setenv("WATER_THRESHOLD", "0.05")
	t.Setenv("COMPOSITE_METHOD", "first")
	t.Setenv("MIN_VALID_FRACTION", "0.25")
	t.Setenv("FETCH_TIMEOUT", "45s")
	t.Setenv("SITE_CONCURRENCY", "8")
	t.Setenv("RUN_INTERVAL", "24h")
	t.Setenv("SCENE_CACHE_SIZE", "0")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_RISK_TOPIC", "risk")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "secret", cfg.STACToken)
	assert.Equal(t, domain.NDWI, cfg.Index)
	assert.Equal(t, "2020-01-01/2020-12-31", cfg.DateRange.String())
	assert.Equal(t, 15, cfg.MaxCloudCover)
	assert.Equal(t, domain.MaskProbability, cfg.Mask.Strategy)
	assert.Equal(t, 45.0, cfg.Mask.Threshold)
	assert.Equal(t, []domain.SceneClass{domain.ClassCloudHigh, domain.ClassCloudShadow}, cfg.Mask.Excluded)
	assert.Equal(t, 0.05, cfg.WaterThreshold)
	assert.Equal(t, domain.CompositeFirst, cfg.CompositeMethod)
	assert.Equal(t, 0.25, cfg.MinValidFraction)
	assert.Equal(t, 45*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 8, cfg.SiteConcurrency)
	assert.Equal(t, 24*time.Hour, cfg.RunInterval)
	assert.Equal(t, 0, cfg.SceneCacheSize)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "risk", cfg.KafkaRiskTopic)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{"shutdown timeout", "SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"fetch timeout", "FETCH_TIMEOUT", "0s"},
		{"stac timeout", "STAC_TIMEOUT", "-1s"},
		{"run interval", "RUN_INTERVAL", "-1h"},
		{"stac url", "STAC_URL", "not a url"},
		{"index", "INDEX", "EVI"},
		{"start date", "DATE_RANGE_START", "2024-02-30"},
		{"inverted range", "DATE_RANGE_START", "2030-01-01"},
		{"cloud cover high", "MAX_CLOUD_COVER", "101"},
		{"cloud cover text", "MAX_CLOUD_COVER", "lots"},
		{"mask strategy", "MASK_STRATEGY", "fmask"},
		{"probability threshold", "PROBABILITY_THRESHOLD", "NaN"},
		{"mask exclude", "MASK_EXCLUDE", "cloud_high,fog"},
		{"water threshold", "WATER_THRESHOLD", "1.5"},
		{"composite", "COMPOSITE_METHOD", "mean"},
		{"min valid fraction", "MIN_VALID_FRACTION", "2"},
		{"concurrency", "SITE_CONCURRENCY", "0"},
		{"kafka enabled", "KAFKA_ENABLED", "maybe"},
		{"redis db", "REDIS_DB", "99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoad_ErrorNamesVariable(t *testing.T) {
	t.Setenv("MAX_CLOUD_COVER", "150")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_CLOUD_COVER")
}

func TestLoad_KafkaEnabledNeedsTopic(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_RISK_TOPIC", "")

	// An empty value falls back to the default topic.
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "coastal-risk", cfg.KafkaRiskTopic)
}
