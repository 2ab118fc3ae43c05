// Package config loads engine configuration from the environment and
// verification policy profiles from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the engine's runtime configuration.
type Config struct {
	LogLevel          string
	ApprovalThreshold float64
	DefaultLevel      string
	PoolSize          int64
	PrivacyEpsilon    float64
	EpsilonPerAction  float64
	RatePerSecond     float64
	RateBurst         int
	ProofDBPath       string
	OTLPEndpoint      string
}

// Load loads configuration from environment variables, falling back to
// documented defaults.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:          getenv("COVENANT_LOG_LEVEL", "INFO"),
		DefaultLevel:      getenv("COVENANT_DEFAULT_LEVEL", "STANDARD"),
		ProofDBPath:       getenv("COVENANT_PROOF_DB", ""),
		OTLPEndpoint:      getenv("COVENANT_OTLP_ENDPOINT", ""),
		ApprovalThreshold: 0.66,
		PoolSize:          16,
		PrivacyEpsilon:    0,
		EpsilonPerAction:  0.01,
		RatePerSecond:     0,
		RateBurst:         10,
	}

	var err error
	if cfg.ApprovalThreshold, err = getFloat("COVENANT_APPROVAL_THRESHOLD", cfg.ApprovalThreshold); err != nil {
		return nil, err
	}
	if cfg.ApprovalThreshold < 0 || cfg.ApprovalThreshold > 1 {
		return nil, fmt.Errorf("COVENANT_APPROVAL_THRESHOLD %.2f out of [0,1]", cfg.ApprovalThreshold)
	}
	if cfg.PrivacyEpsilon, err = getFloat("COVENANT_PRIVACY_EPSILON", cfg.PrivacyEpsilon); err != nil {
		return nil, err
	}
	if cfg.EpsilonPerAction, err = getFloat("COVENANT_EPSILON_PER_ACTION", cfg.EpsilonPerAction); err != nil {
		return nil, err
	}
	if cfg.RatePerSecond, err = getFloat("COVENANT_RATE_PER_SECOND", cfg.RatePerSecond); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = getInt("COVENANT_RATE_BURST", cfg.RateBurst); err != nil {
		return nil, err
	}
	poolSize, err := getInt("COVENANT_POOL_SIZE", int(cfg.PoolSize))
	if err != nil {
		return nil, err
	}
	if poolSize <= 0 {
		return nil, fmt.Errorf("COVENANT_POOL_SIZE must be positive, got %d", poolSize)
	}
	cfg.PoolSize = int64(poolSize)

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
