package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ca-srg/treesearch/internal/types"
	env "github.com/netflix/go-env"
)

// Type alias for Config
type Config = types.Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config

	_, err := env.UnmarshalFromEnviron(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values and adjusts them to safe ranges
func validateConfig(config *Config) error {
	if strings.TrimSpace(config.TopologyPath) == "" {
		return fmt.Errorf("TREEBANK_TOPOLOGY is required")
	}

	// The ceiling is only checked between shard queries, so anything below a
	// second would make every page a single shard.
	if config.SearchTimeCeiling < time.Second {
		config.SearchTimeCeiling = time.Second
	}
	if config.SearchTimeCeiling > 5*time.Minute {
		config.SearchTimeCeiling = 5 * time.Minute
	}

	if config.SearchMaxBatchLimit < 1 {
		config.SearchMaxBatchLimit = 1
	}
	if config.SearchBatchLimit < 1 {
		config.SearchBatchLimit = 1
	}
	if config.SearchBatchLimit > config.SearchMaxBatchLimit {
		config.SearchBatchLimit = config.SearchMaxBatchLimit
	}

	if config.CountConcurrency < 1 {
		config.CountConcurrency = 1
	}
	if config.CountConcurrency > 32 {
		config.CountConcurrency = 32
	}

	if config.BaseXDialTimeout <= 0 {
		config.BaseXDialTimeout = 10 * time.Second
	}

	if config.ManifestBucket != "" && config.ManifestS3Region == "" {
		return fmt.Errorf("AWS_REGION is required when TREEBANK_MANIFEST_BUCKET is set")
	}

	if config.APIPort < 1 || config.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535")
	}
	if config.APIRatePerMinute <= 0 {
		config.APIRatePerMinute = 120
	}

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
		config.LogLevel = strings.ToLower(config.LogLevel)
	default:
		config.LogLevel = "info"
	}

	return nil
}
