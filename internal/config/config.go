// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all agent configuration.
type Config struct {
	// Registry
	RegistryURL string

	// Peer transfer endpoint advertised to the registry
	PeerAddress string
	PeerPort    int

	// Transfer server
	MaxTransfers int

	// Sharing
	ShareDir    string
	DownloadDir string

	// Reconcile interval in seconds (0 = derive from the registry lease)
	SyncInterval int

	// Identity
	IdentityFile string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Metrics ("" = disabled)
	MetricsAddr string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		RegistryURL:  envOr("REGISTRY_URL", ""),
		PeerAddress:  envOr("PEER_ADDRESS", "127.0.0.1"),
		PeerPort:     envInt("PEER_PORT", 9092),
		MaxTransfers: envInt("MAX_TRANSFERS", 8),
		ShareDir:     envOr("SHARE_DIR", ""),
		DownloadDir:  envOr("DOWNLOAD_DIR", "downloads"),
		SyncInterval: envInt("SYNC_INTERVAL", 0),
		IdentityFile: envOr("IDENTITY_FILE", ".fileshare_id"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
		LogFormat:    envOr("LOG_FORMAT", "console"),
		LogFile:      envOr("LOG_FILE", ""),
		MetricsAddr:  envOr("METRICS_ADDR", ""),
	}

	if cfg.RegistryURL == "" {
		return nil, fmt.Errorf("REGISTRY_URL is required")
	}
	if cfg.PeerPort <= 0 || cfg.PeerPort > 65535 {
		return nil, fmt.Errorf("PEER_PORT out of range: %d", cfg.PeerPort)
	}
	if cfg.MaxTransfers <= 0 {
		return nil, fmt.Errorf("MAX_TRANSFERS must be positive: %d", cfg.MaxTransfers)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
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
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
