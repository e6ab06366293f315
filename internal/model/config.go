package model

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultManifestURL points at the published bundle's version index.
	DefaultManifestURL = "https://github.com/hitokoto-osc/sentences-bundle/raw/refs/heads/master/version.json"

	// DefaultCategoryURL is the per-category payload URL; %s is the
	// category key.
	DefaultCategoryURL = "https://github.com/hitokoto-osc/sentences-bundle/raw/refs/heads/master/sentences/%s.json"
)

// Config holds the complete kotosync configuration
type Config struct {
	Remote RemoteConfig `yaml:"remote"`
	Cache  CacheConfig  `yaml:"cache"`
	Store  StoreConfig  `yaml:"store"`
	Sync   SyncConfig   `yaml:"sync"`
	Serve  ServeConfig  `yaml:"serve"`
}

// RemoteConfig configures the bundle endpoints and HTTP behavior
type RemoteConfig struct {
	ManifestURL     string        `yaml:"manifest_url"`
	CategoryURL     string        `yaml:"category_url"`
	ManifestTimeout time.Duration `yaml:"manifest_timeout"` // manifest fetch deadline
	CategoryTimeout time.Duration `yaml:"category_timeout"` // larger: payloads are bigger
	UserAgent       string        `yaml:"user_agent"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	RatePerSecond   float64       `yaml:"rate_per_second"` // per-host request rate
	RateBurst       int           `yaml:"rate_burst"`
	HTTPProxy       string        `yaml:"http_proxy"`
	HTTPSProxy      string        `yaml:"https_proxy"`
}

// CacheConfig configures the per-category snapshot cache
type CacheConfig struct {
	Dir       string        `yaml:"dir"`
	Enabled   bool          `yaml:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl"` // in-memory layer in front of disk
}

// StoreConfig configures the SQLite store
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig configures the sync pass
type SyncConfig struct {
	Workers int `yaml:"workers"` // 1 = sequential; >1 parallelizes fetches only
}

// ServeConfig configures the HTTP server
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".kotosync")

	return &Config{
		Remote: RemoteConfig{
			ManifestURL:     DefaultManifestURL,
			CategoryURL:     DefaultCategoryURL,
			ManifestTimeout: 10 * time.Second,
			CategoryTimeout: 15 * time.Second,
			UserAgent:       "kotosync/0.1 (+https://github.com/kotosync/kotosync)",
			MaxBodyBytes:    8_000_000,
			RatePerSecond:   4,
			RateBurst:       4,
		},
		Cache: CacheConfig{
			Dir:       filepath.Join(base, "cache"),
			Enabled:   true,
			MemoryTTL: 10 * time.Minute,
		},
		Store: StoreConfig{
			Path: filepath.Join(base, "sentences.db"),
		},
		Sync: SyncConfig{
			Workers: 1,
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}
