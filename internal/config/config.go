// Package config loads service settings from defaults, an optional JSON file,
// a .env file and the process environment, in that order of precedence.
package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// DefaultConfigFile is read when no explicit path is given; it may be absent.
const DefaultConfigFile = "conf/config.json"

// Image cache backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port       int    `json:"port" env:"PORT"`
	StaticPath string `json:"staticPath" env:"STATIC_PATH"`
	SentryDSN  string `json:"sentryDsn" env:"SENTRY_DSN"`

	Google   GoogleConfig   `json:"google.com"`
	Unsplash UnsplashConfig `json:"unsplash.com"`
	Pixabay  PixabayConfig  `json:"pixabay.com"`
	WordsAPI WordsAPIConfig `json:"rapidapi.com"`

	Images     ImagesConfig     `json:"images"`
	Dictionary DictionaryConfig `json:"dictionary"`
	Metrics    MetricsConfig    `json:"metrics"`
	Debug      DebugConfig      `json:"debug"`
}

// GoogleConfig needs both the API key and the programmable search engine id.
type GoogleConfig struct {
	Key string `json:"key" env:"GOOGLE_API_KEY"`
	CX  string `json:"cx" env:"GOOGLE_CX_ID"`
}

type UnsplashConfig struct {
	AccessKey string `json:"access" env:"UNSPLASH_ACCESS_KEY"`
}

type PixabayConfig struct {
	Key string `json:"key" env:"PIXABAY_API_KEY"`
}

type WordsAPIConfig struct {
	Key string `json:"key" env:"RAPIDAPI_KEY"`
}

type ImagesConfig struct {
	CacheTTL     time.Duration `json:"-" env:"IMAGE_CACHE_TTL"`
	CacheBackend string        `json:"cacheBackend" env:"IMAGE_CACHE_BACKEND"`
	CacheSize    int           `json:"cacheSize" env:"IMAGE_CACHE_SIZE"`
	Dedupe       bool          `json:"dedupe" env:"IMAGE_DEDUPE"`
	// RateLimit is requests per second allowed per provider; 0 disables limiting.
	RateLimit float64 `json:"rateLimit" env:"PROVIDER_RATE_LIMIT"`
}

type DictionaryConfig struct {
	CacheTTL time.Duration `json:"-" env:"DICTIONARY_CACHE_TTL"`
}

// MetricsConfig protects /metrics with basic auth when User is set.
// PasswordHash is an argon2id encoded hash.
type MetricsConfig struct {
	User         string `json:"user" env:"METRICS_USER"`
	PasswordHash string `json:"passwordHash" env:"METRICS_PASSWORD_HASH"`
}

type DebugConfig struct {
	Enabled    bool `json:"enabled" env:"DEBUG"`
	PrettyJson bool `json:"prettyJson" env:"PRETTY_JSON"`
}

// Defaults returns the configuration used before any file or environment override.
func Defaults() *Config {
	return &Config{
		Port: 3001,
		Images: ImagesConfig{
			CacheTTL:     time.Hour,
			CacheBackend: BackendMemory,
			CacheSize:    1024,
		},
		Dictionary: DictionaryConfig{
			CacheTTL: 10 * time.Minute,
		},
	}
}

// Load builds the configuration. An empty path means DefaultConfigFile, which
// is skipped silently when missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeConfig(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	_ = godotenv.Load()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Images.CacheBackend != BackendMemory && c.Images.CacheBackend != BackendSQLite {
		return fmt.Errorf("unknown image cache backend %q", c.Images.CacheBackend)
	}
	if c.Images.CacheTTL <= 0 {
		return fmt.Errorf("image cache ttl must be positive, got %s", c.Images.CacheTTL)
	}
	if c.Images.CacheSize <= 0 {
		return fmt.Errorf("image cache size must be positive, got %d", c.Images.CacheSize)
	}
	if c.Images.RateLimit < 0 {
		return fmt.Errorf("provider rate limit must not be negative")
	}
	if c.Metrics.User != "" && c.Metrics.PasswordHash == "" {
		return fmt.Errorf("metrics user %q has no password hash", c.Metrics.User)
	}
	return nil
}

func decodeConfig(data []byte, cfg *Config) error {
	err := json.Unmarshal(data, cfg)
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		pos := findPos(bufio.NewReader(bytes.NewReader(data)), int(syntaxErr.Offset))
		return fmt.Errorf("unable to decode configuration file (Line: %d, Pos: %d): %w", pos.line, pos.pos, err)
	}
	return err
}

type filePos struct {
	line int
	pos  int
}

// findPos converts a byte offset into a 1-based line and the offset within that line.
func findPos(file *bufio.Reader, offset int) filePos {
	p := filePos{line: 1, pos: offset}
	var lineLen int
	for line, err := file.ReadBytes('\n'); len(line) > 0; line, err = file.ReadBytes('\n') {
		if p.pos < len(line) {
			return p
		}
		lineLen += len(line)
		if line[len(line)-1] == '\n' {
			p.line += 1
			p.pos -= lineLen
			lineLen = 0
		}
		if err != nil {
			break
		}
	}
	return p
}
