// Package config loads the dashboard configuration from an optional YAML file, an
// optional .env file and LPD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "LPD_"
	maxConfigFileSize = 1024 * 1024 // 1MB
)

type Config struct {
	Platform  PlatformConfig  `koanf:"platform"`
	Cache     CacheConfig     `koanf:"cache"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	SFTP      SFTPConfig      `koanf:"sftp"`
}

type PlatformConfig struct {
	LMSBaseURL      string `koanf:"lms_base_url"`
	CMSBaseURL      string `koanf:"cms_base_url"`
	LearningBaseURL string `koanf:"learning_base_url"`
	Username        string `koanf:"username"`

	// Static bearer token, or OAuth2 client credentials when ClientID is set.
	AccessToken  string `koanf:"access_token"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	TokenURL     string `koanf:"token_url"`

	Timeout           time.Duration `koanf:"timeout"`
	MaxAttempts       int           `koanf:"max_attempts"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

type CacheConfig struct {
	CatalogStale      time.Duration `koanf:"catalog_stale"`
	CompletionStale   time.Duration `koanf:"completion_stale"`
	OrganizationStale time.Duration `koanf:"organization_stale"`
	MaxEntries        int           `koanf:"max_entries"`
}

type DashboardConfig struct {
	PageSize int `koanf:"page_size"`
	FanOut   int `koanf:"fan_out"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SFTPConfig struct {
	Host                  string `koanf:"host"`
	Port                  int    `koanf:"port"`
	User                  string `koanf:"user"`
	Pass                  string `koanf:"pass"`
	Dir                   string `koanf:"dir"`
	KnownHosts            string `koanf:"known_hosts"`
	InsecureIgnoreHostKey bool   `koanf:"insecure_ignore_host_key"`
}

// Enabled reports whether an SFTP target is configured.
func (s SFTPConfig) Enabled() bool {
	return s.Host != "" && s.User != ""
}

// Load reads configuration with precedence env > YAML file > defaults. path may be
// empty, in which case LPD_CONFIG is used if set. A .env file (LPD_ENV_FILE, default
// ".env") is loaded into the environment first when present; variables already set
// are not overridden.
//
// Environment variables map to keys by dropping the prefix and splitting on the
// first underscore:
//
//	LPD_PLATFORM_LMS_BASE_URL -> platform.lms_base_url
//	LPD_CACHE_CATALOG_STALE   -> cache.catalog_stale
func Load(path string) (Config, error) {
	if err := godotenv.Load(getenv("LPD_ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("LPD_CONFIG")
	}
	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps LPD_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	return io.ReadAll(f)
}

func applyDefaults(cfg *Config) {
	p := &cfg.Platform
	p.LMSBaseURL = strings.TrimRight(p.LMSBaseURL, "/")
	if p.CMSBaseURL == "" {
		p.CMSBaseURL = p.LMSBaseURL
	}
	if p.LearningBaseURL == "" {
		p.LearningBaseURL = p.LMSBaseURL
	}
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}

	if cfg.Cache.CatalogStale == 0 {
		cfg.Cache.CatalogStale = 5 * time.Minute
	}
	if cfg.Cache.CompletionStale == 0 {
		cfg.Cache.CompletionStale = time.Minute
	}
	if cfg.Cache.OrganizationStale == 0 {
		cfg.Cache.OrganizationStale = time.Hour
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 4096
	}

	if cfg.Dashboard.PageSize == 0 {
		cfg.Dashboard.PageSize = 10
	}
	if cfg.Dashboard.FanOut == 0 {
		cfg.Dashboard.FanOut = 8
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.SFTP.Port == 0 {
		cfg.SFTP.Port = 22
	}
	if cfg.SFTP.Dir == "" {
		cfg.SFTP.Dir = "/"
	}
}

// Validate checks required fields and ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Platform.LMSBaseURL == "" {
		errs = append(errs, errors.New("platform.lms_base_url is required"))
	}
	if c.Platform.Username == "" {
		errs = append(errs, errors.New("platform.username is required"))
	}
	if c.Platform.ClientID != "" && c.Platform.TokenURL == "" {
		errs = append(errs, errors.New("platform.token_url is required with platform.client_id"))
	}
	if c.Platform.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("platform.max_attempts must be >= 1, got %d", c.Platform.MaxAttempts))
	}
	if c.Dashboard.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.page_size must be > 0, got %d", c.Dashboard.PageSize))
	}
	if c.Dashboard.FanOut <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.fan_out must be > 0, got %d", c.Dashboard.FanOut))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must be > 0, got %d", c.Cache.MaxEntries))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
