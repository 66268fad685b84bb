// Package config loads and validates this service's settings, grounded on
// the teacher's Config/DefaultConfig/LoadFromEnv/Validate shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"gopkg.in/yaml.v3"
)

// DataPathMapping resolves a UNC volume prefix to a local mount point, the
// same {unc_path, mount} pairs the original read from scraper.data_paths.
type DataPathMapping struct {
	UNCPath string `yaml:"unc_path"`
	Mount   string `yaml:"mount"`
}

type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	PasswordFile string `yaml:"password_file"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type LabelStudioConfig struct {
	Host     string        `yaml:"host"`
	APIKey   string        `yaml:"api_key"`
	Interval time.Duration `yaml:"interval"`
}

type DataModelConfig struct {
	MaxLoadSize             int64  `yaml:"max_load_size"`
	PreprocessJPGStore      string `yaml:"preprocess_jpg_store"`
	PreprocessLaserJPGStore string `yaml:"preprocess_laser_jpg_store"`
	DebugDataStore          string `yaml:"debug_data_store"`
	LensCalStore            string `yaml:"lens_cal_store"`
}

type WebAPIConfig struct {
	RootURL  string `yaml:"root_url"`
	KeyStore string `yaml:"key_store"`
	BindAddr string `yaml:"bind_addr"`
}

type CacheConfig struct {
	Path         string `yaml:"path"`
	MaxStorageMB int64  `yaml:"max_storage_mb"`
}

// Config is the fully-resolved set of settings this service runs with.
type Config struct {
	DataPaths        []DataPathMapping `yaml:"data_paths"`
	ScraperInterval  time.Duration     `yaml:"scraper_interval"`
	SummaryInterval  time.Duration     `yaml:"summary_interval"`
	ReaperInterval   time.Duration     `yaml:"reaper_interval"`
	ExiftoolPath     string            `yaml:"exiftool_path"`
	MetricsBindAddr  string            `yaml:"metrics_bind_addr"`

	Postgres     PostgresConfig    `yaml:"postgres"`
	LabelStudio  LabelStudioConfig `yaml:"label_studio"`
	DataModel    DataModelConfig   `yaml:"data_model"`
	WebAPI       WebAPIConfig      `yaml:"web_api"`
	Cache        CacheConfig       `yaml:"cache"`
}

// DefaultConfig mirrors the defaults baked into the original's Dynaconf
// validators (config.py) wherever one was stated, and otherwise chooses a
// conservative default consistent with spec.md.
func DefaultConfig() *Config {
	return &Config{
		ScraperInterval: 5 * time.Minute,
		SummaryInterval: 60 * time.Second,
		ReaperInterval:  5 * time.Minute,
		ExiftoolPath:    "exiftool",
		MetricsBindAddr: ":9090",
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Username:     "spider",
			Database:     "fishsense_spider",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		LabelStudio: LabelStudioConfig{
			Interval: time.Hour,
		},
		DataModel: DataModelConfig{
			MaxLoadSize: 256 << 20,
		},
		WebAPI: WebAPIConfig{
			BindAddr: ":8080",
		},
		Cache: CacheConfig{
			MaxStorageMB: 10_240,
		},
	}
}

// LoadFromEnv overlays SPIDER_-prefixed environment variables onto cfg.
// Invalid values are ignored and the existing default is kept, matching the
// teacher's DB_PORT-parse-failure behavior in connection_test.go.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("SPIDER_POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("SPIDER_POSTGRES_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Postgres.Port = p
		}
	}
	if v := os.Getenv("SPIDER_POSTGRES_USERNAME"); v != "" {
		c.Postgres.Username = v
	}
	if v := os.Getenv("SPIDER_POSTGRES_PASSWORD_FILE"); v != "" {
		c.Postgres.PasswordFile = v
	}
	if v := os.Getenv("SPIDER_POSTGRES_DATABASE"); v != "" {
		c.Postgres.Database = v
	}
	if v := os.Getenv("SPIDER_EXIFTOOL_PATH"); v != "" {
		c.ExiftoolPath = v
	}
	if v := os.Getenv("SPIDER_LABEL_STUDIO_HOST"); v != "" {
		c.LabelStudio.Host = v
	}
	if v := os.Getenv("SPIDER_LABEL_STUDIO_API_KEY"); v != "" {
		c.LabelStudio.APIKey = v
	}
	if v := os.Getenv("SPIDER_LABEL_STUDIO_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LabelStudio.Interval = d
		}
	}
	if v := os.Getenv("SPIDER_WEB_API_ROOT_URL"); v != "" {
		c.WebAPI.RootURL = v
	}
	if v := os.Getenv("SPIDER_WEB_API_KEY_STORE"); v != "" {
		c.WebAPI.KeyStore = v
	}
	if v := os.Getenv("SPIDER_WEB_API_BIND_ADDR"); v != "" {
		c.WebAPI.BindAddr = v
	}
	if v := os.Getenv("SPIDER_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := os.Getenv("SPIDER_CACHE_MAX_STORAGE_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Cache.MaxStorageMB = n
		}
	}
	if v := os.Getenv("SPIDER_SCRAPER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ScraperInterval = d
		}
	}
	if v := os.Getenv("SPIDER_ORCHESTRATOR_REAPER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ReaperInterval = d
		}
	}
}

// LoadOverlayFile merges a YAML settings file on top of cfg's current
// values. Missing file is not an error; the overlay is optional.
func (c *Config) LoadOverlayFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperrors.Wrapf(err, apperrors.TypeFatal, "reading config overlay %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.Wrapf(err, apperrors.TypeFatal, "parsing config overlay %s", path)
	}
	return nil
}

// Validate returns a Fatal AppError describing the first invalid setting
// found, or nil.
func (c *Config) Validate() error {
	if c.Postgres.Host == "" {
		return apperrors.Fatal(nil, "postgres.host must not be empty")
	}
	if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
		return apperrors.Fatal(nil, fmt.Sprintf("postgres.port %d out of range", c.Postgres.Port))
	}
	if c.Postgres.Username == "" {
		return apperrors.Fatal(nil, "postgres.username must not be empty")
	}
	if c.Postgres.Database == "" {
		return apperrors.Fatal(nil, "postgres.database must not be empty")
	}
	if c.Postgres.MaxOpenConns <= 0 {
		return apperrors.Fatal(nil, "postgres.max_open_conns must be positive")
	}
	if c.WebAPI.KeyStore == "" {
		return apperrors.Fatal(nil, "web_api.key_store must not be empty")
	}
	if c.Cache.Path == "" {
		return apperrors.Fatal(nil, "cache.path must not be empty")
	}
	if c.Cache.MaxStorageMB <= 0 {
		return apperrors.Fatal(nil, "cache.max_storage_mb must be positive")
	}
	for _, m := range c.DataPaths {
		if m.UNCPath == "" || m.Mount == "" {
			return apperrors.Fatal(nil, "data_paths entries require unc_path and mount")
		}
	}
	return nil
}

// Password reads the postgres password from its configured file, matching
// the original's password_file indirection.
func (c *Config) Password() (string, error) {
	if c.Postgres.PasswordFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Postgres.PasswordFile)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.TypeFatal, "reading postgres password file")
	}
	return strings.TrimSpace(string(data)), nil
}

// ConnectionString builds a libpq-style DSN, matching the teacher's
// ConnectionString format.
func (c *Config) ConnectionString() (string, error) {
	password, err := c.Password()
	if err != nil {
		return "", err
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.Username, c.Postgres.Database, c.Postgres.SSLMode)
	if password != "" {
		dsn += fmt.Sprintf(" password=%s", password)
	}
	return dsn, nil
}

// ResolveLocalPath maps a UNC source path to its configured local mount,
// mirroring data_model.py's map_local_path. Exactly one mapping must match.
// The backslash separators of the remainder after the UNC prefix become
// forward slashes.
func (c *Config) ResolveLocalPath(uncPath string) (string, error) {
	var matches []string
	for _, m := range c.DataPaths {
		if strings.HasPrefix(uncPath, m.UNCPath) {
			rest := strings.ReplaceAll(strings.TrimPrefix(uncPath, m.UNCPath), `\`, "/")
			matches = append(matches, m.Mount+rest)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", apperrors.ConflictMount(uncPath)
	default:
		return "", apperrors.ConflictMount(uncPath).WithDetailsf("ambiguous: %d mounts matched", len(matches))
	}
}
