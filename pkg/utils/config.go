package utils

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "HEADCANON_"
	ConfigPathEnv = "HEADCANON_CONFIG"
)

// DefaultConfigPaths are tried in order when HEADCANON_CONFIG is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml", "/etc/headcanon/config.yaml"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Geo       GeoConfig       `koanf:"geo"`
	Auth      AuthConfig      `koanf:"auth"`
	Corpus    CorpusConfig    `koanf:"corpus"`
}

type ServerConfig struct {
	Addr           string   `koanf:"addr"`
	SiteURL        string   `koanf:"site_url"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

type GeoConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type AuthConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	JWTIssuer   string        `koanf:"jwt_issuer"`
	JWTDuration time.Duration `koanf:"jwt_ttl"`
}

type CorpusConfig struct {
	// Path overrides the embedded template corpus when set.
	Path string `koanf:"path"`
}

func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			SiteURL:        "https://headcanongenerator.world",
			TrustedProxies: []string{"127.0.0.1"},
		},
		Database: DatabaseConfig{
			Path: filepath.Join(home, ".headcanon", "data.db"),
		},
		Log: LogConfig{Level: "info", Format: "json"},
		RateLimit: RateLimitConfig{
			Requests: 30,
			Window:   time.Minute,
		},
		Geo: GeoConfig{
			Enabled: true,
			BaseURL: "http://ip-api.com/json/",
			Timeout: 2 * time.Second,
		},
		Auth: AuthConfig{
			// dev default (change for production)
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "headcanonhub",
			JWTDuration: 24 * time.Hour,
		},
	}
}

// LoadConfig layers defaults, an optional YAML file and HEADCANON_* env vars,
// in increasing priority.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if err := splitList(k, "server.trusted_proxies"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps HEADCANON_SERVER_SITE_URL to server.site_url: the first
// segment is the section, the rest is the key.
func envKey(name string) string {
	if name == ConfigPathEnv {
		return ""
	}
	parts := strings.SplitN(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitList turns a comma separated env value into a slice.
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if u, err := url.Parse(c.Server.SiteURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.site_url %q is not an absolute URL", c.Server.SiteURL))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("ratelimit.requests must be > 0"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be > 0"))
	}
	if c.Geo.Enabled && c.Geo.BaseURL == "" {
		errs = append(errs, errors.New("geo.base_url is required when geo is enabled"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.JWTDuration <= 0 {
		errs = append(errs, errors.New("auth.jwt_ttl must be > 0"))
	}
	return errors.Join(errs...)
}

// SiteURL returns the public base URL without a trailing slash.
func (c *Config) SiteURL() string {
	return strings.TrimRight(c.Server.SiteURL, "/")
}
