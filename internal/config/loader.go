package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the YAML file.
const (
	EnvAddr       = "ROULETTE_ADDR"
	EnvStaticDir  = "ROULETTE_STATIC_DIR"
	EnvLogLevel   = "ROULETTE_LOG_LEVEL"
	EnvLogFormat  = "ROULETTE_LOG_FORMAT"
	EnvPairOnNext = "ROULETTE_PAIR_ON_NEXT"
	EnvSTUNURLs   = "ROULETTE_STUN_URLS"
	EnvOrigins    = "ROULETTE_ALLOWED_ORIGINS"
)

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads a YAML config file and expands ${VAR} references. An empty
// path yields an empty config.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadAndValidate loads path, applies env overrides and defaults, and
// validates the result.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ROULETTE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvAddr); ok {
		c.Server.Addr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvStaticDir); ok {
		c.Server.StaticDir = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		c.Log.Format = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv(EnvPairOnNext); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPairOnNext, err)
		}
		c.Pairing.PairOnNext = b
	}
	if v, ok := os.LookupEnv(EnvOrigins); ok {
		c.Server.AllowedOrigins = splitCommaSeparated(v)
	}
	if urls := splitCommaSeparated(os.Getenv(EnvSTUNURLs)); len(urls) > 0 {
		c.ICE.Servers = []ICEServerConfig{{URLs: urls}}
	}
	return nil
}

func splitCommaSeparated(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
