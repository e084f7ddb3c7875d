package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "storyteller-server-go/internal/platform/errors"
)

// Loader reads configuration from an optional YAML file with environment
// variable overrides for secrets.
type Loader struct {
	path      string
	useDotEnv bool
}

// NewLoader creates a loader for the given path; an empty path falls back to
// the CONFIG_PATH variable and then "config.yaml".
func NewLoader(path string) *Loader {
	return &Loader{path: path, useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the effective configuration: defaults, then the YAML file if
// present, then environment overrides.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using process environment")
		}
	}

	path := l.path
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load",
				"failed to parse "+path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment are enough to start.
		path = ""
	default:
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load",
			"failed to read "+path, err)
	}

	applyEnvOverrides(cfg)

	return &Result{Config: cfg, Path: path}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Auth.Store.Redis.Addr = v
	}
}
