package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that locate configuration files.
const (
	EnvPrefix     = "FACEGATE_"
	EnvConfigFile = "FACEGATE_CONFIG"
	EnvDotEnvFile = "FACEGATE_ENV_FILE"
	defaultDotEnv = ".env"
)

// Load builds a Config by layering sources.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (FACEGATE_ENV_FILE, default .env; missing file ignored)
//  3. YAML file if FACEGATE_CONFIG is set
//  4. env (prefix FACEGATE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// .env entries use the same FACEGATE_ names as the environment
	dotenv := os.Getenv(EnvDotEnvFile)
	if dotenv == "" {
		dotenv = defaultDotEnv
	}
	vals, err := godotenv.Read(dotenv)
	switch {
	case err == nil:
		for name, v := range vals {
			if key, ok := envKey(name); ok {
				if err := k.Set(key, v); err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, dotenv, err)
				}
			}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, dotenv, err)
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// FACEGATE_ENROLL_URL -> enroll_url (flat keys, underscores kept)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		key, _ := envKey(s)
		return key
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps FACEGATE_CAMERA_MODE to camera_mode. The file locators are not
// config keys.
func envKey(name string) (string, bool) {
	if !strings.HasPrefix(name, EnvPrefix) || name == EnvConfigFile || name == EnvDotEnvFile {
		return "", false
	}
	return strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), true
}
