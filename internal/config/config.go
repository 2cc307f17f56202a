package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	SecurityConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetLoginPath() string
	GetDashboardPath() string
	GetWebAddr() string
}

type mainConfig struct {
	EnvVars
	API
	Storage
	Security
}

// Option adjusts how configuration is loaded.
type Option func(*loader)

type loader struct {
	envFiles   []string
	configFile string
	overrides  map[string]any
}

// WithEnvFiles sets the dotenv files read before the environment. Missing files are ignored.
func WithEnvFiles(files ...string) Option {
	return func(l *loader) {
		l.envFiles = files
	}
}

// WithConfigFile reads an additional config file (yaml, json, toml) beneath the environment.
func WithConfigFile(path string) Option {
	return func(l *loader) {
		l.configFile = path
	}
}

// WithOverride pins a key to a value, taking precedence over env and files.
func WithOverride(key string, value any) Option {
	return func(l *loader) {
		l.overrides[key] = value
	}
}

// New resolves configuration from (highest first) overrides, environment variables,
// an optional config file, a .env file, then defaults.
func New(options ...Option) (Config, error) {
	l := &loader{
		envFiles:  []string{".env"},
		overrides: make(map[string]any),
	}
	for _, opt := range options {
		opt(l)
	}

	for _, f := range l.envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	for k, val := range l.overrides {
		v.Set(k, val)
	}

	return mainConfig{
		EnvVars:  EnvVars{v: v},
		API:      API{v: v},
		Storage:  Storage{v: v},
		Security: Security{v: v},
	}, nil
}
