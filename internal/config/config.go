package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"
)

const (
	DefaultAPIURL          = "http://127.0.0.1:3000"
	DefaultStorageFileName = ".tix.db"
	DefaultLogLevel        = "warn"
	DefaultPollInterval    = 4 * time.Second
	DefaultHTTPTimeout     = 30 * time.Second
	DefaultNotificationTTL = 5 * time.Second

	configFileName = ".tix.toml"
	dotEnvFileName = ".env"

	configDirEnvKey          = "TIX_CONFIG_DIR"
	trustProjectConfigEnvKey = "TIX_TRUST_PROJECT_CONFIG"
	apiURLEnvKey             = "TIX_API_URL"
	storageEnvKey            = "TIX_STORAGE"
	pollIntervalEnvKey       = "TIX_POLL_INTERVAL"
	httpTimeoutEnvKey        = "TIX_HTTP_TIMEOUT"
)

// Config defines runtime configuration for tix.
type Config struct {
	APIURL                   string `toml:"api_url"`
	StoragePath              string `toml:"storage_path"`
	LogLevel                 string `toml:"log_level"`
	PollInterval             string `toml:"poll_interval"`
	HTTPTimeout              string `toml:"http_timeout"`
	NotificationTTL          string `toml:"notification_ttl"`
	TrustedProjectConfigPath string `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:          DefaultAPIURL,
		StoragePath:     "",
		LogLevel:        DefaultLogLevel,
		PollInterval:    DefaultPollInterval.String(),
		HTTPTimeout:     DefaultHTTPTimeout.String(),
		NotificationTTL: DefaultNotificationTTL.String(),
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigDir() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return dir, true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"storage_path",
	"log_level",
	"poll_interval",
	"http_timeout",
	"notification_ttl",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "storage_path":
		return c.StoragePath, nil
	case "log_level":
		return c.LogLevel, nil
	case "poll_interval":
		return c.PollInterval, nil
	case "http_timeout":
		return c.HTTPTimeout, nil
	case "notification_ttl":
		return c.NotificationTTL, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// PollIntervalDuration returns the configured poll interval, falling back to
// the default when unset or invalid.
func (c *Config) PollIntervalDuration() time.Duration {
	return durationOr(c.PollInterval, DefaultPollInterval)
}

// HTTPTimeoutDuration returns the configured request timeout.
func (c *Config) HTTPTimeoutDuration() time.Duration {
	return durationOr(c.HTTPTimeout, DefaultHTTPTimeout)
}

// NotificationTTLDuration returns how long notifications stay visible.
func (c *Config) NotificationTTLDuration() time.Duration {
	return durationOr(c.NotificationTTL, DefaultNotificationTTL)
}

// ParseDuration accepts Go duration strings and integer seconds.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", value)
}

func durationOr(value string, fallback time.Duration) time.Duration {
	if duration, err := ParseDuration(value); err == nil {
		return duration
	}
	return fallback
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	dir, err := globalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if dir, ok := overrideConfigDir(); ok {
		return filepath.Join(dir, configFileName), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

func globalDir() (string, error) {
	if dir, ok := overrideConfigDir(); ok {
		return dir, nil
	}
	return os.UserHomeDir()
}

// SetKey reads the TOML file at path, sets key=value, and replaces the file
// atomically.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	data[key] = parsedValue

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

// LoadDotEnv loads .env from the global config directory and, when the
// project is trusted, from the working directory. Variables already present
// in the environment win.
func LoadDotEnv() error {
	var paths []string
	if dir, err := globalDir(); err == nil {
		paths = append(paths, filepath.Join(dir, dotEnvFileName))
	}
	if trustProjectConfig() {
		if cwd, err := os.Getwd(); err == nil {
			paths = append(paths, filepath.Join(cwd, dotEnvFileName))
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	if dir, ok := overrideConfigDir(); ok {
		if err := loadFile(filepath.Join(dir, configFileName), &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.StoragePath == "" {
		if dir, err := globalDir(); err == nil {
			cfg.StoragePath = filepath.Join(dir, DefaultStorageFileName)
		}
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if storagePath := os.Getenv(storageEnvKey); storagePath != "" {
		cfg.StoragePath = storagePath
	}
	if raw := strings.TrimSpace(os.Getenv(pollIntervalEnvKey)); raw != "" {
		cfg.PollInterval = raw
	}
	if raw := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey)); raw != "" {
		cfg.HTTPTimeout = raw
	}

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "poll_interval", "http_timeout", "notification_ttl":
		if _, err := ParseDuration(value); err != nil {
			return nil, fmt.Errorf("%s must be a positive duration (e.g. 4s) or number of seconds", key)
		}
		return value, nil
	case "log_level":
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "warning", "error":
			return strings.ToLower(value), nil
		default:
			return nil, fmt.Errorf("%s must be one of debug, info, warn, error", key)
		}
	case "api_url":
		if value == "" {
			return nil, fmt.Errorf("%s must not be empty", key)
		}
		return strings.TrimRight(value, "/"), nil
	default:
		return value, nil
	}
}
