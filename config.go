package geobase

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration constants for geobase operations
const (
	// Connection retry configuration
	DefaultConnectAttempts = 3
	DefaultConnectDelay    = 500 * time.Millisecond
	DefaultConnectTimeout  = 5 * time.Second

	// Store defaults
	DefaultDatabase  = "seDB"
	DefaultDataPath  = "./data"
	DefaultCloudUser = "geobase"
	DefaultCloudHost = "storage.geobase.cloud"

	// File backend configuration
	DefaultFilePermissions = 0644
	DefaultDirPermissions  = 0755
)

// Environment variables read by ConfigFromEnv
const (
	EnvMode       = "GEO_DB_MODE"
	EnvLegacyMode = "CLOUD_MONGO" // "1" selects cloud, "0" local
	EnvURI        = "GEO_DB_URI"
	EnvPassword   = "GEO_DB_PASSWORD"
	EnvUser       = "GEO_DB_USER"
	EnvHost       = "GEO_DB_HOST"
	EnvDatabase   = "GEO_DB_NAME"
	EnvOptions    = "GEO_DB_OPTIONS"
	EnvDataPath   = "DATA_PATH"
	EnvAttempts   = "GEO_DB_CONNECT_ATTEMPTS"
	EnvEncryption = "GEO_DB_ENCRYPTION_KEY"
)

// Mode selects where the document store lives
type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// ParseMode accepts "local"/"cloud" as well as the legacy "0"/"1" flag values
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local", "0":
		return ModeLocal, nil
	case "cloud", "1":
		return ModeCloud, nil
	default:
		return "", WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Mode",
			"value":  s,
			"reason": "must be local or cloud",
		})
	}
}

// UnmarshalYAML lets config files spell the mode in any accepted form
func (m *Mode) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseMode(node.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// RetryConfig bounds the liveness probe issued while connecting
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: DefaultConnectAttempts,
		Delay:    DefaultConnectDelay,
	}
}

// Validate checks if the RetryConfig is valid
func (c RetryConfig) Validate() error {
	if c.Attempts < 1 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Retry.Attempts",
			"value":  c.Attempts,
			"reason": "must be at least 1",
		})
	}
	if c.Delay < 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Retry.Delay",
			"value":  c.Delay,
			"reason": "must be non-negative",
		})
	}
	return nil
}

// Config describes how to reach the document store.
//
// In local mode only DataPath is used. In cloud mode either URI (a full
// connection string) or Password (for the default hosted endpoint) is required;
// Username, Host, Database and Options override the defaults.
type Config struct {
	Mode           Mode          `yaml:"mode"`
	URI            string        `yaml:"uri"`
	Password       string        `yaml:"password"`
	Username       string        `yaml:"username"`
	Host           string        `yaml:"host"`
	Database       string        `yaml:"database"`
	Options        string        `yaml:"options"` // URL query string, e.g. "region=eu-west-1&secure=false"
	DataPath       string        `yaml:"data_path"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Retry          RetryConfig   `yaml:"retry"`

	// EncryptionKey, when set, is a base64 AES-256 key; document bodies are encrypted at rest
	EncryptionKey string `yaml:"encryption_key"`
}

// DefaultConfig returns a local-mode configuration
func DefaultConfig() Config {
	return Config{
		Mode:           ModeLocal,
		Username:       DefaultCloudUser,
		Host:           DefaultCloudHost,
		Database:       DefaultDatabase,
		DataPath:       DefaultDataPath,
		ConnectTimeout: DefaultConnectTimeout,
		Retry:          DefaultRetryConfig(),
	}
}

// ConfigFromEnv returns DefaultConfig overridden by environment variables
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML config file; environment variables still win
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, WithContext(ErrInvalidConfig, map[string]interface{}{
			"file":   path,
			"reason": err.Error(),
		})
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvLegacyMode); ok {
		mode, err := ParseMode(v)
		if err != nil {
			return err
		}
		c.Mode = mode
	}
	if v, ok := os.LookupEnv(EnvMode); ok {
		mode, err := ParseMode(v)
		if err != nil {
			return err
		}
		c.Mode = mode
	}

	overrides := []struct {
		env  string
		dest *string
	}{
		{EnvURI, &c.URI},
		{EnvPassword, &c.Password},
		{EnvUser, &c.Username},
		{EnvHost, &c.Host},
		{EnvDatabase, &c.Database},
		{EnvOptions, &c.Options},
		{EnvDataPath, &c.DataPath},
		{EnvEncryption, &c.EncryptionKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dest = v
		}
	}

	c.Retry.Attempts = getEnvAsInt(EnvAttempts, c.Retry.Attempts)
	return nil
}

// Validate checks the configuration without touching the network
func (c Config) Validate() error {
	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		return err
	}
	if c.Database == "" || strings.Contains(c.Database, "/") {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Database",
			"value":  c.Database,
			"reason": "database name is required and may not contain '/'",
		})
	}
	if _, err := url.ParseQuery(c.Options); err != nil {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Options",
			"reason": err.Error(),
		})
	}

	if c.EncryptionKey != "" {
		if _, err := ParseEncryptionKey(c.EncryptionKey); err != nil {
			return err
		}
	}

	switch mode {
	case ModeCloud:
		if c.URI == "" && c.Password == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "URI/Password",
				"reason": "cloud mode requires a connection URI or a password",
			})
		}
	default:
		if c.DataPath == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "DataPath",
				"reason": "local mode requires a data path",
			})
		}
	}

	return c.Retry.Validate()
}

// getEnvAsInt reads an integer environment variable with a default fallback.
func getEnvAsInt(key string, defaultVal int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultVal
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultVal
	}

	return value
}
